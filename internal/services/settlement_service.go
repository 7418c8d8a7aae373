package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"settleup/internal/autosave"
	"settleup/internal/calculator"
	apperrors "settleup/internal/errors"
	"settleup/internal/events"
	"settleup/internal/metrics"
	"settleup/internal/models"
	"settleup/internal/pagination"
	"settleup/internal/sheet"
)

// draft is a sheet waiting in the autosave debouncer.
type draft struct {
	userID string
	data   sheet.Sheet
}

// settlementService handles settlement-related business logic.
type settlementService struct {
	db        *gorm.DB
	publisher events.Publisher
	metrics   *metrics.Metrics
	drafts    *autosave.Debouncer[draft]
}

// SettlementOption configures a settlement service.
type SettlementOption func(*settlementService)

// WithPublisher sets the publisher used for settlement change events.
func WithPublisher(p events.Publisher) SettlementOption {
	return func(s *settlementService) { s.publisher = p }
}

// WithMetrics records autosave flushes on m.
func WithMetrics(m *metrics.Metrics) SettlementOption {
	return func(s *settlementService) { s.metrics = m }
}

// WithAutosaveDelay sets the quiet period before a queued draft is written.
func WithAutosaveDelay(d time.Duration) SettlementOption {
	return func(s *settlementService) {
		s.drafts = autosave.New(d, s.flushDraft)
	}
}

// NewSettlementService creates a new SettlementServicer.
func NewSettlementService(db *gorm.DB, opts ...SettlementOption) SettlementServicer {
	s := &settlementService{db: db, publisher: events.NopPublisher{}}
	s.drafts = autosave.New(autosave.DefaultDelay, s.flushDraft)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSettlement creates a settlement with the default sheet.
func (s *settlementService) CreateSettlement(userID, title string) (*models.Settlement, error) {
	data := sheet.New(strings.TrimSpace(title))
	settlement := &models.Settlement{
		OwnerID: userID,
		Title:   data.Title,
		Status:  models.SettlementStatusActive,
		Version: 1,
		Data:    data,
	}

	if err := s.db.Create(settlement).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.notify(settlement, events.TypeInsert)
	return settlement, nil
}

// GetUserSettlements returns a paginated list of the user's settlements.
// Deleted settlements are never listed.
func (s *settlementService) GetUserSettlements(
	userID string,
	page pagination.PageRequest,
	filter SettlementFilter,
) (*pagination.PageResponse[models.Settlement], error) {
	page.Defaults()

	base := s.db.Model(&models.Settlement{}).
		Where("owner_id = ? AND status <> ?", userID, models.SettlementStatusDeleted)
	if search := strings.TrimSpace(filter.Search); search != "" {
		base = base.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if filter.Status != "" {
		base = base.Where("status = ?", filter.Status)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var settlements []models.Settlement
	if err := base.Scopes(pagination.Paginate(page, filter.Sort)).Find(&settlements).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(settlements, page, totalItems)
	return &result, nil
}

// GetSettlement returns a settlement by ID. Settlements are readable by
// anyone holding the ID so that guests can follow along.
func (s *settlementService) GetSettlement(settlementID string) (*models.Settlement, error) {
	var settlement models.Settlement
	err := s.db.Where("id = ? AND status <> ?", settlementID, models.SettlementStatusDeleted).
		First(&settlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSettlementNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	settlement.Data.Normalize()
	return &settlement, nil
}

// SaveSheet replaces the sheet of a settlement. When expectedVersion is set
// the write only succeeds if the stored version still matches; otherwise the
// last write wins.
func (s *settlementService) SaveSheet(userID, settlementID string, data sheet.Sheet, expectedVersion *int64) (*models.Settlement, error) {
	data.Normalize()
	if err := data.Validate(); err != nil {
		return nil, err
	}

	return s.update(userID, settlementID, func(st *models.Settlement) error {
		if expectedVersion != nil && *expectedVersion != st.Version {
			return apperrors.ErrVersionConflict
		}
		if err := checkArchivedChange(st, data); err != nil {
			return err
		}
		st.Data = data
		return nil
	})
}

// QueueDraft schedules data to be saved once edits pause.
func (s *settlementService) QueueDraft(userID, settlementID string, data sheet.Sheet) (*DraftStatus, error) {
	data.Normalize()
	if err := data.Validate(); err != nil {
		return nil, err
	}

	st, err := s.getOwned(userID, settlementID)
	if err != nil {
		return nil, err
	}
	if err := checkArchivedChange(st, data); err != nil {
		return nil, err
	}

	if err := s.drafts.Schedule(settlementID, draft{userID: userID, data: data}); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.draftStatus(settlementID), nil
}

// GetDraftStatus reports the autosave state of a settlement.
func (s *settlementService) GetDraftStatus(userID, settlementID string) (*DraftStatus, error) {
	if _, err := s.getOwned(userID, settlementID); err != nil {
		return nil, err
	}
	return s.draftStatus(settlementID), nil
}

// ApplyEdit performs one structural edit on the stored sheet.
func (s *settlementService) ApplyEdit(userID, settlementID string, edit sheet.Edit) (*models.Settlement, error) {
	return s.update(userID, settlementID, func(st *models.Settlement) error {
		if st.IsArchived() && !edit.AllowedWhenArchived() {
			return apperrors.ErrSettlementArchived
		}
		return st.Data.Apply(edit)
	})
}

// CompleteSettlement archives a settlement. A final sheet, or else any draft
// still waiting to be written, is saved in the same write.
func (s *settlementService) CompleteSettlement(userID, settlementID string, final *sheet.Sheet) (*models.Settlement, error) {
	if final == nil {
		if d, ok := s.drafts.Pending(settlementID); ok && d.userID == userID {
			final = &d.data
		}
	}
	if final != nil {
		final.Normalize()
		if err := final.Validate(); err != nil {
			return nil, err
		}
	}

	st, err := s.update(userID, settlementID, func(st *models.Settlement) error {
		if st.IsArchived() {
			return apperrors.WithMessage(apperrors.ErrSettlementArchived, "Settlement is already completed")
		}
		if final != nil {
			st.Data = *final
		}
		st.Status = models.SettlementStatusArchived
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.drafts.Cancel(settlementID)
	return st, nil
}

// ReactivateSettlement returns an archived settlement to editing.
func (s *settlementService) ReactivateSettlement(userID, settlementID string) (*models.Settlement, error) {
	return s.update(userID, settlementID, func(st *models.Settlement) error {
		if !st.IsArchived() {
			return apperrors.ErrSettlementActive
		}
		st.Status = models.SettlementStatusActive
		return nil
	})
}

// DeleteSettlement soft-deletes a settlement. Deletion cannot be undone
// through the API.
func (s *settlementService) DeleteSettlement(userID, settlementID string) error {
	st, err := s.update(userID, settlementID, func(st *models.Settlement) error {
		st.Status = models.SettlementStatusDeleted
		return nil
	})
	if err != nil {
		return err
	}

	s.drafts.Cancel(settlementID)
	if err := s.db.Delete(st).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	s.notify(st, events.TypeDelete)
	return nil
}

// GetSummary computes the per-participant breakdown of a settlement. With a
// participantID only that participant and the expenses they attend are
// listed; amounts are always computed over the whole sheet.
func (s *settlementService) GetSummary(settlementID string, participantID *int) (*SettlementSummary, error) {
	st, err := s.GetSettlement(settlementID)
	if err != nil {
		return nil, err
	}
	data := st.Data
	res := calculator.CalculateSheet(data)

	participants, expenses := data.Participants, data.Expenses
	if participantID != nil {
		participants, expenses = data.ForParticipant(*participantID)
		if participants == nil {
			return nil, apperrors.ErrParticipantNotFound
		}
	}

	summary := &SettlementSummary{
		SettlementID:  st.ID,
		Title:         data.Title,
		Status:        st.Status,
		Participants:  make([]ParticipantShare, 0, len(participants)),
		Expenses:      make([]ExpenseLine, 0, len(expenses)),
		TotalExpenses: res.TotalExpenses,
		GrandTotal:    res.DisplayGrandTotal(),
		HasDeductions: res.HasDeductions,
		AllPaid:       true,
	}

	for _, p := range data.Participants {
		if !data.PaymentStatus[p.ID] {
			summary.AllPaid = false
			break
		}
	}

	for _, p := range participants {
		exact := res.ParticipantTotals[p.ID]
		if res.HasDeductions {
			exact = res.FinalTotals[p.ID]
		}
		summary.Participants = append(summary.Participants, ParticipantShare{
			ParticipantID: p.ID,
			Name:          p.Name,
			Amount:        res.DisplayShare(p.ID),
			Exact:         exact.String(),
			Paid:          data.PaymentStatus[p.ID],
		})
	}

	rows := make(map[int]calculator.ExpenseRow, len(res.Rows))
	for _, row := range res.Rows {
		rows[row.ExpenseID] = row
	}
	for _, e := range expenses {
		_, personal := data.PersonalDeductionItems[e.ID]
		summary.Expenses = append(summary.Expenses, ExpenseLine{
			ExpenseID:     e.ID,
			ItemName:      e.ItemName,
			TotalCost:     e.TotalCost,
			AttendeeCount: rows[e.ID].AttendeeCount,
			CostPerPerson: rows[e.ID].CostPerPerson,
			Personal:      personal,
		})
	}

	return summary, nil
}

// FlushDrafts writes every queued draft immediately. It is called on
// shutdown; later QueueDraft calls fail.
func (s *settlementService) FlushDrafts(ctx context.Context) error {
	return s.drafts.Close(ctx)
}

func (s *settlementService) flushDraft(_ context.Context, settlementID string, d draft) error {
	_, err := s.SaveSheet(d.userID, settlementID, d.data, nil)
	s.metrics.AutosaveFlushed(err)
	return err
}

func (s *settlementService) draftStatus(settlementID string) *DraftStatus {
	status, err := s.drafts.Status(settlementID)
	ds := &DraftStatus{SettlementID: settlementID, Status: status}
	if err != nil {
		ds.Error = err.Error()
	}
	return ds
}

// getOwned loads a settlement and checks that userID owns it.
func (s *settlementService) getOwned(userID, settlementID string) (*models.Settlement, error) {
	st, err := s.GetSettlement(settlementID)
	if err != nil {
		return nil, err
	}
	if st.OwnerID != userID {
		return nil, apperrors.ErrForbidden
	}
	return st, nil
}

// update runs mutate on the locked settlement row and persists the result
// with the version bumped. Nothing is written when mutate fails.
func (s *settlementService) update(userID, settlementID string, mutate func(st *models.Settlement) error) (*models.Settlement, error) {
	var settlement models.Settlement

	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status <> ?", settlementID, models.SettlementStatusDeleted).
			First(&settlement).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrSettlementNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if settlement.OwnerID != userID {
			return apperrors.ErrForbidden
		}

		settlement.Data.Normalize()
		if err := mutate(&settlement); err != nil {
			return err
		}
		settlement.Title = settlement.Data.Title
		settlement.Version++

		err = tx.Model(&settlement).
			Select("data", "title", "status", "version", "updated_at").
			Updates(&settlement).Error
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(&settlement, events.TypeUpdate)
	return &settlement, nil
}

func (s *settlementService) notify(st *models.Settlement, eventType string) {
	events.Notify(context.Background(), s.publisher, events.SettlementChannel(st.ID), events.Event{
		Type:         eventType,
		Table:        "settlements",
		ID:           st.ID,
		SettlementID: st.ID,
		Version:      st.Version,
	})
}

// checkArchivedChange rejects anything but payment status changes on an
// archived settlement.
func checkArchivedChange(st *models.Settlement, next sheet.Sheet) error {
	if !st.IsArchived() {
		return nil
	}
	if !reflect.DeepEqual(st.Data.WithoutPayments(), next.WithoutPayments()) {
		return apperrors.ErrSettlementArchived
	}
	return nil
}
