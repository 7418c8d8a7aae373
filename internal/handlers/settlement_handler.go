package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "settleup/internal/errors"
	"settleup/internal/models"
	"settleup/internal/pagination"
	"settleup/internal/services"
	"settleup/internal/sheet"
)

// ActiveSettlementNotice is shown with settlements that are still being edited.
const ActiveSettlementNotice = "Settlement in progress. Do not transfer money yet."

// SettlementHandler handles settlement-related requests.
type SettlementHandler struct {
	settlementService services.SettlementServicer
	auditService      services.AuditServicer
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementService services.SettlementServicer, auditService services.AuditServicer) *SettlementHandler {
	return &SettlementHandler{settlementService: settlementService, auditService: auditService}
}

// CreateSettlementRequest represents the request payload for creating a settlement.
type CreateSettlementRequest struct {
	Title string `json:"title" binding:"max=200"`
}

// ListSettlementsQuery holds the query parameters of the settlement list.
type ListSettlementsQuery struct {
	Search string `form:"search" binding:"max=200"`
	Status string `form:"status" binding:"omitempty,settlement_status"`
	Sort   string `form:"sort" binding:"omitempty,settlement_sort"`
}

// SaveSheetRequest represents the request payload for saving a whole sheet.
// ExpectedVersion may also be sent as an If-Match header.
type SaveSheetRequest struct {
	Data            *sheet.Sheet `json:"data" binding:"required"`
	ExpectedVersion *int64       `json:"expected_version" binding:"omitempty,min=1"`
}

// DraftRequest represents the request payload for queueing an autosave draft.
type DraftRequest struct {
	Data *sheet.Sheet `json:"data" binding:"required"`
}

// EditRequest represents a single structural edit of a sheet.
type EditRequest struct {
	Op            string `json:"op" binding:"required,sheet_edit_op"`
	ParticipantID int    `json:"participant_id" binding:"gte=0"`
	ExpenseID     int    `json:"expense_id" binding:"gte=0"`
	Text          string `json:"text" binding:"max=200"`
	Cost          int64  `json:"cost"`
}

// CompleteSettlementRequest optionally carries the final sheet to save.
type CompleteSettlementRequest struct {
	Data *sheet.Sheet `json:"data"`
}

// SettlementResponse is a settlement as returned by the read endpoint.
type SettlementResponse struct {
	Settlement *models.Settlement `json:"settlement"`
	IsOwner    bool               `json:"is_owner"`
	Notice     string             `json:"notice,omitempty"`
}

// CreateSettlement handles the creation of a new settlement
// @Summary     Create a settlement
// @Description Create a settlement with one participant and one expense
// @Tags        settlements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateSettlementRequest true "Settlement title"
// @Success     201 {object} models.Settlement "Settlement created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settlements [post]
func (h *SettlementHandler) CreateSettlement(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	settlement, err := h.settlementService.CreateSettlement(userID, req.Title)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditCreateSettlement, services.ResourceSettlement, settlement.ID, c.ClientIP(),
		map[string]interface{}{"title": settlement.Title})

	c.JSON(http.StatusCreated, gin.H{"settlement": settlement})
}

// GetUserSettlements handles listing the caller's settlements
// @Summary     List settlements
// @Description Get a paginated list of the authenticated user's settlements
// @Tags        settlements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       search    query string false "Case-insensitive title search"
// @Param       status    query string false "active or archived"
// @Param       sort      query string false "latest (default), oldest or title"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Settlement] "Paginated settlements"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settlements [get]
func (h *SettlementHandler) GetUserSettlements(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var query ListSettlementsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.settlementService.GetUserSettlements(userID, page, services.SettlementFilter{
		Search: query.Search,
		Status: query.Status,
		Sort:   query.Sort,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSettlement handles reading one settlement. Anyone with the link may read.
// @Summary     Get settlement
// @Description Get a settlement with its sheet. Active settlements carry a notice.
// @Tags        settlements
// @Produce     json
// @Param       id path string true "Settlement ID"
// @Success     200 {object} SettlementResponse "Settlement details"
// @Failure     400 {object} ErrorResponse "Invalid settlement ID"
// @Failure     404 {object} ErrorResponse "Settlement not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settlements/{id} [get]
func (h *SettlementHandler) GetSettlement(c *gin.Context) {
	settlementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	settlement, err := h.settlementService.GetSettlement(settlementID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	resp := SettlementResponse{Settlement: settlement}
	if userID, ok := optionalUserID(c); ok {
		resp.IsOwner = userID == settlement.OwnerID
	}
	if settlement.Status == models.SettlementStatusActive {
		resp.Notice = ActiveSettlementNotice
	}

	c.JSON(http.StatusOK, resp)
}

// GetSummary handles the computed breakdown of a settlement
// @Summary     Get settlement summary
// @Description Per-participant shares and per-expense costs. participant_id limits the listing to one participant.
// @Tags        settlements
// @Produce     json
// @Param       id             path  string true  "Settlement ID"
// @Param       participant_id query int    false "Participant to show"
// @Success     200 {object} services.SettlementSummary "Settlement summary"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Settlement or participant not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settlements/{id}/summary [get]
func (h *SettlementHandler) GetSummary(c *gin.Context) {
	settlementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var participantID *int
	if raw := c.Query("participant_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid participant_id"))
			return
		}
		participantID = &id
	}

	summary, err := h.settlementService.GetSummary(settlementID, participantID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// SaveSheet handles replacing the whole sheet of a settlement
// @Summary     Save sheet
// @Description Replace the sheet. With expected_version or If-Match the write fails if the settlement changed meanwhile.
// @Tags        settlements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id       path   string           true  "Settlement ID"
// @Param       If-Match header string           false "Expected version"
// @Param       request  body   SaveSheetRequest true  "Sheet"
// @Success     200 {object} models.Settlement "Saved settlement"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Settlement not found"
// @Failure     409 {object} ErrorResponse "Version conflict or settlement archived"
// @Failure     422 {object} ErrorResponse "Sheet would be empty"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settlements/{id}/sheet [put]
func (h *SettlementHandler) SaveSheet(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	settlementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SaveSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	expected := req.ExpectedVersion
	if ifMatch := strings.Trim(c.GetHeader("If-Match"), `" `); ifMatch != "" && expected == nil {
		v, err := strconv.ParseInt(ifMatch, 10, 64)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid If-Match header"))
			return
		}
		expected = &v
	}

	settlement, err := h.settlementService.SaveSheet(userID, settlementID, *req.Data, expected)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditSaveSheet, services.ResourceSettlement, settlementID, c.ClientIP(),
		map[string]interface{}{"version": settlement.Version})

	c.Header("ETag", strconv.FormatInt(settlement.Version, 10))
	c.JSON(http.StatusOK, gin.H{"settlement": settlement})
}

// QueueDraft handles autosave of a sheet being edited
// @Summary     Queue draft
// @Description Queue a sheet to be saved once edits pause
// @Tags        settlements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string       true "Settlement ID"
// @Param       request body DraftRequest true "Sheet"
// @Success     202 {object} services.DraftStatus "Draft queued"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Settlement not found"
// @Failure     409 {object} ErrorResponse "Settlement archived"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settlements/{id}/draft [post]
func (h *SettlementHandler) QueueDraft(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	settlementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	status, err := h.settlementService.QueueDraft(userID, settlementID, *req.Data)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, status)
}

// GetDraftStatus handles reading the autosave state
// @Summary     Get save status
// @Description Report whether the latest draft is pending, saving, saved or failed
// @Tags        settlements
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Settlement ID"
// @Success     200 {object} services.DraftStatus "Save status"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Settlement not found"
// @Router      /settlements/{id}/save-status [get]
func (h *SettlementHandler) GetDraftStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	settlementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	status, err := h.settlementService.GetDraftStatus(userID, settlementID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// ApplyEdit handles a single structural edit of the sheet
// @Summary     Apply edit
// @Description Apply one edit such as add_participant or toggle_attendee
// @Tags        settlements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string      true "Settlement ID"
// @Param       request body EditRequest true "Edit"
// @Success     200 {object} models.Settlement "Updated settlement"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Settlement, participant or expense not found"
// @Failure     409 {object} ErrorResponse "Settlement archived"
// @Failure     422 {object} ErrorResponse "Edit refused"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settlements/{id}/edits [post]
func (h *SettlementHandler) ApplyEdit(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	settlementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	settlement, err := h.settlementService.ApplyEdit(userID, settlementID, sheet.Edit{
		Op:            sheet.Op(req.Op),
		ParticipantID: req.ParticipantID,
		ExpenseID:     req.ExpenseID,
		Text:          req.Text,
		Cost:          req.Cost,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("ETag", strconv.FormatInt(settlement.Version, 10))
	c.JSON(http.StatusOK, gin.H{"settlement": settlement})
}

// CompleteSettlement handles archiving a settlement
// @Summary     Complete settlement
// @Description Archive a settlement, saving the given sheet or any pending draft first
// @Tags        settlements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                    true  "Settlement ID"
// @Param       request body CompleteSettlementRequest false "Final sheet"
// @Success     200 {object} models.Settlement "Archived settlement"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Settlement not found"
// @Failure     409 {object} ErrorResponse "Already completed"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settlements/{id}/complete [post]
func (h *SettlementHandler) CompleteSettlement(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	settlementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CompleteSettlementRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	settlement, err := h.settlementService.CompleteSettlement(userID, settlementID, req.Data)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditCompleteSettlement, services.ResourceSettlement, settlementID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"settlement": settlement})
}

// ReactivateSettlement handles returning an archived settlement to editing
// @Summary     Reactivate settlement
// @Description Return an archived settlement to active
// @Tags        settlements
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Settlement ID"
// @Success     200 {object} models.Settlement "Active settlement"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Settlement not found"
// @Failure     409 {object} ErrorResponse "Already active"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settlements/{id}/reactivate [post]
func (h *SettlementHandler) ReactivateSettlement(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	settlementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	settlement, err := h.settlementService.ReactivateSettlement(userID, settlementID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditReactivateSettlement, services.ResourceSettlement, settlementID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"settlement": settlement})
}

// DeleteSettlement handles soft deletion of a settlement
// @Summary     Delete settlement
// @Description Soft-delete a settlement
// @Tags        settlements
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Settlement ID"
// @Success     200 {object} map[string]string "Settlement deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Settlement not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settlements/{id} [delete]
func (h *SettlementHandler) DeleteSettlement(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	settlementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.settlementService.DeleteSettlement(userID, settlementID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditDeleteSettlement, services.ResourceSettlement, settlementID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Settlement deleted successfully"})
}
