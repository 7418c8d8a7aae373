package sheet

import (
	"slices"

	apperrors "settleup/internal/errors"
)

// Op names a single structural edit of a sheet.
type Op string

const (
	OpAddParticipant     Op = "add_participant"
	OpRemoveParticipant  Op = "remove_participant"
	OpRenameParticipant  Op = "rename_participant"
	OpAddExpense         Op = "add_expense"
	OpRemoveExpense      Op = "remove_expense"
	OpRenameExpense      Op = "rename_expense"
	OpSetExpenseCost     Op = "set_expense_cost"
	OpToggleAttendee     Op = "toggle_attendee"
	OpToggleAllAttendees Op = "toggle_all_attendees"
	OpTogglePersonal     Op = "toggle_personal"
	OpToggleDeducting    Op = "toggle_deducting"
	OpTogglePayment      Op = "toggle_payment"
	OpSetTitle           Op = "set_title"
	OpSetSubtitle        Op = "set_subtitle"
)

// Ops lists every supported edit operation.
var Ops = []Op{
	OpAddParticipant, OpRemoveParticipant, OpRenameParticipant,
	OpAddExpense, OpRemoveExpense, OpRenameExpense, OpSetExpenseCost,
	OpToggleAttendee, OpToggleAllAttendees, OpTogglePersonal, OpToggleDeducting,
	OpTogglePayment, OpSetTitle, OpSetSubtitle,
}

// Edit describes one user action against a sheet. Only the fields relevant
// to Op are read.
type Edit struct {
	Op            Op     `json:"op"`
	ParticipantID int    `json:"participant_id,omitempty"`
	ExpenseID     int    `json:"expense_id,omitempty"`
	Text          string `json:"text,omitempty"`
	Cost          int64  `json:"cost,omitempty"`
}

// AllowedWhenArchived reports whether the edit may be applied to an
// archived settlement.
func (e Edit) AllowedWhenArchived() bool {
	return e.Op == OpTogglePayment
}

// Apply performs the edit. A refused edit returns an *AppError and leaves
// the sheet exactly as it was.
func (s *Sheet) Apply(e Edit) error {
	next := s.Clone()
	next.Normalize()

	var err error
	switch e.Op {
	case OpAddParticipant:
		next.AddParticipant()
	case OpRemoveParticipant:
		err = next.RemoveLastParticipant()
	case OpRenameParticipant:
		err = next.RenameParticipant(e.ParticipantID, e.Text)
	case OpAddExpense:
		next.AddExpense()
	case OpRemoveExpense:
		err = next.RemoveLastExpense()
	case OpRenameExpense:
		err = next.RenameExpense(e.ExpenseID, e.Text)
	case OpSetExpenseCost:
		err = next.SetExpenseCost(e.ExpenseID, e.Cost)
	case OpToggleAttendee:
		err = next.ToggleAttendee(e.ExpenseID, e.ParticipantID)
	case OpToggleAllAttendees:
		err = next.ToggleAllAttendees(e.ExpenseID)
	case OpTogglePersonal:
		err = next.TogglePersonal(e.ExpenseID)
	case OpToggleDeducting:
		err = next.ToggleDeducting(e.ExpenseID, e.ParticipantID)
	case OpTogglePayment:
		err = next.TogglePayment(e.ParticipantID)
	case OpSetTitle:
		next.Title = e.Text
	case OpSetSubtitle:
		next.Subtitle = e.Text
	default:
		err = apperrors.ErrUnknownEdit
	}
	if err != nil {
		return err
	}

	*s = next
	return nil
}

// AddParticipant appends a participant with the next sequential id. The new
// participant attends every existing expense and deducts from none.
func (s *Sheet) AddParticipant() Participant {
	id := 1
	for _, p := range s.Participants {
		if p.ID >= id {
			id = p.ID + 1
		}
	}
	p := Participant{ID: id, Name: participantName(id)}
	s.Participants = append(s.Participants, p)

	for i := range s.Expenses {
		if s.Expenses[i].Attendees == nil {
			s.Expenses[i].Attendees = map[int]bool{}
		}
		s.Expenses[i].Attendees[id] = true
	}
	for expenseID, item := range s.PersonalDeductionItems {
		if item.DeductingParticipants == nil {
			item.DeductingParticipants = map[int]bool{}
		}
		item.DeductingParticipants[id] = false
		s.PersonalDeductionItems[expenseID] = item
	}
	return p
}

// RemoveLastParticipant removes the participant with the highest id and
// every reference to them.
func (s *Sheet) RemoveLastParticipant() error {
	if len(s.Participants) <= 1 {
		return apperrors.ErrLastParticipant
	}
	i := highestID(s.Participants, func(p Participant) int { return p.ID })
	last := s.Participants[i]
	s.Participants = slices.Delete(s.Participants, i, i+1)

	for i := range s.Expenses {
		delete(s.Expenses[i].Attendees, last.ID)
	}
	for _, item := range s.PersonalDeductionItems {
		delete(item.DeductingParticipants, last.ID)
	}
	delete(s.PaymentStatus, last.ID)
	return nil
}

// RenameParticipant changes a participant's display name.
func (s *Sheet) RenameParticipant(id int, name string) error {
	i := s.participantIndex(id)
	if i < 0 {
		return apperrors.ErrParticipantNotFound
	}
	s.Participants[i].Name = name
	return nil
}

// AddExpense appends a zero-cost expense attended by every participant.
func (s *Sheet) AddExpense() Expense {
	id := 1
	for _, e := range s.Expenses {
		if e.ID >= id {
			id = e.ID + 1
		}
	}
	attendees := make(map[int]bool, len(s.Participants))
	for _, p := range s.Participants {
		attendees[p.ID] = true
	}
	e := Expense{ID: id, ItemName: DefaultExpenseName, Attendees: attendees}
	s.Expenses = append(s.Expenses, e)
	return e
}

// RemoveLastExpense removes the expense with the highest id together with
// its personal deduction record.
func (s *Sheet) RemoveLastExpense() error {
	if len(s.Expenses) <= 1 {
		return apperrors.ErrLastExpense
	}
	i := highestID(s.Expenses, func(e Expense) int { return e.ID })
	last := s.Expenses[i]
	s.Expenses = slices.Delete(s.Expenses, i, i+1)
	delete(s.PersonalDeductionItems, last.ID)
	return nil
}

// RenameExpense changes an expense's item name and keeps its deduction
// record in sync.
func (s *Sheet) RenameExpense(id int, name string) error {
	i := s.expenseIndex(id)
	if i < 0 {
		return apperrors.ErrExpenseNotFound
	}
	s.Expenses[i].ItemName = name
	if item, ok := s.PersonalDeductionItems[id]; ok {
		item.ItemName = name
		s.PersonalDeductionItems[id] = item
	}
	return nil
}

// SetExpenseCost changes an expense's total cost and keeps its deduction
// record in sync.
func (s *Sheet) SetExpenseCost(id int, cost int64) error {
	if cost < 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "cost must not be negative")
	}
	i := s.expenseIndex(id)
	if i < 0 {
		return apperrors.ErrExpenseNotFound
	}
	s.Expenses[i].TotalCost = cost
	if item, ok := s.PersonalDeductionItems[id]; ok {
		item.TotalCost = cost
		s.PersonalDeductionItems[id] = item
	}
	return nil
}

// ToggleAttendee flips whether a participant shares an expense.
func (s *Sheet) ToggleAttendee(expenseID, participantID int) error {
	i := s.expenseIndex(expenseID)
	if i < 0 {
		return apperrors.ErrExpenseNotFound
	}
	if s.participantIndex(participantID) < 0 {
		return apperrors.ErrParticipantNotFound
	}
	s.Expenses[i].Attendees[participantID] = !s.Expenses[i].Attendees[participantID]
	return nil
}

// ToggleAllAttendees clears the row when every attendee flag is set and
// otherwise marks every participant as attending.
func (s *Sheet) ToggleAllAttendees(expenseID int) error {
	i := s.expenseIndex(expenseID)
	if i < 0 {
		return apperrors.ErrExpenseNotFound
	}
	allChecked := len(s.Expenses[i].Attendees) > 0
	for _, v := range s.Expenses[i].Attendees {
		if !v {
			allChecked = false
			break
		}
	}
	attendees := make(map[int]bool, len(s.Participants))
	for _, p := range s.Participants {
		attendees[p.ID] = !allChecked
	}
	s.Expenses[i].Attendees = attendees
	return nil
}

// TogglePersonal creates or removes the personal deduction record for an
// expense. A new record starts with nobody deducting.
func (s *Sheet) TogglePersonal(expenseID int) error {
	i := s.expenseIndex(expenseID)
	if i < 0 {
		return apperrors.ErrExpenseNotFound
	}
	if _, ok := s.PersonalDeductionItems[expenseID]; ok {
		delete(s.PersonalDeductionItems, expenseID)
		return nil
	}
	deducting := make(map[int]bool, len(s.Participants))
	for _, p := range s.Participants {
		deducting[p.ID] = false
	}
	e := s.Expenses[i]
	s.PersonalDeductionItems[expenseID] = PersonalDeductionItem{
		ID:                    e.ID,
		ItemName:              e.ItemName,
		TotalCost:             e.TotalCost,
		DeductingParticipants: deducting,
	}
	return nil
}

// ToggleDeducting flips whether a participant paid a personal expense.
func (s *Sheet) ToggleDeducting(expenseID, participantID int) error {
	item, ok := s.PersonalDeductionItems[expenseID]
	if !ok {
		return apperrors.ErrExpenseNotFound
	}
	if s.participantIndex(participantID) < 0 {
		return apperrors.ErrParticipantNotFound
	}
	item.DeductingParticipants[participantID] = !item.DeductingParticipants[participantID]
	s.PersonalDeductionItems[expenseID] = item
	return nil
}

// TogglePayment flips a participant's payment confirmation.
func (s *Sheet) TogglePayment(participantID int) error {
	if s.participantIndex(participantID) < 0 {
		return apperrors.ErrParticipantNotFound
	}
	s.PaymentStatus[participantID] = !s.PaymentStatus[participantID]
	return nil
}

// highestID returns the index of the item with the largest id. Saved sheets
// are not required to list ids in order.
func highestID[T any](items []T, id func(T) int) int {
	best := 0
	for i := range items {
		if id(items[i]) > id(items[best]) {
			best = i
		}
	}
	return best
}

// IsValidOp reports whether op names a supported edit.
func IsValidOp(op string) bool {
	return slices.Contains(Ops, Op(op))
}
