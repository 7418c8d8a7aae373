// Package sheet models the expense sheet of a settlement: its participants,
// cost line items, personal deductions and payment confirmations.
//
// A Sheet is persisted as a single JSON document, so field names follow the
// camelCase keys of the stored blob rather than the snake_case used by the
// rest of the API.
package sheet

import (
	"fmt"
	"slices"

	apperrors "settleup/internal/errors"
)

const (
	// DefaultTitle is used when a sheet has no title.
	DefaultTitle = "Untitled"
	// DefaultExpenseName is the item name given to newly added expenses.
	DefaultExpenseName = "New item"
)

// Participant is a person sharing in one or more expenses.
type Participant struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Expense is a single cost line item. Attendees[pid] == true means the
// participant shares the cost.
type Expense struct {
	ID        int          `json:"id"`
	ItemName  string       `json:"itemName"`
	TotalCost int64        `json:"totalCost"`
	Attendees map[int]bool `json:"attendees"`
}

// PersonalDeductionItem marks an expense as paid out of pocket by a subset of
// participants. It mirrors its parent expense's name and cost.
type PersonalDeductionItem struct {
	ID                    int          `json:"id"`
	ItemName              string       `json:"itemName"`
	TotalCost             int64        `json:"totalCost"`
	DeductingParticipants map[int]bool `json:"deductingParticipants"`
}

// Sheet is the editable content of a settlement.
type Sheet struct {
	Title                  string                        `json:"title"`
	Subtitle               string                        `json:"subtitle"`
	Participants           []Participant                 `json:"participants"`
	Expenses               []Expense                     `json:"expenses"`
	PersonalDeductionItems map[int]PersonalDeductionItem `json:"personalDeductionItems"`
	PaymentStatus          map[int]bool                  `json:"paymentStatus"`
}

// New returns the sheet a freshly created settlement starts with: one
// participant and one dinner expense they attend.
func New(title string) Sheet {
	if title == "" {
		title = DefaultTitle
	}
	return Sheet{
		Title:        title,
		Participants: []Participant{{ID: 1, Name: participantName(1)}},
		Expenses: []Expense{
			{ID: 1, ItemName: "Dinner", TotalCost: 100000, Attendees: map[int]bool{1: true}},
		},
		PersonalDeductionItems: map[int]PersonalDeductionItem{},
		PaymentStatus:          map[int]bool{},
	}
}

// Normalize fills nil maps and a missing title so that a sheet decoded from
// a partial blob is safe to edit.
func (s *Sheet) Normalize() {
	if s.Title == "" {
		s.Title = DefaultTitle
	}
	if s.PersonalDeductionItems == nil {
		s.PersonalDeductionItems = map[int]PersonalDeductionItem{}
	}
	if s.PaymentStatus == nil {
		s.PaymentStatus = map[int]bool{}
	}
	for i := range s.Expenses {
		if s.Expenses[i].Attendees == nil {
			s.Expenses[i].Attendees = map[int]bool{}
		}
	}
	for id, item := range s.PersonalDeductionItems {
		if item.DeductingParticipants == nil {
			item.DeductingParticipants = map[int]bool{}
			s.PersonalDeductionItems[id] = item
		}
	}
}

// Validate checks a whole sheet submitted by a client: at least one
// participant and one expense, unique ids, and non-negative costs.
func (s *Sheet) Validate() error {
	if len(s.Participants) == 0 {
		return apperrors.ErrLastParticipant
	}
	if len(s.Expenses) == 0 {
		return apperrors.ErrLastExpense
	}

	seen := make(map[int]bool, len(s.Participants))
	for _, p := range s.Participants {
		if p.ID <= 0 || seen[p.ID] {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("invalid or duplicate participant id %d", p.ID))
		}
		seen[p.ID] = true
	}

	seen = make(map[int]bool, len(s.Expenses))
	for _, e := range s.Expenses {
		if e.ID <= 0 || seen[e.ID] {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("invalid or duplicate expense id %d", e.ID))
		}
		if e.TotalCost < 0 {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "cost must not be negative")
		}
		seen[e.ID] = true
	}

	for id := range s.PersonalDeductionItems {
		if !seen[id] {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("personal deduction for unknown expense %d", id))
		}
	}
	return nil
}

// Clone returns a deep copy of the sheet.
func (s Sheet) Clone() Sheet {
	out := Sheet{
		Title:                  s.Title,
		Subtitle:               s.Subtitle,
		Participants:           slices.Clone(s.Participants),
		Expenses:               make([]Expense, len(s.Expenses)),
		PersonalDeductionItems: make(map[int]PersonalDeductionItem, len(s.PersonalDeductionItems)),
		PaymentStatus:          cloneFlags(s.PaymentStatus),
	}
	for i, e := range s.Expenses {
		e.Attendees = cloneFlags(e.Attendees)
		out.Expenses[i] = e
	}
	for id, item := range s.PersonalDeductionItems {
		item.DeductingParticipants = cloneFlags(item.DeductingParticipants)
		out.PersonalDeductionItems[id] = item
	}
	return out
}

// WithoutPayments returns a copy of the sheet with payment status cleared.
// Two sheets that differ only in payment status compare equal this way.
func (s Sheet) WithoutPayments() Sheet {
	out := s.Clone()
	out.PaymentStatus = map[int]bool{}
	return out
}

// Participant returns the participant with the given id.
func (s *Sheet) Participant(id int) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// expenseIndex returns the slice index of the expense with the given id, or -1.
func (s *Sheet) expenseIndex(id int) int {
	return slices.IndexFunc(s.Expenses, func(e Expense) bool { return e.ID == id })
}

func (s *Sheet) participantIndex(id int) int {
	return slices.IndexFunc(s.Participants, func(p Participant) bool { return p.ID == id })
}

// ForParticipant returns the view of the sheet restricted to one
// participant: only the expenses they attend and only their own column.
func (s Sheet) ForParticipant(id int) ([]Participant, []Expense) {
	p, ok := s.Participant(id)
	if !ok {
		return nil, nil
	}
	var expenses []Expense
	for _, e := range s.Expenses {
		if e.Attendees[id] {
			expenses = append(expenses, e)
		}
	}
	return []Participant{p}, expenses
}

func participantName(id int) string {
	return fmt.Sprintf("Participant %d", id)
}

func cloneFlags(m map[int]bool) map[int]bool {
	out := make(map[int]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
