package sheet

import (
	"errors"
	"reflect"
	"testing"

	apperrors "settleup/internal/errors"
)

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func expectErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("expected %v, got %v", target, err)
	}
}

func expectEqual(t *testing.T, label string, got, want interface{}) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s: expected %+v, got %+v", label, want, got)
	}
}

func TestAddParticipant(t *testing.T) {
	s := New("Trip")
	mustOK(t, s.TogglePersonal(1))

	p := s.AddParticipant()

	expectEqual(t, "participant", p, Participant{ID: 2, Name: "Participant 2"})
	if !s.Expenses[0].Attendees[2] {
		t.Error("expected new participant to attend existing expenses")
	}
	flag, ok := s.PersonalDeductionItems[1].DeductingParticipants[2]
	if !ok || flag {
		t.Errorf("expected an unset deducting flag, got %v (present %v)", flag, ok)
	}
}

func TestAddRemoveParticipant_Inverse(t *testing.T) {
	s := New("Trip")
	s.AddParticipant()
	mustOK(t, s.TogglePersonal(1))
	before := s.Clone()

	s.AddParticipant()
	mustOK(t, s.TogglePayment(3))
	mustOK(t, s.RemoveLastParticipant())

	expectEqual(t, "sheet", s, before)
}

func TestRemoveLastParticipant_Refused(t *testing.T) {
	s := New("Trip")
	before := s.Clone()

	err := s.Apply(Edit{Op: OpRemoveParticipant})

	expectErr(t, err, apperrors.ErrLastParticipant)
	expectEqual(t, "sheet", s, before)
}

// unordered is a saved sheet whose rows are not listed in id order.
func unordered() Sheet {
	return Sheet{
		Title:        "Trip",
		Participants: []Participant{{ID: 3, Name: "C"}, {ID: 1, Name: "A"}},
		Expenses: []Expense{
			{ID: 2, ItemName: "Taxi", TotalCost: 3000, Attendees: map[int]bool{1: true, 3: true}},
			{ID: 1, ItemName: "Dinner", TotalCost: 9000, Attendees: map[int]bool{1: true, 3: true}},
		},
		PersonalDeductionItems: map[int]PersonalDeductionItem{
			1: {ID: 1, ItemName: "Dinner", TotalCost: 9000, DeductingParticipants: map[int]bool{1: true, 3: false}},
			2: {ID: 2, ItemName: "Taxi", TotalCost: 3000, DeductingParticipants: map[int]bool{1: false, 3: true}},
		},
		PaymentStatus: map[int]bool{1: true, 3: true},
	}
}

func TestRemoveLast_UsesHighestID(t *testing.T) {
	t.Run("participant", func(t *testing.T) {
		s := unordered()

		mustOK(t, s.Apply(Edit{Op: OpRemoveParticipant}))

		expectEqual(t, "participants", s.Participants, []Participant{{ID: 1, Name: "A"}})
		for _, e := range s.Expenses {
			if _, ok := e.Attendees[3]; ok {
				t.Errorf("expense %d still references participant 3", e.ID)
			}
			if !e.Attendees[1] {
				t.Errorf("expense %d lost participant 1", e.ID)
			}
		}
		if !s.PersonalDeductionItems[1].DeductingParticipants[1] {
			t.Error("participant 1 lost their deducting flag")
		}
		expectEqual(t, "payment status", s.PaymentStatus, map[int]bool{1: true})
	})

	t.Run("expense", func(t *testing.T) {
		s := unordered()

		mustOK(t, s.Apply(Edit{Op: OpRemoveExpense}))

		if len(s.Expenses) != 1 || s.Expenses[0].ID != 1 {
			t.Fatalf("expected only expense 1 to remain, got %+v", s.Expenses)
		}
		if _, ok := s.PersonalDeductionItems[2]; ok {
			t.Error("expected deduction record of expense 2 to be removed")
		}
		if _, ok := s.PersonalDeductionItems[1]; !ok {
			t.Error("expected deduction record of expense 1 to remain")
		}
	})
}

func TestAddExpense(t *testing.T) {
	s := New("Trip")
	s.AddParticipant()

	e := s.AddExpense()

	if e.ID != 2 || e.ItemName != DefaultExpenseName || e.TotalCost != 0 {
		t.Errorf("unexpected expense %+v", e)
	}
	expectEqual(t, "attendees", e.Attendees, map[int]bool{1: true, 2: true})
}

func TestRemoveLastExpense(t *testing.T) {
	s := New("Trip")
	e := s.AddExpense()
	mustOK(t, s.TogglePersonal(e.ID))

	mustOK(t, s.RemoveLastExpense())

	if len(s.Expenses) != 1 {
		t.Fatalf("expected 1 expense, got %d", len(s.Expenses))
	}
	if _, ok := s.PersonalDeductionItems[e.ID]; ok {
		t.Error("expected deduction record to be removed with its expense")
	}

	expectErr(t, s.Apply(Edit{Op: OpRemoveExpense}), apperrors.ErrLastExpense)
	if len(s.Expenses) != 1 {
		t.Errorf("expected refused removal to keep the expense, got %d", len(s.Expenses))
	}
}

func TestRenameAndCost_SyncDeduction(t *testing.T) {
	s := New("Trip")
	mustOK(t, s.TogglePersonal(1))

	mustOK(t, s.Apply(Edit{Op: OpRenameExpense, ExpenseID: 1, Text: "Taxi"}))
	mustOK(t, s.Apply(Edit{Op: OpSetExpenseCost, ExpenseID: 1, Cost: 4200}))

	if s.Expenses[0].ItemName != "Taxi" || s.Expenses[0].TotalCost != 4200 {
		t.Errorf("unexpected expense %+v", s.Expenses[0])
	}
	if item := s.PersonalDeductionItems[1]; item.ItemName != "Taxi" || item.TotalCost != 4200 {
		t.Errorf("deduction record out of sync: %+v", item)
	}
}

func TestSetExpenseCost_Negative(t *testing.T) {
	s := New("Trip")

	err := s.Apply(Edit{Op: OpSetExpenseCost, ExpenseID: 1, Cost: -1})

	expectErr(t, err, apperrors.ErrInvalidInput)
	if s.Expenses[0].TotalCost != 100000 {
		t.Errorf("expected cost unchanged, got %d", s.Expenses[0].TotalCost)
	}
}

func TestToggleAllAttendees(t *testing.T) {
	s := New("Trip")
	s.AddParticipant()

	mustOK(t, s.ToggleAllAttendees(1))
	expectEqual(t, "cleared", s.Expenses[0].Attendees, map[int]bool{1: false, 2: false})

	mustOK(t, s.ToggleAttendee(1, 2))
	mustOK(t, s.ToggleAllAttendees(1))
	expectEqual(t, "filled", s.Expenses[0].Attendees, map[int]bool{1: true, 2: true})
}

func TestTogglePersonal(t *testing.T) {
	s := New("Trip")
	s.AddParticipant()

	mustOK(t, s.TogglePersonal(1))
	expectEqual(t, "record", s.PersonalDeductionItems[1], PersonalDeductionItem{
		ID:                    1,
		ItemName:              "Dinner",
		TotalCost:             100000,
		DeductingParticipants: map[int]bool{1: false, 2: false},
	})

	mustOK(t, s.ToggleDeducting(1, 2))
	if !s.PersonalDeductionItems[1].DeductingParticipants[2] {
		t.Error("expected participant 2 to be deducting")
	}

	mustOK(t, s.TogglePersonal(1))
	if len(s.PersonalDeductionItems) != 0 {
		t.Errorf("expected record removed, got %+v", s.PersonalDeductionItems)
	}
}

func TestToggleDeducting_NotPersonal(t *testing.T) {
	s := New("Trip")

	expectErr(t, s.ToggleDeducting(1, 1), apperrors.ErrExpenseNotFound)
}

func TestTogglePayment(t *testing.T) {
	s := New("Trip")

	mustOK(t, s.Apply(Edit{Op: OpTogglePayment, ParticipantID: 1}))
	if !s.PaymentStatus[1] {
		t.Error("expected participant 1 marked paid")
	}

	expectErr(t, s.Apply(Edit{Op: OpTogglePayment, ParticipantID: 7}), apperrors.ErrParticipantNotFound)
}

func TestApply_TitleAndUnknown(t *testing.T) {
	s := New("Trip")

	mustOK(t, s.Apply(Edit{Op: OpSetTitle, Text: "Dinner club"}))
	mustOK(t, s.Apply(Edit{Op: OpSetSubtitle, Text: "March"}))
	if s.Title != "Dinner club" || s.Subtitle != "March" {
		t.Errorf("unexpected title %q / %q", s.Title, s.Subtitle)
	}

	expectErr(t, s.Apply(Edit{Op: "explode"}), apperrors.ErrUnknownEdit)
}

func TestApply_MissingTargets(t *testing.T) {
	s := New("Trip")
	before := s.Clone()

	cases := []Edit{
		{Op: OpRenameParticipant, ParticipantID: 5, Text: "x"},
		{Op: OpRenameExpense, ExpenseID: 5, Text: "x"},
		{Op: OpToggleAttendee, ExpenseID: 1, ParticipantID: 5},
		{Op: OpToggleAllAttendees, ExpenseID: 5},
		{Op: OpTogglePersonal, ExpenseID: 5},
	}
	for _, e := range cases {
		t.Run(string(e.Op), func(t *testing.T) {
			if err := s.Apply(e); err == nil {
				t.Error("expected an error")
			}
			expectEqual(t, "sheet", s, before)
		})
	}
}

func TestEdit_AllowedWhenArchived(t *testing.T) {
	for _, op := range Ops {
		if got := (Edit{Op: op}).AllowedWhenArchived(); got != (op == OpTogglePayment) {
			t.Errorf("%s: AllowedWhenArchived() = %v", op, got)
		}
	}
}

func TestIsValidOp(t *testing.T) {
	if !IsValidOp("toggle_payment") {
		t.Error("expected toggle_payment to be valid")
	}
	if IsValidOp("drop_table") {
		t.Error("expected drop_table to be invalid")
	}
}
