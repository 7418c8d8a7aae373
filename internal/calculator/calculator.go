// Package calculator computes how much each participant of a settlement owes.
package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"settleup/internal/sheet"
)

// ExpenseRow is the per-expense view shown next to each cost line.
type ExpenseRow struct {
	ExpenseID     int
	AttendeeCount int
	// CostPerPerson is the floored equal share, used as a display hint only.
	CostPerPerson int64
}

// Result holds the computed shares of a sheet. Amounts are kept unrounded;
// use the Display helpers for presentation.
type Result struct {
	// ParticipantTotals is the equal split of every expense across its
	// attendees, before personal deductions.
	ParticipantTotals map[int]decimal.Decimal
	// FinalTotals is ParticipantTotals minus each participant's share of the
	// personal deductions they are marked as having paid.
	FinalTotals map[int]decimal.Decimal
	// TotalExpenses is the plain sum of every expense's cost.
	TotalExpenses int64
	// GrandTotal is the unrounded sum of FinalTotals.
	GrandTotal decimal.Decimal
	// HasDeductions reports whether any personal deduction record exists.
	HasDeductions bool
	Rows          []ExpenseRow
}

// Calculate splits every expense equally across its attendees, then
// subtracts personal deductions from the participants who paid them.
//
// Deductions overlay the base split rather than replacing it: an expense
// flagged as personal is still split across its attendees in the first
// step. An expense nobody attends contributes to no one, and a deduction
// nobody is selected for adjusts nothing. Flags for ids that are not in
// participants are ignored.
func Calculate(participants []sheet.Participant, expenses []sheet.Expense, deductions map[int]sheet.PersonalDeductionItem) Result {
	res := Result{
		ParticipantTotals: make(map[int]decimal.Decimal, len(participants)),
		FinalTotals:       make(map[int]decimal.Decimal, len(participants)),
		GrandTotal:        decimal.Zero,
		HasDeductions:     len(deductions) > 0,
		Rows:              make([]ExpenseRow, 0, len(expenses)),
	}
	current := make(map[int]bool, len(participants))
	for _, p := range participants {
		res.ParticipantTotals[p.ID] = decimal.Zero
		current[p.ID] = true
	}

	for _, e := range expenses {
		res.TotalExpenses += e.TotalCost

		attending := selected(e.Attendees, current)
		row := ExpenseRow{ExpenseID: e.ID, AttendeeCount: len(attending)}
		if len(attending) > 0 {
			row.CostPerPerson = e.TotalCost / int64(len(attending))

			share := decimal.NewFromInt(e.TotalCost).Div(decimal.NewFromInt(int64(len(attending))))
			for _, pid := range attending {
				res.ParticipantTotals[pid] = res.ParticipantTotals[pid].Add(share)
			}
		}
		res.Rows = append(res.Rows, row)
	}

	for pid, total := range res.ParticipantTotals {
		res.FinalTotals[pid] = total
	}

	for _, id := range sortedKeys(deductions) {
		item := deductions[id]

		deducting := selected(item.DeductingParticipants, current)
		if len(deducting) == 0 {
			continue
		}

		share := decimal.NewFromInt(item.TotalCost).Div(decimal.NewFromInt(int64(len(deducting))))
		for _, pid := range deducting {
			res.FinalTotals[pid] = res.FinalTotals[pid].Sub(share)
		}
	}

	for _, total := range res.FinalTotals {
		res.GrandTotal = res.GrandTotal.Add(total)
	}
	return res
}

// CalculateSheet is Calculate over a whole sheet.
func CalculateSheet(s sheet.Sheet) Result {
	return Calculate(s.Participants, s.Expenses, s.PersonalDeductionItems)
}

// DisplayShare returns a participant's amount rounded up to the next
// currency unit. Before any deduction exists this is the base split.
func (r Result) DisplayShare(participantID int) int64 {
	totals := r.ParticipantTotals
	if r.HasDeductions {
		totals = r.FinalTotals
	}
	return ceil(totals[participantID])
}

// DisplayGrandTotal returns the grand total rounded up. The per-participant
// display shares are rounded independently and may not add up to it.
func (r Result) DisplayGrandTotal() int64 {
	return ceil(r.GrandTotal)
}

// displayPlaces is the precision kept before rounding up. Repeating shares
// are cut off at decimal.DivisionPrecision places, and their sums carry a
// residue in the last digits that must not round up a whole unit.
const displayPlaces = 10

func ceil(d decimal.Decimal) int64 {
	return d.Round(displayPlaces).Ceil().IntPart()
}

// selected returns the ids flagged true that belong to a current
// participant, in ascending order.
func selected(flags map[int]bool, current map[int]bool) []int {
	ids := make([]int, 0, len(flags))
	for id, on := range flags {
		if on && current[id] {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func sortedKeys(m map[int]sheet.PersonalDeductionItem) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
