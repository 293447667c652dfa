package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBoundaryAfter_SinglePeriod(t *testing.T) {
	//Arrange
	tpl := &TaskTemplate{
		Recurrence:       RecurrenceWeekly,
		NextOccurrenceAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	now := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

	//Act
	next := tpl.NextBoundaryAfter(now)

	//Assert
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), next)
}

func TestNextBoundaryAfter_SkipsMissedPeriods(t *testing.T) {
	//Arrange - template idle for three weeks, catch-up lands strictly after now
	tpl := &TaskTemplate{
		Recurrence:       RecurrenceWeekly,
		NextOccurrenceAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	now := time.Date(2026, 3, 23, 12, 0, 0, 0, time.UTC)

	//Act
	next := tpl.NextBoundaryAfter(now)

	//Assert
	assert.Equal(t, time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC), next)
}

func TestNextBoundaryAfter_MonthlyAndQuarterly(t *testing.T) {
	//Arrange
	base := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	monthly := &TaskTemplate{Recurrence: RecurrenceMonthly, NextOccurrenceAt: base}
	quarterly := &TaskTemplate{Recurrence: RecurrenceQuarterly, NextOccurrenceAt: base}

	//Act & Assert - a boundary equal to now still advances
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), monthly.NextBoundaryAfter(now))
	assert.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), quarterly.NextBoundaryAfter(now))
}

func TestInvoiceTransitions(t *testing.T) {
	//Arrange
	cases := []struct {
		from    string
		to      string
		allowed bool
	}{
		{InvoiceStatusDraft, InvoiceStatusPending, true},
		{InvoiceStatusDraft, InvoiceStatusPaid, false},
		{InvoiceStatusPending, InvoiceStatusPaid, true},
		{InvoiceStatusPending, InvoiceStatusOverdue, true},
		{InvoiceStatusOverdue, InvoiceStatusPaid, true},
		{InvoiceStatusPaid, InvoiceStatusPending, false},
		{InvoiceStatusCancelled, InvoiceStatusPending, false},
	}

	for _, tc := range cases {
		//Act
		inv := &Invoice{Status: tc.from}
		got := inv.CanTransitionTo(tc.to)

		//Assert
		assert.Equal(t, tc.allowed, got, "%s -> %s", tc.from, tc.to)
	}
}

func TestIsReminderEligible(t *testing.T) {
	//Arrange
	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	//Act & Assert
	assert.True(t, (&Invoice{Status: InvoiceStatusPending, DueDate: &due}).IsReminderEligible())
	assert.True(t, (&Invoice{Status: InvoiceStatusOverdue, DueDate: &due}).IsReminderEligible())
	assert.False(t, (&Invoice{Status: InvoiceStatusPaid, DueDate: &due}).IsReminderEligible())
	assert.False(t, (&Invoice{Status: InvoiceStatusPending}).IsReminderEligible())
}
