package jobs

import (
	"context"
	"testing"
	"time"

	"portal/lib/models"

	"github.com/stretchr/testify/assert"
)

func pendingInvoice(id int64, due time.Time) *models.Invoice {
	return &models.Invoice{
		ID:            id,
		OrgID:         10,
		InvoiceNumber: "INV-2026-001",
		AmountCents:   125000,
		Currency:      "USD",
		Status:        models.InvoiceStatusPending,
		DueDate:       &due,
	}
}

func TestTargetTier(t *testing.T) {
	due := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		now         time.Time
		currentTier int
		lastAt      *time.Time
		wantTier    int
		wantOverdue bool
	}{
		{"before due-soon window", due.AddDate(0, 0, -5), 0, nil, 0, false},
		{"due-soon window opens", due.AddDate(0, 0, -3), 0, nil, 1, false},
		{"due-soon already fired", due.AddDate(0, 0, -2), 1, nil, 1, false},
		{"between due and grace", due.Add(12 * time.Hour), 1, nil, 1, false},
		{"overdue threshold", due.AddDate(0, 0, 1), 1, nil, 2, true},
		{"overdue skipping due-soon", due.AddDate(0, 0, 4), 0, nil, 2, true},
		{"weekly repeat not yet", due.AddDate(0, 0, 5), 2, timePtr(due.AddDate(0, 0, 1)), 2, true},
		{"weekly repeat due", due.AddDate(0, 0, 8), 2, timePtr(due.AddDate(0, 0, 1)), 3, true},
		{"second weekly repeat", due.AddDate(0, 0, 15), 3, timePtr(due.AddDate(0, 0, 8)), 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := pendingInvoice(1, due)
			inv.ReminderTier = tt.currentTier
			inv.LastReminderAt = tt.lastAt

			tier, overdue := targetTier(inv, tt.now)

			assert.Equal(t, tt.wantTier, tier)
			assert.Equal(t, tt.wantOverdue, overdue)
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestInvoiceReminderJob_DueSoonTier(t *testing.T) {
	// Arrange
	due := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, -2)

	invoices := &memInvoiceRepo{invoices: map[int64]*models.Invoice{1: pendingInvoice(1, due)}}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	email := &recordingEmailClient{}
	job := &InvoiceReminderJob{Invoices: invoices, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	result, err := job.Run(context.Background(), now)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Advanced)
	assert.Equal(t, 1, result.Notified)
	assert.Equal(t, models.ReminderTierDueSoon, invoices.invoices[1].ReminderTier)
	assert.Equal(t, models.InvoiceStatusPending, invoices.invoices[1].Status, "due-soon must not flip the status")
	assert.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0].Subject, "due soon")
}

func TestInvoiceReminderJob_SameDayRerun_SendsOncePerTier(t *testing.T) {
	// Arrange
	due := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, -2)

	invoices := &memInvoiceRepo{invoices: map[int64]*models.Invoice{1: pendingInvoice(1, due)}}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	email := &recordingEmailClient{}
	job := &InvoiceReminderJob{Invoices: invoices, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	_, err := job.Run(context.Background(), now)
	assert.NoError(t, err)
	result, err := job.Run(context.Background(), now.Add(3*time.Hour))

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 0, result.Advanced)
	assert.Len(t, email.sent, 1)
}

func TestInvoiceReminderJob_OverdueMarksStatus(t *testing.T) {
	// Arrange
	due := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, 2)

	inv := pendingInvoice(1, due)
	inv.ReminderTier = models.ReminderTierDueSoon
	invoices := &memInvoiceRepo{invoices: map[int64]*models.Invoice{1: inv}}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	email := &recordingEmailClient{}
	job := &InvoiceReminderJob{Invoices: invoices, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	result, err := job.Run(context.Background(), now)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Advanced)
	assert.Equal(t, models.ReminderTierOverdue, invoices.invoices[1].ReminderTier)
	assert.Equal(t, models.InvoiceStatusOverdue, invoices.invoices[1].Status)
	assert.Contains(t, email.sent[0].Subject, "overdue")
}

func TestInvoiceReminderJob_WeeklyRepeats(t *testing.T) {
	// Arrange: overdue reminder fired a week ago
	due := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	firstOverdue := due.AddDate(0, 0, 1)
	now := firstOverdue.AddDate(0, 0, 7)

	inv := pendingInvoice(1, due)
	inv.Status = models.InvoiceStatusOverdue
	inv.ReminderTier = models.ReminderTierOverdue
	inv.LastReminderAt = &firstOverdue
	invoices := &memInvoiceRepo{invoices: map[int64]*models.Invoice{1: inv}}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	email := &recordingEmailClient{}
	job := &InvoiceReminderJob{Invoices: invoices, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	result, err := job.Run(context.Background(), now)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Advanced)
	assert.Equal(t, 3, invoices.invoices[1].ReminderTier)
	assert.Equal(t, now, *invoices.invoices[1].LastReminderAt)
	assert.Len(t, email.sent, 1)
}

func TestInvoiceReminderJob_PaidInvoice_Ignored(t *testing.T) {
	// Arrange
	due := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, 2)

	inv := pendingInvoice(1, due)
	inv.Status = models.InvoiceStatusPaid
	invoices := &memInvoiceRepo{invoices: map[int64]*models.Invoice{1: inv}}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	email := &recordingEmailClient{}
	job := &InvoiceReminderJob{Invoices: invoices, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	result, err := job.Run(context.Background(), now)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 0, result.Examined)
	assert.Len(t, email.sent, 0)
}
