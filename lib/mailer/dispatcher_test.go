package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	"portal/lib/clients"
	"portal/lib/models"

	"github.com/stretchr/testify/assert"
)

// mockEmailClient records every message the dispatcher hands to the email API
type mockEmailClient struct {
	sent []clients.EmailMessage
	id   string
	err  error
}

func (m *mockEmailClient) Send(ctx context.Context, msg clients.EmailMessage) (string, error) {
	m.sent = append(m.sent, msg)
	return m.id, m.err
}

// mockNotificationRepo captures in-app notification inserts
type mockNotificationRepo struct {
	created []models.Notification
	err     error
}

func (m *mockNotificationRepo) CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if m.err != nil {
		return nil, m.err
	}
	n.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *n)
	return n, nil
}

func (m *mockNotificationRepo) GetNotificationsByRecipient(ctx context.Context, recipientID int64, unreadOnly bool) ([]models.Notification, error) {
	return nil, nil
}

func (m *mockNotificationRepo) GetUnreadCount(ctx context.Context, recipientID int64) (int, error) {
	return 0, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, notificationID, recipientID int64) error {
	return nil
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	return 0, nil
}

func newTestDispatcher(prefs *models.EmailPreferences, email *mockEmailClient, notifs *mockNotificationRepo) *Dispatcher {
	return &Dispatcher{
		Gate:          &Gate{Prefs: &stubPrefs{prefs: prefs}, Logger: testLogger()},
		Email:         email,
		Notifications: notifs,
		FromAddress:   "noreply@portal.example.com",
		BaseURL:       "https://portal.example.com",
		Logger:        testLogger(),
	}
}

func testRecipient() *models.User {
	return &models.User{
		UserID:    42,
		Email:     "client@acme.example.com",
		FirstName: "Jordan",
		LastName:  "Lee",
		Role:      models.RoleClient,
	}
}

func TestSendInvoiceCreatedEmail_Success(t *testing.T) {
	// Arrange
	email := &mockEmailClient{id: "msg-123"}
	notifs := &mockNotificationRepo{}
	dispatcher := newTestDispatcher(nil, email, notifs)
	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	// Act
	result := dispatcher.SendInvoiceCreatedEmail(context.Background(), testRecipient(), "INV-2026-001", 125000, "USD", &due)

	// Assert
	assert.True(t, result.Success)
	assert.Equal(t, "msg-123", result.ID)
	assert.Empty(t, result.Reason)
	assert.Len(t, email.sent, 1)
	assert.Equal(t, "client@acme.example.com", email.sent[0].To)
	assert.Equal(t, "noreply@portal.example.com", email.sent[0].From)
	assert.Contains(t, email.sent[0].Subject, "INV-2026-001")
	assert.Contains(t, email.sent[0].HTML, "1250.00")
	assert.Contains(t, email.sent[0].HTML, "2026-03-15")
	assert.Len(t, notifs.created, 1)
	assert.Equal(t, models.NotificationInvoiceCreated, notifs.created[0].Type)
}

func TestDispatch_PreferenceDisabled_MakesNoEmailCall(t *testing.T) {
	// Arrange
	prefs := &models.EmailPreferences{UserID: 42, Invoices: false, DocumentRequests: true}
	email := &mockEmailClient{id: "msg-123"}
	notifs := &mockNotificationRepo{}
	dispatcher := newTestDispatcher(prefs, email, notifs)

	// Act
	result := dispatcher.SendInvoiceCreatedEmail(context.Background(), testRecipient(), "INV-2026-001", 125000, "USD", nil)

	// Assert
	assert.False(t, result.Success)
	assert.Equal(t, ReasonPreferenceDisabled, result.Reason)
	assert.Empty(t, result.Error)
	assert.Len(t, email.sent, 0, "suppressed dispatch must not touch the email API")
	assert.Len(t, notifs.created, 1, "in-app notification is written even when email is suppressed")
}

func TestDispatch_NotConfigured_ShortCircuits(t *testing.T) {
	// Arrange
	notifs := &mockNotificationRepo{}
	dispatcher := newTestDispatcher(nil, nil, notifs)
	dispatcher.Email = nil

	// Act
	result := dispatcher.SendDocumentApprovedEmail(context.Background(), testRecipient(), "2025 Tax Return.pdf", "")

	// Assert
	assert.False(t, result.Success)
	assert.Equal(t, ErrNotConfigured, result.Error)
	assert.Len(t, notifs.created, 1)
}

func TestDispatch_EmailAPIFailure_ReturnsStructuredError(t *testing.T) {
	// Arrange
	email := &mockEmailClient{err: errors.New("email api returned status 500")}
	notifs := &mockNotificationRepo{}
	dispatcher := newTestDispatcher(nil, email, notifs)

	// Act
	result := dispatcher.SendTaskAssignedEmail(context.Background(), testRecipient(), 7, "Upload Q1 receipts", models.TaskPriorityHigh, nil)

	// Assert
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "status 500")
	assert.Len(t, email.sent, 1)
	assert.Len(t, notifs.created, 1, "the in-app notification survives an email failure")
}

func TestDispatch_NotificationInsertFailure_StillSendsEmail(t *testing.T) {
	// Arrange
	email := &mockEmailClient{id: "msg-456"}
	notifs := &mockNotificationRepo{err: errors.New("connection refused")}
	dispatcher := newTestDispatcher(nil, email, notifs)

	// Act
	result := dispatcher.SendAnnouncementEmail(context.Background(), testRecipient(), "Office closure", "We are closed Friday.")

	// Assert
	assert.True(t, result.Success)
	assert.Equal(t, "msg-456", result.ID)
	assert.Len(t, email.sent, 1)
}

func TestSendDocumentUploadedEmail_BypassesPreferenceGate(t *testing.T) {
	// Arrange: every category disabled, yet staff-facing mail still goes out
	prefs := &models.EmailPreferences{UserID: 42}
	email := &mockEmailClient{id: "msg-789"}
	notifs := &mockNotificationRepo{}
	dispatcher := newTestDispatcher(prefs, email, notifs)

	staff := &models.User{UserID: 7, Email: "staff@firm.example.com", FirstName: "Sam", Role: models.RoleStaff}

	// Act
	result := dispatcher.SendDocumentUploadedEmail(context.Background(), staff, "Bank statement.pdf", "Acme LLC", 3)

	// Assert
	assert.True(t, result.Success)
	assert.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0].HTML, "version 3")
}

func TestSendTaskCommentEmail_TruncatesLongComments(t *testing.T) {
	// Arrange
	email := &mockEmailClient{id: "msg-1"}
	dispatcher := newTestDispatcher(nil, email, &mockNotificationRepo{})

	long := ""
	for i := 0; i < 50; i++ {
		long += "0123456789"
	}

	// Act
	result := dispatcher.SendTaskCommentEmail(context.Background(), testRecipient(), 7, "Upload Q1 receipts", "Sam Rivera", long)

	// Assert
	assert.True(t, result.Success)
	assert.Contains(t, email.sent[0].HTML, "...")
	assert.NotContains(t, email.sent[0].HTML, long)
}
