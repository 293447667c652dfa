package jobs

import (
	"context"
	"fmt"
	"time"

	"portal/lib/clients"
	"portal/lib/mailer"
	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// The job tests share hand-rolled in-memory repositories that mirror the
// conditional-update semantics of the SQL layer.

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// --- email plumbing ---

type recordingEmailClient struct {
	sent []clients.EmailMessage
}

func (m *recordingEmailClient) Send(ctx context.Context, msg clients.EmailMessage) (string, error) {
	m.sent = append(m.sent, msg)
	return fmt.Sprintf("msg-%d", len(m.sent)), nil
}

type nopNotificationRepo struct {
	created []models.Notification
}

func (m *nopNotificationRepo) CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	m.created = append(m.created, *n)
	return n, nil
}

func (m *nopNotificationRepo) GetNotificationsByRecipient(ctx context.Context, recipientID int64, unreadOnly bool) ([]models.Notification, error) {
	return nil, nil
}

func (m *nopNotificationRepo) GetUnreadCount(ctx context.Context, recipientID int64) (int, error) {
	return 0, nil
}

func (m *nopNotificationRepo) MarkRead(ctx context.Context, notificationID, recipientID int64) error {
	return nil
}

func (m *nopNotificationRepo) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	return 0, nil
}

type allowAllPrefs struct{}

func (allowAllPrefs) GetPreferences(ctx context.Context, userID int64) (*models.EmailPreferences, error) {
	return nil, nil
}

func (allowAllPrefs) UpsertPreferences(ctx context.Context, prefs *models.EmailPreferences) (*models.EmailPreferences, error) {
	return prefs, nil
}

func newJobDispatcher(email *recordingEmailClient) *mailer.Dispatcher {
	return &mailer.Dispatcher{
		Gate:          &mailer.Gate{Prefs: allowAllPrefs{}, Logger: testLogger()},
		Email:         email,
		Notifications: &nopNotificationRepo{},
		FromAddress:   "noreply@portal.example.com",
		BaseURL:       "https://portal.example.com",
		Logger:        testLogger(),
	}
}

// --- users ---

type memUserRepo struct {
	users map[int64]*models.User
}

func (m *memUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	return user, nil
}

func (m *memUserRepo) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	if u, ok := m.users[userID]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user with ID %d not found", userID)
}

func (m *memUserRepo) GetUserByCognitoID(ctx context.Context, cognitoID string) (*models.User, error) {
	return nil, fmt.Errorf("user not found")
}

func (m *memUserRepo) GetUsersByOrg(ctx context.Context, orgID int64) ([]models.User, error) {
	return nil, nil
}

func (m *memUserRepo) GetActiveClientsByOrg(ctx context.Context, orgID int64) ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		if u.Role == models.RoleClient && u.Status == models.UserStatusActive && u.OrgID.Valid && u.OrgID.Int64 == orgID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUserRepo) GetAllActiveClients(ctx context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		if u.Role == models.RoleClient && u.Status == models.UserStatusActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUserRepo) GetStaffAndAdmins(ctx context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		if u.Role == models.RoleAdmin || u.Role == models.RoleStaff {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUserRepo) UpdateUser(ctx context.Context, user *models.User) (*models.User, error) {
	return user, nil
}

func (m *memUserRepo) UpdateUserStatus(ctx context.Context, userID int64, status string) error {
	return nil
}

func (m *memUserRepo) ActivateByCognitoID(ctx context.Context, cognitoID string) error {
	return nil
}

// --- tasks ---

type memTaskRepo struct {
	dueForReminder []models.Task
	reminded       map[int64]time.Time
	created        []models.Task
	nextID         int64
}

func (m *memTaskRepo) CreateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	m.nextID++
	task.ID = m.nextID
	m.created = append(m.created, *task)
	return task, nil
}

func (m *memTaskRepo) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	return nil, fmt.Errorf("task with ID %d not found", taskID)
}

func (m *memTaskRepo) GetTasksByOrg(ctx context.Context, orgID int64, filters map[string]string) ([]models.Task, error) {
	return nil, nil
}

func (m *memTaskRepo) GetTasksByAssignee(ctx context.Context, assigneeID int64) ([]models.Task, error) {
	return nil, nil
}

func (m *memTaskRepo) UpdateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	return task, nil
}

func (m *memTaskRepo) UpdateTaskStatus(ctx context.Context, taskID int64, status string) (*models.Task, error) {
	return nil, nil
}

func (m *memTaskRepo) CreateComment(ctx context.Context, comment *models.TaskComment) (*models.TaskComment, error) {
	return comment, nil
}

func (m *memTaskRepo) GetComments(ctx context.Context, taskID int64) ([]models.TaskComment, error) {
	return nil, nil
}

func (m *memTaskRepo) EditComment(ctx context.Context, commentID, authorID int64, content string) (*models.TaskComment, error) {
	return nil, nil
}

func (m *memTaskRepo) GetTasksDueForReminder(ctx context.Context, now time.Time, lookahead time.Duration) ([]models.Task, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var out []models.Task
	for _, t := range m.dueForReminder {
		if at, ok := m.reminded[t.ID]; ok && !at.Before(startOfDay) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memTaskRepo) MarkTaskReminded(ctx context.Context, taskID int64, remindedAt time.Time) error {
	if m.reminded == nil {
		m.reminded = make(map[int64]time.Time)
	}
	m.reminded[taskID] = remindedAt
	return nil
}

// --- task templates ---

type memTemplateRepo struct {
	templates map[int64]*models.TaskTemplate
}

func (m *memTemplateRepo) CreateTemplate(ctx context.Context, template *models.TaskTemplate) (*models.TaskTemplate, error) {
	return template, nil
}

func (m *memTemplateRepo) GetTemplate(ctx context.Context, templateID int64) (*models.TaskTemplate, error) {
	if t, ok := m.templates[templateID]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("template with ID %d not found", templateID)
}

func (m *memTemplateRepo) GetTemplatesByOrg(ctx context.Context, orgID int64) ([]models.TaskTemplate, error) {
	return nil, nil
}

func (m *memTemplateRepo) GetDueTemplates(ctx context.Context, now time.Time) ([]models.TaskTemplate, error) {
	var out []models.TaskTemplate
	for _, t := range m.templates {
		if t.IsActive && !t.NextOccurrenceAt.After(now) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTemplateRepo) AdvanceTemplate(ctx context.Context, templateID int64, previousOccurrence, nextOccurrence time.Time) (bool, error) {
	t, ok := m.templates[templateID]
	if !ok || !t.NextOccurrenceAt.Equal(previousOccurrence) {
		return false, nil
	}
	t.NextOccurrenceAt = nextOccurrence
	return true, nil
}

func (m *memTemplateRepo) DeactivateTemplate(ctx context.Context, templateID int64) error {
	if t, ok := m.templates[templateID]; ok {
		t.IsActive = false
	}
	return nil
}

// --- invoices ---

type memInvoiceRepo struct {
	invoices map[int64]*models.Invoice
}

func (m *memInvoiceRepo) CreateInvoice(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	return invoice, nil
}

func (m *memInvoiceRepo) GetInvoice(ctx context.Context, invoiceID int64) (*models.Invoice, error) {
	if inv, ok := m.invoices[invoiceID]; ok {
		return inv, nil
	}
	return nil, fmt.Errorf("invoice with ID %d not found", invoiceID)
}

func (m *memInvoiceRepo) GetInvoicesByOrg(ctx context.Context, orgID int64, filters map[string]string) ([]models.Invoice, error) {
	return nil, nil
}

func (m *memInvoiceRepo) UpdateInvoice(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	return invoice, nil
}

func (m *memInvoiceRepo) UpdateInvoiceStatus(ctx context.Context, invoiceID int64, status string, adminOverride bool) (*models.Invoice, error) {
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return nil, fmt.Errorf("invoice with ID %d not found", invoiceID)
	}
	inv.Status = status
	return inv, nil
}

func (m *memInvoiceRepo) GetReminderEligibleInvoices(ctx context.Context) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, inv := range m.invoices {
		if inv.IsReminderEligible() {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (m *memInvoiceRepo) AdvanceReminderTier(ctx context.Context, invoiceID int64, fromTier, toTier int, remindedAt time.Time) (bool, error) {
	if toTier <= fromTier {
		return false, fmt.Errorf("reminder tier must advance: %d -> %d", fromTier, toTier)
	}
	inv, ok := m.invoices[invoiceID]
	if !ok || inv.ReminderTier != fromTier {
		return false, nil
	}
	inv.ReminderTier = toTier
	at := remindedAt
	inv.LastReminderAt = &at
	return true, nil
}

// --- announcements ---

type memAnnouncementRepo struct {
	announcements map[int64]*models.Announcement
}

func (m *memAnnouncementRepo) CreateAnnouncement(ctx context.Context, a *models.Announcement) (*models.Announcement, error) {
	return a, nil
}

func (m *memAnnouncementRepo) GetAnnouncement(ctx context.Context, announcementID int64) (*models.Announcement, error) {
	if a, ok := m.announcements[announcementID]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("announcement with ID %d not found", announcementID)
}

func (m *memAnnouncementRepo) GetPublishedAnnouncements(ctx context.Context, now time.Time) ([]models.Announcement, error) {
	return nil, nil
}

func (m *memAnnouncementRepo) GetAllAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	return nil, nil
}

func (m *memAnnouncementRepo) UpdateAnnouncement(ctx context.Context, a *models.Announcement) (*models.Announcement, error) {
	return a, nil
}

func (m *memAnnouncementRepo) GetDueScheduledAnnouncements(ctx context.Context, now time.Time) ([]models.Announcement, error) {
	var out []models.Announcement
	for _, a := range m.announcements {
		if a.PublishedAt == nil && a.ScheduledFor != nil && !a.ScheduledFor.After(now) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAnnouncementRepo) MarkPublished(ctx context.Context, announcementID int64, publishedAt time.Time) (bool, error) {
	a, ok := m.announcements[announcementID]
	if !ok || a.PublishedAt != nil {
		return false, nil
	}
	at := publishedAt
	a.PublishedAt = &at
	return true, nil
}
