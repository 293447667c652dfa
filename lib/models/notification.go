package models

import (
	"time"
)

// Notification is an in-app message for a single recipient. IsRead flips
// once, false to true.
type Notification struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Link        string    `json:"link"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notification type constants, one per business event
const (
	NotificationDocumentRequested  = "document_requested"
	NotificationDocumentUploaded   = "document_uploaded"
	NotificationDocumentApproved   = "document_approved"
	NotificationDocumentRejected   = "document_rejected"
	NotificationTaskAssigned       = "task_assigned"
	NotificationTaskComment        = "task_comment"
	NotificationTaskDue            = "task_due"
	NotificationInvoiceCreated     = "invoice_created"
	NotificationInvoiceReminder    = "invoice_reminder"
	NotificationSignatureRequested = "signature_requested"
	NotificationAnnouncement       = "announcement"
)

// EmailPreferences holds per-user, per-category email opt-outs. A missing row
// means every category defaults to enabled.
type EmailPreferences struct {
	UserID           int64     `json:"user_id"`
	DocumentRequests bool      `json:"document_requests"`
	TaskAssignments  bool      `json:"task_assignments"`
	TaskComments     bool      `json:"task_comments"`
	Invoices         bool      `json:"invoices"`
	Signatures       bool      `json:"signatures"`
	Announcements    bool      `json:"announcements"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Email preference categories exposed to the Settings UI
const (
	CategoryDocumentRequests = "documentRequests"
	CategoryTaskAssignments  = "taskAssignments"
	CategoryTaskComments     = "taskComments"
	CategoryInvoices         = "invoices"
	CategorySignatures       = "signatures"
	CategoryAnnouncements    = "announcements"
)

// Enabled returns the stored flag for a category. Unknown categories report
// enabled so a stale client cannot silence mail it never asked about.
func (p *EmailPreferences) Enabled(category string) bool {
	switch category {
	case CategoryDocumentRequests:
		return p.DocumentRequests
	case CategoryTaskAssignments:
		return p.TaskAssignments
	case CategoryTaskComments:
		return p.TaskComments
	case CategoryInvoices:
		return p.Invoices
	case CategorySignatures:
		return p.Signatures
	case CategoryAnnouncements:
		return p.Announcements
	default:
		return true
	}
}

// UpdateEmailPreferencesRequest represents the request payload for the Settings UI.
// Pointer fields so an omitted flag keeps its current value.
type UpdateEmailPreferencesRequest struct {
	DocumentRequests *bool `json:"documentRequests,omitempty"`
	TaskAssignments  *bool `json:"taskAssignments,omitempty"`
	TaskComments     *bool `json:"taskComments,omitempty"`
	Invoices         *bool `json:"invoices,omitempty"`
	Signatures       *bool `json:"signatures,omitempty"`
	Announcements    *bool `json:"announcements,omitempty"`
}

// NotificationListResponse represents the response for listing notifications
type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
	Total         int            `json:"total"`
}
