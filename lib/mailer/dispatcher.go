package mailer

import (
	"context"
	"fmt"
	"html"
	"time"

	"portal/lib/clients"
	"portal/lib/data"
	"portal/lib/models"
	"portal/lib/util"

	"github.com/sirupsen/logrus"
)

// ReasonPreferenceDisabled marks a send suppressed by the recipient's email
// preferences. It is a normal outcome, not an error.
const ReasonPreferenceDisabled = "user_preference_disabled"

// ErrNotConfigured marks a send skipped because no email API key is deployed.
const ErrNotConfigured = "Email not configured"

// SendResult is the structured outcome of one dispatch. The dispatcher never
// returns Go errors to callers: notification email is best-effort relative to
// the business mutation that already committed.
type SendResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Dispatcher formats and conditionally sends one transactional email per
// business event, writing the in-app notification row first.
type Dispatcher struct {
	Gate          *Gate
	Email         clients.EmailClientInterface
	Notifications data.NotificationRepository
	FromAddress   string
	BaseURL       string
	Logger        *logrus.Logger
}

func (d *Dispatcher) configured() bool {
	return d.Email != nil && d.FromAddress != ""
}

// dispatch runs the common path: persist the in-app notification, consult the
// gate (category "" bypasses it for admin-facing mail), then make at most one
// email API call. External failures come back as structured values.
func (d *Dispatcher) dispatch(ctx context.Context, recipient *models.User, category string, notif *models.Notification, subject, bodyHTML string) SendResult {
	if notif != nil {
		if _, err := d.Notifications.CreateNotification(ctx, notif); err != nil {
			d.Logger.WithError(err).WithFields(logrus.Fields{
				"recipient_id": recipient.UserID,
				"type":         notif.Type,
			}).Error("Failed to persist in-app notification")
		}
	}

	if category != "" && !d.Gate.ShouldSend(ctx, recipient.UserID, category) {
		d.Logger.WithFields(logrus.Fields{
			"recipient_id": recipient.UserID,
			"category":     category,
		}).Debug("Email suppressed by user preference")
		return SendResult{Success: false, Reason: ReasonPreferenceDisabled}
	}

	if !d.configured() {
		return SendResult{Success: false, Error: ErrNotConfigured}
	}

	id, err := d.Email.Send(ctx, clients.EmailMessage{
		From:    d.FromAddress,
		To:      recipient.Email,
		Subject: subject,
		HTML:    bodyHTML,
	})
	if err != nil {
		d.Logger.WithError(err).WithFields(logrus.Fields{
			"recipient_id": recipient.UserID,
			"subject":      subject,
		}).Error("Email send failed")
		return SendResult{Success: false, Error: err.Error()}
	}

	return SendResult{Success: true, ID: id}
}

// SendDocumentRequestedEmail notifies a client that the firm asked for a document
func (d *Dispatcher) SendDocumentRequestedEmail(ctx context.Context, recipient *models.User, requestTitle, note string) SendResult {
	body := greeting(recipient.FirstName) +
		paragraph(fmt.Sprintf("Your accounting team has requested a document: %s.", requestTitle))
	if note != "" {
		body += paragraph(fmt.Sprintf("Note: %s", note))
	}
	body += paragraph("Please upload it at your earliest convenience.")

	return d.dispatch(ctx, recipient, models.CategoryDocumentRequests,
		&models.Notification{
			RecipientID: recipient.UserID,
			Type:        models.NotificationDocumentRequested,
			Title:       "Document requested",
			Message:     requestTitle,
			Link:        d.BaseURL + "/documents",
		},
		fmt.Sprintf("Document requested: %s", requestTitle),
		renderLayout("Document requested", body, "Upload document", d.BaseURL+"/documents"))
}

// SendDocumentUploadedEmail notifies firm staff of a fresh client upload.
// Admin-facing mail bypasses the preference gate and always sends.
func (d *Dispatcher) SendDocumentUploadedEmail(ctx context.Context, recipient *models.User, docName, orgName string, version int) SendResult {
	body := greeting(recipient.FirstName) +
		paragraph(fmt.Sprintf("%s uploaded %q (version %d). It is waiting for review.", orgName, docName, version))

	return d.dispatch(ctx, recipient, "",
		&models.Notification{
			RecipientID: recipient.UserID,
			Type:        models.NotificationDocumentUploaded,
			Title:       "New document uploaded",
			Message:     fmt.Sprintf("%s (v%d) from %s", docName, version, orgName),
			Link:        d.BaseURL + "/admin/documents",
		},
		fmt.Sprintf("New upload from %s: %s", orgName, docName),
		renderLayout("New document uploaded", body, "Review document", d.BaseURL+"/admin/documents"))
}

// SendDocumentApprovedEmail notifies the uploader that their document passed review
func (d *Dispatcher) SendDocumentApprovedEmail(ctx context.Context, recipient *models.User, docName, note string) SendResult {
	body := greeting(recipient.FirstName) +
		paragraph(fmt.Sprintf("Your document %q has been approved.", docName))
	if note != "" {
		body += paragraph(fmt.Sprintf("Reviewer note: %s", note))
	}

	return d.dispatch(ctx, recipient, models.CategoryDocumentRequests,
		&models.Notification{
			RecipientID: recipient.UserID,
			Type:        models.NotificationDocumentApproved,
			Title:       "Document approved",
			Message:     docName,
			Link:        d.BaseURL + "/documents",
		},
		fmt.Sprintf("Document approved: %s", docName),
		renderLayout("Document approved", body, "View documents", d.BaseURL+"/documents"))
}

// SendDocumentRejectedEmail notifies the uploader that their document needs another pass
func (d *Dispatcher) SendDocumentRejectedEmail(ctx context.Context, recipient *models.User, docName, note string) SendResult {
	body := greeting(recipient.FirstName) +
		paragraph(fmt.Sprintf("Your document %q was rejected during review.", docName))
	if note != "" {
		body += paragraph(fmt.Sprintf("Reviewer note: %s", note))
	}
	body += paragraph("Please upload a corrected version.")

	return d.dispatch(ctx, recipient, models.CategoryDocumentRequests,
		&models.Notification{
			RecipientID: recipient.UserID,
			Type:        models.NotificationDocumentRejected,
			Title:       "Document rejected",
			Message:     docName,
			Link:        d.BaseURL + "/documents",
		},
		fmt.Sprintf("Document rejected: %s", docName),
		renderLayout("Document rejected", body, "Upload new version", d.BaseURL+"/documents"))
}

// SendTaskAssignedEmail notifies a user that a task was assigned to them
func (d *Dispatcher) SendTaskAssignedEmail(ctx context.Context, recipient *models.User, taskID int64, taskTitle, priority string, dueDate *time.Time) SendResult {
	body := greeting(recipient.FirstName) +
		paragraph(fmt.Sprintf("A new task has been assigned to you: %s (priority: %s).", taskTitle, priority))
	if dueDate != nil {
		body += paragraph(fmt.Sprintf("Due date: %s.", util.FormatDateForExport(dueDate)))
	}

	link := fmt.Sprintf("%s/tasks/%d", d.BaseURL, taskID)
	return d.dispatch(ctx, recipient, models.CategoryTaskAssignments,
		&models.Notification{
			RecipientID: recipient.UserID,
			Type:        models.NotificationTaskAssigned,
			Title:       "Task assigned",
			Message:     taskTitle,
			Link:        link,
		},
		fmt.Sprintf("New task assigned: %s", taskTitle),
		renderLayout("New task assigned", body, "View task", link))
}

// SendTaskCommentEmail notifies a task participant about a new comment
func (d *Dispatcher) SendTaskCommentEmail(ctx context.Context, recipient *models.User, taskID int64, taskTitle, authorName, comment string) SendResult {
	snippet := comment
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}
	body := greeting(recipient.FirstName) +
		paragraph(fmt.Sprintf("%s commented on %q:", authorName, taskTitle)) +
		fmt.Sprintf(`<blockquote style="border-left:3px solid #d0d7de;margin:0;padding-left:16px;color:#57606a;">%s</blockquote>`, html.EscapeString(snippet))

	link := fmt.Sprintf("%s/tasks/%d", d.BaseURL, taskID)
	return d.dispatch(ctx, recipient, models.CategoryTaskComments,
		&models.Notification{
			RecipientID: recipient.UserID,
			Type:        models.NotificationTaskComment,
			Title:       "New comment",
			Message:     fmt.Sprintf("%s commented on %s", authorName, taskTitle),
			Link:        link,
		},
		fmt.Sprintf("New comment on: %s", taskTitle),
		renderLayout("New comment", body, "View task", link))
}

// SendTaskDueReminderEmail reminds an assignee about an upcoming or overdue task
func (d *Dispatcher) SendTaskDueReminderEmail(ctx context.Context, recipient *models.User, taskID int64, taskTitle string, dueDate *time.Time) SendResult {
	body := greeting(recipient.FirstName) +
		paragraph(fmt.Sprintf("Reminder: the task %q is due on %s.", taskTitle, util.FormatDateForExport(dueDate)))

	link := fmt.Sprintf("%s/tasks/%d", d.BaseURL, taskID)
	return d.dispatch(ctx, recipient, models.CategoryTaskAssignments,
		&models.Notification{
			RecipientID: recipient.UserID,
			Type:        models.NotificationTaskDue,
			Title:       "Task due soon",
			Message:     taskTitle,
			Link:        link,
		},
		fmt.Sprintf("Task due soon: %s", taskTitle),
		renderLayout("Task due soon", body, "View task", link))
}

// SendInvoiceCreatedEmail notifies a client contact that a new invoice was issued
func (d *Dispatcher) SendInvoiceCreatedEmail(ctx context.Context, recipient *models.User, invoiceNumber string, amountCents int64, currency string, dueDate *time.Time) SendResult {
	body := greeting(recipient.FirstName) +
		paragraph(fmt.Sprintf("Invoice %s for %s %s has been issued to your organization.",
			invoiceNumber, util.FormatCentsForExport(&amountCents), currency))
	if dueDate != nil {
		body += paragraph(fmt.Sprintf("Payment is due by %s.", util.FormatDateForExport(dueDate)))
	}

	return d.dispatch(ctx, recipient, models.CategoryInvoices,
		&models.Notification{
			RecipientID: recipient.UserID,
			Type:        models.NotificationInvoiceCreated,
			Title:       "New invoice",
			Message:     fmt.Sprintf("Invoice %s", invoiceNumber),
			Link:        d.BaseURL + "/invoices",
		},
		fmt.Sprintf("New invoice: %s", invoiceNumber),
		renderLayout("New invoice", body, "View invoice", d.BaseURL+"/invoices"))
}

// SendInvoiceReminderEmail sends a due-soon or overdue reminder for an invoice
func (d *Dispatcher) SendInvoiceReminderEmail(ctx context.Context, recipient *models.User, invoiceNumber string, amountCents int64, currency string, dueDate *time.Time, overdue bool) SendResult {
	heading := "Invoice due soon"
	line := fmt.Sprintf("Invoice %s for %s %s is due on %s.",
		invoiceNumber, util.FormatCentsForExport(&amountCents), currency, util.FormatDateForExport(dueDate))
	if overdue {
		heading = "Invoice overdue"
		line = fmt.Sprintf("Invoice %s for %s %s was due on %s and is now overdue.",
			invoiceNumber, util.FormatCentsForExport(&amountCents), currency, util.FormatDateForExport(dueDate))
	}

	body := greeting(recipient.FirstName) + paragraph(line) +
		paragraph("Please arrange payment, or contact us if you believe this is in error.")

	return d.dispatch(ctx, recipient, models.CategoryInvoices,
		&models.Notification{
			RecipientID: recipient.UserID,
			Type:        models.NotificationInvoiceReminder,
			Title:       heading,
			Message:     fmt.Sprintf("Invoice %s", invoiceNumber),
			Link:        d.BaseURL + "/invoices",
		},
		fmt.Sprintf("%s: %s", heading, invoiceNumber),
		renderLayout(heading, body, "View invoice", d.BaseURL+"/invoices"))
}

// SendSignatureRequestedEmail asks a client to sign a document
func (d *Dispatcher) SendSignatureRequestedEmail(ctx context.Context, recipient *models.User, docName, requesterName string) SendResult {
	body := greeting(recipient.FirstName) +
		paragraph(fmt.Sprintf("%s has requested your signature on %q.", requesterName, docName))

	return d.dispatch(ctx, recipient, models.CategorySignatures,
		&models.Notification{
			RecipientID: recipient.UserID,
			Type:        models.NotificationSignatureRequested,
			Title:       "Signature requested",
			Message:     docName,
			Link:        d.BaseURL + "/signatures",
		},
		fmt.Sprintf("Signature requested: %s", docName),
		renderLayout("Signature requested", body, "Review and sign", d.BaseURL+"/signatures"))
}

// SendAnnouncementEmail fans an announcement out to one recipient
func (d *Dispatcher) SendAnnouncementEmail(ctx context.Context, recipient *models.User, title, content string) SendResult {
	snippet := content
	if len(snippet) > 300 {
		snippet = snippet[:300] + "..."
	}
	body := greeting(recipient.FirstName) + paragraph(snippet)

	return d.dispatch(ctx, recipient, models.CategoryAnnouncements,
		&models.Notification{
			RecipientID: recipient.UserID,
			Type:        models.NotificationAnnouncement,
			Title:       title,
			Message:     snippet,
			Link:        d.BaseURL + "/announcements",
		},
		title,
		renderLayout(title, body, "Read announcement", d.BaseURL+"/announcements"))
}
