package models

import (
	"time"
)

// Invoice represents a bill issued to a client organization.
// AmountCents stores the amount in integer cents to avoid float drift.
type Invoice struct {
	ID             int64      `json:"id"`
	OrgID          int64      `json:"org_id"`
	InvoiceNumber  string     `json:"invoice_number"` // unique
	AmountCents    int64      `json:"amount_cents"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"` // 'draft', 'pending', 'paid', 'overdue', 'cancelled'
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	ReminderTier   int        `json:"reminder_tier"` // 0 none, 1 due-soon, 2 overdue, 3+ weekly overdue
	LastReminderAt *time.Time `json:"last_reminder_at,omitempty"`
	CreatedBy      int64      `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Invoice status constants
const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusPending   = "pending"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
)

// Reminder tier constants
const (
	ReminderTierNone    = 0
	ReminderTierDueSoon = 1
	ReminderTierOverdue = 2
	// Tiers above ReminderTierOverdue are weekly overdue repeats.
)

// CreateInvoiceRequest represents the request payload for creating a draft invoice
type CreateInvoiceRequest struct {
	OrgID         int64  `json:"org_id" binding:"required"`
	InvoiceNumber string `json:"invoice_number" binding:"required"`
	AmountCents   int64  `json:"amount_cents" binding:"required"`
	Currency      string `json:"currency,omitempty"`
	DueDate       string `json:"due_date,omitempty"` // Format: YYYY-MM-DD
}

// UpdateInvoiceRequest represents the request payload for updating a draft invoice
type UpdateInvoiceRequest struct {
	AmountCents int64  `json:"amount_cents,omitempty"`
	Currency    string `json:"currency,omitempty"`
	DueDate     string `json:"due_date,omitempty"` // Format: YYYY-MM-DD
}

// UpdateInvoiceStatusRequest transitions an invoice's status
type UpdateInvoiceStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=draft pending paid overdue cancelled"`
}

// InvoiceListResponse represents the response for listing invoices
type InvoiceListResponse struct {
	Invoices []Invoice `json:"invoices"`
	Total    int       `json:"total"`
}

// validInvoiceTransitions holds the forward status transitions. Admins may
// override outside this table; everyone else is held to it.
var validInvoiceTransitions = map[string][]string{
	InvoiceStatusDraft:   {InvoiceStatusPending, InvoiceStatusCancelled},
	InvoiceStatusPending: {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusCancelled},
}

// CanTransitionTo reports whether moving from the invoice's current status to
// target follows the monotonic status flow.
func (inv *Invoice) CanTransitionTo(target string) bool {
	for _, allowed := range validInvoiceTransitions[inv.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsReminderEligible reports whether the reminder job should consider this invoice
func (inv *Invoice) IsReminderEligible() bool {
	return (inv.Status == InvoiceStatusPending || inv.Status == InvoiceStatusOverdue) && inv.DueDate != nil
}
