package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// InvoiceRepository defines the interface for invoice data operations
type InvoiceRepository interface {
	CreateInvoice(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID int64) (*models.Invoice, error)
	GetInvoicesByOrg(ctx context.Context, orgID int64, filters map[string]string) ([]models.Invoice, error)
	UpdateInvoice(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, invoiceID int64, status string, adminOverride bool) (*models.Invoice, error)
	GetReminderEligibleInvoices(ctx context.Context) ([]models.Invoice, error)
	AdvanceReminderTier(ctx context.Context, invoiceID int64, fromTier, toTier int, remindedAt time.Time) (bool, error)
}

// InvoiceDao implements the InvoiceRepository interface for PostgreSQL
type InvoiceDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

const invoiceColumns = `id, org_id, invoice_number, amount_cents, currency, status,
	issued_at, due_date, paid_at, reminder_tier, last_reminder_at, created_by, created_at, updated_at`

func scanInvoice(row interface{ Scan(...interface{}) error }) (*models.Invoice, error) {
	var inv models.Invoice
	err := row.Scan(
		&inv.ID,
		&inv.OrgID,
		&inv.InvoiceNumber,
		&inv.AmountCents,
		&inv.Currency,
		&inv.Status,
		&inv.IssuedAt,
		&inv.DueDate,
		&inv.PaidAt,
		&inv.ReminderTier,
		&inv.LastReminderAt,
		&inv.CreatedBy,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// CreateInvoice inserts a new draft invoice
func (dao *InvoiceDao) CreateInvoice(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	query := `
		INSERT INTO portal.invoices (org_id, invoice_number, amount_cents, currency, status, due_date, reminder_tier, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $8)
		RETURNING id, created_at, updated_at
	`

	if invoice.Currency == "" {
		invoice.Currency = "USD"
	}
	if invoice.Status == "" {
		invoice.Status = models.InvoiceStatusDraft
	}

	err := dao.DB.QueryRowContext(ctx, query,
		invoice.OrgID,
		invoice.InvoiceNumber,
		invoice.AmountCents,
		invoice.Currency,
		invoice.Status,
		invoice.DueDate,
		invoice.CreatedBy,
		time.Now(),
	).Scan(&invoice.ID, &invoice.CreatedAt, &invoice.UpdatedAt)

	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"org_id":         invoice.OrgID,
			"invoice_number": invoice.InvoiceNumber,
		}).Error("Failed to create invoice")
		return nil, err
	}

	dao.Logger.WithFields(logrus.Fields{
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"org_id":         invoice.OrgID,
	}).Info("Invoice created successfully")

	return invoice, nil
}

// GetInvoice retrieves an invoice by id
func (dao *InvoiceDao) GetInvoice(ctx context.Context, invoiceID int64) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM portal.invoices WHERE id = $1`

	inv, err := scanInvoice(dao.DB.QueryRowContext(ctx, query, invoiceID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("invoice not found")
		}
		dao.Logger.WithError(err).WithField("invoice_id", invoiceID).Error("Failed to get invoice")
		return nil, err
	}
	return inv, nil
}

func (dao *InvoiceDao) queryInvoices(ctx context.Context, query string, args ...interface{}) ([]models.Invoice, error) {
	rows, err := dao.DB.QueryContext(ctx, query, args...)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to query invoices")
		return nil, err
	}
	defer rows.Close()

	var invoices []models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			dao.Logger.WithError(err).Error("Failed to scan invoice row")
			return nil, err
		}
		invoices = append(invoices, *inv)
	}

	if err = rows.Err(); err != nil {
		dao.Logger.WithError(err).Error("Row iteration error")
		return nil, err
	}

	return invoices, nil
}

// GetInvoicesByOrg lists an organization's invoices, newest first.
// Supported filters: status, exclude_draft.
func (dao *InvoiceDao) GetInvoicesByOrg(ctx context.Context, orgID int64, filters map[string]string) ([]models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM portal.invoices WHERE org_id = $1`
	args := []interface{}{orgID}

	if status := filters["status"]; status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters["exclude_draft"] == "true" {
		query += " AND status != 'draft'"
	}
	query += " ORDER BY created_at DESC"

	return dao.queryInvoices(ctx, query, args...)
}

// UpdateInvoice updates a draft invoice's amount, currency and due date
func (dao *InvoiceDao) UpdateInvoice(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	query := `
		UPDATE portal.invoices
		SET amount_cents = $1, currency = $2, due_date = $3, updated_at = $4
		WHERE id = $5 AND status = $6
		RETURNING ` + invoiceColumns

	updated, err := scanInvoice(dao.DB.QueryRowContext(ctx, query,
		invoice.AmountCents,
		invoice.Currency,
		invoice.DueDate,
		time.Now(),
		invoice.ID,
		models.InvoiceStatusDraft,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("invoice not found or not editable")
		}
		dao.Logger.WithError(err).WithField("invoice_id", invoice.ID).Error("Failed to update invoice")
		return nil, err
	}

	return updated, nil
}

// UpdateInvoiceStatus transitions an invoice's status. Non-admin callers are
// held to the forward-only transition table; adminOverride bypasses it.
// issued_at and paid_at are stamped on the matching transitions.
func (dao *InvoiceDao) UpdateInvoiceStatus(ctx context.Context, invoiceID int64, status string, adminOverride bool) (*models.Invoice, error) {
	current, err := dao.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if !adminOverride && !current.CanTransitionTo(status) {
		return nil, fmt.Errorf("invalid status transition from %s to %s", current.Status, status)
	}

	now := time.Now()
	issuedAt := current.IssuedAt
	paidAt := current.PaidAt
	if status == models.InvoiceStatusPending && issuedAt == nil {
		issuedAt = &now
	}
	if status == models.InvoiceStatusPaid && paidAt == nil {
		paidAt = &now
	}

	query := `
		UPDATE portal.invoices
		SET status = $1, issued_at = $2, paid_at = $3, updated_at = $4
		WHERE id = $5
		RETURNING ` + invoiceColumns

	updated, err := scanInvoice(dao.DB.QueryRowContext(ctx, query, status, issuedAt, paidAt, now, invoiceID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("invoice not found")
		}
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"invoice_id": invoiceID,
			"status":     status,
		}).Error("Failed to update invoice status")
		return nil, err
	}

	dao.Logger.WithFields(logrus.Fields{
		"invoice_id": invoiceID,
		"from":       current.Status,
		"to":         status,
	}).Info("Invoice status updated")

	return updated, nil
}

// GetReminderEligibleInvoices lists pending and overdue invoices that carry a
// due date, the working set for the daily reminder scan
func (dao *InvoiceDao) GetReminderEligibleInvoices(ctx context.Context) ([]models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM portal.invoices
		WHERE status IN ($1, $2) AND due_date IS NOT NULL
		ORDER BY due_date`

	return dao.queryInvoices(ctx, query, models.InvoiceStatusPending, models.InvoiceStatusOverdue)
}

// AdvanceReminderTier persists the tier transition before any email goes out.
// The conditional WHERE keeps tiers monotone and at-most-once: a second run in
// the same window sees zero rows affected and sends nothing.
func (dao *InvoiceDao) AdvanceReminderTier(ctx context.Context, invoiceID int64, fromTier, toTier int, remindedAt time.Time) (bool, error) {
	if toTier <= fromTier {
		return false, fmt.Errorf("reminder tier cannot regress: %d -> %d", fromTier, toTier)
	}

	query := `
		UPDATE portal.invoices
		SET reminder_tier = $1, last_reminder_at = $2, updated_at = $2
		WHERE id = $3 AND reminder_tier = $4
	`

	result, err := dao.DB.ExecContext(ctx, query, toTier, remindedAt, invoiceID, fromTier)
	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"invoice_id": invoiceID,
			"to_tier":    toTier,
		}).Error("Failed to advance invoice reminder tier")
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}
