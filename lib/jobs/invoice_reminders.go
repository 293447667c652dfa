package jobs

import (
	"context"
	"time"

	"portal/lib/data"
	"portal/lib/mailer"
	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

const (
	// Due-soon reminders start three days before the due date.
	dueSoonLeadDays = 3
	// The first overdue reminder fires one day past the due date.
	overdueGraceDays = 1
	// Repeat overdue reminders fire weekly after the first.
	overdueRepeatDays = 7
)

// InvoiceReminderJob escalates payment reminders through monotonic tiers:
// due-soon, overdue, then weekly overdue repeats. The conditional tier advance
// makes each tier fire at most once per invoice.
type InvoiceReminderJob struct {
	Invoices   data.InvoiceRepository
	Users      data.UserRepository
	Dispatcher *mailer.Dispatcher
	Logger     *logrus.Logger
}

// InvoiceReminderResult summarizes one run
type InvoiceReminderResult struct {
	Examined int `json:"examined"`
	Advanced int `json:"advanced"`
	Notified int `json:"notified"`
	Failed   int `json:"failed"`
}

// targetTier computes which tier the invoice should be at for the given time.
// It returns the current tier when no escalation is due yet.
func targetTier(inv *models.Invoice, now time.Time) (tier int, overdue bool) {
	due := *inv.DueDate
	dueSoonAt := due.AddDate(0, 0, -dueSoonLeadDays)
	overdueAt := due.AddDate(0, 0, overdueGraceDays)

	switch {
	case !now.Before(overdueAt):
		if inv.ReminderTier < models.ReminderTierOverdue {
			return models.ReminderTierOverdue, true
		}
		if inv.LastReminderAt == nil || !now.Before(inv.LastReminderAt.AddDate(0, 0, overdueRepeatDays)) {
			return inv.ReminderTier + 1, true
		}
		return inv.ReminderTier, true
	case !now.Before(dueSoonAt) && now.Before(due):
		if inv.ReminderTier < models.ReminderTierDueSoon {
			return models.ReminderTierDueSoon, false
		}
		return inv.ReminderTier, false
	default:
		return inv.ReminderTier, false
	}
}

// Run walks every reminder-eligible invoice, claims the next tier where one is
// due, and emails the owning organization's active clients on a won claim.
func (j *InvoiceReminderJob) Run(ctx context.Context, now time.Time) (*InvoiceReminderResult, error) {
	invoices, err := j.Invoices.GetReminderEligibleInvoices(ctx)
	if err != nil {
		return nil, err
	}

	result := &InvoiceReminderResult{Examined: len(invoices)}

	for i := range invoices {
		inv := &invoices[i]
		if !inv.IsReminderEligible() {
			continue
		}

		tier, overdue := targetTier(inv, now)
		if tier <= inv.ReminderTier {
			continue
		}

		claimed, err := j.Invoices.AdvanceReminderTier(ctx, inv.ID, inv.ReminderTier, tier, now)
		if err != nil {
			j.Logger.WithError(err).WithField("invoice_id", inv.ID).Error("Failed to advance invoice reminder tier")
			result.Failed++
			continue
		}
		if !claimed {
			// Another run already claimed this tier.
			continue
		}
		result.Advanced++

		if overdue && inv.Status == models.InvoiceStatusPending {
			if _, err := j.Invoices.UpdateInvoiceStatus(ctx, inv.ID, models.InvoiceStatusOverdue, false); err != nil {
				j.Logger.WithError(err).WithField("invoice_id", inv.ID).Error("Failed to mark invoice overdue")
			}
		}

		recipients, err := j.Users.GetActiveClientsByOrg(ctx, inv.OrgID)
		if err != nil {
			j.Logger.WithError(err).WithFields(logrus.Fields{
				"invoice_id": inv.ID,
				"org_id":     inv.OrgID,
			}).Error("Failed to load invoice recipients")
			result.Failed++
			continue
		}

		for r := range recipients {
			sendResult := j.Dispatcher.SendInvoiceReminderEmail(ctx, &recipients[r],
				inv.InvoiceNumber, inv.AmountCents, inv.Currency, inv.DueDate, overdue)
			if sendResult.Success {
				result.Notified++
			}
		}
	}

	j.Logger.WithFields(logrus.Fields{
		"examined": result.Examined,
		"advanced": result.Advanced,
		"notified": result.Notified,
		"failed":   result.Failed,
	}).Info("Invoice reminder run complete")

	return result, nil
}
