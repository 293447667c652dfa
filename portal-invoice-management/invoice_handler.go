package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"portal/lib/api"
	"portal/lib/auth"
	"portal/lib/models"
	"portal/lib/util"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

const dueDateLayout = "2006-01-02"

// createInvoice handles POST /invoices. New invoices start as drafts and only
// reach clients once moved to pending.
func (h *Handler) createInvoice(ctx context.Context, claims *auth.Claims, body string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	var createReq models.CreateInvoiceRequest
	if err := api.ParseJSONBody(body, &createReq); err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
	}
	if createReq.OrgID == 0 || createReq.InvoiceNumber == "" || createReq.AmountCents <= 0 {
		return api.ErrorResponse(http.StatusBadRequest, "Organization, invoice number, and a positive amount are required", h.Logger)
	}

	invoice := &models.Invoice{
		OrgID:         createReq.OrgID,
		InvoiceNumber: createReq.InvoiceNumber,
		AmountCents:   createReq.AmountCents,
		Currency:      createReq.Currency,
		CreatedBy:     claims.UserID,
	}
	if createReq.DueDate != "" {
		dueDate, err := time.Parse(dueDateLayout, createReq.DueDate)
		if err != nil {
			return api.ErrorResponse(http.StatusBadRequest, "Invalid due date, expected YYYY-MM-DD", h.Logger)
		}
		invoice.DueDate = &dueDate
	}

	created, err := h.Invoices.CreateInvoice(ctx, invoice)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate") {
			return api.ErrorResponse(http.StatusConflict, "Invoice number already exists", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to create invoice")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to create invoice", h.Logger)
	}

	h.recordActivity(ctx, created.OrgID, claims.UserID, "invoice.created", "invoice", created.ID, created.InvoiceNumber)

	return api.SuccessResponse(http.StatusCreated, created, h.Logger)
}

// listInvoices handles GET /invoices. Clients see their organization's
// non-draft invoices; staff see everything for the selected organization.
func (h *Handler) listInvoices(ctx context.Context, claims *auth.Claims, query map[string]string) events.APIGatewayProxyResponse {
	orgID, resp := h.resolveOrgScope(claims, query)
	if orgID == 0 {
		return resp
	}

	filters := map[string]string{}
	if v, ok := query["status"]; ok && v != "" {
		filters["status"] = v
	}
	if !claims.IsStaffOrAdmin() {
		filters["exclude_draft"] = "true"
	}

	invoices, err := h.Invoices.GetInvoicesByOrg(ctx, orgID, filters)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list invoices")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to list invoices", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, models.InvoiceListResponse{Invoices: invoices, Total: len(invoices)}, h.Logger)
}

// getInvoice handles GET /invoices/{id}
func (h *Handler) getInvoice(ctx context.Context, claims *auth.Claims, idStr string) events.APIGatewayProxyResponse {
	invoice, resp := h.loadInvoice(ctx, claims, idStr)
	if invoice == nil {
		return resp
	}

	// Drafts stay internal until issued
	if invoice.Status == models.InvoiceStatusDraft && !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusNotFound, "Invoice not found", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, invoice, h.Logger)
}

// updateInvoice handles PUT /invoices/{id}. Only drafts are editable.
func (h *Handler) updateInvoice(ctx context.Context, claims *auth.Claims, idStr, body string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	invoice, resp := h.loadInvoice(ctx, claims, idStr)
	if invoice == nil {
		return resp
	}

	var updateReq models.UpdateInvoiceRequest
	if err := api.ParseJSONBody(body, &updateReq); err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
	}

	if updateReq.AmountCents > 0 {
		invoice.AmountCents = updateReq.AmountCents
	}
	if updateReq.Currency != "" {
		invoice.Currency = updateReq.Currency
	}
	if updateReq.DueDate != "" {
		dueDate, err := time.Parse(dueDateLayout, updateReq.DueDate)
		if err != nil {
			return api.ErrorResponse(http.StatusBadRequest, "Invalid due date, expected YYYY-MM-DD", h.Logger)
		}
		invoice.DueDate = &dueDate
	}

	updated, err := h.Invoices.UpdateInvoice(ctx, invoice)
	if err != nil {
		if strings.Contains(err.Error(), "not editable") {
			return api.ErrorResponse(http.StatusConflict, "Only draft invoices can be edited", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to update invoice")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to update invoice", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, updated, h.Logger)
}

// updateInvoiceStatus handles PUT /invoices/{id}/status. Issuing a draft
// (draft to pending) notifies the organization's clients.
func (h *Handler) updateInvoiceStatus(ctx context.Context, claims *auth.Claims, idStr, body string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	invoice, resp := h.loadInvoice(ctx, claims, idStr)
	if invoice == nil {
		return resp
	}

	var statusReq models.UpdateInvoiceStatusRequest
	if err := api.ParseJSONBody(body, &statusReq); err != nil || statusReq.Status == "" {
		return api.ErrorResponse(http.StatusBadRequest, "Status is required", h.Logger)
	}

	wasDraft := invoice.Status == models.InvoiceStatusDraft

	updated, err := h.Invoices.UpdateInvoiceStatus(ctx, invoice.ID, statusReq.Status, claims.IsAdmin())
	if err != nil {
		if strings.Contains(err.Error(), "invalid status transition") {
			return api.ErrorResponse(http.StatusConflict, err.Error(), h.Logger)
		}
		if strings.Contains(err.Error(), "not found") {
			return api.ErrorResponse(http.StatusNotFound, "Invoice not found", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to update invoice status")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to update invoice status", h.Logger)
	}

	h.recordActivity(ctx, updated.OrgID, claims.UserID, "invoice."+updated.Status, "invoice", updated.ID, updated.InvoiceNumber)

	if wasDraft && updated.Status == models.InvoiceStatusPending {
		h.notifyInvoiceIssued(ctx, updated)
	}

	return api.SuccessResponse(http.StatusOK, updated, h.Logger)
}

func (h *Handler) notifyInvoiceIssued(ctx context.Context, invoice *models.Invoice) {
	recipients, err := h.Users.GetActiveClientsByOrg(ctx, invoice.OrgID)
	if err != nil {
		h.Logger.WithError(err).WithField("org_id", invoice.OrgID).Error("Failed to load invoice recipients")
		return
	}
	for i := range recipients {
		h.Dispatcher.SendInvoiceCreatedEmail(ctx, &recipients[i], invoice.InvoiceNumber, invoice.AmountCents, invoice.Currency, invoice.DueDate)
	}
}

// exportInvoices handles GET /invoices/export, returning a CSV download
func (h *Handler) exportInvoices(ctx context.Context, claims *auth.Claims, query map[string]string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	orgID, resp := h.resolveOrgScope(claims, query)
	if orgID == 0 {
		return resp
	}

	invoices, err := h.Invoices.GetInvoicesByOrg(ctx, orgID, nil)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to load invoices for export")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to export invoices", h.Logger)
	}

	var sb strings.Builder
	sb.WriteString("invoice_number,status,amount,currency,issued_at,due_date,paid_at\n")
	for i := range invoices {
		inv := &invoices[i]
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s\n",
			inv.InvoiceNumber,
			inv.Status,
			util.FormatCentsForExport(&inv.AmountCents),
			inv.Currency,
			util.FormatDateForExport(inv.IssuedAt),
			util.FormatDateForExport(inv.DueDate),
			util.FormatDateForExport(inv.PaidAt),
		))
	}

	filename := fmt.Sprintf("invoices-org-%d-%s.csv", orgID, time.Now().UTC().Format(dueDateLayout))
	return api.CSVResponse(sb.String(), filename)
}

// loadInvoice resolves the path ID and enforces organization scoping
func (h *Handler) loadInvoice(ctx context.Context, claims *auth.Claims, idStr string) (*models.Invoice, events.APIGatewayProxyResponse) {
	invoiceID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, api.ErrorResponse(http.StatusBadRequest, "Invalid invoice ID", h.Logger)
	}

	invoice, err := h.Invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, api.ErrorResponse(http.StatusNotFound, "Invoice not found", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to get invoice")
		return nil, api.ErrorResponse(http.StatusInternalServerError, "Failed to retrieve invoice", h.Logger)
	}

	if !claims.CanAccessOrg(invoice.OrgID) {
		return nil, api.ErrorResponse(http.StatusForbidden, "Access denied", h.Logger)
	}

	return invoice, events.APIGatewayProxyResponse{}
}

func (h *Handler) resolveOrgScope(claims *auth.Claims, query map[string]string) (int64, events.APIGatewayProxyResponse) {
	orgID := claims.OrgID
	if raw, ok := query["org_id"]; ok && raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, api.ErrorResponse(http.StatusBadRequest, "Invalid organization ID", h.Logger)
		}
		orgID = parsed
	}
	if orgID == 0 {
		return 0, api.ErrorResponse(http.StatusBadRequest, "Organization scope required", h.Logger)
	}
	if !claims.CanAccessOrg(orgID) {
		return 0, api.ErrorResponse(http.StatusForbidden, "Access denied", h.Logger)
	}
	return orgID, events.APIGatewayProxyResponse{}
}

func (h *Handler) recordActivity(ctx context.Context, orgID, actorID int64, action, entityType string, entityID int64, detail string) {
	entry := &models.ActivityEntry{
		OrgID:      orgID,
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if detail != "" {
		entry.Detail = sql.NullString{String: detail, Valid: true}
	}
	if err := h.Activity.RecordActivity(ctx, entry); err != nil {
		h.Logger.WithError(err).WithField("action", action).Error("Failed to record activity")
	}
}
