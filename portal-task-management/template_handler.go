package main

import (
	"context"
	"database/sql"
	"net/http"
	"portal/lib/api"
	"portal/lib/auth"
	"portal/lib/models"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// createTemplate handles POST /task-templates
func (h *Handler) createTemplate(ctx context.Context, claims *auth.Claims, body string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	var createReq models.CreateTaskTemplateRequest
	if err := api.ParseJSONBody(body, &createReq); err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
	}
	if createReq.OrgID == 0 || createReq.AssigneeID == 0 || createReq.Title == "" {
		return api.ErrorResponse(http.StatusBadRequest, "Organization, assignee, and title are required", h.Logger)
	}

	switch createReq.Recurrence {
	case models.RecurrenceWeekly, models.RecurrenceBiweekly, models.RecurrenceMonthly, models.RecurrenceQuarterly:
	default:
		return api.ErrorResponse(http.StatusBadRequest, "Invalid recurrence", h.Logger)
	}

	firstDue, err := time.Parse(dueDateLayout, createReq.FirstDueDate)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid first due date, expected YYYY-MM-DD", h.Logger)
	}

	template := &models.TaskTemplate{
		OrgID:            createReq.OrgID,
		AssigneeID:       createReq.AssigneeID,
		Title:            createReq.Title,
		Priority:         createReq.Priority,
		Recurrence:       createReq.Recurrence,
		NextOccurrenceAt: firstDue.UTC(),
		DueOffsetDays:    createReq.DueOffsetDays,
		IsActive:         true,
		CreatedBy:        claims.UserID,
	}
	if template.Priority == "" {
		template.Priority = models.TaskPriorityMedium
	}
	if createReq.Description != "" {
		template.Description = sql.NullString{String: createReq.Description, Valid: true}
	}

	created, err := h.Templates.CreateTemplate(ctx, template)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to create task template")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to create task template", h.Logger)
	}

	h.recordActivity(ctx, created.OrgID, claims.UserID, "task_template.created", "task_template", created.ID, created.Title)

	return api.SuccessResponse(http.StatusCreated, created, h.Logger)
}

// listTemplates handles GET /task-templates
func (h *Handler) listTemplates(ctx context.Context, claims *auth.Claims, query map[string]string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	raw, ok := query["org_id"]
	if !ok || raw == "" {
		return api.ErrorResponse(http.StatusBadRequest, "org_id query parameter is required", h.Logger)
	}
	orgID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid organization ID", h.Logger)
	}

	templates, err := h.Templates.GetTemplatesByOrg(ctx, orgID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list task templates")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to list task templates", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, map[string]interface{}{
		"templates": templates,
		"total":     len(templates),
	}, h.Logger)
}

// deactivateTemplate handles DELETE /task-templates/{id}. Templates are never
// hard-deleted; generated tasks keep their template link.
func (h *Handler) deactivateTemplate(ctx context.Context, claims *auth.Claims, idStr string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	templateID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid template ID", h.Logger)
	}

	if err := h.Templates.DeactivateTemplate(ctx, templateID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return api.ErrorResponse(http.StatusNotFound, "Template not found", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to deactivate task template")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to deactivate task template", h.Logger)
	}

	return api.SuccessResponse(http.StatusNoContent, nil, h.Logger)
}
