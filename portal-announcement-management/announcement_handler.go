package main

import (
	"context"
	"net/http"
	"portal/lib/api"
	"portal/lib/auth"
	"portal/lib/models"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// createAnnouncement handles POST /announcements. An announcement with no
// scheduled_for stays a draft until published manually; a scheduled one is
// picked up by the hourly publish job.
func (h *Handler) createAnnouncement(ctx context.Context, claims *auth.Claims, body string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	var createReq models.CreateAnnouncementRequest
	if err := api.ParseJSONBody(body, &createReq); err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
	}
	if createReq.Title == "" || createReq.Content == "" {
		return api.ErrorResponse(http.StatusBadRequest, "Title and content are required", h.Logger)
	}
	if createReq.Type != "" && !isValidAnnouncementType(createReq.Type) {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid announcement type", h.Logger)
	}

	announcement := &models.Announcement{
		Title:     createReq.Title,
		Content:   createReq.Content,
		Type:      createReq.Type,
		IsPinned:  createReq.IsPinned,
		CreatedBy: claims.UserID,
	}
	if announcement.Type == "" {
		announcement.Type = models.AnnouncementTypeGeneral
	}

	var resp events.APIGatewayProxyResponse
	if announcement.ScheduledFor, resp = parseOptionalTime(createReq.ScheduledFor, "scheduled_for", h); resp.StatusCode != 0 {
		return resp
	}
	if announcement.ExpiresAt, resp = parseOptionalTime(createReq.ExpiresAt, "expires_at", h); resp.StatusCode != 0 {
		return resp
	}

	created, err := h.Announcements.CreateAnnouncement(ctx, announcement)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to create announcement")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to create announcement", h.Logger)
	}

	return api.SuccessResponse(http.StatusCreated, created, h.Logger)
}

// listAnnouncements handles GET /announcements. Clients only ever see
// published, unexpired announcements; staff can pass all=true to manage
// drafts and scheduled entries.
func (h *Handler) listAnnouncements(ctx context.Context, claims *auth.Claims, query map[string]string) events.APIGatewayProxyResponse {
	var (
		announcements []models.Announcement
		err           error
	)

	if claims.IsStaffOrAdmin() && query["all"] == "true" {
		announcements, err = h.Announcements.GetAllAnnouncements(ctx)
	} else {
		announcements, err = h.Announcements.GetPublishedAnnouncements(ctx, time.Now().UTC())
	}
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list announcements")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to list announcements", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, models.AnnouncementListResponse{Announcements: announcements, Total: len(announcements)}, h.Logger)
}

// getAnnouncement handles GET /announcements/{id}
func (h *Handler) getAnnouncement(ctx context.Context, claims *auth.Claims, idStr string) events.APIGatewayProxyResponse {
	announcement, resp := h.loadAnnouncement(ctx, idStr)
	if announcement == nil {
		return resp
	}

	// Unpublished announcements are visible to staff only
	if !announcement.IsPublished() && !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusNotFound, "Announcement not found", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, announcement, h.Logger)
}

// updateAnnouncement handles PUT /announcements/{id}. Pinning and expiry can
// change after publication; rescheduling a published announcement has no
// effect since the publish job only looks at unpublished rows.
func (h *Handler) updateAnnouncement(ctx context.Context, claims *auth.Claims, idStr, body string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	announcement, resp := h.loadAnnouncement(ctx, idStr)
	if announcement == nil {
		return resp
	}

	var updateReq models.UpdateAnnouncementRequest
	if err := api.ParseJSONBody(body, &updateReq); err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
	}

	if updateReq.Title != "" {
		announcement.Title = updateReq.Title
	}
	if updateReq.Content != "" {
		announcement.Content = updateReq.Content
	}
	if updateReq.Type != "" {
		if !isValidAnnouncementType(updateReq.Type) {
			return api.ErrorResponse(http.StatusBadRequest, "Invalid announcement type", h.Logger)
		}
		announcement.Type = updateReq.Type
	}
	if updateReq.IsPinned != nil {
		announcement.IsPinned = *updateReq.IsPinned
	}
	if updateReq.ScheduledFor != "" {
		if announcement.ScheduledFor, resp = parseOptionalTime(updateReq.ScheduledFor, "scheduled_for", h); resp.StatusCode != 0 {
			return resp
		}
	}
	if updateReq.ExpiresAt != "" {
		if announcement.ExpiresAt, resp = parseOptionalTime(updateReq.ExpiresAt, "expires_at", h); resp.StatusCode != 0 {
			return resp
		}
	}

	updated, err := h.Announcements.UpdateAnnouncement(ctx, announcement)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to update announcement")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to update announcement", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, updated, h.Logger)
}

// publishAnnouncement handles POST /announcements/{id}/publish, publishing
// immediately regardless of schedule. The conditional MarkPublished keeps a
// concurrent publish job run from sending the notification fan-out twice.
func (h *Handler) publishAnnouncement(ctx context.Context, claims *auth.Claims, idStr string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	announcement, resp := h.loadAnnouncement(ctx, idStr)
	if announcement == nil {
		return resp
	}

	now := time.Now().UTC()
	published, err := h.Announcements.MarkPublished(ctx, announcement.ID, now)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to publish announcement")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to publish announcement", h.Logger)
	}
	if !published {
		return api.ErrorResponse(http.StatusConflict, "Announcement is already published", h.Logger)
	}

	announcement.PublishedAt = &now
	h.notifyClients(ctx, announcement)

	return api.SuccessResponse(http.StatusOK, announcement, h.Logger)
}

func (h *Handler) notifyClients(ctx context.Context, announcement *models.Announcement) {
	recipients, err := h.Users.GetAllActiveClients(ctx)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to load announcement recipients")
		return
	}
	for i := range recipients {
		h.Dispatcher.SendAnnouncementEmail(ctx, &recipients[i], announcement.Title, announcement.Content)
	}
}

func (h *Handler) loadAnnouncement(ctx context.Context, idStr string) (*models.Announcement, events.APIGatewayProxyResponse) {
	announcementID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, api.ErrorResponse(http.StatusBadRequest, "Invalid announcement ID", h.Logger)
	}

	announcement, err := h.Announcements.GetAnnouncement(ctx, announcementID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, api.ErrorResponse(http.StatusNotFound, "Announcement not found", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to get announcement")
		return nil, api.ErrorResponse(http.StatusInternalServerError, "Failed to retrieve announcement", h.Logger)
	}

	return announcement, events.APIGatewayProxyResponse{}
}

func isValidAnnouncementType(t string) bool {
	switch t {
	case models.AnnouncementTypeGeneral, models.AnnouncementTypeDeadline, models.AnnouncementTypeTaxUpdate, models.AnnouncementTypeMaintenance:
		return true
	}
	return false
}

func parseOptionalTime(raw, field string, h *Handler) (*time.Time, events.APIGatewayProxyResponse) {
	if raw == "" {
		return nil, events.APIGatewayProxyResponse{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, api.ErrorResponse(http.StatusBadRequest, "Invalid "+field+", expected RFC3339 timestamp", h.Logger)
	}
	return &t, events.APIGatewayProxyResponse{}
}
