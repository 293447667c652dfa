package main

import (
	"context"
	"net/http"
	"portal/lib/api"
	"portal/lib/auth"
	"portal/lib/models"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// listNotifications handles GET /notifications. Pass unread_only=true to
// restrict to the unread set.
func (h *Handler) listNotifications(ctx context.Context, claims *auth.Claims, query map[string]string) events.APIGatewayProxyResponse {
	unreadOnly := query["unread_only"] == "true"

	notifications, err := h.Notifications.GetNotificationsByRecipient(ctx, claims.UserID, unreadOnly)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list notifications")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to list notifications", h.Logger)
	}

	unreadCount, err := h.Notifications.GetUnreadCount(ctx, claims.UserID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to count unread notifications")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to list notifications", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, models.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unreadCount,
		Total:         len(notifications),
	}, h.Logger)
}

// getUnreadCount handles GET /notifications/unread-count, the badge poll
func (h *Handler) getUnreadCount(ctx context.Context, claims *auth.Claims) events.APIGatewayProxyResponse {
	count, err := h.Notifications.GetUnreadCount(ctx, claims.UserID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to count unread notifications")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to count unread notifications", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, map[string]int{"unread_count": count}, h.Logger)
}

// markRead handles POST /notifications/{id}/read. The recipient-scoped update
// means a user can never mark someone else's notification.
func (h *Handler) markRead(ctx context.Context, claims *auth.Claims, idStr string) events.APIGatewayProxyResponse {
	notificationID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid notification ID", h.Logger)
	}

	if err := h.Notifications.MarkRead(ctx, notificationID, claims.UserID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return api.ErrorResponse(http.StatusNotFound, "Notification not found or already read", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to mark notification read")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to mark notification read", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, map[string]bool{"read": true}, h.Logger)
}

// markAllRead handles POST /notifications/read-all
func (h *Handler) markAllRead(ctx context.Context, claims *auth.Claims) events.APIGatewayProxyResponse {
	updated, err := h.Notifications.MarkAllRead(ctx, claims.UserID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to mark notifications read")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to mark notifications read", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, map[string]int64{"marked_read": updated}, h.Logger)
}

// getPreferences handles GET /preferences. A user with no stored row gets the
// all-enabled defaults rather than an error.
func (h *Handler) getPreferences(ctx context.Context, claims *auth.Claims) events.APIGatewayProxyResponse {
	prefs, err := h.Preferences.GetPreferences(ctx, claims.UserID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to get email preferences")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to get email preferences", h.Logger)
	}
	if prefs == nil {
		prefs = defaultPreferences(claims.UserID)
	}

	return api.SuccessResponse(http.StatusOK, prefs, h.Logger)
}

// updatePreferences handles PUT /preferences. Omitted flags keep their
// current value, so the Settings UI can toggle one category at a time.
func (h *Handler) updatePreferences(ctx context.Context, claims *auth.Claims, body string) events.APIGatewayProxyResponse {
	var updateReq models.UpdateEmailPreferencesRequest
	if err := api.ParseJSONBody(body, &updateReq); err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
	}

	prefs, err := h.Preferences.GetPreferences(ctx, claims.UserID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to get email preferences")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to update email preferences", h.Logger)
	}
	if prefs == nil {
		prefs = defaultPreferences(claims.UserID)
	}

	if updateReq.DocumentRequests != nil {
		prefs.DocumentRequests = *updateReq.DocumentRequests
	}
	if updateReq.TaskAssignments != nil {
		prefs.TaskAssignments = *updateReq.TaskAssignments
	}
	if updateReq.TaskComments != nil {
		prefs.TaskComments = *updateReq.TaskComments
	}
	if updateReq.Invoices != nil {
		prefs.Invoices = *updateReq.Invoices
	}
	if updateReq.Signatures != nil {
		prefs.Signatures = *updateReq.Signatures
	}
	if updateReq.Announcements != nil {
		prefs.Announcements = *updateReq.Announcements
	}

	saved, err := h.Preferences.UpsertPreferences(ctx, prefs)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to save email preferences")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to update email preferences", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, saved, h.Logger)
}

func defaultPreferences(userID int64) *models.EmailPreferences {
	return &models.EmailPreferences{
		UserID:           userID,
		DocumentRequests: true,
		TaskAssignments:  true,
		TaskComments:     true,
		Invoices:         true,
		Signatures:       true,
		Announcements:    true,
	}
}
