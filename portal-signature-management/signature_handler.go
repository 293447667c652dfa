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

// createSignatureRequest handles POST /signature-requests. The signer must be
// an active client belonging to the document's organization.
func (h *Handler) createSignatureRequest(ctx context.Context, claims *auth.Claims, body string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	var createReq models.CreateSignatureRequestPayload
	if err := api.ParseJSONBody(body, &createReq); err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
	}
	if createReq.DocumentID == 0 || createReq.SignerID == 0 {
		return api.ErrorResponse(http.StatusBadRequest, "Document and signer are required", h.Logger)
	}

	document, err := h.Documents.GetDocument(ctx, createReq.DocumentID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return api.ErrorResponse(http.StatusNotFound, "Document not found", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to get document")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to retrieve document", h.Logger)
	}

	signer, err := h.Users.GetUser(ctx, createReq.SignerID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return api.ErrorResponse(http.StatusNotFound, "Signer not found", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to get signer")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to retrieve signer", h.Logger)
	}
	if signer.Role != models.RoleClient || !signer.IsActive() {
		return api.ErrorResponse(http.StatusBadRequest, "Signer must be an active client user", h.Logger)
	}
	if !signer.OrgID.Valid || signer.OrgID.Int64 != document.OrgID {
		return api.ErrorResponse(http.StatusBadRequest, "Signer does not belong to the document's organization", h.Logger)
	}

	request := &models.SignatureRequest{
		OrgID:       document.OrgID,
		DocumentID:  document.ID,
		SignerID:    signer.UserID,
		RequestedBy: claims.UserID,
		Status:      models.SignatureStatusPending,
	}

	created, err := h.Signatures.CreateSignatureRequest(ctx, request)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to create signature request")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to create signature request", h.Logger)
	}

	h.recordActivity(ctx, created.OrgID, claims.UserID, "signature.requested", "signature_request", created.ID, document.Name)

	requester, err := h.Users.GetUser(ctx, claims.UserID)
	requesterName := ""
	if err == nil {
		requesterName = requester.GetFullName()
	}
	h.Dispatcher.SendSignatureRequestedEmail(ctx, signer, document.Name, requesterName)

	return api.SuccessResponse(http.StatusCreated, created, h.Logger)
}

// listSignatureRequests handles GET /signature-requests. Clients see requests
// addressed to them; staff see an organization's requests.
func (h *Handler) listSignatureRequests(ctx context.Context, claims *auth.Claims, query map[string]string) events.APIGatewayProxyResponse {
	var (
		requests []models.SignatureRequest
		err      error
	)

	if claims.IsStaffOrAdmin() {
		orgIDStr := query["org_id"]
		if orgIDStr == "" {
			return api.ErrorResponse(http.StatusBadRequest, "Organization ID is required", h.Logger)
		}
		orgID, parseErr := strconv.ParseInt(orgIDStr, 10, 64)
		if parseErr != nil {
			return api.ErrorResponse(http.StatusBadRequest, "Invalid organization ID", h.Logger)
		}
		requests, err = h.Signatures.GetSignatureRequestsByOrg(ctx, orgID)
	} else {
		requests, err = h.Signatures.GetSignatureRequestsBySigner(ctx, claims.UserID)
	}
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list signature requests")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to list signature requests", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, models.SignatureRequestListResponse{Requests: requests, Total: len(requests)}, h.Logger)
}

// getSignatureRequest handles GET /signature-requests/{id}
func (h *Handler) getSignatureRequest(ctx context.Context, claims *auth.Claims, idStr string) events.APIGatewayProxyResponse {
	request, resp := h.loadSignatureRequest(ctx, idStr)
	if request == nil {
		return resp
	}

	if !claims.IsStaffOrAdmin() && request.SignerID != claims.UserID {
		return api.ErrorResponse(http.StatusForbidden, "Access denied", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, request, h.Logger)
}

// signRequest handles POST /signature-requests/{id}/sign. The signer-scoped
// conditional update in the repository makes a double sign, or signing after
// a decline, come back as a conflict.
func (h *Handler) signRequest(ctx context.Context, claims *auth.Claims, idStr string) events.APIGatewayProxyResponse {
	requestID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid signature request ID", h.Logger)
	}

	signed, err := h.Signatures.SignRequest(ctx, requestID, claims.UserID, time.Now().UTC())
	if err != nil {
		if strings.Contains(err.Error(), "not pending") {
			return api.ErrorResponse(http.StatusConflict, "Signature request is not pending or not assigned to you", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to sign request")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to sign request", h.Logger)
	}

	h.recordActivity(ctx, signed.OrgID, claims.UserID, "signature.signed", "signature_request", signed.ID, "")

	return api.SuccessResponse(http.StatusOK, signed, h.Logger)
}

// declineRequest handles POST /signature-requests/{id}/decline
func (h *Handler) declineRequest(ctx context.Context, claims *auth.Claims, idStr, body string) events.APIGatewayProxyResponse {
	requestID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid signature request ID", h.Logger)
	}

	var declineReq models.DeclineSignatureRequestPayload
	if body != "" {
		if err := api.ParseJSONBody(body, &declineReq); err != nil {
			return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
		}
	}

	declined, err := h.Signatures.DeclineRequest(ctx, requestID, claims.UserID, declineReq.Reason)
	if err != nil {
		if strings.Contains(err.Error(), "not pending") {
			return api.ErrorResponse(http.StatusConflict, "Signature request is not pending or not assigned to you", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to decline request")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to decline request", h.Logger)
	}

	h.recordActivity(ctx, declined.OrgID, claims.UserID, "signature.declined", "signature_request", declined.ID, declineReq.Reason)

	return api.SuccessResponse(http.StatusOK, declined, h.Logger)
}

func (h *Handler) loadSignatureRequest(ctx context.Context, idStr string) (*models.SignatureRequest, events.APIGatewayProxyResponse) {
	requestID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, api.ErrorResponse(http.StatusBadRequest, "Invalid signature request ID", h.Logger)
	}

	request, err := h.Signatures.GetSignatureRequest(ctx, requestID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, api.ErrorResponse(http.StatusNotFound, "Signature request not found", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to get signature request")
		return nil, api.ErrorResponse(http.StatusInternalServerError, "Failed to retrieve signature request", h.Logger)
	}

	return request, events.APIGatewayProxyResponse{}
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
