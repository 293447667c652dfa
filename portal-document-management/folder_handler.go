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

	"github.com/aws/aws-lambda-go/events"
)

// createFolder handles POST /folders
func (h *Handler) createFolder(ctx context.Context, claims *auth.Claims, body string, query map[string]string) events.APIGatewayProxyResponse {
	var createReq models.CreateFolderRequest
	if err := api.ParseJSONBody(body, &createReq); err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
	}
	if createReq.Name == "" {
		return api.ErrorResponse(http.StatusBadRequest, "Folder name is required", h.Logger)
	}

	orgID, resp := h.resolveOrgScope(claims, query)
	if orgID == 0 {
		return resp
	}

	folder := &models.Folder{
		OrgID: orgID,
		Name:  createReq.Name,
	}
	if createReq.ParentID != 0 {
		parent, err := h.Folders.GetFolder(ctx, createReq.ParentID)
		if err != nil || parent.OrgID != orgID {
			return api.ErrorResponse(http.StatusBadRequest, "Parent folder not found", h.Logger)
		}
		folder.ParentID = sql.NullInt64{Int64: createReq.ParentID, Valid: true}
	}

	created, err := h.Folders.CreateFolder(ctx, folder)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to create folder")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to create folder", h.Logger)
	}

	return api.SuccessResponse(http.StatusCreated, created, h.Logger)
}

// listFolders handles GET /folders
func (h *Handler) listFolders(ctx context.Context, claims *auth.Claims, query map[string]string) events.APIGatewayProxyResponse {
	orgID, resp := h.resolveOrgScope(claims, query)
	if orgID == 0 {
		return resp
	}

	folders, err := h.Folders.GetFoldersByOrg(ctx, orgID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list folders")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to list folders", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, map[string]interface{}{
		"folders": folders,
		"total":   len(folders),
	}, h.Logger)
}

// deleteFolder handles DELETE /folders/{id}. The repository rejects deletion
// while the folder still holds documents or subfolders.
func (h *Handler) deleteFolder(ctx context.Context, claims *auth.Claims, idStr string) events.APIGatewayProxyResponse {
	folderID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid folder ID", h.Logger)
	}

	folder, err := h.Folders.GetFolder(ctx, folderID)
	if err != nil {
		return api.ErrorResponse(http.StatusNotFound, "Folder not found", h.Logger)
	}
	if !claims.CanAccessOrg(folder.OrgID) {
		return api.ErrorResponse(http.StatusForbidden, "Access denied", h.Logger)
	}

	if err := h.Folders.DeleteFolder(ctx, folderID, folder.OrgID); err != nil {
		if strings.Contains(err.Error(), "cannot be deleted") {
			return api.ErrorResponse(http.StatusConflict, "Folder is not empty", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to delete folder")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to delete folder", h.Logger)
	}

	return api.SuccessResponse(http.StatusNoContent, nil, h.Logger)
}

// createDocumentRequest handles POST /document-requests (staff asks a client
// organization for a document)
func (h *Handler) createDocumentRequest(ctx context.Context, claims *auth.Claims, body string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	var createReq models.CreateDocumentRequestPayload
	if err := api.ParseJSONBody(body, &createReq); err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
	}
	if createReq.OrgID == 0 || createReq.Title == "" {
		return api.ErrorResponse(http.StatusBadRequest, "Organization and title are required", h.Logger)
	}

	docRequest := &models.DocumentRequest{
		OrgID:       createReq.OrgID,
		Title:       createReq.Title,
		RequestedBy: claims.UserID,
		Status:      models.DocumentRequestOpen,
	}
	if createReq.Note != "" {
		docRequest.Note = sql.NullString{String: createReq.Note, Valid: true}
	}

	created, err := h.Requests.CreateDocumentRequest(ctx, docRequest)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to create document request")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to create document request", h.Logger)
	}

	h.recordActivity(ctx, created.OrgID, claims.UserID, "document_request.created", "document_request", created.ID, created.Title)

	// Notify the organization's active clients. Best-effort.
	recipients, err := h.Users.GetActiveClientsByOrg(ctx, created.OrgID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to load document request recipients")
	} else {
		for i := range recipients {
			h.Dispatcher.SendDocumentRequestedEmail(ctx, &recipients[i], created.Title, createReq.Note)
		}
	}

	return api.SuccessResponse(http.StatusCreated, created, h.Logger)
}

// listDocumentRequests handles GET /document-requests
func (h *Handler) listDocumentRequests(ctx context.Context, claims *auth.Claims, query map[string]string) events.APIGatewayProxyResponse {
	orgID, resp := h.resolveOrgScope(claims, query)
	if orgID == 0 {
		return resp
	}

	requests, err := h.Requests.GetDocumentRequestsByOrg(ctx, orgID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list document requests")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to list document requests", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, map[string]interface{}{
		"requests": requests,
		"total":    len(requests),
	}, h.Logger)
}

// fulfillDocumentRequest handles POST /document-requests/{id}/fulfill,
// linking an uploaded document to the open request
func (h *Handler) fulfillDocumentRequest(ctx context.Context, claims *auth.Claims, idStr, body string) events.APIGatewayProxyResponse {
	requestID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request ID", h.Logger)
	}

	var payload struct {
		DocumentID int64 `json:"document_id"`
	}
	if err := api.ParseJSONBody(body, &payload); err != nil || payload.DocumentID == 0 {
		return api.ErrorResponse(http.StatusBadRequest, "Document ID is required", h.Logger)
	}

	docRequest, err := h.Requests.GetDocumentRequest(ctx, requestID)
	if err != nil {
		return api.ErrorResponse(http.StatusNotFound, "Document request not found", h.Logger)
	}
	if !claims.CanAccessOrg(docRequest.OrgID) {
		return api.ErrorResponse(http.StatusForbidden, "Access denied", h.Logger)
	}

	doc, err := h.Documents.GetDocument(ctx, payload.DocumentID)
	if err != nil || doc.OrgID != docRequest.OrgID {
		return api.ErrorResponse(http.StatusBadRequest, "Document not found in this organization", h.Logger)
	}

	if err := h.Requests.FulfillDocumentRequest(ctx, requestID, payload.DocumentID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return api.ErrorResponse(http.StatusConflict, "Document request is not open", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to fulfill document request")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to fulfill document request", h.Logger)
	}

	h.recordActivity(ctx, docRequest.OrgID, claims.UserID, "document_request.fulfilled", "document_request", requestID, doc.Name)

	return api.SuccessResponse(http.StatusOK, map[string]string{"status": models.DocumentRequestFulfilled}, h.Logger)
}

// cancelDocumentRequest handles POST /document-requests/{id}/cancel
func (h *Handler) cancelDocumentRequest(ctx context.Context, claims *auth.Claims, idStr string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	requestID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request ID", h.Logger)
	}

	if err := h.Requests.CancelDocumentRequest(ctx, requestID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return api.ErrorResponse(http.StatusConflict, "Document request is not open", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to cancel document request")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to cancel document request", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, map[string]string{"status": models.DocumentRequestCancelled}, h.Logger)
}

// resolveOrgScope picks the organization from the caller's claims, allowing
// staff to select one via the org_id query parameter. A zero return means the
// accompanying error response should be used.
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
