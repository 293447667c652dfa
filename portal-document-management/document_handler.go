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
	"github.com/sirupsen/logrus"
)

// presignExpiry bounds how long upload and download URLs stay valid
const presignExpiry = 15 * time.Minute

// initiateUpload handles POST /documents/upload. A zero document_id starts a
// new document at version 1; a set document_id appends the next version.
func (h *Handler) initiateUpload(ctx context.Context, claims *auth.Claims, body string) events.APIGatewayProxyResponse {
	var uploadReq models.DocumentUploadRequest
	if err := api.ParseJSONBody(body, &uploadReq); err != nil {
		h.Logger.WithError(err).Error("Failed to parse upload request")
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
	}

	if uploadReq.FileName == "" || uploadReq.FileSize <= 0 {
		return api.ErrorResponse(http.StatusBadRequest, "File name and size are required", h.Logger)
	}
	if !models.ValidateFileType(uploadReq.FileName) {
		return api.ErrorResponse(http.StatusBadRequest, "File type not allowed", h.Logger)
	}

	orgID := claims.OrgID
	if claims.IsStaffOrAdmin() && uploadReq.DocumentID != 0 {
		doc, err := h.Documents.GetDocument(ctx, uploadReq.DocumentID)
		if err != nil {
			return api.ErrorResponse(http.StatusNotFound, "Document not found", h.Logger)
		}
		orgID = doc.OrgID
	}
	if orgID == 0 {
		return api.ErrorResponse(http.StatusBadRequest, "Organization scope required", h.Logger)
	}

	storageKey := models.GenerateStorageKey(orgID, uploadReq.FileName)

	var (
		docID   int64
		version *models.DocumentVersion
	)

	if uploadReq.DocumentID == 0 {
		doc := &models.Document{
			OrgID:      orgID,
			Name:       uploadReq.FileName,
			Category:   uploadReq.Category,
			Status:     models.DocumentStatusPendingReview,
			FileSize:   uploadReq.FileSize,
			StorageKey: storageKey,
			UploadedBy: claims.UserID,
		}
		if uploadReq.FolderID != 0 {
			doc.FolderID = sql.NullInt64{Int64: uploadReq.FolderID, Valid: true}
		}

		createdDoc, createdVersion, err := h.Documents.CreateDocument(ctx, doc, uploadReq.ChangeNote)
		if err != nil {
			h.Logger.WithError(err).Error("Failed to create document")
			return api.ErrorResponse(http.StatusInternalServerError, "Failed to create document", h.Logger)
		}
		docID = createdDoc.ID
		version = createdVersion
	} else {
		doc, err := h.Documents.GetDocument(ctx, uploadReq.DocumentID)
		if err != nil {
			return api.ErrorResponse(http.StatusNotFound, "Document not found", h.Logger)
		}
		if !claims.CanAccessOrg(doc.OrgID) {
			return api.ErrorResponse(http.StatusForbidden, "Access denied", h.Logger)
		}

		addedVersion, err := h.Documents.AddDocumentVersion(ctx, doc.ID, doc.OrgID, storageKey, uploadReq.FileSize, claims.UserID, uploadReq.ChangeNote)
		if err != nil {
			h.Logger.WithError(err).Error("Failed to add document version")
			return api.ErrorResponse(http.StatusInternalServerError, "Failed to add document version", h.Logger)
		}
		docID = doc.ID
		version = addedVersion
	}

	uploadURL, err := h.S3.GenerateUploadURL(storageKey, presignExpiry)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to generate upload URL")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to generate upload URL", h.Logger)
	}

	return api.SuccessResponse(http.StatusCreated, models.DocumentUploadResponse{
		DocumentID: docID,
		VersionID:  version.ID,
		Version:    version.VersionNumber,
		UploadURL:  uploadURL,
		StorageKey: storageKey,
		ExpiresAt:  time.Now().Add(presignExpiry).UTC().Format(time.RFC3339),
	}, h.Logger)
}

// confirmUpload handles POST /documents/confirm. It verifies the object landed
// in S3, flips the version to confirmed, and notifies firm staff.
func (h *Handler) confirmUpload(ctx context.Context, claims *auth.Claims, body string) events.APIGatewayProxyResponse {
	var confirmReq models.DocumentConfirmRequest
	if err := api.ParseJSONBody(body, &confirmReq); err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
	}

	version, err := h.Documents.GetVersion(ctx, confirmReq.VersionID)
	if err != nil {
		return api.ErrorResponse(http.StatusNotFound, "Version not found", h.Logger)
	}

	exists, err := h.S3.ObjectExists(version.StorageKey)
	if err != nil || !exists {
		return api.ErrorResponse(http.StatusBadRequest, "Upload not found in storage", h.Logger)
	}

	if err := h.Documents.ConfirmVersionUpload(ctx, version.ID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return api.ErrorResponse(http.StatusConflict, "Version already confirmed", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to confirm version upload")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to confirm upload", h.Logger)
	}

	doc, err := h.Documents.GetDocument(ctx, version.DocumentID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to load document after confirm")
		return api.SuccessResponse(http.StatusOK, map[string]string{"status": "confirmed"}, h.Logger)
	}

	h.recordActivity(ctx, doc.OrgID, claims.UserID, "document.uploaded", "document", doc.ID, doc.Name)

	// Client uploads notify the firm side; staff uploads notify nobody.
	if !claims.IsStaffOrAdmin() {
		h.notifyStaffOfUpload(ctx, doc, version.VersionNumber)
	}

	return api.SuccessResponse(http.StatusOK, map[string]string{"status": "confirmed"}, h.Logger)
}

func (h *Handler) notifyStaffOfUpload(ctx context.Context, doc *models.Document, version int) {
	staff, err := h.Users.GetStaffAndAdmins(ctx)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to load staff for upload notification")
		return
	}

	orgName := ""
	if name, err := h.orgName(ctx, doc.OrgID); err == nil {
		orgName = name
	}

	for i := range staff {
		h.Dispatcher.SendDocumentUploadedEmail(ctx, &staff[i], doc.Name, orgName, version)
	}
}

// listDocuments handles GET /documents
func (h *Handler) listDocuments(ctx context.Context, claims *auth.Claims, query map[string]string) events.APIGatewayProxyResponse {
	orgID := claims.OrgID
	if raw, ok := query["org_id"]; ok && raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return api.ErrorResponse(http.StatusBadRequest, "Invalid organization ID", h.Logger)
		}
		orgID = parsed
	}
	if orgID == 0 {
		return api.ErrorResponse(http.StatusBadRequest, "Organization scope required", h.Logger)
	}
	if !claims.CanAccessOrg(orgID) {
		return api.ErrorResponse(http.StatusForbidden, "Access denied", h.Logger)
	}

	filters := map[string]string{}
	for _, key := range []string{"category", "status", "folder_id"} {
		if v, ok := query[key]; ok && v != "" {
			filters[key] = v
		}
	}

	docs, err := h.Documents.GetDocumentsByOrg(ctx, orgID, filters)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list documents")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to list documents", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, models.DocumentListResponse{Documents: docs, Total: len(docs)}, h.Logger)
}

// getDocument handles GET /documents/{id}
func (h *Handler) getDocument(ctx context.Context, claims *auth.Claims, idStr string) events.APIGatewayProxyResponse {
	doc, resp := h.loadDocument(ctx, claims, idStr)
	if doc == nil {
		return resp
	}
	return api.SuccessResponse(http.StatusOK, doc, h.Logger)
}

// getVersionHistory handles GET /documents/{id}/versions
func (h *Handler) getVersionHistory(ctx context.Context, claims *auth.Claims, idStr string) events.APIGatewayProxyResponse {
	doc, resp := h.loadDocument(ctx, claims, idStr)
	if doc == nil {
		return resp
	}

	versions, err := h.Documents.GetVersionHistory(ctx, doc.ID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to get version history")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to retrieve version history", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, models.VersionHistoryResponse{
		DocumentID: doc.ID,
		Versions:   versions,
		Total:      len(versions),
	}, h.Logger)
}

// downloadDocument handles GET /documents/{id}/download. Defaults to the
// current version; version_id selects a historical one. Unconfirmed uploads
// are not downloadable.
func (h *Handler) downloadDocument(ctx context.Context, claims *auth.Claims, idStr string, query map[string]string) events.APIGatewayProxyResponse {
	doc, resp := h.loadDocument(ctx, claims, idStr)
	if doc == nil {
		return resp
	}

	versionID := doc.CurrentVersionID
	if raw, ok := query["version_id"]; ok && raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return api.ErrorResponse(http.StatusBadRequest, "Invalid version ID", h.Logger)
		}
		versionID = parsed
	}

	version, err := h.Documents.GetVersion(ctx, versionID)
	if err != nil || version.DocumentID != doc.ID {
		return api.ErrorResponse(http.StatusNotFound, "Version not found", h.Logger)
	}
	if version.UploadStatus != models.UploadStatusConfirmed {
		return api.ErrorResponse(http.StatusNotFound, "Version not found", h.Logger)
	}

	downloadURL, err := h.S3.GenerateDownloadURL(version.StorageKey, presignExpiry)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to generate download URL")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to generate download URL", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, models.DocumentDownloadResponse{
		DownloadURL: downloadURL,
		FileName:    doc.Name,
		Version:     version.VersionNumber,
		FileSize:    version.FileSize,
		ExpiresAt:   time.Now().Add(presignExpiry).UTC().Format(time.RFC3339),
	}, h.Logger)
}

// reviewDocument handles POST /documents/{id}/approve and /reject
func (h *Handler) reviewDocument(ctx context.Context, claims *auth.Claims, idStr, body string, approve bool) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	docID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid document ID", h.Logger)
	}

	var reviewReq models.DocumentReviewRequest
	if body != "" {
		if err := api.ParseJSONBody(body, &reviewReq); err != nil {
			return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
		}
	}

	status := models.DocumentStatusApproved
	action := "document.approved"
	if !approve {
		status = models.DocumentStatusRejected
		action = "document.rejected"
	}

	doc, err := h.Documents.ReviewDocument(ctx, docID, status, claims.UserID, reviewReq.Note)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return api.ErrorResponse(http.StatusNotFound, "Document not found or not pending review", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to review document")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to review document", h.Logger)
	}

	h.recordActivity(ctx, doc.OrgID, claims.UserID, action, "document", doc.ID, reviewReq.Note)

	if uploader, err := h.Users.GetUser(ctx, doc.UploadedBy); err == nil && uploader.IsActive() {
		if approve {
			h.Dispatcher.SendDocumentApprovedEmail(ctx, uploader, doc.Name, reviewReq.Note)
		} else {
			h.Dispatcher.SendDocumentRejectedEmail(ctx, uploader, doc.Name, reviewReq.Note)
		}
	}

	return api.SuccessResponse(http.StatusOK, doc, h.Logger)
}

// deleteDocument handles DELETE /documents/{id} (soft delete)
func (h *Handler) deleteDocument(ctx context.Context, claims *auth.Claims, idStr string) events.APIGatewayProxyResponse {
	doc, resp := h.loadDocument(ctx, claims, idStr)
	if doc == nil {
		return resp
	}

	if !claims.IsStaffOrAdmin() && doc.UploadedBy != claims.UserID {
		return api.ErrorResponse(http.StatusForbidden, "Access denied", h.Logger)
	}

	if err := h.Documents.SoftDeleteDocument(ctx, doc.ID, claims.UserID); err != nil {
		h.Logger.WithError(err).Error("Failed to delete document")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to delete document", h.Logger)
	}

	h.recordActivity(ctx, doc.OrgID, claims.UserID, "document.deleted", "document", doc.ID, doc.Name)

	return api.SuccessResponse(http.StatusNoContent, nil, h.Logger)
}

// loadDocument resolves the path ID and enforces organization scoping.
// A nil document means the accompanying response should be returned as-is.
func (h *Handler) loadDocument(ctx context.Context, claims *auth.Claims, idStr string) (*models.Document, events.APIGatewayProxyResponse) {
	docID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, api.ErrorResponse(http.StatusBadRequest, "Invalid document ID", h.Logger)
	}

	doc, err := h.Documents.GetDocument(ctx, docID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, api.ErrorResponse(http.StatusNotFound, "Document not found", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to get document")
		return nil, api.ErrorResponse(http.StatusInternalServerError, "Failed to retrieve document", h.Logger)
	}

	if !claims.CanAccessOrg(doc.OrgID) {
		h.Logger.WithFields(logrus.Fields{"user_id": claims.UserID, "org_id": doc.OrgID}).Warn("Cross-organization document access denied")
		return nil, api.ErrorResponse(http.StatusForbidden, "Access denied", h.Logger)
	}

	return doc, events.APIGatewayProxyResponse{}
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

func (h *Handler) orgName(ctx context.Context, orgID int64) (string, error) {
	var name string
	err := h.DB.QueryRowContext(ctx, `SELECT name FROM portal.organizations WHERE id = $1`, orgID).Scan(&name)
	return name, err
}
