package models

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document represents a client document and its current-version metadata.
// CurrentVersionID always points at the newest row of its version chain.
type Document struct {
	ID                   int64          `json:"id"`
	OrgID                int64          `json:"org_id"`
	FolderID             sql.NullInt64  `json:"folder_id,omitempty"`
	Name                 string         `json:"name"`
	Category             string         `json:"category"`
	Status               string         `json:"status"` // 'pending_review', 'approved', 'rejected'
	CurrentVersionID     int64          `json:"current_version_id"`
	CurrentVersionNumber int            `json:"current_version_number"`
	FileSize             int64          `json:"file_size"`
	StorageKey           string         `json:"storage_key"`
	UploadedBy           int64          `json:"uploaded_by"`
	ReviewedBy           sql.NullInt64  `json:"reviewed_by,omitempty"`
	ReviewNote           sql.NullString `json:"review_note,omitempty"`
	ReviewedAt           *time.Time     `json:"reviewed_at,omitempty"`
	IsDeleted            bool           `json:"is_deleted"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// DocumentVersion is one immutable entry in a document's version chain.
// Version numbers are gapless and strictly increasing, starting at 1.
type DocumentVersion struct {
	ID            int64          `json:"id"`
	DocumentID    int64          `json:"document_id"`
	VersionNumber int            `json:"version_number"`
	StorageKey    string         `json:"storage_key"`
	FileSize      int64          `json:"file_size"`
	UploadedBy    int64          `json:"uploaded_by"`
	ChangeNote    sql.NullString `json:"change_note,omitempty"`
	UploadStatus  string         `json:"upload_status"` // 'pending', 'confirmed'
	CreatedAt     time.Time      `json:"created_at"`
}

// Folder groups documents within an organization
type Folder struct {
	ID        int64         `json:"id"`
	OrgID     int64         `json:"org_id"`
	Name      string        `json:"name"`
	ParentID  sql.NullInt64 `json:"parent_id,omitempty"`
	IsDeleted bool          `json:"is_deleted"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// DocumentRequest is a staff ask for a client to upload a specific document
type DocumentRequest struct {
	ID                    int64          `json:"id"`
	OrgID                 int64          `json:"org_id"`
	Title                 string         `json:"title"`
	Note                  sql.NullString `json:"note,omitempty"`
	RequestedBy           int64          `json:"requested_by"`
	Status                string         `json:"status"` // 'open', 'fulfilled', 'cancelled'
	FulfilledByDocumentID sql.NullInt64  `json:"fulfilled_by_document_id,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// Document status constants
const (
	DocumentStatusPendingReview = "pending_review"
	DocumentStatusApproved      = "approved"
	DocumentStatusRejected      = "rejected"
)

// DocumentVersion upload status constants
const (
	UploadStatusPending   = "pending"
	UploadStatusConfirmed = "confirmed"
)

// DocumentRequest status constants
const (
	DocumentRequestOpen      = "open"
	DocumentRequestFulfilled = "fulfilled"
	DocumentRequestCancelled = "cancelled"
)

// DocumentUploadRequest represents the request payload for starting a document upload.
// DocumentID is zero when uploading a brand-new document and set when re-uploading
// a new version of an existing one.
type DocumentUploadRequest struct {
	DocumentID int64  `json:"document_id,omitempty"`
	FolderID   int64  `json:"folder_id,omitempty"`
	FileName   string `json:"file_name" binding:"required"`
	Category   string `json:"category,omitempty"`
	FileSize   int64  `json:"file_size" binding:"required"`
	ChangeNote string `json:"change_note,omitempty"`
}

// DocumentUploadResponse carries the presigned upload URL back to the client
type DocumentUploadResponse struct {
	DocumentID int64  `json:"document_id"`
	VersionID  int64  `json:"version_id"`
	Version    int    `json:"version"`
	UploadURL  string `json:"upload_url"`
	StorageKey string `json:"storage_key"`
	ExpiresAt  string `json:"expires_at"`
}

// DocumentConfirmRequest confirms that the client finished uploading to S3
type DocumentConfirmRequest struct {
	VersionID int64 `json:"version_id" binding:"required"`
}

// DocumentReviewRequest approves or rejects a pending document
type DocumentReviewRequest struct {
	Note string `json:"note,omitempty"`
}

// DocumentDownloadResponse carries a presigned download URL for a version
type DocumentDownloadResponse struct {
	DownloadURL string `json:"download_url"`
	FileName    string `json:"file_name"`
	Version     int    `json:"version"`
	FileSize    int64  `json:"file_size"`
	ExpiresAt   string `json:"expires_at"`
}

// DocumentListResponse represents the response for listing documents
type DocumentListResponse struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
}

// VersionHistoryResponse lists a document's versions, newest first
type VersionHistoryResponse struct {
	DocumentID int64             `json:"document_id"`
	Versions   []DocumentVersion `json:"versions"`
	Total      int               `json:"total"`
}

// CreateFolderRequest represents the request payload for creating a folder
type CreateFolderRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=150"`
	ParentID int64  `json:"parent_id,omitempty"`
}

// CreateDocumentRequestPayload represents the request payload for a staff document ask
type CreateDocumentRequestPayload struct {
	OrgID int64  `json:"org_id" binding:"required"`
	Title string `json:"title" binding:"required,min=2,max=200"`
	Note  string `json:"note,omitempty"`
}

// allowedExtensions lists the file types accepted for upload
var allowedExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".csv": true, ".png": true, ".jpg": true, ".jpeg": true, ".txt": true,
	".zip": true,
}

// ValidateFileType checks whether the file extension is accepted for upload
func ValidateFileType(fileName string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// GenerateStorageKey builds the S3 key for a new document version upload
func GenerateStorageKey(orgID int64, fileName string) string {
	return fmt.Sprintf("orgs/%d/documents/%s%s", orgID, uuid.New().String(), strings.ToLower(filepath.Ext(fileName)))
}
