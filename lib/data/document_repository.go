package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// DocumentRepository defines the interface for document and version-chain operations
type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc *models.Document, changeNote string) (*models.Document, *models.DocumentVersion, error)
	AddDocumentVersion(ctx context.Context, documentID, orgID int64, storageKey string, fileSize, uploadedBy int64, changeNote string) (*models.DocumentVersion, error)
	ConfirmVersionUpload(ctx context.Context, versionID int64) error
	GetDocument(ctx context.Context, documentID int64) (*models.Document, error)
	GetDocumentsByOrg(ctx context.Context, orgID int64, filters map[string]string) ([]models.Document, error)
	GetVersionHistory(ctx context.Context, documentID int64) ([]models.DocumentVersion, error)
	GetVersion(ctx context.Context, versionID int64) (*models.DocumentVersion, error)
	ReviewDocument(ctx context.Context, documentID int64, status string, reviewerID int64, note string) (*models.Document, error)
	SoftDeleteDocument(ctx context.Context, documentID, userID int64) error
}

// DocumentDao implements the DocumentRepository interface for PostgreSQL
type DocumentDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

const documentColumns = `id, org_id, folder_id, name, category, status, current_version_id, current_version_number,
	file_size, storage_key, uploaded_by, reviewed_by, review_note, reviewed_at, is_deleted, created_at, updated_at`

func scanDocument(row interface{ Scan(...interface{}) error }) (*models.Document, error) {
	var doc models.Document
	err := row.Scan(
		&doc.ID,
		&doc.OrgID,
		&doc.FolderID,
		&doc.Name,
		&doc.Category,
		&doc.Status,
		&doc.CurrentVersionID,
		&doc.CurrentVersionNumber,
		&doc.FileSize,
		&doc.StorageKey,
		&doc.UploadedBy,
		&doc.ReviewedBy,
		&doc.ReviewNote,
		&doc.ReviewedAt,
		&doc.IsDeleted,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// CreateDocument creates a new document together with version 1 of its chain.
// Both rows commit in one transaction so the current-version pointer is never
// observable in a half-written state.
func (dao *DocumentDao) CreateDocument(ctx context.Context, doc *models.Document, changeNote string) (*models.Document, *models.DocumentVersion, error) {
	tx, err := dao.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO portal.documents (
			org_id, folder_id, name, category, status, current_version_id, current_version_number,
			file_size, storage_key, uploaded_by, is_deleted, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, 0, 1, $6, $7, $8, false, $9, $9)
		RETURNING id, created_at, updated_at
	`,
		doc.OrgID,
		doc.FolderID,
		doc.Name,
		doc.Category,
		models.DocumentStatusPendingReview,
		doc.FileSize,
		doc.StorageKey,
		doc.UploadedBy,
		now,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"org_id": doc.OrgID,
			"name":   doc.Name,
		}).Error("Failed to create document")
		return nil, nil, err
	}

	version := &models.DocumentVersion{
		DocumentID:    doc.ID,
		VersionNumber: 1,
		StorageKey:    doc.StorageKey,
		FileSize:      doc.FileSize,
		UploadedBy:    doc.UploadedBy,
		UploadStatus:  models.UploadStatusPending,
	}
	if changeNote != "" {
		version.ChangeNote = sql.NullString{String: changeNote, Valid: true}
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO portal.document_versions (document_id, version_number, storage_key, file_size, uploaded_by, change_note, upload_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`,
		version.DocumentID,
		version.VersionNumber,
		version.StorageKey,
		version.FileSize,
		version.UploadedBy,
		version.ChangeNote,
		version.UploadStatus,
		now,
	).Scan(&version.ID, &version.CreatedAt)
	if err != nil {
		dao.Logger.WithError(err).WithField("document_id", doc.ID).Error("Failed to create initial document version")
		return nil, nil, err
	}

	_, err = tx.ExecContext(ctx, `UPDATE portal.documents SET current_version_id = $1 WHERE id = $2`, version.ID, doc.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit document creation: %w", err)
	}

	doc.Status = models.DocumentStatusPendingReview
	doc.CurrentVersionID = version.ID
	doc.CurrentVersionNumber = 1

	dao.Logger.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"org_id":      doc.OrgID,
		"name":        doc.Name,
	}).Info("Document created with initial version")

	return doc, version, nil
}

// AddDocumentVersion appends the next version to a document's chain and moves
// the current-version pointer, all in one transaction. The document row is
// locked for the duration so version numbers stay gapless and strictly
// increasing even under concurrent uploads.
func (dao *DocumentDao) AddDocumentVersion(ctx context.Context, documentID, orgID int64, storageKey string, fileSize, uploadedBy int64, changeNote string) (*models.DocumentVersion, error) {
	tx, err := dao.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.QueryRowContext(ctx, `
		SELECT current_version_number
		FROM portal.documents
		WHERE id = $1 AND org_id = $2 AND is_deleted = false
		FOR UPDATE
	`, documentID, orgID).Scan(&currentVersion)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("document not found")
		}
		dao.Logger.WithError(err).WithField("document_id", documentID).Error("Failed to lock document for new version")
		return nil, err
	}

	version := &models.DocumentVersion{
		DocumentID:    documentID,
		VersionNumber: currentVersion + 1,
		StorageKey:    storageKey,
		FileSize:      fileSize,
		UploadedBy:    uploadedBy,
		UploadStatus:  models.UploadStatusPending,
	}
	if changeNote != "" {
		version.ChangeNote = sql.NullString{String: changeNote, Valid: true}
	}

	now := time.Now()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO portal.document_versions (document_id, version_number, storage_key, file_size, uploaded_by, change_note, upload_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`,
		version.DocumentID,
		version.VersionNumber,
		version.StorageKey,
		version.FileSize,
		version.UploadedBy,
		version.ChangeNote,
		version.UploadStatus,
		now,
	).Scan(&version.ID, &version.CreatedAt)
	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"document_id": documentID,
			"version":     version.VersionNumber,
		}).Error("Failed to insert document version")
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE portal.documents
		SET current_version_id = $1, current_version_number = $2, file_size = $3, storage_key = $4,
		    status = $5, reviewed_by = NULL, review_note = NULL, reviewed_at = NULL, updated_at = $6
		WHERE id = $7
	`, version.ID, version.VersionNumber, fileSize, storageKey, models.DocumentStatusPendingReview, now, documentID)
	if err != nil {
		dao.Logger.WithError(err).WithField("document_id", documentID).Error("Failed to advance current-version pointer")
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit new version: %w", err)
	}

	dao.Logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"version_id":  version.ID,
		"version":     version.VersionNumber,
	}).Info("Document version added")

	return version, nil
}

// ConfirmVersionUpload marks a version's storage object as finalized
func (dao *DocumentDao) ConfirmVersionUpload(ctx context.Context, versionID int64) error {
	query := `
		UPDATE portal.document_versions
		SET upload_status = $1
		WHERE id = $2 AND upload_status = $3
	`

	result, err := dao.DB.ExecContext(ctx, query, models.UploadStatusConfirmed, versionID, models.UploadStatusPending)
	if err != nil {
		dao.Logger.WithError(err).WithField("version_id", versionID).Error("Failed to confirm version upload")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("version not found or already confirmed")
	}

	return nil
}

// GetDocument retrieves a document by id, excluding soft-deleted ones
func (dao *DocumentDao) GetDocument(ctx context.Context, documentID int64) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM portal.documents WHERE id = $1 AND is_deleted = false`

	doc, err := scanDocument(dao.DB.QueryRowContext(ctx, query, documentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("document not found")
		}
		dao.Logger.WithError(err).WithField("document_id", documentID).Error("Failed to get document")
		return nil, err
	}
	return doc, nil
}

// GetDocumentsByOrg lists an organization's documents, newest first.
// Supported filters: category, status, folder_id.
func (dao *DocumentDao) GetDocumentsByOrg(ctx context.Context, orgID int64, filters map[string]string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM portal.documents WHERE org_id = $1 AND is_deleted = false`
	args := []interface{}{orgID}

	if category := filters["category"]; category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if status := filters["status"]; status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if folderID := filters["folder_id"]; folderID != "" {
		args = append(args, folderID)
		query += fmt.Sprintf(" AND folder_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := dao.DB.QueryContext(ctx, query, args...)
	if err != nil {
		dao.Logger.WithError(err).WithField("org_id", orgID).Error("Failed to list documents")
		return nil, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			dao.Logger.WithError(err).Error("Failed to scan document row")
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err = rows.Err(); err != nil {
		dao.Logger.WithError(err).Error("Row iteration error")
		return nil, err
	}

	return docs, nil
}

// GetVersionHistory returns a document's full version chain, descending by
// version number. Point-in-time snapshot, recomputed on each call.
func (dao *DocumentDao) GetVersionHistory(ctx context.Context, documentID int64) ([]models.DocumentVersion, error) {
	query := `
		SELECT id, document_id, version_number, storage_key, file_size, uploaded_by, change_note, upload_status, created_at
		FROM portal.document_versions
		WHERE document_id = $1
		ORDER BY version_number DESC
	`

	rows, err := dao.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		dao.Logger.WithError(err).WithField("document_id", documentID).Error("Failed to get version history")
		return nil, err
	}
	defer rows.Close()

	var versions []models.DocumentVersion
	for rows.Next() {
		var v models.DocumentVersion
		err := rows.Scan(
			&v.ID,
			&v.DocumentID,
			&v.VersionNumber,
			&v.StorageKey,
			&v.FileSize,
			&v.UploadedBy,
			&v.ChangeNote,
			&v.UploadStatus,
			&v.CreatedAt,
		)
		if err != nil {
			dao.Logger.WithError(err).Error("Failed to scan version row")
			return nil, err
		}
		versions = append(versions, v)
	}

	if err = rows.Err(); err != nil {
		dao.Logger.WithError(err).Error("Row iteration error")
		return nil, err
	}

	return versions, nil
}

// GetVersion retrieves a single document version by id
func (dao *DocumentDao) GetVersion(ctx context.Context, versionID int64) (*models.DocumentVersion, error) {
	query := `
		SELECT id, document_id, version_number, storage_key, file_size, uploaded_by, change_note, upload_status, created_at
		FROM portal.document_versions
		WHERE id = $1
	`

	var v models.DocumentVersion
	err := dao.DB.QueryRowContext(ctx, query, versionID).Scan(
		&v.ID,
		&v.DocumentID,
		&v.VersionNumber,
		&v.StorageKey,
		&v.FileSize,
		&v.UploadedBy,
		&v.ChangeNote,
		&v.UploadStatus,
		&v.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("version not found")
		}
		dao.Logger.WithError(err).WithField("version_id", versionID).Error("Failed to get document version")
		return nil, err
	}

	return &v, nil
}

// ReviewDocument approves or rejects a document pending review
func (dao *DocumentDao) ReviewDocument(ctx context.Context, documentID int64, status string, reviewerID int64, note string) (*models.Document, error) {
	if status != models.DocumentStatusApproved && status != models.DocumentStatusRejected {
		return nil, fmt.Errorf("invalid review status: %s", status)
	}

	var reviewNote sql.NullString
	if note != "" {
		reviewNote = sql.NullString{String: note, Valid: true}
	}

	query := `
		UPDATE portal.documents
		SET status = $1, reviewed_by = $2, review_note = $3, reviewed_at = $4, updated_at = $4
		WHERE id = $5 AND is_deleted = false AND status = $6
		RETURNING ` + documentColumns

	now := time.Now()
	doc, err := scanDocument(dao.DB.QueryRowContext(ctx, query, status, reviewerID, reviewNote, now, documentID, models.DocumentStatusPendingReview))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("document not found or not pending review")
		}
		dao.Logger.WithError(err).WithField("document_id", documentID).Error("Failed to review document")
		return nil, err
	}

	dao.Logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"status":      status,
		"reviewer_id": reviewerID,
	}).Info("Document reviewed")

	return doc, nil
}

// SoftDeleteDocument marks a document as deleted. The version chain is kept.
func (dao *DocumentDao) SoftDeleteDocument(ctx context.Context, documentID, userID int64) error {
	query := `
		UPDATE portal.documents
		SET is_deleted = true, updated_at = $2
		WHERE id = $1 AND is_deleted = false
	`

	result, err := dao.DB.ExecContext(ctx, query, documentID, time.Now())
	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"document_id": documentID,
			"user_id":     userID,
		}).Error("Failed to soft delete document")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("document not found or already deleted")
	}

	dao.Logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"user_id":     userID,
	}).Info("Document soft deleted")

	return nil
}
