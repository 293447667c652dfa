package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// DocumentRequestRepository defines the interface for staff document asks
type DocumentRequestRepository interface {
	CreateDocumentRequest(ctx context.Context, req *models.DocumentRequest) (*models.DocumentRequest, error)
	GetDocumentRequest(ctx context.Context, requestID int64) (*models.DocumentRequest, error)
	GetDocumentRequestsByOrg(ctx context.Context, orgID int64) ([]models.DocumentRequest, error)
	FulfillDocumentRequest(ctx context.Context, requestID, documentID int64) error
	CancelDocumentRequest(ctx context.Context, requestID int64) error
}

// DocumentRequestDao implements the DocumentRequestRepository interface for PostgreSQL
type DocumentRequestDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

const documentRequestColumns = `id, org_id, title, note, requested_by, status, fulfilled_by_document_id, created_at, updated_at`

func scanDocumentRequest(row interface{ Scan(...interface{}) error }) (*models.DocumentRequest, error) {
	var req models.DocumentRequest
	err := row.Scan(
		&req.ID,
		&req.OrgID,
		&req.Title,
		&req.Note,
		&req.RequestedBy,
		&req.Status,
		&req.FulfilledByDocumentID,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateDocumentRequest records a staff ask for a client document
func (dao *DocumentRequestDao) CreateDocumentRequest(ctx context.Context, req *models.DocumentRequest) (*models.DocumentRequest, error) {
	query := `
		INSERT INTO portal.document_requests (org_id, title, note, requested_by, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at
	`

	err := dao.DB.QueryRowContext(ctx, query,
		req.OrgID,
		req.Title,
		req.Note,
		req.RequestedBy,
		models.DocumentRequestOpen,
		time.Now(),
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)

	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"org_id": req.OrgID,
			"title":  req.Title,
		}).Error("Failed to create document request")
		return nil, err
	}

	req.Status = models.DocumentRequestOpen

	dao.Logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"org_id":     req.OrgID,
	}).Info("Document request created")

	return req, nil
}

// GetDocumentRequest retrieves a document request by id
func (dao *DocumentRequestDao) GetDocumentRequest(ctx context.Context, requestID int64) (*models.DocumentRequest, error) {
	query := `SELECT ` + documentRequestColumns + ` FROM portal.document_requests WHERE id = $1`

	req, err := scanDocumentRequest(dao.DB.QueryRowContext(ctx, query, requestID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("document request not found")
		}
		dao.Logger.WithError(err).WithField("request_id", requestID).Error("Failed to get document request")
		return nil, err
	}
	return req, nil
}

// GetDocumentRequestsByOrg lists an organization's document requests, newest first
func (dao *DocumentRequestDao) GetDocumentRequestsByOrg(ctx context.Context, orgID int64) ([]models.DocumentRequest, error) {
	query := `SELECT ` + documentRequestColumns + ` FROM portal.document_requests WHERE org_id = $1 ORDER BY created_at DESC`

	rows, err := dao.DB.QueryContext(ctx, query, orgID)
	if err != nil {
		dao.Logger.WithError(err).WithField("org_id", orgID).Error("Failed to list document requests")
		return nil, err
	}
	defer rows.Close()

	var requests []models.DocumentRequest
	for rows.Next() {
		req, err := scanDocumentRequest(rows)
		if err != nil {
			dao.Logger.WithError(err).Error("Failed to scan document request row")
			return nil, err
		}
		requests = append(requests, *req)
	}

	if err = rows.Err(); err != nil {
		dao.Logger.WithError(err).Error("Row iteration error")
		return nil, err
	}

	return requests, nil
}

// FulfillDocumentRequest links an open request to the uploaded document
func (dao *DocumentRequestDao) FulfillDocumentRequest(ctx context.Context, requestID, documentID int64) error {
	query := `
		UPDATE portal.document_requests
		SET status = $1, fulfilled_by_document_id = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := dao.DB.ExecContext(ctx, query,
		models.DocumentRequestFulfilled, documentID, time.Now(), requestID, models.DocumentRequestOpen)
	if err != nil {
		dao.Logger.WithError(err).WithField("request_id", requestID).Error("Failed to fulfill document request")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("document request not found or not open")
	}

	return nil
}

// CancelDocumentRequest cancels an open request
func (dao *DocumentRequestDao) CancelDocumentRequest(ctx context.Context, requestID int64) error {
	query := `
		UPDATE portal.document_requests
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := dao.DB.ExecContext(ctx, query,
		models.DocumentRequestCancelled, time.Now(), requestID, models.DocumentRequestOpen)
	if err != nil {
		dao.Logger.WithError(err).WithField("request_id", requestID).Error("Failed to cancel document request")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("document request not found or not open")
	}

	return nil
}
