package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// SignatureRepository defines the interface for signature request operations
type SignatureRepository interface {
	CreateSignatureRequest(ctx context.Context, req *models.SignatureRequest) (*models.SignatureRequest, error)
	GetSignatureRequest(ctx context.Context, requestID int64) (*models.SignatureRequest, error)
	GetSignatureRequestsBySigner(ctx context.Context, signerID int64) ([]models.SignatureRequest, error)
	GetSignatureRequestsByOrg(ctx context.Context, orgID int64) ([]models.SignatureRequest, error)
	SignRequest(ctx context.Context, requestID, signerID int64, signedAt time.Time) (*models.SignatureRequest, error)
	DeclineRequest(ctx context.Context, requestID, signerID int64, reason string) (*models.SignatureRequest, error)
}

// SignatureDao implements the SignatureRepository interface for PostgreSQL
type SignatureDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

const signatureColumns = `id, org_id, document_id, signer_id, requested_by, status, signed_at, decline_reason, created_at, updated_at`

func scanSignatureRequest(row interface{ Scan(...interface{}) error }) (*models.SignatureRequest, error) {
	var req models.SignatureRequest
	err := row.Scan(
		&req.ID,
		&req.OrgID,
		&req.DocumentID,
		&req.SignerID,
		&req.RequestedBy,
		&req.Status,
		&req.SignedAt,
		&req.DeclineReason,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateSignatureRequest records a new pending signature request
func (dao *SignatureDao) CreateSignatureRequest(ctx context.Context, req *models.SignatureRequest) (*models.SignatureRequest, error) {
	query := `
		INSERT INTO portal.signature_requests (org_id, document_id, signer_id, requested_by, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at
	`

	err := dao.DB.QueryRowContext(ctx, query,
		req.OrgID,
		req.DocumentID,
		req.SignerID,
		req.RequestedBy,
		models.SignatureStatusPending,
		time.Now(),
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)

	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"document_id": req.DocumentID,
			"signer_id":   req.SignerID,
		}).Error("Failed to create signature request")
		return nil, err
	}

	req.Status = models.SignatureStatusPending

	dao.Logger.WithFields(logrus.Fields{
		"request_id":  req.ID,
		"document_id": req.DocumentID,
		"signer_id":   req.SignerID,
	}).Info("Signature request created")

	return req, nil
}

// GetSignatureRequest retrieves a signature request by id
func (dao *SignatureDao) GetSignatureRequest(ctx context.Context, requestID int64) (*models.SignatureRequest, error) {
	query := `SELECT ` + signatureColumns + ` FROM portal.signature_requests WHERE id = $1`

	req, err := scanSignatureRequest(dao.DB.QueryRowContext(ctx, query, requestID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("signature request not found")
		}
		dao.Logger.WithError(err).WithField("request_id", requestID).Error("Failed to get signature request")
		return nil, err
	}
	return req, nil
}

func (dao *SignatureDao) queryRequests(ctx context.Context, query string, args ...interface{}) ([]models.SignatureRequest, error) {
	rows, err := dao.DB.QueryContext(ctx, query, args...)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to query signature requests")
		return nil, err
	}
	defer rows.Close()

	var requests []models.SignatureRequest
	for rows.Next() {
		req, err := scanSignatureRequest(rows)
		if err != nil {
			dao.Logger.WithError(err).Error("Failed to scan signature request row")
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

// GetSignatureRequestsBySigner lists requests awaiting or completed by a signer
func (dao *SignatureDao) GetSignatureRequestsBySigner(ctx context.Context, signerID int64) ([]models.SignatureRequest, error) {
	query := `SELECT ` + signatureColumns + ` FROM portal.signature_requests WHERE signer_id = $1 ORDER BY created_at DESC`
	return dao.queryRequests(ctx, query, signerID)
}

// GetSignatureRequestsByOrg lists an organization's signature requests
func (dao *SignatureDao) GetSignatureRequestsByOrg(ctx context.Context, orgID int64) ([]models.SignatureRequest, error) {
	query := `SELECT ` + signatureColumns + ` FROM portal.signature_requests WHERE org_id = $1 ORDER BY created_at DESC`
	return dao.queryRequests(ctx, query, orgID)
}

// SignRequest marks a pending request signed. Only the designated signer may
// sign, and only while the request is still pending.
func (dao *SignatureDao) SignRequest(ctx context.Context, requestID, signerID int64, signedAt time.Time) (*models.SignatureRequest, error) {
	query := `
		UPDATE portal.signature_requests
		SET status = $1, signed_at = $2, updated_at = $2
		WHERE id = $3 AND signer_id = $4 AND status = $5
		RETURNING ` + signatureColumns

	req, err := scanSignatureRequest(dao.DB.QueryRowContext(ctx, query,
		models.SignatureStatusSigned, signedAt, requestID, signerID, models.SignatureStatusPending))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("signature request not found, not pending, or not assigned to signer")
		}
		dao.Logger.WithError(err).WithField("request_id", requestID).Error("Failed to sign request")
		return nil, err
	}

	dao.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"signer_id":  signerID,
	}).Info("Signature request signed")

	return req, nil
}

// DeclineRequest marks a pending request declined with an optional reason
func (dao *SignatureDao) DeclineRequest(ctx context.Context, requestID, signerID int64, reason string) (*models.SignatureRequest, error) {
	var declineReason sql.NullString
	if reason != "" {
		declineReason = sql.NullString{String: reason, Valid: true}
	}

	query := `
		UPDATE portal.signature_requests
		SET status = $1, decline_reason = $2, updated_at = $3
		WHERE id = $4 AND signer_id = $5 AND status = $6
		RETURNING ` + signatureColumns

	req, err := scanSignatureRequest(dao.DB.QueryRowContext(ctx, query,
		models.SignatureStatusDeclined, declineReason, time.Now(), requestID, signerID, models.SignatureStatusPending))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("signature request not found, not pending, or not assigned to signer")
		}
		dao.Logger.WithError(err).WithField("request_id", requestID).Error("Failed to decline request")
		return nil, err
	}

	return req, nil
}
