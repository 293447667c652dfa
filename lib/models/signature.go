package models

import (
	"database/sql"
	"time"
)

// SignatureRequest asks a client user to sign a stored document
type SignatureRequest struct {
	ID            int64          `json:"id"`
	OrgID         int64          `json:"org_id"`
	DocumentID    int64          `json:"document_id"`
	SignerID      int64          `json:"signer_id"`
	RequestedBy   int64          `json:"requested_by"`
	Status        string         `json:"status"` // 'pending', 'signed', 'declined'
	SignedAt      *time.Time     `json:"signed_at,omitempty"`
	DeclineReason sql.NullString `json:"decline_reason,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Signature request status constants
const (
	SignatureStatusPending  = "pending"
	SignatureStatusSigned   = "signed"
	SignatureStatusDeclined = "declined"
)

// CreateSignatureRequestPayload represents the request payload for requesting a signature
type CreateSignatureRequestPayload struct {
	DocumentID int64 `json:"document_id" binding:"required"`
	SignerID   int64 `json:"signer_id" binding:"required"`
}

// DeclineSignatureRequestPayload carries an optional reason for declining
type DeclineSignatureRequestPayload struct {
	Reason string `json:"reason,omitempty"`
}

// SignatureRequestListResponse represents the response for listing signature requests
type SignatureRequestListResponse struct {
	Requests []SignatureRequest `json:"requests"`
	Total    int                `json:"total"`
}
