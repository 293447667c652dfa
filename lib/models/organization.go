package models

import (
	"database/sql"
	"time"
)

// Organization represents a client company whose users and documents are scoped together
type Organization struct {
	OrgID              int64          `json:"org_id"`
	Name               string         `json:"name"`
	ContactEmail       string         `json:"contact_email"`
	RegistrationNumber sql.NullString `json:"registration_number,omitempty"`
	Status             string         `json:"status"` // 'active', 'inactive'
	CreatedAt          time.Time      `json:"created_at"`
	CreatedBy          int64          `json:"created_by"`
	UpdatedAt          time.Time      `json:"updated_at"`
	UpdatedBy          int64          `json:"updated_by"`
}

// Organization status constants
const (
	OrgStatusActive   = "active"
	OrgStatusInactive = "inactive"
)

// CreateOrganizationRequest represents the request payload for creating an organization
type CreateOrganizationRequest struct {
	Name               string `json:"name" binding:"required,min=2,max=150"`
	ContactEmail       string `json:"contact_email" binding:"required,email"`
	RegistrationNumber string `json:"registration_number,omitempty"`
}

// UpdateOrganizationRequest represents the request payload for updating an organization
type UpdateOrganizationRequest struct {
	Name               string `json:"name,omitempty" binding:"omitempty,min=2,max=150"`
	ContactEmail       string `json:"contact_email,omitempty" binding:"omitempty,email"`
	RegistrationNumber string `json:"registration_number,omitempty"`
	Status             string `json:"status,omitempty" binding:"omitempty,oneof=active inactive"`
}

// OrganizationListResponse represents the response for listing organizations
type OrganizationListResponse struct {
	Organizations []Organization `json:"organizations"`
	Total         int            `json:"total"`
}
