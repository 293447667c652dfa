package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// OrgRepository defines the interface for organization data operations
type OrgRepository interface {
	CreateOrganization(ctx context.Context, org *models.Organization) (*models.Organization, error)
	GetOrganization(ctx context.Context, orgID int64) (*models.Organization, error)
	GetOrganizations(ctx context.Context) ([]models.Organization, error)
	UpdateOrganization(ctx context.Context, org *models.Organization) (*models.Organization, error)
}

// OrgDao implements the OrgRepository interface for PostgreSQL
type OrgDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

// CreateOrganization inserts a new client organization
func (dao *OrgDao) CreateOrganization(ctx context.Context, org *models.Organization) (*models.Organization, error) {
	query := `
		INSERT INTO portal.organizations (name, contact_email, registration_number, status, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6, $6)
		RETURNING id, created_at, updated_at
	`

	now := time.Now()
	err := dao.DB.QueryRowContext(ctx, query,
		org.Name,
		org.ContactEmail,
		org.RegistrationNumber,
		models.OrgStatusActive,
		org.CreatedBy,
		now,
	).Scan(&org.OrgID, &org.CreatedAt, &org.UpdatedAt)

	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"operation": "CreateOrganization",
			"name":      org.Name,
		}).Error("Failed to create organization")
		return nil, err
	}

	org.Status = models.OrgStatusActive
	org.UpdatedBy = org.CreatedBy

	dao.Logger.WithFields(logrus.Fields{
		"org_id": org.OrgID,
		"name":   org.Name,
	}).Info("Organization created successfully")

	return org, nil
}

// GetOrganization retrieves an organization by id
func (dao *OrgDao) GetOrganization(ctx context.Context, orgID int64) (*models.Organization, error) {
	query := `
		SELECT id, name, contact_email, registration_number, status, created_at, created_by, updated_at, updated_by
		FROM portal.organizations
		WHERE id = $1
	`

	var org models.Organization
	err := dao.DB.QueryRowContext(ctx, query, orgID).Scan(
		&org.OrgID,
		&org.Name,
		&org.ContactEmail,
		&org.RegistrationNumber,
		&org.Status,
		&org.CreatedAt,
		&org.CreatedBy,
		&org.UpdatedAt,
		&org.UpdatedBy,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("organization not found")
		}
		dao.Logger.WithError(err).WithField("org_id", orgID).Error("Failed to get organization")
		return nil, err
	}

	return &org, nil
}

// GetOrganizations lists all organizations, newest first
func (dao *OrgDao) GetOrganizations(ctx context.Context) ([]models.Organization, error) {
	query := `
		SELECT id, name, contact_email, registration_number, status, created_at, created_by, updated_at, updated_by
		FROM portal.organizations
		ORDER BY created_at DESC
	`

	rows, err := dao.DB.QueryContext(ctx, query)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to list organizations")
		return nil, err
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		var org models.Organization
		err := rows.Scan(
			&org.OrgID,
			&org.Name,
			&org.ContactEmail,
			&org.RegistrationNumber,
			&org.Status,
			&org.CreatedAt,
			&org.CreatedBy,
			&org.UpdatedAt,
			&org.UpdatedBy,
		)
		if err != nil {
			dao.Logger.WithError(err).Error("Failed to scan organization row")
			return nil, err
		}
		orgs = append(orgs, org)
	}

	if err = rows.Err(); err != nil {
		dao.Logger.WithError(err).Error("Row iteration error")
		return nil, err
	}

	return orgs, nil
}

// UpdateOrganization updates the mutable organization fields
func (dao *OrgDao) UpdateOrganization(ctx context.Context, org *models.Organization) (*models.Organization, error) {
	query := `
		UPDATE portal.organizations
		SET name = $1, contact_email = $2, registration_number = $3, status = $4, updated_by = $5, updated_at = $6
		WHERE id = $7
		RETURNING created_at, created_by, updated_at
	`

	err := dao.DB.QueryRowContext(ctx, query,
		org.Name,
		org.ContactEmail,
		org.RegistrationNumber,
		org.Status,
		org.UpdatedBy,
		time.Now(),
		org.OrgID,
	).Scan(&org.CreatedAt, &org.CreatedBy, &org.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("organization not found")
		}
		dao.Logger.WithError(err).WithField("org_id", org.OrgID).Error("Failed to update organization")
		return nil, err
	}

	dao.Logger.WithFields(logrus.Fields{
		"org_id": org.OrgID,
		"name":   org.Name,
	}).Info("Organization updated successfully")

	return org, nil
}
