package data

import (
	"context"
	"database/sql"
	"time"

	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// PreferenceRepository defines the interface for email preference lookups.
// GetPreferences returns (nil, nil) when the user has never saved preferences;
// the gate treats that as default-on for every category.
type PreferenceRepository interface {
	GetPreferences(ctx context.Context, userID int64) (*models.EmailPreferences, error)
	UpsertPreferences(ctx context.Context, prefs *models.EmailPreferences) (*models.EmailPreferences, error)
}

// PreferenceDao implements the PreferenceRepository interface for PostgreSQL
type PreferenceDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

// GetPreferences retrieves a user's email preference row, or nil if none exists
func (dao *PreferenceDao) GetPreferences(ctx context.Context, userID int64) (*models.EmailPreferences, error) {
	query := `
		SELECT user_id, document_requests, task_assignments, task_comments, invoices, signatures, announcements, updated_at
		FROM portal.email_preferences
		WHERE user_id = $1
	`

	var prefs models.EmailPreferences
	err := dao.DB.QueryRowContext(ctx, query, userID).Scan(
		&prefs.UserID,
		&prefs.DocumentRequests,
		&prefs.TaskAssignments,
		&prefs.TaskComments,
		&prefs.Invoices,
		&prefs.Signatures,
		&prefs.Announcements,
		&prefs.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		dao.Logger.WithError(err).WithField("user_id", userID).Error("Failed to get email preferences")
		return nil, err
	}

	return &prefs, nil
}

// UpsertPreferences writes the full preference row, creating it lazily on the
// user's first preference change
func (dao *PreferenceDao) UpsertPreferences(ctx context.Context, prefs *models.EmailPreferences) (*models.EmailPreferences, error) {
	query := `
		INSERT INTO portal.email_preferences (user_id, document_requests, task_assignments, task_comments, invoices, signatures, announcements, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			document_requests = EXCLUDED.document_requests,
			task_assignments = EXCLUDED.task_assignments,
			task_comments = EXCLUDED.task_comments,
			invoices = EXCLUDED.invoices,
			signatures = EXCLUDED.signatures,
			announcements = EXCLUDED.announcements,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`

	prefs.UpdatedAt = time.Now()
	err := dao.DB.QueryRowContext(ctx, query,
		prefs.UserID,
		prefs.DocumentRequests,
		prefs.TaskAssignments,
		prefs.TaskComments,
		prefs.Invoices,
		prefs.Signatures,
		prefs.Announcements,
		prefs.UpdatedAt,
	).Scan(&prefs.UpdatedAt)

	if err != nil {
		dao.Logger.WithError(err).WithField("user_id", prefs.UserID).Error("Failed to upsert email preferences")
		return nil, err
	}

	dao.Logger.WithFields(logrus.Fields{
		"user_id": prefs.UserID,
	}).Info("Email preferences updated")

	return prefs, nil
}
