package data

import (
	"context"
	"database/sql"
	"time"

	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// ActivityRepository defines the interface for the append-only activity log
type ActivityRepository interface {
	RecordActivity(ctx context.Context, entry *models.ActivityEntry) error
	GetActivityByOrg(ctx context.Context, orgID int64, limit int) ([]models.ActivityEntry, error)
}

// ActivityDao implements the ActivityRepository interface for PostgreSQL
type ActivityDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

// RecordActivity appends one activity entry. Failures are logged but callers
// treat the log as best-effort alongside the primary mutation.
func (dao *ActivityDao) RecordActivity(ctx context.Context, entry *models.ActivityEntry) error {
	query := `
		INSERT INTO portal.activity_log (org_id, actor_id, action, entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := dao.DB.QueryRowContext(ctx, query,
		entry.OrgID,
		entry.ActorID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.Detail,
		time.Now(),
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"org_id": entry.OrgID,
			"action": entry.Action,
		}).Error("Failed to record activity")
		return err
	}

	return nil
}

// GetActivityByOrg lists an organization's recent activity, newest first
func (dao *ActivityDao) GetActivityByOrg(ctx context.Context, orgID int64, limit int) ([]models.ActivityEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, org_id, actor_id, action, entity_type, entity_id, detail, created_at
		FROM portal.activity_log
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := dao.DB.QueryContext(ctx, query, orgID, limit)
	if err != nil {
		dao.Logger.WithError(err).WithField("org_id", orgID).Error("Failed to list activity")
		return nil, err
	}
	defer rows.Close()

	var entries []models.ActivityEntry
	for rows.Next() {
		var entry models.ActivityEntry
		err := rows.Scan(
			&entry.ID,
			&entry.OrgID,
			&entry.ActorID,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&entry.Detail,
			&entry.CreatedAt,
		)
		if err != nil {
			dao.Logger.WithError(err).Error("Failed to scan activity row")
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		dao.Logger.WithError(err).Error("Row iteration error")
		return nil, err
	}

	return entries, nil
}
