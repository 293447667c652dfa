package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// AnnouncementRepository defines the interface for announcement operations
type AnnouncementRepository interface {
	CreateAnnouncement(ctx context.Context, a *models.Announcement) (*models.Announcement, error)
	GetAnnouncement(ctx context.Context, announcementID int64) (*models.Announcement, error)
	GetPublishedAnnouncements(ctx context.Context, now time.Time) ([]models.Announcement, error)
	GetAllAnnouncements(ctx context.Context) ([]models.Announcement, error)
	UpdateAnnouncement(ctx context.Context, a *models.Announcement) (*models.Announcement, error)
	GetDueScheduledAnnouncements(ctx context.Context, now time.Time) ([]models.Announcement, error)
	MarkPublished(ctx context.Context, announcementID int64, publishedAt time.Time) (bool, error)
}

// AnnouncementDao implements the AnnouncementRepository interface for PostgreSQL
type AnnouncementDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

const announcementColumns = `id, title, content, announcement_type, is_pinned, scheduled_for, published_at, expires_at, created_by, created_at, updated_at`

func scanAnnouncement(row interface{ Scan(...interface{}) error }) (*models.Announcement, error) {
	var a models.Announcement
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Content,
		&a.Type,
		&a.IsPinned,
		&a.ScheduledFor,
		&a.PublishedAt,
		&a.ExpiresAt,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAnnouncement inserts a new announcement. It stays unpublished until
// published manually or picked up by the hourly publish job.
func (dao *AnnouncementDao) CreateAnnouncement(ctx context.Context, a *models.Announcement) (*models.Announcement, error) {
	query := `
		INSERT INTO portal.announcements (title, content, announcement_type, is_pinned, scheduled_for, expires_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id, created_at, updated_at
	`

	if a.Type == "" {
		a.Type = models.AnnouncementTypeGeneral
	}

	err := dao.DB.QueryRowContext(ctx, query,
		a.Title,
		a.Content,
		a.Type,
		a.IsPinned,
		a.ScheduledFor,
		a.ExpiresAt,
		a.CreatedBy,
		time.Now(),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		dao.Logger.WithError(err).WithField("title", a.Title).Error("Failed to create announcement")
		return nil, err
	}

	dao.Logger.WithFields(logrus.Fields{
		"announcement_id": a.ID,
		"title":           a.Title,
	}).Info("Announcement created")

	return a, nil
}

// GetAnnouncement retrieves an announcement by id
func (dao *AnnouncementDao) GetAnnouncement(ctx context.Context, announcementID int64) (*models.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM portal.announcements WHERE id = $1`

	a, err := scanAnnouncement(dao.DB.QueryRowContext(ctx, query, announcementID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("announcement not found")
		}
		dao.Logger.WithError(err).WithField("announcement_id", announcementID).Error("Failed to get announcement")
		return nil, err
	}
	return a, nil
}

func (dao *AnnouncementDao) queryAnnouncements(ctx context.Context, query string, args ...interface{}) ([]models.Announcement, error) {
	rows, err := dao.DB.QueryContext(ctx, query, args...)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to query announcements")
		return nil, err
	}
	defer rows.Close()

	var announcements []models.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			dao.Logger.WithError(err).Error("Failed to scan announcement row")
			return nil, err
		}
		announcements = append(announcements, *a)
	}

	if err = rows.Err(); err != nil {
		dao.Logger.WithError(err).Error("Row iteration error")
		return nil, err
	}

	return announcements, nil
}

// GetPublishedAnnouncements lists announcements visible to clients: published
// and not expired, pinned first, then newest
func (dao *AnnouncementDao) GetPublishedAnnouncements(ctx context.Context, now time.Time) ([]models.Announcement, error) {
	query := `SELECT ` + announcementColumns + `
		FROM portal.announcements
		WHERE published_at IS NOT NULL AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY is_pinned DESC, published_at DESC`

	return dao.queryAnnouncements(ctx, query, now)
}

// GetAllAnnouncements lists every announcement for the admin console
func (dao *AnnouncementDao) GetAllAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM portal.announcements ORDER BY created_at DESC`
	return dao.queryAnnouncements(ctx, query)
}

// UpdateAnnouncement updates an announcement's editable fields
func (dao *AnnouncementDao) UpdateAnnouncement(ctx context.Context, a *models.Announcement) (*models.Announcement, error) {
	query := `
		UPDATE portal.announcements
		SET title = $1, content = $2, announcement_type = $3, is_pinned = $4, scheduled_for = $5, expires_at = $6, updated_at = $7
		WHERE id = $8
		RETURNING ` + announcementColumns

	updated, err := scanAnnouncement(dao.DB.QueryRowContext(ctx, query,
		a.Title,
		a.Content,
		a.Type,
		a.IsPinned,
		a.ScheduledFor,
		a.ExpiresAt,
		time.Now(),
		a.ID,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("announcement not found")
		}
		dao.Logger.WithError(err).WithField("announcement_id", a.ID).Error("Failed to update announcement")
		return nil, err
	}

	return updated, nil
}

// GetDueScheduledAnnouncements lists unpublished announcements whose scheduled
// time has elapsed
func (dao *AnnouncementDao) GetDueScheduledAnnouncements(ctx context.Context, now time.Time) ([]models.Announcement, error) {
	query := `SELECT ` + announcementColumns + `
		FROM portal.announcements
		WHERE published_at IS NULL AND scheduled_for IS NOT NULL AND scheduled_for <= $1
		ORDER BY scheduled_for`

	return dao.queryAnnouncements(ctx, query, now)
}

// MarkPublished stamps published_at exactly once. The IS NULL guard makes the
// transition idempotent: a second job run sees zero rows affected and must not
// fan out notifications again.
func (dao *AnnouncementDao) MarkPublished(ctx context.Context, announcementID int64, publishedAt time.Time) (bool, error) {
	query := `
		UPDATE portal.announcements
		SET published_at = $1, updated_at = $1
		WHERE id = $2 AND published_at IS NULL
	`

	result, err := dao.DB.ExecContext(ctx, query, publishedAt, announcementID)
	if err != nil {
		dao.Logger.WithError(err).WithField("announcement_id", announcementID).Error("Failed to mark announcement published")
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}
