package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// NotificationRepository defines the interface for in-app notifications
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error)
	GetNotificationsByRecipient(ctx context.Context, recipientID int64, unreadOnly bool) ([]models.Notification, error)
	GetUnreadCount(ctx context.Context, recipientID int64) (int, error)
	MarkRead(ctx context.Context, notificationID, recipientID int64) error
	MarkAllRead(ctx context.Context, recipientID int64) (int64, error)
}

// NotificationDao implements the NotificationRepository interface for PostgreSQL
type NotificationDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

// CreateNotification inserts an in-app notification for one recipient
func (dao *NotificationDao) CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	query := `
		INSERT INTO portal.notifications (recipient_id, notification_type, title, message, link, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)
		RETURNING id, created_at
	`

	err := dao.DB.QueryRowContext(ctx, query,
		n.RecipientID,
		n.Type,
		n.Title,
		n.Message,
		n.Link,
		time.Now(),
	).Scan(&n.ID, &n.CreatedAt)

	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"recipient_id": n.RecipientID,
			"type":         n.Type,
		}).Error("Failed to create notification")
		return nil, err
	}

	return n, nil
}

// GetNotificationsByRecipient lists a user's notifications, newest first
func (dao *NotificationDao) GetNotificationsByRecipient(ctx context.Context, recipientID int64, unreadOnly bool) ([]models.Notification, error) {
	query := `
		SELECT id, recipient_id, notification_type, title, message, link, is_read, created_at
		FROM portal.notifications
		WHERE recipient_id = $1
	`
	if unreadOnly {
		query += " AND is_read = false"
	}
	query += " ORDER BY created_at DESC LIMIT 100"

	rows, err := dao.DB.QueryContext(ctx, query, recipientID)
	if err != nil {
		dao.Logger.WithError(err).WithField("recipient_id", recipientID).Error("Failed to list notifications")
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.Link,
			&n.IsRead,
			&n.CreatedAt,
		)
		if err != nil {
			dao.Logger.WithError(err).Error("Failed to scan notification row")
			return nil, err
		}
		notifications = append(notifications, n)
	}

	if err = rows.Err(); err != nil {
		dao.Logger.WithError(err).Error("Row iteration error")
		return nil, err
	}

	return notifications, nil
}

// GetUnreadCount counts a user's unread notifications
func (dao *NotificationDao) GetUnreadCount(ctx context.Context, recipientID int64) (int, error) {
	var count int
	err := dao.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM portal.notifications WHERE recipient_id = $1 AND is_read = false`,
		recipientID,
	).Scan(&count)
	if err != nil {
		dao.Logger.WithError(err).WithField("recipient_id", recipientID).Error("Failed to count unread notifications")
		return 0, err
	}
	return count, nil
}

// MarkRead flips a notification from unread to read. The flag only moves in
// one direction.
func (dao *NotificationDao) MarkRead(ctx context.Context, notificationID, recipientID int64) error {
	query := `
		UPDATE portal.notifications
		SET is_read = true
		WHERE id = $1 AND recipient_id = $2 AND is_read = false
	`

	result, err := dao.DB.ExecContext(ctx, query, notificationID, recipientID)
	if err != nil {
		dao.Logger.WithError(err).WithField("notification_id", notificationID).Error("Failed to mark notification read")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("notification not found or already read")
	}

	return nil
}

// MarkAllRead marks every unread notification for the recipient as read and
// returns how many were flipped
func (dao *NotificationDao) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	result, err := dao.DB.ExecContext(ctx,
		`UPDATE portal.notifications SET is_read = true WHERE recipient_id = $1 AND is_read = false`,
		recipientID,
	)
	if err != nil {
		dao.Logger.WithError(err).WithField("recipient_id", recipientID).Error("Failed to mark all notifications read")
		return 0, err
	}

	return result.RowsAffected()
}
