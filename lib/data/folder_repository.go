package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// FolderRepository defines the interface for folder operations
type FolderRepository interface {
	CreateFolder(ctx context.Context, folder *models.Folder) (*models.Folder, error)
	GetFolder(ctx context.Context, folderID int64) (*models.Folder, error)
	GetFoldersByOrg(ctx context.Context, orgID int64) ([]models.Folder, error)
	DeleteFolder(ctx context.Context, folderID, orgID int64) error
}

// FolderDao implements the FolderRepository interface for PostgreSQL
type FolderDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

// CreateFolder inserts a new folder
func (dao *FolderDao) CreateFolder(ctx context.Context, folder *models.Folder) (*models.Folder, error) {
	query := `
		INSERT INTO portal.folders (org_id, name, parent_id, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, false, $4, $4)
		RETURNING id, created_at, updated_at
	`

	err := dao.DB.QueryRowContext(ctx, query,
		folder.OrgID,
		folder.Name,
		folder.ParentID,
		time.Now(),
	).Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)

	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"org_id": folder.OrgID,
			"name":   folder.Name,
		}).Error("Failed to create folder")
		return nil, err
	}

	return folder, nil
}

// GetFolder retrieves a folder by id
func (dao *FolderDao) GetFolder(ctx context.Context, folderID int64) (*models.Folder, error) {
	query := `
		SELECT id, org_id, name, parent_id, is_deleted, created_at, updated_at
		FROM portal.folders
		WHERE id = $1 AND is_deleted = false
	`

	var folder models.Folder
	err := dao.DB.QueryRowContext(ctx, query, folderID).Scan(
		&folder.ID,
		&folder.OrgID,
		&folder.Name,
		&folder.ParentID,
		&folder.IsDeleted,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("folder not found")
		}
		dao.Logger.WithError(err).WithField("folder_id", folderID).Error("Failed to get folder")
		return nil, err
	}

	return &folder, nil
}

// GetFoldersByOrg lists an organization's folders
func (dao *FolderDao) GetFoldersByOrg(ctx context.Context, orgID int64) ([]models.Folder, error) {
	query := `
		SELECT id, org_id, name, parent_id, is_deleted, created_at, updated_at
		FROM portal.folders
		WHERE org_id = $1 AND is_deleted = false
		ORDER BY name
	`

	rows, err := dao.DB.QueryContext(ctx, query, orgID)
	if err != nil {
		dao.Logger.WithError(err).WithField("org_id", orgID).Error("Failed to list folders")
		return nil, err
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		var folder models.Folder
		err := rows.Scan(
			&folder.ID,
			&folder.OrgID,
			&folder.Name,
			&folder.ParentID,
			&folder.IsDeleted,
			&folder.CreatedAt,
			&folder.UpdatedAt,
		)
		if err != nil {
			dao.Logger.WithError(err).Error("Failed to scan folder row")
			return nil, err
		}
		folders = append(folders, folder)
	}

	if err = rows.Err(); err != nil {
		dao.Logger.WithError(err).Error("Row iteration error")
		return nil, err
	}

	return folders, nil
}

// DeleteFolder soft deletes an empty folder. A folder that still contains
// undeleted documents or subfolders is rejected before any write happens.
func (dao *FolderDao) DeleteFolder(ctx context.Context, folderID, orgID int64) error {
	var docCount, subfolderCount int
	err := dao.DB.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM portal.documents WHERE folder_id = $1 AND is_deleted = false),
			(SELECT COUNT(*) FROM portal.folders WHERE parent_id = $1 AND is_deleted = false)
	`, folderID).Scan(&docCount, &subfolderCount)
	if err != nil {
		dao.Logger.WithError(err).WithField("folder_id", folderID).Error("Failed to check folder contents")
		return err
	}

	if docCount > 0 {
		return fmt.Errorf("folder contains %d document(s) and cannot be deleted", docCount)
	}
	if subfolderCount > 0 {
		return fmt.Errorf("folder contains %d subfolder(s) and cannot be deleted", subfolderCount)
	}

	result, err := dao.DB.ExecContext(ctx, `
		UPDATE portal.folders
		SET is_deleted = true, updated_at = $3
		WHERE id = $1 AND org_id = $2 AND is_deleted = false
	`, folderID, orgID, time.Now())
	if err != nil {
		dao.Logger.WithError(err).WithField("folder_id", folderID).Error("Failed to delete folder")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("folder not found")
	}

	dao.Logger.WithFields(logrus.Fields{
		"folder_id": folderID,
		"org_id":    orgID,
	}).Info("Folder deleted")

	return nil
}
