package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// TaskTemplateRepository defines the interface for recurring task templates
type TaskTemplateRepository interface {
	CreateTemplate(ctx context.Context, template *models.TaskTemplate) (*models.TaskTemplate, error)
	GetTemplate(ctx context.Context, templateID int64) (*models.TaskTemplate, error)
	GetTemplatesByOrg(ctx context.Context, orgID int64) ([]models.TaskTemplate, error)
	GetDueTemplates(ctx context.Context, now time.Time) ([]models.TaskTemplate, error)
	AdvanceTemplate(ctx context.Context, templateID int64, previousOccurrence, nextOccurrence time.Time) (bool, error)
	DeactivateTemplate(ctx context.Context, templateID int64) error
}

// TaskTemplateDao implements the TaskTemplateRepository interface for PostgreSQL
type TaskTemplateDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

const templateColumns = `id, org_id, assignee_id, title, description, priority, recurrence,
	next_occurrence_at, due_offset_days, is_active, created_by, created_at, updated_at`

func scanTemplate(row interface{ Scan(...interface{}) error }) (*models.TaskTemplate, error) {
	var t models.TaskTemplate
	err := row.Scan(
		&t.ID,
		&t.OrgID,
		&t.AssigneeID,
		&t.Title,
		&t.Description,
		&t.Priority,
		&t.Recurrence,
		&t.NextOccurrenceAt,
		&t.DueOffsetDays,
		&t.IsActive,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTemplate inserts a new recurring task template
func (dao *TaskTemplateDao) CreateTemplate(ctx context.Context, template *models.TaskTemplate) (*models.TaskTemplate, error) {
	query := `
		INSERT INTO portal.task_templates (org_id, assignee_id, title, description, priority, recurrence,
			next_occurrence_at, due_offset_days, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, $9, $10, $10)
		RETURNING id, created_at, updated_at
	`

	if template.Priority == "" {
		template.Priority = models.TaskPriorityMedium
	}

	err := dao.DB.QueryRowContext(ctx, query,
		template.OrgID,
		template.AssigneeID,
		template.Title,
		template.Description,
		template.Priority,
		template.Recurrence,
		template.NextOccurrenceAt,
		template.DueOffsetDays,
		template.CreatedBy,
		time.Now(),
	).Scan(&template.ID, &template.CreatedAt, &template.UpdatedAt)

	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"org_id":     template.OrgID,
			"recurrence": template.Recurrence,
			"title":      template.Title,
		}).Error("Failed to create task template")
		return nil, err
	}

	template.IsActive = true

	dao.Logger.WithFields(logrus.Fields{
		"template_id": template.ID,
		"recurrence":  template.Recurrence,
	}).Info("Task template created")

	return template, nil
}

// GetTemplate retrieves a template by id
func (dao *TaskTemplateDao) GetTemplate(ctx context.Context, templateID int64) (*models.TaskTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM portal.task_templates WHERE id = $1`

	template, err := scanTemplate(dao.DB.QueryRowContext(ctx, query, templateID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task template not found")
		}
		dao.Logger.WithError(err).WithField("template_id", templateID).Error("Failed to get task template")
		return nil, err
	}
	return template, nil
}

func (dao *TaskTemplateDao) queryTemplates(ctx context.Context, query string, args ...interface{}) ([]models.TaskTemplate, error) {
	rows, err := dao.DB.QueryContext(ctx, query, args...)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to query task templates")
		return nil, err
	}
	defer rows.Close()

	var templates []models.TaskTemplate
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			dao.Logger.WithError(err).Error("Failed to scan task template row")
			return nil, err
		}
		templates = append(templates, *template)
	}

	if err = rows.Err(); err != nil {
		dao.Logger.WithError(err).Error("Row iteration error")
		return nil, err
	}

	return templates, nil
}

// GetTemplatesByOrg lists an organization's templates
func (dao *TaskTemplateDao) GetTemplatesByOrg(ctx context.Context, orgID int64) ([]models.TaskTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM portal.task_templates WHERE org_id = $1 ORDER BY created_at`
	return dao.queryTemplates(ctx, query, orgID)
}

// GetDueTemplates lists active templates whose next occurrence has elapsed
func (dao *TaskTemplateDao) GetDueTemplates(ctx context.Context, now time.Time) ([]models.TaskTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM portal.task_templates WHERE is_active = true AND next_occurrence_at <= $1 ORDER BY next_occurrence_at`
	return dao.queryTemplates(ctx, query, now)
}

// AdvanceTemplate moves next_occurrence_at forward, but only if the stored
// boundary still matches the one this job run observed. A false return means
// another run already generated the instance for this boundary.
func (dao *TaskTemplateDao) AdvanceTemplate(ctx context.Context, templateID int64, previousOccurrence, nextOccurrence time.Time) (bool, error) {
	query := `
		UPDATE portal.task_templates
		SET next_occurrence_at = $1, updated_at = $2
		WHERE id = $3 AND next_occurrence_at = $4 AND is_active = true
	`

	result, err := dao.DB.ExecContext(ctx, query, nextOccurrence, time.Now(), templateID, previousOccurrence)
	if err != nil {
		dao.Logger.WithError(err).WithField("template_id", templateID).Error("Failed to advance task template")
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// DeactivateTemplate stops future generation without deleting history
func (dao *TaskTemplateDao) DeactivateTemplate(ctx context.Context, templateID int64) error {
	query := `UPDATE portal.task_templates SET is_active = false, updated_at = $1 WHERE id = $2 AND is_active = true`

	result, err := dao.DB.ExecContext(ctx, query, time.Now(), templateID)
	if err != nil {
		dao.Logger.WithError(err).WithField("template_id", templateID).Error("Failed to deactivate task template")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task template not found or already inactive")
	}

	return nil
}
