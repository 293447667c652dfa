package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// TaskRepository defines the interface for task and comment operations
type TaskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) (*models.Task, error)
	GetTask(ctx context.Context, taskID int64) (*models.Task, error)
	GetTasksByOrg(ctx context.Context, orgID int64, filters map[string]string) ([]models.Task, error)
	GetTasksByAssignee(ctx context.Context, assigneeID int64) ([]models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) (*models.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID int64, status string) (*models.Task, error)
	CreateComment(ctx context.Context, comment *models.TaskComment) (*models.TaskComment, error)
	GetComments(ctx context.Context, taskID int64) ([]models.TaskComment, error)
	EditComment(ctx context.Context, commentID, authorID int64, content string) (*models.TaskComment, error)
	GetTasksDueForReminder(ctx context.Context, now time.Time, lookahead time.Duration) ([]models.Task, error)
	MarkTaskReminded(ctx context.Context, taskID int64, remindedAt time.Time) error
}

// TaskDao implements the TaskRepository interface for PostgreSQL
type TaskDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

const taskColumns = `id, org_id, assignee_id, created_by, title, description, status, priority,
	due_date, completed_at, last_reminded_at, template_id, created_at, updated_at`

func scanTask(row interface{ Scan(...interface{}) error }) (*models.Task, error) {
	var task models.Task
	err := row.Scan(
		&task.ID,
		&task.OrgID,
		&task.AssigneeID,
		&task.CreatedBy,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.DueDate,
		&task.CompletedAt,
		&task.LastRemindedAt,
		&task.TemplateID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask inserts a new task
func (dao *TaskDao) CreateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	query := `
		INSERT INTO portal.tasks (org_id, assignee_id, created_by, title, description, status, priority, due_date, template_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id, created_at, updated_at
	`

	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}

	err := dao.DB.QueryRowContext(ctx, query,
		task.OrgID,
		task.AssigneeID,
		task.CreatedBy,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.TemplateID,
		time.Now(),
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"org_id":      task.OrgID,
			"assignee_id": task.AssigneeID,
			"title":       task.Title,
		}).Error("Failed to create task")
		return nil, err
	}

	dao.Logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"assignee_id": task.AssigneeID,
	}).Info("Task created successfully")

	return task, nil
}

// GetTask retrieves a task by id
func (dao *TaskDao) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM portal.tasks WHERE id = $1`

	task, err := scanTask(dao.DB.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task not found")
		}
		dao.Logger.WithError(err).WithField("task_id", taskID).Error("Failed to get task")
		return nil, err
	}
	return task, nil
}

func (dao *TaskDao) queryTasks(ctx context.Context, query string, args ...interface{}) ([]models.Task, error) {
	rows, err := dao.DB.QueryContext(ctx, query, args...)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to query tasks")
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			dao.Logger.WithError(err).Error("Failed to scan task row")
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	if err = rows.Err(); err != nil {
		dao.Logger.WithError(err).Error("Row iteration error")
		return nil, err
	}

	return tasks, nil
}

// GetTasksByOrg lists an organization's tasks. Supported filters: status, assignee_id.
func (dao *TaskDao) GetTasksByOrg(ctx context.Context, orgID int64, filters map[string]string) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM portal.tasks WHERE org_id = $1`
	args := []interface{}{orgID}

	if status := filters["status"]; status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if assigneeID := filters["assignee_id"]; assigneeID != "" {
		args = append(args, assigneeID)
		query += fmt.Sprintf(" AND assignee_id = $%d", len(args))
	}
	query += " ORDER BY due_date NULLS LAST, created_at DESC"

	return dao.queryTasks(ctx, query, args...)
}

// GetTasksByAssignee lists the tasks assigned to a user
func (dao *TaskDao) GetTasksByAssignee(ctx context.Context, assigneeID int64) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM portal.tasks WHERE assignee_id = $1 ORDER BY due_date NULLS LAST, created_at DESC`
	return dao.queryTasks(ctx, query, assigneeID)
}

// UpdateTask updates the mutable task fields
func (dao *TaskDao) UpdateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	query := `
		UPDATE portal.tasks
		SET title = $1, description = $2, priority = $3, assignee_id = $4, due_date = $5, updated_at = $6
		WHERE id = $7
		RETURNING ` + taskColumns

	updated, err := scanTask(dao.DB.QueryRowContext(ctx, query,
		task.Title,
		task.Description,
		task.Priority,
		task.AssigneeID,
		task.DueDate,
		time.Now(),
		task.ID,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task not found")
		}
		dao.Logger.WithError(err).WithField("task_id", task.ID).Error("Failed to update task")
		return nil, err
	}

	return updated, nil
}

// UpdateTaskStatus transitions a task's status. completed_at is set exactly
// when the status becomes completed and cleared otherwise.
func (dao *TaskDao) UpdateTaskStatus(ctx context.Context, taskID int64, status string) (*models.Task, error) {
	var completedAt *time.Time
	if status == models.TaskStatusCompleted {
		now := time.Now()
		completedAt = &now
	}

	query := `
		UPDATE portal.tasks
		SET status = $1, completed_at = $2, updated_at = $3
		WHERE id = $4
		RETURNING ` + taskColumns

	task, err := scanTask(dao.DB.QueryRowContext(ctx, query, status, completedAt, time.Now(), taskID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task not found")
		}
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"task_id": taskID,
			"status":  status,
		}).Error("Failed to update task status")
		return nil, err
	}

	dao.Logger.WithFields(logrus.Fields{
		"task_id": taskID,
		"status":  status,
	}).Info("Task status updated")

	return task, nil
}

// CreateComment appends a comment to a task
func (dao *TaskDao) CreateComment(ctx context.Context, comment *models.TaskComment) (*models.TaskComment, error) {
	query := `
		INSERT INTO portal.task_comments (task_id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := dao.DB.QueryRowContext(ctx, query,
		comment.TaskID,
		comment.AuthorID,
		comment.Content,
		time.Now(),
	).Scan(&comment.ID, &comment.CreatedAt)

	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"task_id":   comment.TaskID,
			"author_id": comment.AuthorID,
		}).Error("Failed to create task comment")
		return nil, err
	}

	return comment, nil
}

// GetComments lists a task's comments in creation order
func (dao *TaskDao) GetComments(ctx context.Context, taskID int64) ([]models.TaskComment, error) {
	query := `
		SELECT id, task_id, author_id, content, created_at, edited_at
		FROM portal.task_comments
		WHERE task_id = $1
		ORDER BY created_at
	`

	rows, err := dao.DB.QueryContext(ctx, query, taskID)
	if err != nil {
		dao.Logger.WithError(err).WithField("task_id", taskID).Error("Failed to list task comments")
		return nil, err
	}
	defer rows.Close()

	var comments []models.TaskComment
	for rows.Next() {
		var comment models.TaskComment
		err := rows.Scan(
			&comment.ID,
			&comment.TaskID,
			&comment.AuthorID,
			&comment.Content,
			&comment.CreatedAt,
			&comment.EditedAt,
		)
		if err != nil {
			dao.Logger.WithError(err).Error("Failed to scan comment row")
			return nil, err
		}
		comments = append(comments, comment)
	}

	if err = rows.Err(); err != nil {
		dao.Logger.WithError(err).Error("Row iteration error")
		return nil, err
	}

	return comments, nil
}

// EditComment updates a comment's content. Only the author may edit, and the
// original creation timestamp is preserved; edited_at records the change.
func (dao *TaskDao) EditComment(ctx context.Context, commentID, authorID int64, content string) (*models.TaskComment, error) {
	query := `
		UPDATE portal.task_comments
		SET content = $1, edited_at = $2
		WHERE id = $3 AND author_id = $4
		RETURNING id, task_id, author_id, content, created_at, edited_at
	`

	var comment models.TaskComment
	err := dao.DB.QueryRowContext(ctx, query, content, time.Now(), commentID, authorID).Scan(
		&comment.ID,
		&comment.TaskID,
		&comment.AuthorID,
		&comment.Content,
		&comment.CreatedAt,
		&comment.EditedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("comment not found or not owned by author")
		}
		dao.Logger.WithError(err).WithField("comment_id", commentID).Error("Failed to edit comment")
		return nil, err
	}

	return &comment, nil
}

// GetTasksDueForReminder finds open tasks with a due date inside the lookahead
// window (or already past due) that have not been reminded yet today. The
// start-of-day cutoff keeps the daily job idempotent within a calendar day.
func (dao *TaskDao) GetTasksDueForReminder(ctx context.Context, now time.Time, lookahead time.Duration) ([]models.Task, error) {
	startOfDay := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	windowEnd := now.Add(lookahead)

	query := `SELECT ` + taskColumns + `
		FROM portal.tasks
		WHERE status IN ($1, $2)
		  AND due_date IS NOT NULL
		  AND due_date <= $3
		  AND (last_reminded_at IS NULL OR last_reminded_at < $4)
		ORDER BY due_date`

	return dao.queryTasks(ctx, query, models.TaskStatusPending, models.TaskStatusInProgress, windowEnd, startOfDay)
}

// MarkTaskReminded stamps the task before its reminder goes out so a repeated
// job run within the same day cannot re-notify
func (dao *TaskDao) MarkTaskReminded(ctx context.Context, taskID int64, remindedAt time.Time) error {
	query := `UPDATE portal.tasks SET last_reminded_at = $1 WHERE id = $2`

	result, err := dao.DB.ExecContext(ctx, query, remindedAt, taskID)
	if err != nil {
		dao.Logger.WithError(err).WithField("task_id", taskID).Error("Failed to mark task reminded")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found")
	}

	return nil
}
