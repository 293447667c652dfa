package models

import (
	"database/sql"
	"time"
)

// Task represents a unit of work assigned to a portal user
type Task struct {
	ID             int64          `json:"id"`
	OrgID          int64          `json:"org_id"`
	AssigneeID     int64          `json:"assignee_id"`
	CreatedBy      int64          `json:"created_by"`
	Title          string         `json:"title"`
	Description    sql.NullString `json:"description,omitempty"`
	Status         string         `json:"status"`   // 'pending', 'in_progress', 'completed', 'cancelled'
	Priority       string         `json:"priority"` // 'low', 'medium', 'high', 'urgent'
	DueDate        *time.Time     `json:"due_date,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"` // set iff status is completed
	LastRemindedAt *time.Time     `json:"last_reminded_at,omitempty"`
	TemplateID     sql.NullInt64  `json:"template_id,omitempty"` // set when generated from a recurring template
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TaskComment is an append-only comment on a task, ordered by creation time
type TaskComment struct {
	ID        int64      `json:"id"`
	TaskID    int64      `json:"task_id"`
	AuthorID  int64      `json:"author_id"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
}

// TaskTemplate drives recurring task generation. NextOccurrenceAt is the
// next boundary at which an instance is due to be created.
type TaskTemplate struct {
	ID               int64          `json:"id"`
	OrgID            int64          `json:"org_id"`
	AssigneeID       int64          `json:"assignee_id"`
	Title            string         `json:"title"`
	Description      sql.NullString `json:"description,omitempty"`
	Priority         string         `json:"priority"`
	Recurrence       string         `json:"recurrence"` // 'weekly', 'biweekly', 'monthly', 'quarterly'
	NextOccurrenceAt time.Time      `json:"next_occurrence_at"`
	DueOffsetDays    int            `json:"due_offset_days"` // days between generation and the instance's due date
	IsActive         bool           `json:"is_active"`
	CreatedBy        int64          `json:"created_by"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Task status constants
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

// Task priority constants
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
	TaskPriorityUrgent = "urgent"
)

// Recurrence constants
const (
	RecurrenceWeekly    = "weekly"
	RecurrenceBiweekly  = "biweekly"
	RecurrenceMonthly   = "monthly"
	RecurrenceQuarterly = "quarterly"
)

// CreateTaskRequest represents the request payload for creating a task
type CreateTaskRequest struct {
	OrgID       int64  `json:"org_id" binding:"required"`
	AssigneeID  int64  `json:"assignee_id" binding:"required"`
	Title       string `json:"title" binding:"required,min=2,max=200"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty" binding:"omitempty,oneof=low medium high urgent"`
	DueDate     string `json:"due_date,omitempty"` // Format: YYYY-MM-DD
}

// UpdateTaskRequest represents the request payload for updating a task
type UpdateTaskRequest struct {
	Title       string `json:"title,omitempty" binding:"omitempty,min=2,max=200"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty" binding:"omitempty,oneof=low medium high urgent"`
	AssigneeID  int64  `json:"assignee_id,omitempty"`
	DueDate     string `json:"due_date,omitempty"` // Format: YYYY-MM-DD
}

// UpdateTaskStatusRequest updates only the task status
type UpdateTaskStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending in_progress completed cancelled"`
}

// CreateTaskCommentRequest represents the request payload for commenting on a task
type CreateTaskCommentRequest struct {
	Content string `json:"content" binding:"required,min=1,max=4000"`
}

// CreateTaskTemplateRequest represents the request payload for a recurring task template
type CreateTaskTemplateRequest struct {
	OrgID         int64  `json:"org_id" binding:"required"`
	AssigneeID    int64  `json:"assignee_id" binding:"required"`
	Title         string `json:"title" binding:"required,min=2,max=200"`
	Description   string `json:"description,omitempty"`
	Priority      string `json:"priority,omitempty" binding:"omitempty,oneof=low medium high urgent"`
	Recurrence    string `json:"recurrence" binding:"required,oneof=weekly biweekly monthly quarterly"`
	FirstDueDate  string `json:"first_due_date" binding:"required"` // Format: YYYY-MM-DD
	DueOffsetDays int    `json:"due_offset_days,omitempty"`
}

// TaskListResponse represents the response for listing tasks
type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
	Total int    `json:"total"`
}

// TaskCommentListResponse represents the response for listing task comments
type TaskCommentListResponse struct {
	Comments []TaskComment `json:"comments"`
	Total    int           `json:"total"`
}

// IsOpen reports whether the task still counts for reminders
func (t *Task) IsOpen() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusInProgress
}

// NextBoundaryAfter advances from the template's current boundary until it is
// strictly after now. Catch-up after missed runs is bounded to a single generated
// instance; the remaining elapsed boundaries are skipped.
func (tt *TaskTemplate) NextBoundaryAfter(now time.Time) time.Time {
	next := tt.NextOccurrenceAt
	for !next.After(now) {
		switch tt.Recurrence {
		case RecurrenceWeekly:
			next = next.AddDate(0, 0, 7)
		case RecurrenceBiweekly:
			next = next.AddDate(0, 0, 14)
		case RecurrenceMonthly:
			next = next.AddDate(0, 1, 0)
		case RecurrenceQuarterly:
			next = next.AddDate(0, 3, 0)
		default:
			// Unknown recurrence: push a week out so the template cannot wedge the job.
			next = next.AddDate(0, 0, 7)
		}
	}
	return next
}
