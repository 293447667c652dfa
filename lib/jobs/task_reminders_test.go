package jobs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"portal/lib/models"

	"github.com/stretchr/testify/assert"
)

func activeClient(id, orgID int64, email string) *models.User {
	return &models.User{
		UserID:    id,
		Email:     email,
		FirstName: "Test",
		Role:      models.RoleClient,
		OrgID:     sql.NullInt64{Int64: orgID, Valid: true},
		Status:    models.UserStatusActive,
	}
}

func TestTaskReminderJob_SendsAndStamps(t *testing.T) {
	// Arrange
	now := time.Date(2026, 4, 10, 16, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, 2)

	tasks := &memTaskRepo{
		dueForReminder: []models.Task{
			{ID: 1, OrgID: 10, AssigneeID: 100, Title: "Upload Q1 receipts", Status: models.TaskStatusPending, DueDate: &due},
		},
	}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	email := &recordingEmailClient{}

	job := &TaskReminderJob{Tasks: tasks, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	result, err := job.Run(context.Background(), now)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Examined)
	assert.Equal(t, 1, result.Sent)
	assert.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0].Subject, "Upload Q1 receipts")
	assert.Equal(t, now, tasks.reminded[1])
}

func TestTaskReminderJob_SecondRunSameDay_SendsNothing(t *testing.T) {
	// Arrange
	now := time.Date(2026, 4, 10, 16, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, 1)

	tasks := &memTaskRepo{
		dueForReminder: []models.Task{
			{ID: 1, OrgID: 10, AssigneeID: 100, Title: "Sign engagement letter", Status: models.TaskStatusPending, DueDate: &due},
		},
	}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	email := &recordingEmailClient{}
	job := &TaskReminderJob{Tasks: tasks, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	_, err := job.Run(context.Background(), now)
	assert.NoError(t, err)
	result, err := job.Run(context.Background(), now.Add(2*time.Hour))

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 0, result.Examined)
	assert.Len(t, email.sent, 1, "a re-run within the same UTC day must not re-send")
}

func TestTaskReminderJob_SkipsInactiveAssignee(t *testing.T) {
	// Arrange
	now := time.Date(2026, 4, 10, 16, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, 1)

	suspended := activeClient(100, 10, "a@example.com")
	suspended.Status = models.UserStatusSuspended

	tasks := &memTaskRepo{
		dueForReminder: []models.Task{
			{ID: 1, OrgID: 10, AssigneeID: 100, Title: "Upload W-2", Status: models.TaskStatusPending, DueDate: &due},
		},
	}
	users := &memUserRepo{users: map[int64]*models.User{100: suspended}}
	email := &recordingEmailClient{}
	job := &TaskReminderJob{Tasks: tasks, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	result, err := job.Run(context.Background(), now)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.Len(t, email.sent, 0)
}

func TestTaskReminderJob_MissingAssignee_CountsFailedAndContinues(t *testing.T) {
	// Arrange
	now := time.Date(2026, 4, 10, 16, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, 1)

	tasks := &memTaskRepo{
		dueForReminder: []models.Task{
			{ID: 1, OrgID: 10, AssigneeID: 999, Title: "Orphaned", Status: models.TaskStatusPending, DueDate: &due},
			{ID: 2, OrgID: 10, AssigneeID: 100, Title: "Upload bank statements", Status: models.TaskStatusPending, DueDate: &due},
		},
	}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	email := &recordingEmailClient{}
	job := &TaskReminderJob{Tasks: tasks, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	result, err := job.Run(context.Background(), now)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Sent)
	assert.Len(t, email.sent, 1)
}
