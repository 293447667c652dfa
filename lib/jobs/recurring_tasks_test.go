package jobs

import (
	"context"
	"testing"
	"time"

	"portal/lib/models"

	"github.com/stretchr/testify/assert"
)

func weeklyTemplate(id int64, next time.Time) *models.TaskTemplate {
	return &models.TaskTemplate{
		ID:               id,
		OrgID:            10,
		AssigneeID:       100,
		Title:            "Weekly bookkeeping",
		Priority:         models.TaskPriorityMedium,
		Recurrence:       models.RecurrenceWeekly,
		NextOccurrenceAt: next,
		DueOffsetDays:    2,
		IsActive:         true,
		CreatedBy:        7,
	}
}

func TestRecurringTaskJob_CreatesInstanceAndAdvances(t *testing.T) {
	// Arrange
	now := time.Date(2026, 4, 10, 2, 0, 0, 0, time.UTC)
	boundary := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	templates := &memTemplateRepo{templates: map[int64]*models.TaskTemplate{1: weeklyTemplate(1, boundary)}}
	tasks := &memTaskRepo{}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	email := &recordingEmailClient{}

	job := &RecurringTaskJob{Templates: templates, Tasks: tasks, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	result, err := job.Run(context.Background(), now)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Len(t, tasks.created, 1)

	created := tasks.created[0]
	assert.Equal(t, "Weekly bookkeeping", created.Title)
	assert.Equal(t, models.TaskStatusPending, created.Status)
	assert.Equal(t, int64(1), created.TemplateID.Int64)
	assert.Equal(t, boundary.AddDate(0, 0, 2), *created.DueDate)

	// The template moved one week forward and assignment mail went out.
	assert.Equal(t, boundary.AddDate(0, 0, 7), templates.templates[1].NextOccurrenceAt)
	assert.Len(t, email.sent, 1)
}

func TestRecurringTaskJob_ThreeWeekGap_CreatesSingleInstance(t *testing.T) {
	// Arrange: the job has not run for three weeks past the boundary
	boundary := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	now := boundary.AddDate(0, 0, 21).Add(2 * time.Hour)

	templates := &memTemplateRepo{templates: map[int64]*models.TaskTemplate{1: weeklyTemplate(1, boundary)}}
	tasks := &memTaskRepo{}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	job := &RecurringTaskJob{Templates: templates, Tasks: tasks, Users: users, Dispatcher: newJobDispatcher(&recordingEmailClient{}), Logger: testLogger()}

	// Act
	result, err := job.Run(context.Background(), now)

	// Assert: exactly one instance, not three, and the next boundary is in the future
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Len(t, tasks.created, 1)
	assert.True(t, templates.templates[1].NextOccurrenceAt.After(now))
}

func TestRecurringTaskJob_DoubleRun_CreatesNothingTwice(t *testing.T) {
	// Arrange
	now := time.Date(2026, 4, 10, 2, 0, 0, 0, time.UTC)
	boundary := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	templates := &memTemplateRepo{templates: map[int64]*models.TaskTemplate{1: weeklyTemplate(1, boundary)}}
	tasks := &memTaskRepo{}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	job := &RecurringTaskJob{Templates: templates, Tasks: tasks, Users: users, Dispatcher: newJobDispatcher(&recordingEmailClient{}), Logger: testLogger()}

	// Act
	_, err := job.Run(context.Background(), now)
	assert.NoError(t, err)
	result, err := job.Run(context.Background(), now.Add(time.Minute))

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Len(t, tasks.created, 1)
}

// staleTemplateRepo serves a snapshot from before a concurrent run advanced
// the template, so the job's claim must lose.
type staleTemplateRepo struct {
	memTemplateRepo
	snapshot []models.TaskTemplate
}

func (m *staleTemplateRepo) GetDueTemplates(ctx context.Context, now time.Time) ([]models.TaskTemplate, error) {
	return m.snapshot, nil
}

func TestRecurringTaskJob_LostClaim_SkipsInstance(t *testing.T) {
	// Arrange
	now := time.Date(2026, 4, 10, 2, 0, 0, 0, time.UTC)
	boundary := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	current := weeklyTemplate(1, boundary.AddDate(0, 0, 7))
	templates := &staleTemplateRepo{
		memTemplateRepo: memTemplateRepo{templates: map[int64]*models.TaskTemplate{1: current}},
		snapshot:        []models.TaskTemplate{*weeklyTemplate(1, boundary)},
	}
	tasks := &memTaskRepo{}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	email := &recordingEmailClient{}
	job := &RecurringTaskJob{Templates: templates, Tasks: tasks, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	result, err := job.Run(context.Background(), now)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Created)
	assert.Len(t, tasks.created, 0)
	assert.Len(t, email.sent, 0)
}
