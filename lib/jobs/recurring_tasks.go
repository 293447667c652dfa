package jobs

import (
	"context"
	"database/sql"
	"time"

	"portal/lib/data"
	"portal/lib/mailer"
	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// RecurringTaskJob materializes task instances from active templates whose
// next occurrence has arrived. The conditional template advance is the
// idempotency claim: whichever run wins the advance creates the instance.
type RecurringTaskJob struct {
	Templates  data.TaskTemplateRepository
	Tasks      data.TaskRepository
	Users      data.UserRepository
	Dispatcher *mailer.Dispatcher
	Logger     *logrus.Logger
}

// RecurringTaskResult summarizes one run
type RecurringTaskResult struct {
	Due     int `json:"due"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Run generates at most one instance per due template. When several boundaries
// have elapsed since the last run, the skipped boundaries are not backfilled.
func (j *RecurringTaskJob) Run(ctx context.Context, now time.Time) (*RecurringTaskResult, error) {
	templates, err := j.Templates.GetDueTemplates(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &RecurringTaskResult{Due: len(templates)}

	for _, tpl := range templates {
		next := tpl.NextBoundaryAfter(now)

		claimed, err := j.Templates.AdvanceTemplate(ctx, tpl.ID, tpl.NextOccurrenceAt, next)
		if err != nil {
			j.Logger.WithError(err).WithField("template_id", tpl.ID).Error("Failed to advance task template")
			result.Failed++
			continue
		}
		if !claimed {
			// A concurrent run already advanced this template.
			result.Skipped++
			continue
		}

		dueDate := tpl.NextOccurrenceAt.AddDate(0, 0, tpl.DueOffsetDays)
		task := &models.Task{
			OrgID:       tpl.OrgID,
			AssigneeID:  tpl.AssigneeID,
			CreatedBy:   tpl.CreatedBy,
			Title:       tpl.Title,
			Description: tpl.Description,
			Status:      models.TaskStatusPending,
			Priority:    tpl.Priority,
			DueDate:     &dueDate,
			TemplateID:  sql.NullInt64{Int64: tpl.ID, Valid: true},
		}

		created, err := j.Tasks.CreateTask(ctx, task)
		if err != nil {
			j.Logger.WithError(err).WithField("template_id", tpl.ID).Error("Failed to create task instance from template")
			result.Failed++
			continue
		}
		result.Created++

		assignee, err := j.Users.GetUser(ctx, tpl.AssigneeID)
		if err != nil {
			j.Logger.WithError(err).WithFields(logrus.Fields{
				"template_id": tpl.ID,
				"assignee_id": tpl.AssigneeID,
			}).Error("Failed to load assignee for generated task")
			continue
		}
		if assignee.Status == models.UserStatusActive {
			j.Dispatcher.SendTaskAssignedEmail(ctx, assignee, created.ID, created.Title, created.Priority, created.DueDate)
		}
	}

	j.Logger.WithFields(logrus.Fields{
		"due":     result.Due,
		"created": result.Created,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	}).Info("Recurring task run complete")

	return result, nil
}
