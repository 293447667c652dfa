// Package jobs holds the scheduled maintenance jobs run by EventBridge rules.
// Every job is idempotent: re-running within the same window produces no
// duplicate emails or rows.
package jobs

import (
	"context"
	"time"

	"portal/lib/data"
	"portal/lib/mailer"
	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// TaskReminderLookahead is how far ahead of the due date reminders start.
const TaskReminderLookahead = 3 * 24 * time.Hour

// TaskReminderJob sends due-date reminders for open tasks. A task is reminded
// at most once per UTC day; the cutoff lives in the repository query.
type TaskReminderJob struct {
	Tasks      data.TaskRepository
	Users      data.UserRepository
	Dispatcher *mailer.Dispatcher
	Logger     *logrus.Logger
}

// TaskReminderResult summarizes one run
type TaskReminderResult struct {
	Examined   int `json:"examined"`
	Sent       int `json:"sent"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`
}

// Run processes every task due within the lookahead window or already overdue.
// Per-task failures are logged and counted, never fatal.
func (j *TaskReminderJob) Run(ctx context.Context, now time.Time) (*TaskReminderResult, error) {
	tasks, err := j.Tasks.GetTasksDueForReminder(ctx, now, TaskReminderLookahead)
	if err != nil {
		return nil, err
	}

	result := &TaskReminderResult{Examined: len(tasks)}

	for _, task := range tasks {
		assignee, err := j.Users.GetUser(ctx, task.AssigneeID)
		if err != nil {
			j.Logger.WithError(err).WithField("task_id", task.ID).Error("Failed to load assignee for reminder")
			result.Failed++
			continue
		}
		if assignee.Status != models.UserStatusActive {
			continue
		}

		sendResult := j.Dispatcher.SendTaskDueReminderEmail(ctx, assignee, task.ID, task.Title, task.DueDate)
		switch {
		case sendResult.Success:
			result.Sent++
		case sendResult.Reason == mailer.ReasonPreferenceDisabled:
			result.Suppressed++
		default:
			result.Failed++
		}

		// Stamp the task even when the email did not go out. The in-app
		// notification is already written and the daily cutoff must hold.
		if err := j.Tasks.MarkTaskReminded(ctx, task.ID, now); err != nil {
			j.Logger.WithError(err).WithField("task_id", task.ID).Error("Failed to stamp task reminder")
		}
	}

	j.Logger.WithFields(logrus.Fields{
		"examined":   result.Examined,
		"sent":       result.Sent,
		"suppressed": result.Suppressed,
		"failed":     result.Failed,
	}).Info("Task reminder run complete")

	return result, nil
}
