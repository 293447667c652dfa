package jobs

import (
	"context"
	"time"

	"portal/lib/data"
	"portal/lib/mailer"

	"github.com/sirupsen/logrus"
)

// AnnouncementPublishJob publishes scheduled announcements whose time has
// arrived. MarkPublished only fires on a null published_at, so each
// announcement fans out exactly once however many runs observe it.
type AnnouncementPublishJob struct {
	Announcements data.AnnouncementRepository
	Users         data.UserRepository
	Dispatcher    *mailer.Dispatcher
	Logger        *logrus.Logger
}

// AnnouncementPublishResult summarizes one run
type AnnouncementPublishResult struct {
	Due       int `json:"due"`
	Published int `json:"published"`
	Skipped   int `json:"skipped"`
	Notified  int `json:"notified"`
}

// Run publishes each due announcement and fans it out to every active client
func (j *AnnouncementPublishJob) Run(ctx context.Context, now time.Time) (*AnnouncementPublishResult, error) {
	due, err := j.Announcements.GetDueScheduledAnnouncements(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &AnnouncementPublishResult{Due: len(due)}
	if len(due) == 0 {
		return result, nil
	}

	clients, err := j.Users.GetAllActiveClients(ctx)
	if err != nil {
		return nil, err
	}

	for _, announcement := range due {
		published, err := j.Announcements.MarkPublished(ctx, announcement.ID, now)
		if err != nil {
			j.Logger.WithError(err).WithField("announcement_id", announcement.ID).Error("Failed to publish announcement")
			continue
		}
		if !published {
			// Another run already published it; no fan-out.
			result.Skipped++
			continue
		}
		result.Published++

		for i := range clients {
			sendResult := j.Dispatcher.SendAnnouncementEmail(ctx, &clients[i], announcement.Title, announcement.Content)
			if sendResult.Success {
				result.Notified++
			}
		}
	}

	j.Logger.WithFields(logrus.Fields{
		"due":       result.Due,
		"published": result.Published,
		"skipped":   result.Skipped,
		"notified":  result.Notified,
	}).Info("Announcement publish run complete")

	return result, nil
}
