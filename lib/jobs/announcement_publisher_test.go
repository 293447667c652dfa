package jobs

import (
	"context"
	"testing"
	"time"

	"portal/lib/models"

	"github.com/stretchr/testify/assert"
)

func TestAnnouncementPublishJob_PublishesAndFansOut(t *testing.T) {
	// Arrange
	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	scheduled := now.Add(-30 * time.Minute)

	announcements := &memAnnouncementRepo{announcements: map[int64]*models.Announcement{
		1: {ID: 1, Title: "Tax deadline approaching", Content: "File by April 15.", ScheduledFor: &scheduled},
	}}
	users := &memUserRepo{users: map[int64]*models.User{
		100: activeClient(100, 10, "a@example.com"),
		101: activeClient(101, 20, "b@example.com"),
	}}
	email := &recordingEmailClient{}
	job := &AnnouncementPublishJob{Announcements: announcements, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	result, err := job.Run(context.Background(), now)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, 2, result.Notified)
	assert.Len(t, email.sent, 2)
	assert.Equal(t, now, *announcements.announcements[1].PublishedAt)
}

func TestAnnouncementPublishJob_SecondRun_PublishesNothing(t *testing.T) {
	// Arrange
	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	scheduled := now.Add(-30 * time.Minute)

	announcements := &memAnnouncementRepo{announcements: map[int64]*models.Announcement{
		1: {ID: 1, Title: "Office closure", Content: "Closed Friday.", ScheduledFor: &scheduled},
	}}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	email := &recordingEmailClient{}
	job := &AnnouncementPublishJob{Announcements: announcements, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	_, err := job.Run(context.Background(), now)
	assert.NoError(t, err)
	result, err := job.Run(context.Background(), now.Add(time.Hour))

	// Assert: published_at is already set, so the second run sees nothing due
	assert.NoError(t, err)
	assert.Equal(t, 0, result.Published)
	assert.Len(t, email.sent, 1)
}

func TestAnnouncementPublishJob_FutureSchedule_NotTouched(t *testing.T) {
	// Arrange
	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	scheduled := now.Add(2 * time.Hour)

	announcements := &memAnnouncementRepo{announcements: map[int64]*models.Announcement{
		1: {ID: 1, Title: "Upcoming webinar", Content: "Details inside.", ScheduledFor: &scheduled},
	}}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	email := &recordingEmailClient{}
	job := &AnnouncementPublishJob{Announcements: announcements, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	result, err := job.Run(context.Background(), now)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 0, result.Due)
	assert.Nil(t, announcements.announcements[1].PublishedAt)
	assert.Len(t, email.sent, 0)
}

// raceAnnouncementRepo reports the announcement as due but refuses the publish
// claim, standing in for a concurrent run winning the conditional update.
type raceAnnouncementRepo struct {
	memAnnouncementRepo
}

func (m *raceAnnouncementRepo) MarkPublished(ctx context.Context, announcementID int64, publishedAt time.Time) (bool, error) {
	return false, nil
}

func TestAnnouncementPublishJob_LostClaim_NoFanOut(t *testing.T) {
	// Arrange
	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	scheduled := now.Add(-time.Minute)

	announcements := &raceAnnouncementRepo{memAnnouncementRepo{announcements: map[int64]*models.Announcement{
		1: {ID: 1, Title: "Policy update", Content: "See portal.", ScheduledFor: &scheduled},
	}}}
	users := &memUserRepo{users: map[int64]*models.User{100: activeClient(100, 10, "a@example.com")}}
	email := &recordingEmailClient{}
	job := &AnnouncementPublishJob{Announcements: announcements, Users: users, Dispatcher: newJobDispatcher(email), Logger: testLogger()}

	// Act
	result, err := job.Run(context.Background(), now)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Published)
	assert.Len(t, email.sent, 0)
}
