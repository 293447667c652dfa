package models

import (
	"time"
)

// Announcement is a firm-wide notice shown to clients. PublishedAt stays null
// until the announcement is published manually or by the hourly publish job.
type Announcement struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Type         string     `json:"type"` // 'general', 'deadline', 'tax_update', 'maintenance'
	IsPinned     bool       `json:"is_pinned"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedBy    int64      `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Announcement type constants
const (
	AnnouncementTypeGeneral     = "general"
	AnnouncementTypeDeadline    = "deadline"
	AnnouncementTypeTaxUpdate   = "tax_update"
	AnnouncementTypeMaintenance = "maintenance"
)

// CreateAnnouncementRequest represents the request payload for creating an announcement
type CreateAnnouncementRequest struct {
	Title        string `json:"title" binding:"required,min=2,max=200"`
	Content      string `json:"content" binding:"required"`
	Type         string `json:"type,omitempty" binding:"omitempty,oneof=general deadline tax_update maintenance"`
	IsPinned     bool   `json:"is_pinned,omitempty"`
	ScheduledFor string `json:"scheduled_for,omitempty"` // RFC3339; empty means draft until published manually
	ExpiresAt    string `json:"expires_at,omitempty"`    // RFC3339
}

// UpdateAnnouncementRequest represents the request payload for updating an announcement
type UpdateAnnouncementRequest struct {
	Title        string `json:"title,omitempty" binding:"omitempty,min=2,max=200"`
	Content      string `json:"content,omitempty"`
	Type         string `json:"type,omitempty" binding:"omitempty,oneof=general deadline tax_update maintenance"`
	IsPinned     *bool  `json:"is_pinned,omitempty"`
	ScheduledFor string `json:"scheduled_for,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

// AnnouncementListResponse represents the response for listing announcements
type AnnouncementListResponse struct {
	Announcements []Announcement `json:"announcements"`
	Total         int            `json:"total"`
}

// IsPublished reports whether the announcement has gone out
func (a *Announcement) IsPublished() bool {
	return a.PublishedAt != nil
}

// IsExpired reports whether the announcement should no longer be shown
func (a *Announcement) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}
