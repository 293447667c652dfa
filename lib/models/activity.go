package models

import (
	"database/sql"
	"time"
)

// ActivityEntry is one append-only row in the per-organization activity log
type ActivityEntry struct {
	ID         int64          `json:"id"`
	OrgID      int64          `json:"org_id"`
	ActorID    int64          `json:"actor_id"`
	Action     string         `json:"action"` // e.g. 'document.uploaded', 'invoice.paid'
	EntityType string         `json:"entity_type"`
	EntityID   int64          `json:"entity_id"`
	Detail     sql.NullString `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ActivityListResponse represents the response for listing activity entries
type ActivityListResponse struct {
	Entries []ActivityEntry `json:"entries"`
	Total   int             `json:"total"`
}
