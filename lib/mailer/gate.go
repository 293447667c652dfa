package mailer

import (
	"context"

	"portal/lib/data"
	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// defaultPolicy maps each email category to its default when the user has no
// stored preference. Every category is opt-out: absent means send.
var defaultPolicy = map[string]bool{
	models.CategoryDocumentRequests: true,
	models.CategoryTaskAssignments:  true,
	models.CategoryTaskComments:     true,
	models.CategoryInvoices:         true,
	models.CategorySignatures:       true,
	models.CategoryAnnouncements:    true,
}

// Gate decides whether a notification email may go to a user. It is a pure
// read with no side effects.
type Gate struct {
	Prefs  data.PreferenceRepository
	Logger *logrus.Logger
}

// ShouldSend reports whether the user accepts email for the category.
// A missing preference row falls back to the default policy, and so does a
// failed lookup: delivery degrades to always-send rather than silently
// dropping mail when the store is unavailable.
func (g *Gate) ShouldSend(ctx context.Context, userID int64, category string) bool {
	fallback, known := defaultPolicy[category]
	if !known {
		fallback = true
	}

	prefs, err := g.Prefs.GetPreferences(ctx, userID)
	if err != nil {
		g.Logger.WithError(err).WithFields(logrus.Fields{
			"user_id":  userID,
			"category": category,
		}).Warn("Email preference lookup failed, defaulting to send")
		return fallback
	}
	if prefs == nil {
		return fallback
	}

	return prefs.Enabled(category)
}
