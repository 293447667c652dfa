package mailer

import (
	"context"
	"errors"
	"testing"

	"portal/lib/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// stubPrefs is a hand-rolled PreferenceRepository for gate tests
type stubPrefs struct {
	prefs *models.EmailPreferences
	err   error
	calls int
}

func (s *stubPrefs) GetPreferences(ctx context.Context, userID int64) (*models.EmailPreferences, error) {
	s.calls++
	return s.prefs, s.err
}

func (s *stubPrefs) UpsertPreferences(ctx context.Context, prefs *models.EmailPreferences) (*models.EmailPreferences, error) {
	return prefs, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestShouldSend_NoPreferenceRow_DefaultsToEnabled(t *testing.T) {
	// Arrange
	gate := &Gate{Prefs: &stubPrefs{prefs: nil}, Logger: testLogger()}

	// Act & Assert
	assert.True(t, gate.ShouldSend(context.Background(), 42, models.CategoryInvoices))
	assert.True(t, gate.ShouldSend(context.Background(), 42, models.CategoryAnnouncements))
}

func TestShouldSend_DisabledCategory_Suppresses(t *testing.T) {
	// Arrange
	prefs := &models.EmailPreferences{
		UserID:           42,
		DocumentRequests: true,
		TaskAssignments:  true,
		TaskComments:     false,
		Invoices:         false,
		Signatures:       true,
		Announcements:    true,
	}
	gate := &Gate{Prefs: &stubPrefs{prefs: prefs}, Logger: testLogger()}

	// Act & Assert
	assert.False(t, gate.ShouldSend(context.Background(), 42, models.CategoryInvoices))
	assert.False(t, gate.ShouldSend(context.Background(), 42, models.CategoryTaskComments))
	assert.True(t, gate.ShouldSend(context.Background(), 42, models.CategoryDocumentRequests))
}

func TestShouldSend_LookupError_DegradesToSend(t *testing.T) {
	// Arrange
	stub := &stubPrefs{err: errors.New("connection refused")}
	gate := &Gate{Prefs: stub, Logger: testLogger()}

	// Act
	result := gate.ShouldSend(context.Background(), 42, models.CategoryInvoices)

	// Assert
	assert.True(t, result, "a failed preference lookup must not block email")
	assert.Equal(t, 1, stub.calls)
}

func TestShouldSend_UnknownCategory_DefaultsToEnabled(t *testing.T) {
	// Arrange
	prefs := &models.EmailPreferences{UserID: 42}
	gate := &Gate{Prefs: &stubPrefs{prefs: prefs}, Logger: testLogger()}

	// Act & Assert
	assert.True(t, gate.ShouldSend(context.Background(), 42, "somethingNew"))
}
