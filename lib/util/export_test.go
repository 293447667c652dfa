package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDateForExport(t *testing.T) {
	//Arrange
	ts := time.Date(2026, 1, 15, 12, 30, 45, 0, time.UTC)

	//Act + Assert
	assert.Equal(t, "", FormatDateForExport(nil))
	assert.Equal(t, "2026-01-15", FormatDateForExport(&ts))
}

func TestFormatDateForExport_NonUTC(t *testing.T) {
	// A timestamp late in the day in a negative-offset zone must not shift the date.
	loc := time.FixedZone("UTC+5", 5*3600)
	ts := time.Date(2026, 1, 16, 2, 0, 0, 0, loc) // 2026-01-15T21:00:00Z

	assert.Equal(t, "2026-01-15", FormatDateForExport(&ts))
}

func TestFormatCentsForExport(t *testing.T) {
	cents := func(v int64) *int64 { return &v }

	assert.Equal(t, "", FormatCentsForExport(nil))
	assert.Equal(t, "100.50", FormatCentsForExport(cents(10050)))
	assert.Equal(t, "0.05", FormatCentsForExport(cents(5)))
	assert.Equal(t, "0.00", FormatCentsForExport(cents(0)))
	assert.Equal(t, "-100.50", FormatCentsForExport(cents(-10050)))
	assert.Equal(t, "-0.05", FormatCentsForExport(cents(-5)))
}
