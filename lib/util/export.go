package util

import (
	"fmt"
	"time"
)

// FormatDateForExport renders a timestamp as a YYYY-MM-DD date for CSV export.
// A nil timestamp renders as an empty cell.
func FormatDateForExport(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// FormatCentsForExport renders an integer cent amount as a decimal string
// (10050 -> "100.50"). A nil amount renders as an empty cell.
func FormatCentsForExport(cents *int64) string {
	if cents == nil {
		return ""
	}
	v := *cents
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
