package repository

import (
	"fmt"
	"time"
)

// sqliteTimestamp is the layout of CURRENT_TIMESTAMP defaults.
const sqliteTimestamp = "2006-01-02 15:04:05"

// formatTime is the inverse of ParseTime for journal columns.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime reads a journal timestamp. Rows written by the repository use
// RFC3339; rows filled by a column default use SQLite's own layout.
func ParseTime(str string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, sqliteTimestamp} {
		if t, err := time.Parse(layout, str); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", str)
}
