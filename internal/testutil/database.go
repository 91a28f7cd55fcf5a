package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/ndewijer/Disclosure-Ledger/internal/database"
)

// journalTables lists the tables CleanDatabase empties.
var journalTables = []string{"runs"}

// SetupTestDB returns a migrated run journal stored under t.TempDir and
// closed when the test ends. A file is used rather than ":memory:" since
// each pooled connection to ":memory:" would see its own empty database.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// CleanDatabase empties every journal table.
func CleanDatabase(t *testing.T, db *sql.DB) {
	t.Helper()
	for _, table := range journalTables {
		//nolint:gosec // G202: table names come from journalTables
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("Failed to clean table %s: %v", table, err)
		}
	}
}

// CountRows returns the number of rows in table.
func CountRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	//nolint:gosec // G202: callers pass fixed table names
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}
	return n
}

// AssertRowCount fails the test unless table holds want rows.
func AssertRowCount(t *testing.T, db *sql.DB, table string, want int) {
	t.Helper()
	if got := CountRows(t, db, table); got != want {
		t.Errorf("Expected %d rows in %s, got %d", want, table, got)
	}
}
