// Package testing holds shared test fixtures.
package testing

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/teranos/xalq/db"
)

// CreateTestDB opens a fully migrated SQLite database in a temp dir.
// Automatically registers cleanup via t.Cleanup().
//
// A file is used rather than :memory: because database/sql may open
// several connections and each :memory: connection is a separate database.
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.OpenWithMigrations(filepath.Join(t.TempDir(), "xalq.db"), nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
	})

	return conn
}
