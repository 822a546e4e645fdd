package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithMigrations(t *testing.T) {
	db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"schema_migrations", "ai_model_usage", "generated_reports"} {
		var n int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n))
		assert.Equal(t, 1, n, table)
	}

	var versions int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 3, versions)
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db, nil))
	require.NoError(t, Migrate(db, nil), "running migrations twice should be safe")

	var versions int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 3, versions)
}

func TestMigrate_ClosedDatabase(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	db.Close()

	assert.Error(t, Migrate(db, nil))
}

func TestListMigrations(t *testing.T) {
	list, err := listMigrations(migrations)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "000", list[0].version)
	assert.Equal(t, "001_ai_model_usage.sql", list[1].file)
	assert.Equal(t, "002", list[2].version)
}
