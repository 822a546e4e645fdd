package db

import (
	"database/sql"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/logger"
)

//go:embed sqlite/migrations/*.sql
var migrations embed.FS

const migrationsDir = "sqlite/migrations"

// migration is one embedded NNN_name.sql file
type migration struct {
	version string
	file    string
}

// Migrate runs all pending migrations in filename order. Each migration runs
// in its own transaction and is recorded in schema_migrations.
func Migrate(db *sql.DB, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	pending, err := listMigrations(migrations)
	if err != nil {
		return err
	}

	applied := 0
	for _, m := range pending {
		done, err := isApplied(db, m)
		if err != nil {
			return err
		}
		if done {
			log.Debugw("Skipping applied migration", logger.FieldFile, m.file)
			continue
		}

		log.Infow("Applying migration", logger.FieldFile, m.file)
		if err := apply(db, m); err != nil {
			return err
		}
		applied++
	}

	if applied > 0 {
		log.Infow("Database schema updated", logger.FieldCount, applied, logger.FieldTotalCount, len(pending))
	}
	return nil
}

func listMigrations(fsys fs.ReadDirFS) ([]migration, error) {
	entries, err := fsys.ReadDir(migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}

	var out []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, _, _ := strings.Cut(name, "_")
		out = append(out, migration{version: version, file: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].file < out[j].file })
	return out, nil
}

// isApplied reports whether m is recorded. schema_migrations itself is
// created by 000, so an unreadable table only counts as "not applied" there.
func isApplied(db *sql.DB, m migration) (bool, error) {
	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", m.version).Scan(&exists)
	if err != nil {
		if m.version == "000" {
			return false, nil
		}
		return false, errors.Wrapf(err, "schema_migrations unreadable before %s", m.file)
	}
	return exists, nil
}

func apply(db *sql.DB, m migration) error {
	body, err := migrations.ReadFile(path.Join(migrationsDir, m.file))
	if err != nil {
		return errors.Wrapf(err, "read %s", m.file)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin tx for %s", m.file)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(body)); err != nil {
		return errors.Wrapf(err, "execute %s", m.file)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
		return errors.Wrapf(err, "record %s", m.file)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", m.file)
}
