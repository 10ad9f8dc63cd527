package database

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

//go:embed migrations
var migrationFS embed.FS

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// MigrateGlobal applies the registry schema (stores, webhooks, deliveries, audit logs).
func MigrateGlobal(db *sql.DB, direction Direction) error {
	return runMigrations(db, "migrations/global", direction)
}

// MigrateTenant applies the per-organization resource schema.
func MigrateTenant(db *sql.DB, direction Direction) error {
	return runMigrations(db, "migrations/tenant", direction)
}

// Every statement is written to be re-runnable, so applied migrations are
// not tracked in a table.
func runMigrations(db *sql.DB, dir string, direction Direction) error {
	if direction != Up && direction != Down {
		return fmt.Errorf("invalid migration direction %q", direction)
	}

	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return fmt.Errorf("failed to read migration directory: %w", err)
	}

	suffix := "." + string(direction) + ".sql"
	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if direction == Down {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	for _, name := range files {
		content, err := migrationFS.ReadFile(path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		log.Debug().Str("migration", name).Msg("applying migration")
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
	}
	return nil
}
