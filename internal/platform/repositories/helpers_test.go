package repositories

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"storehub/internal/platform/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	// every connection to :memory: is a fresh database
	db.SetMaxOpenConns(1)

	if err := database.MigrateGlobal(db, database.Up); err != nil {
		t.Fatalf("Failed to migrate global schema: %v", err)
	}
	if err := database.MigrateTenant(db, database.Up); err != nil {
		t.Fatalf("Failed to migrate tenant schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
