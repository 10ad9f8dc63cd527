package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"storehub/internal/platform/config"
)

// GlobalDB wraps the registry database shared by every organization.
type GlobalDB struct {
	DB *sql.DB
}

func NewGlobalDBWrapper(db *sql.DB) *GlobalDB {
	return &GlobalDB{DB: db}
}

func NewGlobalDB(cfg config.GlobalDBConfig) (*sql.DB, error) {
	dsn := sqliteDSN(strings.TrimPrefix(cfg.URL, "file:"))

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// sqliteDSN enables WAL and a busy timeout so concurrent webhook writers
// wait on the file lock instead of failing with SQLITE_BUSY.
func sqliteDSN(path string) string {
	return "file:" + path + "?cache=shared&mode=rwc&_busy_timeout=5000&_journal_mode=WAL"
}
