package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type Config struct {
	Path string
}

// DefaultConfig honours GAMEVAULT_DB_PATH (Docker Compose) and otherwise
// uses the given fallback path.
func DefaultConfig(fallback string) Config {
	if p := os.Getenv("GAMEVAULT_DB_PATH"); p != "" {
		return Config{Path: p}
	}
	return Config{Path: fallback}
}

func EnsureDataDir(cfg Config) error {
	return os.MkdirAll(filepath.Dir(cfg.Path), 0o755)
}

// Open opens the sqlite file with foreign keys, WAL and a busy timeout.
func Open(cfg Config) (*sql.DB, error) {
	if err := EnsureDataDir(cfg); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", cfg.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

// OpenAndMigrate is Open followed by Migrate for the given schema set.
func OpenAndMigrate(cfg Config, schema Schema) (*sql.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
