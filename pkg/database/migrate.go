package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Schema selects a migration set.
type Schema string

const (
	// SchemaServer holds users and the per-user cloud library.
	SchemaServer Schema = "server"
	// SchemaLocal holds the device-local library table.
	SchemaLocal Schema = "local"
)

// Migrate applies every pending migration of the schema set. It is a no-op
// when the database is already current.
func Migrate(db *sql.DB, schema Schema) error {
	src, err := iofs.New(migrationsFS, "migrations/"+string(schema))
	if err != nil {
		return fmt.Errorf("open %s migrations: %w", schema, err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply %s migrations: %w", schema, err)
	}
	return nil
}
