package db

import (
	"errors"
	"os"

	"github.com/jmoiron/sqlx"
)

var TestStore Store

// InitTestDB connects to TEST_DATABASE_URL, migrates it and wipes every
// table so a suite starts from nothing.
func InitTestDB(migrationsPath string) error {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		return errors.New("TEST_DATABASE_URL environment variable is not set")
	}

	if err := Init(DriverPostgres, dbURL); err != nil {
		return err
	}

	if err := RunMigrations(migrationsPath); err != nil {
		return err
	}
	if err := Truncate(DB); err != nil {
		return err
	}

	TestStore = NewStore()
	return nil
}

func Truncate(conn *sqlx.DB) error {
	for _, table := range []string{"availability_slots", "rehearsal_responses", "rehearsals", "project_memberships", "projects", "users"} {
		if _, err := conn.Exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}
	return nil
}

// OpenSQLite opens a migrated SQLite database at path.
func OpenSQLite(path, migrationsPath string) (*sqlx.DB, error) {
	conn, err := Open(DriverSQLite, path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(conn, migrationsPath); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}
