package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	DB *sqlx.DB
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by name
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open connects once. SQLite paths are turned into a DSN with foreign keys
// enabled and the pool pinned to a single connection.
func Open(driver, databaseURL string) (*sqlx.DB, error) {
	dsn := databaseURL
	if driver == DriverSQLite {
		dsn = SQLiteDSN(databaseURL)
	}
	conn, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
	}
	return conn, nil
}

func SQLiteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	if dir := filepath.Dir(path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
}

// opens a connection for driver and assigns it to DB, retrying while the
// database comes up.
func Init(driver, databaseURL string) error {
	const maxRetries = 10
	const retryInterval = 2 * time.Second
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		DB, err = Open(driver, databaseURL)
		if err == nil {
			log.Info().Str("driver", driver).Msg("connected to database")
			return nil
		}

		log.Error().Err(err).
			Int("attempt", attempt).
			Msgf("failed to connect to database, retrying in %s", retryInterval)

		time.Sleep(retryInterval)
	}

	return fmt.Errorf("could not connect to database after %d attempts: %w", maxRetries, err)
}

// RunMigrations applies the migrations in migrationsPath to DB.
func RunMigrations(migrationsPath string) error {
	return Migrate(DB, migrationsPath)
}

// finds all “*.up.sql” files in migrationsPath (sorted by name) and executes
// their contents in order. “*.down.sql” files are ignored. Every statement
// is written to be re-runnable.
func Migrate(conn *sqlx.DB, migrationsPath string) error {
	pattern := filepath.Join(migrationsPath, "*.up.sql")
	files, err := filepath.Glob(pattern)
	if err != nil {
		log.Error().Msg("failed to list up migrations")
		return fmt.Errorf("failed to glob migrations: %w", err)
	}
	if len(files) == 0 {
		log.Warn().Str("path", migrationsPath).Msg("no migrations found")
		return nil
	}

	sort.Strings(files)

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			log.Error().Msg("failed to read migration file")
			return fmt.Errorf("could not read migration %q: %w", file, err)
		}
		sqlStmt := string(sqlBytes)
		if strings.TrimSpace(sqlStmt) == "" {
			continue
		}
		if _, err := conn.Exec(sqlStmt); err != nil {
			return fmt.Errorf("error executing migration %q: %w", file, err)
		}
		log.Debug().Str("file", filepath.Base(file)).Msg("migration applied")
	}
	return nil
}
