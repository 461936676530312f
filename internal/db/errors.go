package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// notFound swaps sql.ErrNoRows for the domain sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// ts normalizes an instant before it is bound: UTC keeps SQLite's textual
// ordering consistent with time ordering.
func ts(t time.Time) time.Time {
	return t.UTC()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
