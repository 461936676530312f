package db_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/db/storetest"
)

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) db.Store {
		conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "troupe.db"), "../../migrations/sqlite")
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return db.NewStoreFrom(conn)
	})
}

func TestMigrationsAreRerunnable(t *testing.T) {
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "troupe.db"), "../../migrations/sqlite")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, db.Migrate(conn, "../../migrations/sqlite"))
}

func TestPostgresStore(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, db.InitTestDB("../../migrations/postgres"))
	defer db.DB.Close()

	storetest.Run(t, func(t *testing.T) db.Store {
		require.NoError(t, db.Truncate(db.DB))
		return db.TestStore
	})
}
