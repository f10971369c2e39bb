package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, path, table string) bool {
	t.Helper()
	db, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer db.Close()

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestOpenAndMigrate_Local(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "library.db")

	db, err := OpenAndMigrate(Config{Path: path}, SchemaLocal)
	require.NoError(t, err)
	// running twice must be a no-op
	require.NoError(t, Migrate(db, SchemaLocal))
	require.NoError(t, db.Close())

	assert.True(t, tableExists(t, path, "user_games"))
	assert.False(t, tableExists(t, path, "cloud_games"))
}

func TestOpenAndMigrate_Server(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.db")

	db, err := OpenAndMigrate(Config{Path: path}, SchemaServer)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.True(t, tableExists(t, path, "users"))
	assert.True(t, tableExists(t, path, "cloud_games"))
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("GAMEVAULT_DB_PATH", "")
	assert.Equal(t, "/tmp/x.db", DefaultConfig("/tmp/x.db").Path)

	t.Setenv("GAMEVAULT_DB_PATH", "/data/override.db")
	assert.Equal(t, "/data/override.db", DefaultConfig("/tmp/x.db").Path)
}
