package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsbernar/proxy-auth/config"
)

func TestOpenAndMigrate_SQLite(t *testing.T) {
	cfg := config.Config{DatabaseFile: filepath.Join(t.TempDir(), "users.db")}

	require.NoError(t, Migrate(cfg))
	// Re-running against an up-to-date schema is a no-op.
	require.NoError(t, Migrate(cfg))

	conn, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer conn.Close()

	var count int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(1) FROM users`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestDataSource(t *testing.T) {
	driver, dsn := dataSource(config.Config{DatabaseFile: "/data/users.db"})
	assert.Equal(t, "sqlite", driver)
	assert.Equal(t, "/data/users.db?"+sqlitePragmas, dsn)

	driver, dsn = dataSource(config.Config{DatabaseFile: "/data/users.db", DatabaseURL: " postgres://u:p@db/auth "})
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "postgres://u:p@db/auth", dsn)
}
