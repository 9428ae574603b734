package client

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDatabase(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "client.db")

	repos, err := InitDatabase(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	require.NotNil(t, repos.Metadata)
	require.NotNil(t, repos.Records)
	require.NotNil(t, repos.Queue)
	require.NotNil(t, repos.Cache)

	// the migrated schema is usable end to end
	require.NoError(t, repos.Metadata.Set(ctx, "probe", []byte("ok")))
	v, err := repos.Metadata.Get(ctx, "probe")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), v)

	for _, table := range []string{"records", "queue_items", "metadata", "cache_version", "cache_entries"} {
		var n int
		err := repos.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "table %s missing", table)
	}
}

func TestInitDatabase_Reopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "client.db")

	repos, err := InitDatabase(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, repos.Metadata.Set(ctx, "probe", []byte("ok")))
	require.NoError(t, repos.Close())

	// migrations are idempotent across restarts
	repos, err = InitDatabase(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	v, err := repos.Metadata.Get(ctx, "probe")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), v)
}
