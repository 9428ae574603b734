package store

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/cryptox"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func unlockedSession(t *testing.T) *cryptox.Session {
	t.Helper()
	s := cryptox.NewSession()
	s.Unlock(common.GenerateRandByteArray(cryptox.KeySize), 1)
	return s
}

func newTestStore(t *testing.T) (*Store, *SQLiteRepository) {
	t.Helper()
	repo := NewSQLiteRepository(setupDB(t))
	s := New(repo, unlockedSession(t), discardLogger(),
		WithSensitiveTables(TablePainEntries))
	return s, repo
}

func TestStore_PutEncryptsSensitiveTables(t *testing.T) {
	s, repo := newTestStore(t)
	ctx := context.Background()
	payload := []byte(`{"pain":7,"notes":"ache"}`)

	rec, err := s.Put(ctx, TablePainEntries, "e1", payload)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
	assert.True(t, rec.Encrypted())
	assert.NotEqual(t, payload, rec.Payload, "durable payload must be ciphertext")

	// the durable row holds the same encrypted form
	durable, err := repo.Get(ctx, TablePainEntries, "e1")
	require.NoError(t, err)
	assert.Equal(t, rec.Payload, durable.Payload)
	assert.Equal(t, rec.Nonce, durable.Nonce)

	got, _, err := s.GetDecrypted(ctx, TablePainEntries, "e1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestStore_PutPlainTable(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec, err := s.Put(ctx, TableSettings, "theme", []byte("dark"))
	require.NoError(t, err)
	assert.False(t, rec.Encrypted())

	got, _, err := s.GetDecrypted(ctx, TableSettings, "theme")
	require.NoError(t, err)
	assert.Equal(t, []byte("dark"), got)
}

func TestStore_PutBumpsVersion(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		rec, err := s.Put(ctx, TablePainEntries, "e1", []byte{byte(i)})
		require.NoError(t, err)
		assert.Equal(t, int64(i), rec.Version)
	}
}

func TestStore_PutFailsWhenLocked(t *testing.T) {
	session := cryptox.NewSession()
	repo := NewSQLiteRepository(setupDB(t))
	s := New(repo, session, discardLogger(), WithSensitiveTables(TablePainEntries))
	ctx := context.Background()

	_, err := s.Put(ctx, TablePainEntries, "e1", []byte("x"))
	require.ErrorIs(t, err, common.ErrKeyLocked)

	// a failed encrypt must leave nothing behind
	_, err = repo.Get(ctx, TablePainEntries, "e1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStore_GetServesFromMirror(t *testing.T) {
	s, repo := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, TableSettings, "theme", []byte("dark"))
	require.NoError(t, err)

	// remove the durable row behind the store's back: a mirror hit proves
	// the fast path answered
	require.NoError(t, repo.Remove(ctx, TableSettings, "theme"))

	rec, err := s.Get(ctx, TableSettings, "theme")
	require.NoError(t, err)
	assert.Equal(t, []byte("dark"), rec.Payload)
}

func TestStore_DeleteWritesTombstone(t *testing.T) {
	s, repo := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, TablePainEntries, "e1", []byte("x"))
	require.NoError(t, err)

	tomb, err := s.Delete(ctx, TablePainEntries, "e1")
	require.NoError(t, err)
	assert.True(t, tomb.Deleted)
	assert.Equal(t, int64(2), tomb.Version)
	assert.Nil(t, tomb.Payload)

	// reads no longer see it
	_, err = s.Get(ctx, TablePainEntries, "e1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// the durable row survives as a tombstone until purged
	durable, err := repo.Get(ctx, TablePainEntries, "e1")
	require.NoError(t, err)
	assert.True(t, durable.Deleted)

	// versions continue across the tombstone
	rec, err := s.Put(ctx, TablePainEntries, "e1", []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Version)
}

func TestStore_DeleteMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Delete(context.Background(), TablePainEntries, "absent")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStore_QueryReadsDurableAndSkipsTombstones(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := s.Put(ctx, TablePainEntries, id, []byte(id))
		require.NoError(t, err)
	}
	_, err := s.Delete(ctx, TablePainEntries, "b")
	require.NoError(t, err)

	recs, err := s.Query(ctx, TablePainEntries, nil)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	recs, err = s.Query(ctx, TablePainEntries, func(r *Record) bool { return r.ID == "c" })
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "c", recs[0].ID)
}

func TestStore_ConcurrentSameKeyWritesAreSerialized(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const writers = 4
	const perWriter = 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := s.Put(ctx, TablePainEntries, "hot", []byte("x"))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	rec, err := s.Get(ctx, TablePainEntries, "hot")
	require.NoError(t, err)
	assert.Equal(t, int64(writers*perWriter), rec.Version,
		"every write must be applied exactly once")
}

func TestStore_RebuildFromDurable(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	session := unlockedSession(t)
	ctx := context.Background()

	first := New(repo, session, discardLogger(), WithSensitiveTables(TablePainEntries))
	_, err := first.Put(ctx, TablePainEntries, "e1", []byte("x"))
	require.NoError(t, err)
	_, err = first.Put(ctx, TablePainEntries, "e2", []byte("y"))
	require.NoError(t, err)
	_, err = first.Delete(ctx, TablePainEntries, "e2")
	require.NoError(t, err)

	// cold start over the same durable store
	second := New(repo, session, discardLogger(), WithSensitiveTables(TablePainEntries))
	require.NoError(t, second.Rebuild(ctx))
	assert.Equal(t, 1, second.mirror.Len(), "tombstones stay out of the mirror")

	rec, err := second.Get(ctx, TablePainEntries, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
}

func TestStore_ApplyRemoteAdoptsVersion(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, TablePainEntries, "e1", []byte("local"))
	require.NoError(t, err)

	remote := &Record{
		Table: TablePainEntries, ID: "e1",
		Payload: []byte("remote-ct"), Nonce: []byte("nonce0123456"), KeyVersion: 1,
		Version: 9,
	}
	require.NoError(t, s.ApplyRemote(ctx, remote))

	rec, err := s.Get(ctx, TablePainEntries, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), rec.Version)
	assert.Equal(t, []byte("remote-ct"), rec.Payload)
}

func TestStore_PurgeTombstone(t *testing.T) {
	s, repo := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, TablePainEntries, "e1", []byte("x"))
	require.NoError(t, err)

	// refuses to purge a live record
	err = s.PurgeTombstone(ctx, TablePainEntries, "e1")
	require.Error(t, err)

	_, err = s.Delete(ctx, TablePainEntries, "e1")
	require.NoError(t, err)
	require.NoError(t, s.PurgeTombstone(ctx, TablePainEntries, "e1"))

	_, err = repo.Get(ctx, TablePainEntries, "e1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// purging an already-absent key is a no-op
	assert.NoError(t, s.PurgeTombstone(ctx, TablePainEntries, "e1"))
}

func TestStore_RenameTable(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, TablePainEntries, "e1", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.RenameTable(ctx, TablePainEntries, "pain_log"))

	_, err = s.Get(ctx, TablePainEntries, "e1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	got, _, err := s.GetDecrypted(ctx, "pain_log", "e1")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}
