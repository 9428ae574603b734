package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/remote"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/server/models"
)

type fakeRecordsRepo struct {
	rows map[string]*models.SyncRecord

	getErr    error
	upsertErr error
}

func key(userID, tbl, recordID string) string {
	return userID + "/" + tbl + "/" + recordID
}

func (f *fakeRecordsRepo) Get(ctx context.Context, userID, tbl, recordID string) (*models.SyncRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.rows[key(userID, tbl, recordID)]
	if !ok {
		return nil, common.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRecordsRepo) Upsert(ctx context.Context, rec *models.SyncRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if f.rows == nil {
		f.rows = map[string]*models.SyncRecord{}
	}
	f.rows[key(rec.UserID, rec.Table, rec.RecordID)] = rec
	return nil
}

func TestSyncService_Apply_NewRecord(t *testing.T) {
	repo := &fakeRecordsRepo{}
	svc := NewSyncService(repo)

	conflict, err := svc.Apply(context.Background(), "u1", &remote.Change{
		Table:      "pain_entries",
		RecordID:   "r1",
		Operation:  remote.OpCreate,
		Version:    1,
		Payload:    []byte("ct"),
		Nonce:      []byte("n"),
		KeyVersion: 1,
	})
	require.NoError(t, err)
	assert.Nil(t, conflict)

	stored := repo.rows[key("u1", "pain_entries", "r1")]
	require.NotNil(t, stored)
	assert.Equal(t, int64(1), stored.Version)
	assert.False(t, stored.Deleted)
}

func TestSyncService_Apply_NewerVersionWins(t *testing.T) {
	repo := &fakeRecordsRepo{rows: map[string]*models.SyncRecord{
		key("u1", "pain_entries", "r1"): {UserID: "u1", Table: "pain_entries", RecordID: "r1", Version: 2},
	}}
	svc := NewSyncService(repo)

	conflict, err := svc.Apply(context.Background(), "u1", &remote.Change{
		Table:     "pain_entries",
		RecordID:  "r1",
		Operation: remote.OpUpdate,
		Version:   3,
		Payload:   []byte("new"),
	})
	require.NoError(t, err)
	assert.Nil(t, conflict)
	assert.Equal(t, int64(3), repo.rows[key("u1", "pain_entries", "r1")].Version)
}

func TestSyncService_Apply_StaleVersionConflicts(t *testing.T) {
	repo := &fakeRecordsRepo{rows: map[string]*models.SyncRecord{
		key("u1", "pain_entries", "r1"): {
			UserID: "u1", Table: "pain_entries", RecordID: "r1",
			Version: 5, Payload: []byte("server"), Nonce: []byte("sn"), KeyVersion: 1,
		},
	}}
	svc := NewSyncService(repo)

	conflict, err := svc.Apply(context.Background(), "u1", &remote.Change{
		Table:     "pain_entries",
		RecordID:  "r1",
		Operation: remote.OpUpdate,
		Version:   3,
		Payload:   []byte("stale"),
	})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, int64(5), conflict.Version)
	assert.Equal(t, []byte("server"), conflict.Payload)

	// the stale write must not overwrite the stored row
	assert.Equal(t, []byte("server"), repo.rows[key("u1", "pain_entries", "r1")].Payload)
}

func TestSyncService_Apply_EqualVersionConflicts(t *testing.T) {
	repo := &fakeRecordsRepo{rows: map[string]*models.SyncRecord{
		key("u1", "pain_entries", "r1"): {UserID: "u1", Table: "pain_entries", RecordID: "r1", Version: 4},
	}}
	svc := NewSyncService(repo)

	conflict, err := svc.Apply(context.Background(), "u1", &remote.Change{
		Table: "pain_entries", RecordID: "r1", Operation: remote.OpUpdate, Version: 4,
	})
	require.NoError(t, err)
	assert.NotNil(t, conflict)
}

func TestSyncService_Apply_DeleteStoresTombstone(t *testing.T) {
	repo := &fakeRecordsRepo{rows: map[string]*models.SyncRecord{
		key("u1", "pain_entries", "r1"): {UserID: "u1", Table: "pain_entries", RecordID: "r1", Version: 2},
	}}
	svc := NewSyncService(repo)

	conflict, err := svc.Apply(context.Background(), "u1", &remote.Change{
		Table: "pain_entries", RecordID: "r1", Operation: remote.OpDelete, Version: 3,
	})
	require.NoError(t, err)
	assert.Nil(t, conflict)

	stored := repo.rows[key("u1", "pain_entries", "r1")]
	assert.True(t, stored.Deleted)
	assert.Equal(t, int64(3), stored.Version)
}

func TestSyncService_Apply_ConflictReportsDeleted(t *testing.T) {
	repo := &fakeRecordsRepo{rows: map[string]*models.SyncRecord{
		key("u1", "pain_entries", "r1"): {
			UserID: "u1", Table: "pain_entries", RecordID: "r1", Version: 6, Deleted: true,
		},
	}}
	svc := NewSyncService(repo)

	conflict, err := svc.Apply(context.Background(), "u1", &remote.Change{
		Table: "pain_entries", RecordID: "r1", Operation: remote.OpUpdate, Version: 4,
	})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.True(t, conflict.Deleted)
	assert.Equal(t, int64(6), conflict.Version)
}

func TestSyncService_Apply_UsersIsolated(t *testing.T) {
	repo := &fakeRecordsRepo{rows: map[string]*models.SyncRecord{
		key("u1", "pain_entries", "r1"): {UserID: "u1", Table: "pain_entries", RecordID: "r1", Version: 9},
	}}
	svc := NewSyncService(repo)

	conflict, err := svc.Apply(context.Background(), "u2", &remote.Change{
		Table: "pain_entries", RecordID: "r1", Operation: remote.OpCreate, Version: 1,
	})
	require.NoError(t, err)
	assert.Nil(t, conflict)
	assert.Equal(t, int64(1), repo.rows[key("u2", "pain_entries", "r1")].Version)
	assert.Equal(t, int64(9), repo.rows[key("u1", "pain_entries", "r1")].Version)
}
