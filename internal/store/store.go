package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/cryptox"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/logging"
)

// Store is the logical-table abstraction over the durable repository and
// the in-memory mirror. Writes go durable-first, then mirror; point reads
// consult the mirror first; queries always read durable storage so results
// are complete even when the mirror is cold.
type Store struct {
	repo      Repository
	session   *cryptox.Session
	mirror    *Mirror
	locks     keyLocks
	sensitive map[string]bool
	log       logging.Logger
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithSensitiveTables marks logical tables whose payloads are encrypted
// before any durable write.
func WithSensitiveTables(tables ...string) Option {
	return func(s *Store) {
		for _, t := range tables {
			s.sensitive[t] = true
		}
	}
}

// WithClock overrides the time source. Tests inject a fixed clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(repo Repository, session *cryptox.Session, log logging.Logger, opts ...Option) *Store {
	s := &Store{
		repo:      repo,
		session:   session,
		mirror:    NewMirror(),
		sensitive: make(map[string]bool),
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rebuild repopulates the mirror from durable storage. Called on cold
// start; the mirror is strictly derived state and is never the source of
// truth, so rebuilding is always safe.
func (s *Store) Rebuild(ctx context.Context) error {
	recs, err := s.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to rebuild cache: %w", err)
	}
	s.mirror.Reset(recs)
	s.log.Debug(ctx, "cache rebuilt", "records", s.mirror.Len())
	return nil
}

// Get returns the record for (table, id), or common.ErrNotFound for a
// missing or tombstoned record. Point lookups are served from the mirror
// when possible.
func (s *Store) Get(ctx context.Context, table, id string) (*Record, error) {
	if rec, ok := s.mirror.Get(table + ":" + id); ok {
		return rec, nil
	}
	rec, err := s.repo.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if rec.Deleted {
		return nil, common.ErrNotFound
	}
	return rec, nil
}

// GetDecrypted fetches a record and, for encrypted payloads, transiently
// decrypts it in memory for this call only. Nothing decrypted is written
// back to either tier.
func (s *Store) GetDecrypted(ctx context.Context, table, id string) ([]byte, *Record, error) {
	rec, err := s.Get(ctx, table, id)
	if err != nil {
		return nil, nil, err
	}
	if !rec.Encrypted() {
		return rec.Payload, rec, nil
	}
	plaintext, err := s.session.Decrypt(rec.Blob())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt %s: %w", rec.Key(), err)
	}
	return plaintext, rec, nil
}

// Put writes a payload under (table, id), bumping the version. Payloads of
// sensitive tables are encrypted first; an encryption or durable-write
// failure propagates to the caller and is never reported as success.
func (s *Store) Put(ctx context.Context, table, id string, payload []byte) (*Record, error) {
	unlock := s.locks.lock(table + ":" + id)
	defer unlock()

	rec := &Record{Table: table, ID: id, Version: 1, UpdatedAt: s.now().UTC()}

	prev, err := s.repo.Get(ctx, table, id)
	switch {
	case err == nil:
		rec.Version = prev.Version + 1
	case !errors.Is(err, common.ErrNotFound):
		return nil, err
	}

	if s.sensitive[table] {
		blob, err := s.session.Encrypt(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt payload: %w", err)
		}
		rec.Payload, rec.Nonce, rec.KeyVersion = blob.Ciphertext, blob.Nonce, blob.KeyVersion
	} else {
		rec.Payload = payload
	}

	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	s.mirror.Put(rec)
	return rec.clone(), nil
}

// Delete writes a tombstone for (table, id). The row stays in durable
// storage until the deletion is acknowledged by the remote and purged, so
// a stale sync can never resurrect it. Deleting a missing record returns
// common.ErrNotFound.
func (s *Store) Delete(ctx context.Context, table, id string) (*Record, error) {
	unlock := s.locks.lock(table + ":" + id)
	defer unlock()

	prev, err := s.repo.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if prev.Deleted {
		return nil, common.ErrNotFound
	}

	rec := &Record{
		Table:     table,
		ID:        id,
		Version:   prev.Version + 1,
		Deleted:   true,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	s.mirror.Put(rec)
	return rec.clone(), nil
}

// Query returns all live records of a table matching pred (nil matches
// everything). It reads durable storage only: completeness beats latency
// here, and the mirror holds just a subset by contract.
func (s *Store) Query(ctx context.Context, table string, pred func(*Record) bool) ([]*Record, error) {
	recs, err := s.repo.List(ctx, table)
	if err != nil {
		return nil, err
	}
	result := make([]*Record, 0, len(recs))
	for _, rec := range recs {
		if rec.Deleted {
			continue
		}
		if pred == nil || pred(rec) {
			result = append(result, rec)
		}
	}
	return result, nil
}

// ApplyRemote installs a payload accepted from the remote during conflict
// resolution, adopting the remote's version as-is instead of bumping.
func (s *Store) ApplyRemote(ctx context.Context, rec *Record) error {
	unlock := s.locks.lock(rec.Key())
	defer unlock()

	rec = rec.clone()
	rec.UpdatedAt = s.now().UTC()
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return err
	}
	s.mirror.Put(rec)
	return nil
}

// PurgeTombstone physically removes an acknowledged tombstone. It refuses
// to remove live records. Called by the sync queue once the remote has
// confirmed the deletion.
func (s *Store) PurgeTombstone(ctx context.Context, table, id string) error {
	unlock := s.locks.lock(table + ":" + id)
	defer unlock()

	rec, err := s.repo.Get(ctx, table, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !rec.Deleted {
		return fmt.Errorf("record %s is not a tombstone", rec.Key())
	}
	if err := s.repo.Remove(ctx, table, id); err != nil {
		return err
	}
	s.mirror.Forget(table + ":" + id)
	return nil
}

// RenameTable migrates a logical table to a new prefix and rebuilds the
// mirror. This is the only store-level migration payload evolution needs.
func (s *Store) RenameTable(ctx context.Context, oldName, newName string) error {
	if err := s.repo.RenameTable(ctx, oldName, newName); err != nil {
		return err
	}
	if s.sensitive[oldName] {
		delete(s.sensitive, oldName)
		s.sensitive[newName] = true
	}
	return s.Rebuild(ctx)
}
