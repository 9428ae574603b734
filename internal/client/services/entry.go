package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/client/models"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/remote"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/store"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/syncqueue"
	"github.com/google/uuid"
)

// EntryView pairs a decrypted entry with its record identity for display.
type EntryView struct {
	ID      string
	Version int64
	Entry   *models.PainEntry
}

// EntryService is the mutation path for pain entries: every write lands in
// the local store first and is then queued for sync, so data entry never
// waits on the network. Severe entries sync at high priority.
type EntryService interface {
	Add(ctx context.Context, entry *models.PainEntry) (string, error)
	Update(ctx context.Context, id string, entry *models.PainEntry) error
	Get(ctx context.Context, id string) (*EntryView, error)
	List(ctx context.Context) ([]*EntryView, error)
	Delete(ctx context.Context, id string) error
	Sync(ctx context.Context) ([]syncqueue.Outcome, error)
	PendingCount(ctx context.Context) (int, error)
	Failures(ctx context.Context) ([]*syncqueue.Item, error)
	AcceptFailure(ctx context.Context, itemID string) error
}

type entryService struct {
	records *store.Store
	queue   *syncqueue.Queue
}

func NewEntryService(records *store.Store, queue *syncqueue.Queue) EntryService {
	return &entryService{records: records, queue: queue}
}

func (s *entryService) Add(ctx context.Context, entry *models.PainEntry) (string, error) {
	if err := entry.Validate(); err != nil {
		return "", err
	}
	payload, err := entry.Marshal()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	rec, err := s.records.Put(ctx, store.TablePainEntries, id, payload)
	if err != nil {
		return "", fmt.Errorf("failed to save entry: %w", err)
	}

	if _, err := s.queue.Enqueue(ctx, remote.OpCreate, rec, entryPriority(entry)); err != nil {
		return "", fmt.Errorf("saved locally but failed to queue for sync: %w", err)
	}
	return id, nil
}

func (s *entryService) Update(ctx context.Context, id string, entry *models.PainEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	payload, err := entry.Marshal()
	if err != nil {
		return err
	}

	rec, err := s.records.Put(ctx, store.TablePainEntries, id, payload)
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}

	if _, err := s.queue.Enqueue(ctx, remote.OpUpdate, rec, entryPriority(entry)); err != nil {
		return fmt.Errorf("saved locally but failed to queue for sync: %w", err)
	}
	return nil
}

func (s *entryService) Get(ctx context.Context, id string) (*EntryView, error) {
	plaintext, rec, err := s.records.GetDecrypted(ctx, store.TablePainEntries, id)
	if err != nil {
		return nil, err
	}
	entry, err := models.UnmarshalPainEntry(plaintext)
	if err != nil {
		return nil, err
	}
	return &EntryView{ID: rec.ID, Version: rec.Version, Entry: entry}, nil
}

// List returns all live entries, newest first. Reads go through the durable
// store for completeness; decryption is transient per entry.
func (s *entryService) List(ctx context.Context) ([]*EntryView, error) {
	recs, err := s.records.Query(ctx, store.TablePainEntries, nil)
	if err != nil {
		return nil, err
	}

	views := make([]*EntryView, 0, len(recs))
	for _, rec := range recs {
		view, err := s.Get(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", rec.ID, err)
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].Entry.RecordedAt.After(views[j].Entry.RecordedAt)
	})
	return views, nil
}

// Delete tombstones the entry locally and queues the deletion at high
// priority; the tombstone is purged once the remote acknowledges it.
func (s *entryService) Delete(ctx context.Context, id string) error {
	rec, err := s.records.Delete(ctx, store.TablePainEntries, id)
	if err != nil {
		return err
	}
	if _, err := s.queue.Enqueue(ctx, remote.OpDelete, rec, syncqueue.PriorityHigh); err != nil {
		return fmt.Errorf("deleted locally but failed to queue for sync: %w", err)
	}
	return nil
}

func (s *entryService) Sync(ctx context.Context) ([]syncqueue.Outcome, error) {
	return s.queue.Drain(ctx)
}

func (s *entryService) PendingCount(ctx context.Context) (int, error) {
	return s.queue.Pending(ctx)
}

func (s *entryService) Failures(ctx context.Context) ([]*syncqueue.Item, error) {
	return s.queue.Terminal(ctx)
}

func (s *entryService) AcceptFailure(ctx context.Context, itemID string) error {
	return s.queue.Accept(ctx, itemID)
}

func entryPriority(e *models.PainEntry) syncqueue.Priority {
	if e.Severe() {
		return syncqueue.PriorityHigh
	}
	return syncqueue.PriorityMedium
}
