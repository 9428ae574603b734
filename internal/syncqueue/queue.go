package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/connectivity"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/logging"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/remote"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/store"
	"github.com/google/uuid"
)

// ErrNotCancellable is returned by Cancel for items past pending: an
// in-flight attempt must finish first so the remote side never ends up in
// an ambiguous half-applied state.
var ErrNotCancellable = errors.New("item is not cancellable")

// Queue is the prioritized sync queue. One drain runs at a time; drains
// only proceed while connectivity reports online.
type Queue struct {
	repo    Repository
	records *store.Store
	client  remote.Client
	status  *connectivity.Monitor
	backoff Backoff

	attemptTimeout time.Duration
	log            logging.Logger
	now            func() time.Time

	drainMu sync.Mutex
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithBackoff overrides the retry backoff.
func WithBackoff(b Backoff) QueueOption {
	return func(q *Queue) { q.backoff = b }
}

// WithAttemptTimeout bounds each network attempt; an expired attempt is a
// retryable failure, never a hang.
func WithAttemptTimeout(d time.Duration) QueueOption {
	return func(q *Queue) { q.attemptTimeout = d }
}

// WithQueueClock overrides the time source for tests.
func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

func New(repo Repository, records *store.Store, client remote.Client,
	status *connectivity.Monitor, log logging.Logger, opts ...QueueOption) *Queue {
	q := &Queue{
		repo:           repo,
		records:        records,
		client:         client,
		status:         status,
		backoff:        DefaultBackoff(),
		attemptTimeout: 15 * time.Second,
		log:            log,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Recover returns interrupted in-flight items to pending. Run once on
// startup, before the first drain.
func (q *Queue) Recover(ctx context.Context) error {
	return q.repo.ResetInFlight(ctx)
}

// Enqueue snapshots a just-written record as a pending mutation. The
// snapshot carries the record's encrypted payload and version, so later
// local edits do not mutate what this item will send.
func (q *Queue) Enqueue(ctx context.Context, op remote.Operation, rec *store.Record, priority Priority) (*Item, error) {
	now := q.now().UTC()
	it := &Item{
		ID:            uuid.NewString(),
		Table:         rec.Table,
		RecordID:      rec.ID,
		Op:            op,
		Priority:      priority,
		NextAttemptAt: now,
		EnqueuedAt:    now,
		Status:        StatusPending,
		Version:       rec.Version,
		Payload:       rec.Payload,
		Nonce:         rec.Nonce,
		KeyVersion:    rec.KeyVersion,
	}
	if err := q.repo.Insert(ctx, it); err != nil {
		return nil, fmt.Errorf("failed to enqueue: %w", err)
	}
	q.log.Debug(ctx, "enqueued", "item", it.ID, "op", string(op), "priority", priority.String())
	return it, nil
}

// Cancel discards a pending item. In-flight items finish their current
// attempt first; terminal items go through Accept instead.
func (q *Queue) Cancel(ctx context.Context, itemID string) error {
	it, err := q.repo.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if it.Status != StatusPending {
		return fmt.Errorf("item %s is %s: %w", itemID, it.Status, ErrNotCancellable)
	}
	return q.repo.Delete(ctx, itemID)
}

// Terminal lists items held after a non-retryable rejection. Callers must
// surface them to the user; the queue never discards them on its own.
func (q *Queue) Terminal(ctx context.Context) ([]*Item, error) {
	return q.repo.ListByStatus(ctx, StatusTerminal)
}

// Accept removes a terminal item after the caller has acknowledged the
// failure.
func (q *Queue) Accept(ctx context.Context, itemID string) error {
	it, err := q.repo.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if it.Status != StatusTerminal {
		return fmt.Errorf("item %s is %s, not terminal", itemID, it.Status)
	}
	return q.repo.Delete(ctx, itemID)
}

// Pending reports the number of items still waiting to sync.
func (q *Queue) Pending(ctx context.Context) (int, error) {
	items, err := q.repo.ListByStatus(ctx, StatusPending)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Drain processes due items against the remote until the ready set is
// exhausted or connectivity drops. Only one drain runs at a time; a
// concurrent call returns immediately with no outcomes. Draining an empty
// queue is a no-op.
func (q *Queue) Drain(ctx context.Context) ([]Outcome, error) {
	if !q.drainMu.TryLock() {
		return nil, nil
	}
	defer q.drainMu.Unlock()

	if q.status.Now() != connectivity.StatusOnline {
		return nil, nil
	}

	items, err := q.repo.Due(ctx, q.now())
	if err != nil {
		return nil, fmt.Errorf("failed to load due items: %w", err)
	}

	var outcomes []Outcome
	for _, it := range items {
		if q.status.Now() != connectivity.StatusOnline {
			// interrupted drains leave the rest pending, attempts untouched
			outcomes = append(outcomes, q.outcome(it, OutcomePaused, nil))
			break
		}
		outcomes = append(outcomes, q.process(ctx, it))
		if ctx.Err() != nil {
			break
		}
	}
	return outcomes, nil
}

func (q *Queue) process(ctx context.Context, it *Item) Outcome {
	it.Status = StatusInFlight
	if err := q.repo.Update(ctx, it); err != nil {
		return q.outcome(it, OutcomeRetryScheduled, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, q.attemptTimeout)
	res, err := q.client.Send(attemptCtx, it.change())
	cancel()

	switch {
	case err == nil && res.Conflict == nil:
		return q.acknowledge(ctx, it)

	case err == nil:
		return q.resolveConflict(ctx, it, res.Conflict)

	case errors.Is(err, common.ErrTerminal):
		it.Status = StatusTerminal
		it.FailureReason = err.Error()
		if uerr := q.repo.Update(ctx, it); uerr != nil {
			q.log.Error(ctx, "failed to persist terminal state", "item", it.ID, "error", uerr)
		}
		q.log.Warn(ctx, "item rejected by remote", "item", it.ID, "error", err)
		return q.outcome(it, OutcomeTerminal, err)

	default:
		return q.scheduleRetry(ctx, it, err)
	}
}

func (q *Queue) acknowledge(ctx context.Context, it *Item) Outcome {
	if err := q.repo.Delete(ctx, it.ID); err != nil {
		return q.outcome(it, OutcomeRetryScheduled, err)
	}
	// an acknowledged delete ends the tombstone's reason to exist
	if it.Op == remote.OpDelete {
		if err := q.records.PurgeTombstone(ctx, it.Table, it.RecordID); err != nil {
			q.log.Warn(ctx, "tombstone purge failed", "key", it.Table+":"+it.RecordID, "error", err)
		}
	}
	q.log.Debug(ctx, "acknowledged", "item", it.ID)
	return q.outcome(it, OutcomeAcked, nil)
}

func (q *Queue) scheduleRetry(ctx context.Context, it *Item, cause error) Outcome {
	it.Status = StatusPending

	// a drop to offline mid-attempt is an interruption, not a failure
	if q.status.Now() != connectivity.StatusOnline {
		if err := q.repo.Update(ctx, it); err != nil {
			q.log.Error(ctx, "failed to pause item", "item", it.ID, "error", err)
		}
		return q.outcome(it, OutcomePaused, nil)
	}

	it.Attempts++
	it.NextAttemptAt = q.now().UTC().Add(q.backoff.Delay(it.Attempts))
	if err := q.repo.Update(ctx, it); err != nil {
		q.log.Error(ctx, "failed to schedule retry", "item", it.ID, "error", err)
	}
	q.log.Debug(ctx, "retry scheduled", "item", it.ID,
		"attempts", it.Attempts, "next_attempt_at", it.NextAttemptAt)
	return q.outcome(it, OutcomeRetryScheduled, cause)
}

// resolveConflict applies the merge policy: a local delete wins over the
// remote's newer update and is re-sent one version past the remote's, so
// the remote's newest-version check accepts it; any other stale local
// change yields to the remote, whose payload is installed locally before
// the queued item is dropped. A newer remote state is never overwritten
// by a stale local one.
func (q *Queue) resolveConflict(ctx context.Context, it *Item, c *remote.Conflict) Outcome {
	if it.Op == remote.OpDelete {
		it.Status = StatusPending
		it.Version = c.Version + 1
		it.NextAttemptAt = q.now().UTC()
		if err := q.repo.Update(ctx, it); err != nil {
			return q.outcome(it, OutcomeRetryScheduled, err)
		}
		q.log.Info(ctx, "delete wins conflict, re-sending", "item", it.ID, "version", it.Version)
		return q.outcome(it, OutcomeRetryScheduled, common.ErrVersionConflict)
	}

	rec := &store.Record{
		Table:      it.Table,
		ID:         it.RecordID,
		Payload:    c.Payload,
		Nonce:      c.Nonce,
		KeyVersion: c.KeyVersion,
		Version:    c.Version,
		Deleted:    c.Deleted,
	}
	if err := q.records.ApplyRemote(ctx, rec); err != nil {
		return q.outcome(it, OutcomeRetryScheduled, err)
	}
	if err := q.repo.Delete(ctx, it.ID); err != nil {
		return q.outcome(it, OutcomeRetryScheduled, err)
	}
	q.log.Info(ctx, "conflict resolved from remote", "item", it.ID, "version", c.Version)
	return q.outcome(it, OutcomeConflictResolved, nil)
}

func (q *Queue) outcome(it *Item, kind OutcomeKind, err error) Outcome {
	return Outcome{
		ItemID:   it.ID,
		Table:    it.Table,
		RecordID: it.RecordID,
		Op:       it.Op,
		Kind:     kind,
		Err:      err,
	}
}
