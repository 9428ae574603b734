// Package syncqueue implements the durable, prioritized queue of pending
// mutations awaiting transmission to the remote endpoint. Items survive
// restarts in the shared local database and drain opportunistically when
// connectivity is available.
package syncqueue

import (
	"fmt"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/remote"
)

// Priority orders drain processing. Higher drains first; ties break by
// readiness time and then enqueue order, so old low-priority items are
// never starved forever behind a steady stream of equals.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityMedium Priority = 1
	PriorityHigh   Priority = 2
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// ParsePriority converts a config/user string to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "high":
		return PriorityHigh, nil
	case "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// Status is the per-item state machine position.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInFlight Status = "in_flight"
	StatusTerminal Status = "terminal"
)

// Item is one queued mutation. Payload and Nonce hold the encrypted record
// snapshot captured at enqueue time; Version is the local record version
// used by the remote for conflict detection.
//
// Lifecycle: pending -> in_flight -> removed on ack, back to pending with
// a backoff on a retryable failure, or terminal when the remote explicitly
// rejects. Terminal items are held visible until the caller accepts them;
// they are never silently dropped.
type Item struct {
	ID            string
	Table         string
	RecordID      string
	Op            remote.Operation
	Priority      Priority
	Attempts      int
	NextAttemptAt time.Time
	EnqueuedAt    time.Time
	Status        Status
	Version       int64
	Payload       []byte
	Nonce         []byte
	KeyVersion    int
	FailureReason string
}

// change builds the wire form of the item.
func (it *Item) change() *remote.Change {
	return &remote.Change{
		Table:      it.Table,
		RecordID:   it.RecordID,
		Operation:  it.Op,
		Version:    it.Version,
		Payload:    it.Payload,
		Nonce:      it.Nonce,
		KeyVersion: it.KeyVersion,
	}
}

// OutcomeKind classifies what a drain pass did with an item.
type OutcomeKind int

const (
	// OutcomeAcked: the remote acknowledged; the item was removed.
	OutcomeAcked OutcomeKind = iota
	// OutcomeRetryScheduled: retryable failure; the item went back to
	// pending with an increased backoff (or, for a conflicted delete, an
	// immediate re-send one version past the remote's).
	OutcomeRetryScheduled
	// OutcomeTerminal: the remote explicitly rejected; the item is held
	// for the caller to surface and accept.
	OutcomeTerminal
	// OutcomeConflictResolved: the remote had a newer version; its payload
	// was applied locally and the stale local item dropped. Informational,
	// not an error.
	OutcomeConflictResolved
	// OutcomePaused: connectivity was lost mid-drain; the item stayed
	// pending with no attempt counted.
	OutcomePaused
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAcked:
		return "acked"
	case OutcomeRetryScheduled:
		return "retry_scheduled"
	case OutcomeTerminal:
		return "terminal"
	case OutcomeConflictResolved:
		return "conflict_resolved"
	case OutcomePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Outcome reports the result of processing one item during a drain.
type Outcome struct {
	ItemID   string
	Table    string
	RecordID string
	Op       remote.Operation
	Kind     OutcomeKind
	Err      error
}
