package syncqueue

import (
	"context"
	"time"
)

// Repository persists queue items. Implementations share the local SQLite
// database with the record store so queue durability and record durability
// survive restarts together.
type Repository interface {
	Insert(ctx context.Context, it *Item) error
	Update(ctx context.Context, it *Item) error
	Delete(ctx context.Context, id string) error

	// GetByID returns an item or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*Item, error)

	// Due returns pending items ready to send at now, ordered by
	// (priority desc, next_attempt_at asc, enqueued_at asc).
	Due(ctx context.Context, now time.Time) ([]*Item, error)

	// ListByStatus returns items in a given state, oldest first.
	ListByStatus(ctx context.Context, status Status) ([]*Item, error)

	// ResetInFlight moves in_flight items back to pending without touching
	// their attempt counts. Called on startup: an attempt interrupted by a
	// crash is not a failure.
	ResetInFlight(ctx context.Context) error
}
