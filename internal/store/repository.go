package store

import "context"

// Repository describes the durable half of the store. Implementations are
// backed by the shared local SQLite database.
type Repository interface {
	// Get returns the record for (table, id) including tombstones, or
	// common.ErrNotFound.
	Get(ctx context.Context, table, id string) (*Record, error)

	// Upsert writes a record by its key. Storage exhaustion surfaces as
	// common.ErrStorageFull.
	Upsert(ctx context.Context, rec *Record) error

	// List returns all records of a logical table, tombstones included.
	List(ctx context.Context, table string) ([]*Record, error)

	// ListAll returns every record in the physical store. Used to rebuild
	// the in-memory mirror on cold start.
	ListAll(ctx context.Context) ([]*Record, error)

	// Remove physically deletes a row. Only the tombstone purge path may
	// call this; ordinary deletion writes a tombstone via Upsert.
	Remove(ctx context.Context, table, id string) error

	// RenameTable rewrites the key prefix of every record in a logical
	// table. This is the one store-level migration the schema needs.
	RenameTable(ctx context.Context, oldName, newName string) error
}
