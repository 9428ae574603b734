package syncqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/dbx"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/remote"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository implements Repository over a DBTX. Timestamps are kept
// as integer unix nanoseconds so the drain ordering can be expressed in
// SQL.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const itemColumns = `id, tbl, record_id, op, priority, attempts, next_attempt_at, enqueued_at, status, version, payload, nonce, key_version, failure_reason`

func (r *SQLiteRepository) Insert(ctx context.Context, it *Item) error {
	query := `INSERT INTO queue_items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		it.ID, it.Table, it.RecordID, string(it.Op), int(it.Priority), it.Attempts,
		it.NextAttemptAt.UnixNano(), it.EnqueuedAt.UnixNano(), string(it.Status),
		it.Version, it.Payload, it.Nonce, it.KeyVersion, it.FailureReason)
	if err != nil {
		return fmt.Errorf("failed to insert queue item: %w", mapStorageErr(err))
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, it *Item) error {
	query := `UPDATE queue_items SET
		priority = ?, attempts = ?, next_attempt_at = ?, status = ?,
		version = ?, payload = ?, nonce = ?, key_version = ?, failure_reason = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		int(it.Priority), it.Attempts, it.NextAttemptAt.UnixNano(), string(it.Status),
		it.Version, it.Payload, it.Nonce, it.KeyVersion, it.FailureReason, it.ID)
	if err != nil {
		return fmt.Errorf("failed to update queue item: %w", mapStorageErr(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete queue item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	it, err := scanItem(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}
	return it, nil
}

func (r *SQLiteRepository) Due(ctx context.Context, now time.Time) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY priority DESC, next_attempt_at ASC, enqueued_at ASC`
	return r.queryItems(ctx, query, string(StatusPending), now.UnixNano())
}

func (r *SQLiteRepository) ListByStatus(ctx context.Context, status Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items
		WHERE status = ? ORDER BY enqueued_at ASC`
	return r.queryItems(ctx, query, string(status))
}

func (r *SQLiteRepository) ResetInFlight(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE queue_items SET status = ? WHERE status = ?`,
		string(StatusPending), string(StatusInFlight))
	if err != nil {
		return fmt.Errorf("failed to reset in-flight items: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) queryItems(ctx context.Context, query string, args ...any) ([]*Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select queue items: %w", err)
	}
	defer rows.Close()

	var result []*Item
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanItem(scan func(...any) error) (*Item, error) {
	it := &Item{}
	var op, status string
	var priority int
	var nextAttempt, enqueued int64
	err := scan(&it.ID, &it.Table, &it.RecordID, &op, &priority, &it.Attempts,
		&nextAttempt, &enqueued, &status, &it.Version, &it.Payload, &it.Nonce,
		&it.KeyVersion, &it.FailureReason)
	if err != nil {
		return nil, err
	}
	it.Op = remote.Operation(op)
	it.Priority = Priority(priority)
	it.NextAttemptAt = time.Unix(0, nextAttempt).UTC()
	it.EnqueuedAt = time.Unix(0, enqueued).UTC()
	it.Status = Status(status)
	return it, nil
}

// mapStorageErr translates SQLITE_FULL into the sentinel the callers of
// mutating operations must see instead of a silent drop.
func mapStorageErr(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_FULL {
		return common.ErrStorageFull
	}
	return err
}
