package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/dbx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx). All logical tables live in one physical "records" table keyed
// by "table:id".
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const recordColumns = `tbl, id, payload, nonce, key_version, version, deleted, updated_at`

func (r *SQLiteRepository) Get(ctx context.Context, table, id string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE key = ?`
	row := r.db.QueryRowContext(ctx, query, table+":"+id)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *Record) error {
	query := `INSERT INTO records (key, ` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			nonce = excluded.nonce,
			key_version = excluded.key_version,
			version = excluded.version,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.Key(), rec.Table, rec.ID, rec.Payload, rec.Nonce,
		rec.KeyVersion, rec.Version, rec.Deleted, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", mapStorageErr(err))
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, table string) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE tbl = ? ORDER BY id`
	return r.queryRecords(ctx, query, table)
}

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records ORDER BY key`
	return r.queryRecords(ctx, query)
}

func (r *SQLiteRepository) Remove(ctx context.Context, table, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, table+":"+id)
	if err != nil {
		return fmt.Errorf("failed to remove record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RenameTable(ctx context.Context, oldName, newName string) error {
	query := `UPDATE records SET tbl = ?, key = ? || ':' || id WHERE tbl = ?`
	_, err := r.db.ExecContext(ctx, query, newName, newName, oldName)
	if err != nil {
		return fmt.Errorf("failed to rename table %q: %w", oldName, mapStorageErr(err))
	}
	return nil
}

func (r *SQLiteRepository) queryRecords(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanRecord(scan func(...any) error) (*Record, error) {
	rec := &Record{}
	err := scan(&rec.Table, &rec.ID, &rec.Payload, &rec.Nonce,
		&rec.KeyVersion, &rec.Version, &rec.Deleted, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
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
