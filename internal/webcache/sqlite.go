package webcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/dbx"
)

// Entry is one cached response body, keyed by (manifest version, path).
type Entry struct {
	Version     string
	Path        string
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// SQLiteRepository persists cache entries and the single current version
// marker in the client database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CurrentVersion returns the active manifest version, or "" when no
// manifest has ever been activated.
func (r *SQLiteRepository) CurrentVersion(ctx context.Context) (string, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT version FROM cache_version WHERE id = 1`)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read cache version: %w", err)
	}
	return v, nil
}

// Activate installs version as the current one and removes every entry
// belonging to any other version. Both happen in one transaction so a crash
// can never leave two asset generations mixed.
func (r *SQLiteRepository) Activate(ctx context.Context, version string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cache_version (id, version) VALUES (1, ?)
			 ON CONFLICT (id) DO UPDATE SET version = excluded.version`, version)
		if err != nil {
			return fmt.Errorf("failed to set cache version: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE version != ?`, version)
		if err != nil {
			return fmt.Errorf("failed to sweep stale cache entries: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) Get(ctx context.Context, version, path string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT version, path, content_type, body, fetched_at
		 FROM cache_entries WHERE version = ? AND path = ?`, version, path)
	e := &Entry{}
	err := row.Scan(&e.Version, &e.Path, &e.ContentType, &e.Body, &e.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select cache entry: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, e *Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cache_entries (version, path, content_type, body, fetched_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (version, path) DO UPDATE SET
		   content_type = excluded.content_type,
		   body = excluded.body,
		   fetched_at = excluded.fetched_at`,
		e.Version, e.Path, e.ContentType, e.Body, e.FetchedAt)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// CountByVersion reports how many entries a given version still holds.
func (r *SQLiteRepository) CountByVersion(ctx context.Context, version string) (int, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries WHERE version = ?`, version)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
