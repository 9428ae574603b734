// Package records provides PostgreSQL-backed storage for the opaque
// encrypted records clients push through the sync endpoint.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/dbx"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/server/models"
)

// PostgresRepository implements record storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID, tbl, recordID string) (*models.SyncRecord, error) {
	query := `
		SELECT version, payload, nonce, key_version, deleted, updated_at
		FROM records
		WHERE user_id = $1 AND tbl = $2 AND record_id = $3
	`
	rec := &models.SyncRecord{UserID: userID, Table: tbl, RecordID: recordID}
	err := r.db.QueryRowContext(ctx, query, userID, tbl, recordID).Scan(
		&rec.Version, &rec.Payload, &rec.Nonce, &rec.KeyVersion, &rec.Deleted, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.SyncRecord) error {
	query := `
		INSERT INTO records (user_id, tbl, record_id, version, payload, nonce, key_version, deleted, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (user_id, tbl, record_id)
		DO UPDATE SET
			version = EXCLUDED.version,
			payload = EXCLUDED.payload,
			nonce = EXCLUDED.nonce,
			key_version = EXCLUDED.key_version,
			deleted = EXCLUDED.deleted,
			updated_at = now();
	`
	if _, err := r.db.ExecContext(ctx, query,
		rec.UserID, rec.Table, rec.RecordID, rec.Version,
		rec.Payload, rec.Nonce, rec.KeyVersion, rec.Deleted); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
