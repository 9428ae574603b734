package records

import (
	"context"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/server/models"
)

// Repository stores the server-side copy of synced client records.
type Repository interface {
	// Get returns the record for (userID, tbl, recordID), including
	// tombstones. Returns common.ErrNotFound when absent.
	Get(ctx context.Context, userID, tbl, recordID string) (*models.SyncRecord, error)

	// Upsert inserts or replaces the record identified by
	// (UserID, Table, RecordID).
	Upsert(ctx context.Context, rec *models.SyncRecord) error
}
