package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/remote"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/server/models"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/server/repositories/records"
)

// SyncService applies client changes to the server-side record store.
type SyncService struct {
	records records.Repository
}

func NewSyncService(records records.Repository) *SyncService {
	return &SyncService{records: records}
}

// Apply processes one change for the given account. A nil Conflict means the
// change was accepted and stored. A non-nil Conflict means the server holds a
// version at least as new as the one sent; the stored state is returned so
// the client can resolve.
func (s *SyncService) Apply(ctx context.Context, userID string, change *remote.Change) (*remote.Conflict, error) {
	existing, err := s.records.Get(ctx, userID, change.Table, change.RecordID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("error loading record: %w", err)
	}

	if existing != nil && existing.Version >= change.Version {
		return &remote.Conflict{
			Version:    existing.Version,
			Payload:    existing.Payload,
			Nonce:      existing.Nonce,
			KeyVersion: existing.KeyVersion,
			Deleted:    existing.Deleted,
		}, nil
	}

	rec := &models.SyncRecord{
		UserID:     userID,
		Table:      change.Table,
		RecordID:   change.RecordID,
		Version:    change.Version,
		Payload:    change.Payload,
		Nonce:      change.Nonce,
		KeyVersion: change.KeyVersion,
		Deleted:    change.Operation == remote.OpDelete,
	}
	if err := s.records.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("error storing record: %w", err)
	}

	return nil, nil
}
