package memory

import (
	"context"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
)

// GetOperation returns the idempotency record for the key.
func (s *Store) GetOperation(ctx context.Context, accountID, operationID string) (*models.OperationRecord, error) {
	rec, err := s.record(accountID)
	if err != nil {
		return nil, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	op, ok := rec.ops[operationID]
	if !ok {
		return nil, storage.ErrOperationNotFound
	}
	return &op, nil
}

// PurgeOperations drops records whose retention window ended before now.
func (s *Store) PurgeOperations(ctx context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	recs := make([]*accountRecord, 0, len(s.accounts))
	for _, rec := range s.accounts {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	purged := 0
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		rec.mu.Lock()
		for id, op := range rec.ops {
			if !op.ExpiresAt.IsZero() && op.ExpiresAt.Before(now) {
				delete(rec.ops, id)
				purged++
			}
		}
		rec.mu.Unlock()
	}
	return purged, nil
}
