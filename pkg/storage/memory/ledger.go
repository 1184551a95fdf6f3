package memory

import (
	"context"
	"sort"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
)

// Append applies the draft under the account's own lock.
func (s *Store) Append(ctx context.Context, draft *models.EventDraft) (*models.OperationResult, error) {
	rec, err := s.record(draft.AccountID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, dup := rec.ops[draft.OperationID]; dup {
		return nil, storage.ErrDuplicateOperation
	}

	applied, err := storage.Apply(&rec.acc, draft)
	if err != nil {
		return nil, err
	}

	rec.events = append(rec.events, applied.Event)
	rec.acc = applied.Account
	rec.ops[draft.OperationID] = applied.Record

	res := applied.Result
	return &res, nil
}

// ListEvents returns up to limit events with ts < beforeTs, newest first.
func (s *Store) ListEvents(ctx context.Context, accountID string, beforeTs *time.Time, limit int) ([]models.Event, error) {
	rec, err := s.record(accountID)
	if err != nil {
		return nil, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	end := len(rec.events)
	if beforeTs != nil {
		end = sort.Search(len(rec.events), func(i int) bool {
			return !rec.events[i].Ts.Before(*beforeTs)
		})
	}

	out := make([]models.Event, 0, limit)
	for i := end - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, rec.events[i])
	}
	return out, nil
}
