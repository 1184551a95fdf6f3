package memory

import (
	"context"
	"sort"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
)

// CreateAccount registers a new account and its lookup indexes.
func (s *Store) CreateAccount(ctx context.Context, acc *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acc.ID]; ok {
		return nil, storage.ErrAccountExists
	}
	if _, ok := s.byUser[acc.UserID]; ok {
		return nil, storage.ErrAccountExists
	}
	if _, ok := s.byCode[acc.PublicCode]; ok {
		return nil, storage.ErrAccountExists
	}

	s.accounts[acc.ID] = &accountRecord{acc: *acc, ops: make(map[string]models.OperationRecord)}
	s.byUser[acc.UserID] = acc.ID
	s.byCode[acc.PublicCode] = acc.ID

	out := *acc
	return &out, nil
}

// GetAccount retrieves an account by id.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	rec, err := s.record(accountID)
	if err != nil {
		return nil, err
	}
	rec.mu.RLock()
	out := rec.acc
	rec.mu.RUnlock()
	return &out, nil
}

// GetAccountByUserID retrieves the account owned by userID.
func (s *Store) GetAccountByUserID(ctx context.Context, userID string) (*models.Account, error) {
	return s.lookup(s.byUser, userID)
}

// GetAccountByPublicCode retrieves an account by its public code.
func (s *Store) GetAccountByPublicCode(ctx context.Context, publicCode string) (*models.Account, error) {
	return s.lookup(s.byCode, publicCode)
}

// ListAccounts returns all accounts ordered by creation time.
func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	s.mu.RLock()
	recs := make([]*accountRecord, 0, len(s.accounts))
	for _, rec := range s.accounts {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	out := make([]models.Account, 0, len(recs))
	for _, rec := range recs {
		rec.mu.RLock()
		out = append(out, rec.acc)
		rec.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
