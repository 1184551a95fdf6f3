// Package memory is an in-process implementation of the storage contract.
// Each account owns its own lock, so appends on different accounts never
// contend on a shared write lock.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
)

type accountRecord struct {
	mu     sync.RWMutex
	acc    models.Account
	events []models.Event // ascending ts
	ops    map[string]models.OperationRecord
}

// Store keeps every table in maps guarded by mutexes.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*accountRecord
	byUser   map[string]string
	byCode   map[string]string

	rsMu     sync.RWMutex
	rulesets []models.Ruleset // ascending effectiveFrom
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[string]*accountRecord),
		byUser:   make(map[string]string),
		byCode:   make(map[string]string),
	}
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

func cloneRuleset(rs models.Ruleset) models.Ruleset {
	levels := make([]models.LevelRule, len(rs.Levels))
	copy(levels, rs.Levels)
	rs.Levels = levels
	return rs
}

func (s *Store) record(accountID string) (*accountRecord, error) {
	s.mu.RLock()
	rec, ok := s.accounts[accountID]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	return rec, nil
}

func (s *Store) lookup(index map[string]string, key string) (*models.Account, error) {
	s.mu.RLock()
	id, ok := index[key]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	return s.GetAccount(context.Background(), id)
}

// sortRulesets keeps the timeline ordered after an insert.
func (s *Store) sortRulesets() {
	sort.SliceStable(s.rulesets, func(i, j int) bool {
		return s.rulesets[i].EffectiveFrom.Before(s.rulesets[j].EffectiveFrom)
	})
}
