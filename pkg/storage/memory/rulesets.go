package memory

import (
	"context"
	"sort"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
)

// CreateRuleset appends a ruleset to the timeline.
func (s *Store) CreateRuleset(ctx context.Context, rs *models.Ruleset) (*models.Ruleset, error) {
	s.rsMu.Lock()
	defer s.rsMu.Unlock()

	for _, existing := range s.rulesets {
		if existing.EffectiveFrom.Equal(rs.EffectiveFrom) {
			return nil, storage.ErrRulesetExists
		}
	}
	s.rulesets = append(s.rulesets, cloneRuleset(*rs))
	s.sortRulesets()

	out := cloneRuleset(*rs)
	return &out, nil
}

// RulesetAt returns the ruleset with the greatest effectiveFrom <= asOf.
func (s *Store) RulesetAt(ctx context.Context, asOf time.Time) (*models.Ruleset, error) {
	s.rsMu.RLock()
	defer s.rsMu.RUnlock()

	idx := sort.Search(len(s.rulesets), func(i int) bool {
		return s.rulesets[i].EffectiveFrom.After(asOf)
	})
	if idx == 0 {
		return nil, storage.ErrRulesetNotFound
	}
	out := cloneRuleset(s.rulesets[idx-1])
	return &out, nil
}

// ListRulesets returns a newest-first page of the timeline.
func (s *Store) ListRulesets(ctx context.Context, limit, offset int) ([]models.Ruleset, int, error) {
	s.rsMu.RLock()
	defer s.rsMu.RUnlock()

	total := len(s.rulesets)
	items := make([]models.Ruleset, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(items) < limit; i-- {
		items = append(items, cloneRuleset(s.rulesets[i]))
	}
	return items, total, nil
}
