package storage

import (
	"context"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
)

// RulesetReader defines read access to the ruleset timeline.
type RulesetReader interface {
	// RulesetAt returns the ruleset with the greatest effectiveFrom <= asOf.
	RulesetAt(ctx context.Context, asOf time.Time) (*models.Ruleset, error)

	// ListRulesets returns rulesets newest-effective first, plus the total count.
	ListRulesets(ctx context.Context, limit, offset int) ([]models.Ruleset, int, error)
}

// RulesetStore adds creation to the reader. Rulesets are never updated or deleted.
type RulesetStore interface {
	RulesetReader

	// CreateRuleset persists a new ruleset. It returns ErrRulesetExists when
	// another ruleset has the same effectiveFrom.
	CreateRuleset(ctx context.Context, rs *models.Ruleset) (*models.Ruleset, error)
}
