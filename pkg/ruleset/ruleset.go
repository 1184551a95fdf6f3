// Package ruleset creates entries on the append-only ruleset timeline.
package ruleset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/rules"
	"github.com/chris/loyalty-ledger/pkg/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateInput is a ruleset as submitted by an administrator.
// A nil EffectiveFrom means now.
type CreateInput struct {
	EffectiveFrom   *time.Time
	BaseRubPerPoint decimal.Decimal
	Levels          []models.LevelRule
}

type Service struct {
	store  storage.RulesetStore
	logger *slog.Logger
	now    func() time.Time
}

func New(store storage.RulesetStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger.With("component", "ruleset"), now: time.Now}
}

// WithClock replaces the clock used for defaults and createdAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateRuleset validates and persists a new ruleset. Existing rulesets are
// never touched; a backdated effectiveFrom only affects later resolutions.
func (s *Service) CreateRuleset(ctx context.Context, in CreateInput) (*models.Ruleset, error) {
	if err := rules.ValidateRuleset(in.BaseRubPerPoint, in.Levels); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	effectiveFrom := now
	if in.EffectiveFrom != nil {
		if in.EffectiveFrom.IsZero() {
			return nil, errs.Validation(errs.CodeInvalidRuleset, "effectiveFrom must be a valid timestamp")
		}
		effectiveFrom = in.EffectiveFrom.UTC()
	}

	rs := &models.Ruleset{
		ID:              uuid.New().String(),
		EffectiveFrom:   effectiveFrom.Truncate(storage.TsResolution),
		BaseRubPerPoint: in.BaseRubPerPoint,
		Levels:          rules.NormalizeLevels(in.Levels),
		CreatedAt:       now,
	}

	created, err := s.store.CreateRuleset(ctx, rs)
	if err != nil {
		if errors.Is(err, storage.ErrRulesetExists) {
			return nil, errs.Conflict(errs.CodeRulesetExists, "a ruleset is already effective from %s", rs.EffectiveFrom.Format(time.RFC3339Nano))
		}
		return nil, fmt.Errorf("failed to create ruleset: %w", err)
	}

	if _, err := rules.ResolveLevel(created, decimal.Zero); err != nil {
		s.logger.Warn("ruleset has no floor level, EARN will fail for low spenders", "ruleset_id", created.ID)
	}
	s.logger.Info("ruleset created", "ruleset_id", created.ID, "effective_from", created.EffectiveFrom, "levels", len(created.Levels))
	return created, nil
}
