// Package query serves read-only views of balances, history and rulesets.
// It never mutates storage.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/rules"
	"github.com/chris/loyalty-ledger/pkg/storage"
	"github.com/google/uuid"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Service struct {
	store  storage.ReadStore
	logger *slog.Logger
	now    func() time.Time
}

func New(store storage.ReadStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger.With("component", "query"),
		now:    time.Now,
	}
}

// WithClock replaces the clock used for asOf stamps and ruleset lookups.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// BalanceAsOf returns the committed balance of the account. The level is
// recomputed against the ruleset current at read time.
func (s *Service) BalanceAsOf(ctx context.Context, accountID string) (*models.BalanceView, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, accountErr(err, "account %s not found", accountID)
	}
	return s.balance(ctx, acc), nil
}

// BalanceForUser returns the balance of the account owned by userID.
func (s *Service) BalanceForUser(ctx context.Context, userID string) (*models.BalanceView, error) {
	acc, err := s.AccountForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.balance(ctx, acc), nil
}

// AccountForUser returns the account owned by userID.
func (s *Service) AccountForUser(ctx context.Context, userID string) (*models.Account, error) {
	acc, err := s.store.GetAccountByUserID(ctx, userID)
	if err != nil {
		return nil, accountErr(err, "no account for user %s", userID)
	}
	acc.LevelCode = s.level(ctx, acc)
	return acc, nil
}

// AccountByPublicCode resolves a shareable code to its account.
func (s *Service) AccountByPublicCode(ctx context.Context, publicCode string) (*models.Account, error) {
	publicCode = strings.TrimSpace(publicCode)
	if _, err := uuid.Parse(publicCode); err != nil {
		return nil, errs.Validation(errs.CodeInvalidPublicCode, "publicCode %q is malformed", publicCode)
	}
	acc, err := s.store.GetAccountByPublicCode(ctx, publicCode)
	if err != nil {
		return nil, accountErr(err, "no account with public code %s", publicCode)
	}
	acc.LevelCode = s.level(ctx, acc)
	return acc, nil
}

// HistoryPage returns up to limit events with ts strictly before beforeTs,
// newest first. NextBeforeTs is set only when an older event exists.
func (s *Service) HistoryPage(ctx context.Context, accountID string, limit int, beforeTs *time.Time) (*models.EventPage, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	events, err := s.store.ListEvents(ctx, accountID, beforeTs, limit+1)
	if err != nil {
		return nil, accountErr(err, "account %s not found", accountID)
	}

	page := &models.EventPage{Items: events}
	if len(events) > limit {
		page.Items = events[:limit]
		next := page.Items[limit-1].Ts
		page.NextBeforeTs = &next
	}
	if page.Items == nil {
		page.Items = []models.Event{}
	}
	return page, nil
}

// CurrentRuleset returns the ruleset in effect at asOf.
func (s *Service) CurrentRuleset(ctx context.Context, asOf time.Time) (*models.Ruleset, error) {
	rs, err := s.store.RulesetAt(ctx, asOf)
	if err != nil {
		if errors.Is(err, storage.ErrRulesetNotFound) {
			return nil, errs.NotFound(errs.CodeRulesetNotFound, "no ruleset is effective at %s", asOf.UTC().Format(time.RFC3339))
		}
		return nil, fmt.Errorf("failed to load ruleset: %w", err)
	}
	rs.Levels = rules.NormalizeLevels(rs.Levels)
	return rs, nil
}

// RulesetsPage returns one newest-first page of the ruleset timeline.
func (s *Service) RulesetsPage(ctx context.Context, limit, offset int) (*models.RulesetPage, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, errs.Validation(errs.CodeValidation, "offset must be >= 0")
	}

	items, total, err := s.store.ListRulesets(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list rulesets: %w", err)
	}
	if items == nil {
		items = []models.Ruleset{}
	}
	for i := range items {
		items[i].Levels = rules.NormalizeLevels(items[i].Levels)
	}
	return &models.RulesetPage{Items: items, Limit: limit, Offset: offset, Total: total}, nil
}

func (s *Service) balance(ctx context.Context, acc *models.Account) *models.BalanceView {
	return &models.BalanceView{
		AccountID:       acc.ID,
		BalancePoints:   acc.BalancePoints,
		TotalSpendMoney: acc.TotalSpendMoney,
		LevelCode:       s.level(ctx, acc),
		AsOf:            s.now().UTC(),
	}
}

// level recomputes the level from totalSpend. The cached code is kept when
// no ruleset applies or the ruleset cannot place the account.
func (s *Service) level(ctx context.Context, acc *models.Account) string {
	rs, err := s.store.RulesetAt(ctx, s.now())
	if err != nil {
		if !errors.Is(err, storage.ErrRulesetNotFound) {
			s.logger.Warn("failed to load ruleset for level", "account_id", acc.ID, "error", err)
		}
		return acc.LevelCode
	}
	lvl, err := rules.ResolveLevel(rs, acc.TotalSpendMoney)
	if err != nil {
		s.logger.Error("ruleset cannot place account", "account_id", acc.ID, "ruleset_id", rs.ID, "error", err)
		return acc.LevelCode
	}
	return lvl.LevelCode
}

func normalizeLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return DefaultLimit, nil
	case limit < 0 || limit > MaxLimit:
		return 0, errs.Validation(errs.CodeValidation, "limit must be between 1 and %d", MaxLimit)
	}
	return limit, nil
}

func accountErr(err error, format string, args ...any) error {
	if errors.Is(err, storage.ErrAccountNotFound) {
		return errs.NotFound(errs.CodeAccountNotFound, format, args...)
	}
	return fmt.Errorf("failed to load account: %w", err)
}
