package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/rules"
	"github.com/chris/loyalty-ledger/pkg/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateAccount opens a zero-balance account for userID with a fresh public code.
func (e *Engine) CreateAccount(ctx context.Context, userID string) (*models.Account, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errs.Validation(errs.CodeValidation, "userId is required")
	}

	now := e.now().UTC()
	acc := &models.Account{
		ID:              uuid.NewString(),
		UserID:          userID,
		PublicCode:      uuid.NewString(),
		TotalSpendMoney: decimal.Zero,
		CreatedAt:       now,
	}

	rs, err := e.store.RulesetAt(ctx, now)
	switch {
	case err == nil:
		if lvl, lerr := rules.ResolveLevel(rs, decimal.Zero); lerr == nil {
			acc.LevelCode = lvl.LevelCode
		}
	case !errors.Is(err, storage.ErrRulesetNotFound):
		return nil, fmt.Errorf("failed to load current ruleset: %w", err)
	}

	created, err := e.store.CreateAccount(ctx, acc)
	if err != nil {
		if errors.Is(err, storage.ErrAccountExists) {
			return nil, errs.Conflict(errs.CodeAccountExists, "user %s already has an account", userID)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	e.logger.Info("account created", "account_id", created.ID, "user_id", userID)
	return created, nil
}
