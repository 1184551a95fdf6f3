package storage

import (
	"context"

	"github.com/chris/loyalty-ledger/pkg/models"
)

// AccountReader defines lookups of loyalty accounts.
type AccountReader interface {
	// GetAccount retrieves an account by its id.
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)

	// GetAccountByUserID retrieves the account owned by a user.
	GetAccountByUserID(ctx context.Context, userID string) (*models.Account, error)

	// GetAccountByPublicCode retrieves an account by its shareable code.
	GetAccountByPublicCode(ctx context.Context, publicCode string) (*models.Account, error)

	// ListAccounts returns every account. Used by reconciliation.
	ListAccounts(ctx context.Context) ([]models.Account, error)
}

// AccountStore adds creation to the reader. Balances are only changed through Ledger.Append.
type AccountStore interface {
	AccountReader

	// CreateAccount persists a new zero-balance account. It returns ErrAccountExists
	// when the user already owns one.
	CreateAccount(ctx context.Context, acc *models.Account) (*models.Account, error)
}
