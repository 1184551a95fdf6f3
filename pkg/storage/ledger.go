package storage

import (
	"context"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
)

// LedgerReader defines the interface for reading ledger data.
type LedgerReader interface {
	// ListEvents returns up to limit events of the account with ts strictly
	// before beforeTs (or all, when beforeTs is nil), newest first.
	ListEvents(ctx context.Context, accountID string, beforeTs *time.Time, limit int) ([]models.Event, error)
}

// Ledger is the append side of the event log.
type Ledger interface {
	LedgerReader

	// Append is one atomic unit. It checks draft.ExpectedVersion against the
	// account, computes balanceAfter and rejects a negative result with
	// ErrInsufficientBalance, assigns a ts strictly greater than the previous
	// event of the account, persists the event, updates the cached account
	// fields and stores the idempotency record. Nothing is written on error.
	Append(ctx context.Context, draft *models.EventDraft) (*models.OperationResult, error)
}
