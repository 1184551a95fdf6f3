package storage

import (
	"context"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
)

// OperationStore gives access to committed idempotency records.
type OperationStore interface {
	// GetOperation returns the record for (accountID, operationID) or ErrOperationNotFound.
	GetOperation(ctx context.Context, accountID, operationID string) (*models.OperationRecord, error)

	// PurgeOperations removes records that expired before now and reports how many were removed.
	PurgeOperations(ctx context.Context, now time.Time) (int, error)
}
