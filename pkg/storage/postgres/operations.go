package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
	"github.com/jackc/pgx/v4"
	pkgerrors "github.com/pkg/errors"
)

func (r *Repo) GetOperation(ctx context.Context, accountID, operationID string) (*models.OperationRecord, error) {
	var (
		rec     models.OperationRecord
		opType  string
		result  []byte
		expires sql.NullTime
	)
	err := r.pool.QueryRow(ctx,
		`SELECT account_id, operation_id, op_type, result, committed_at, expires_at
		 FROM operations WHERE account_id = $1 AND operation_id = $2
		   AND (expires_at IS NULL OR expires_at >= now())`,
		accountID, operationID).Scan(&rec.AccountID, &rec.OperationID, &opType, &result, &rec.CommittedAt, &expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrOperationNotFound
		}
		return nil, pkgerrors.WithStack(err)
	}

	rec.OpType = models.OpType(opType)
	if expires.Valid {
		rec.ExpiresAt = expires.Time
	}
	if err := json.Unmarshal(result, &rec.Result); err != nil {
		return nil, pkgerrors.WithStack(err)
	}
	return &rec, nil
}

func (r *Repo) PurgeOperations(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM operations WHERE expires_at < $1`, now)
	if err != nil {
		return 0, pkgerrors.WithStack(err)
	}
	return int(tag.RowsAffected()), nil
}
