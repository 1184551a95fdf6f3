package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
	"github.com/jackc/pgx/v4"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func (r *Repo) Append(ctx context.Context, draft *models.EventDraft) (*models.OperationResult, error) {
	var res models.OperationResult

	err := r.withTx(ctx, func(tx pgx.Tx) error {
		acc, err := scanAccount(tx.QueryRow(ctx, selectAccount+` WHERE id = $1 FOR UPDATE`, draft.AccountID))
		if err != nil {
			return err
		}

		var exists bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM operations WHERE account_id = $1 AND operation_id = $2
			                 AND (expires_at IS NULL OR expires_at >= now()))`,
			draft.AccountID, draft.OperationID).Scan(&exists)
		if err != nil {
			return pkgerrors.WithStack(err)
		}
		if exists {
			return storage.ErrDuplicateOperation
		}

		applied, err := storage.Apply(acc, draft)
		if err != nil {
			return err
		}

		ev := applied.Event
		var amount *string
		if ev.AmountMoney != nil {
			s := ev.AmountMoney.String()
			amount = &s
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO events (id, account_id, seq, type, delta_points, balance_after, amount_money, ruleset_id, actor_user_id, operation_id, ts)
			 VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11)`,
			ev.ID, ev.AccountID, ev.Seq, string(ev.Type), ev.DeltaPoints, ev.BalanceAfter,
			amount, ev.RulesetID, ev.ActorUserID, ev.OperationID, ev.Ts)
		if err != nil {
			return pkgerrors.WithStack(err)
		}

		next := applied.Account
		tag, err := tx.Exec(ctx,
			`UPDATE accounts SET balance_points = $2, total_spend_money = $3::numeric, level_code = $4,
			        version = $5, last_ts = $6, last_seq = $7
			 WHERE id = $1 AND version = $8`,
			next.ID, next.BalancePoints, next.TotalSpendMoney.String(), next.LevelCode,
			next.Version, next.LastTs, next.LastSeq, acc.Version)
		if err != nil {
			return pkgerrors.WithStack(err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrVersionConflict
		}

		result, err := json.Marshal(applied.Record.Result)
		if err != nil {
			return pkgerrors.WithStack(err)
		}
		var expires *time.Time
		if !applied.Record.ExpiresAt.IsZero() {
			expires = &applied.Record.ExpiresAt
		}
		// An expired record left behind by a pending purge is replaced.
		tag, err = tx.Exec(ctx,
			`INSERT INTO operations (account_id, operation_id, op_type, result, committed_at, expires_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (account_id, operation_id) DO UPDATE
			 SET op_type = EXCLUDED.op_type, result = EXCLUDED.result,
			     committed_at = EXCLUDED.committed_at, expires_at = EXCLUDED.expires_at
			 WHERE operations.expires_at < now()`,
			draft.AccountID, draft.OperationID, string(draft.Type), result, applied.Record.CommittedAt, expires)
		if err != nil {
			return pkgerrors.WithStack(err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrDuplicateOperation
		}

		res = applied.Result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *Repo) ListEvents(ctx context.Context, accountID string, beforeTs *time.Time, limit int) ([]models.Event, error) {
	query := `SELECT id, seq, account_id, type, delta_points, balance_after, amount_money::text, ruleset_id::text, actor_user_id, operation_id, ts
	          FROM events WHERE account_id = $1`
	args := []interface{}{accountID}
	if beforeTs != nil {
		query += ` AND ts < $2 ORDER BY ts DESC LIMIT $3`
		args = append(args, *beforeTs, limit)
	} else {
		query += ` ORDER BY ts DESC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}
	defer rows.Close()

	events := make([]models.Event, 0, limit)
	for rows.Next() {
		var (
			ev        models.Event
			typ       string
			amount    sql.NullString
			rulesetID sql.NullString
			actor     sql.NullString
		)
		err := rows.Scan(&ev.ID, &ev.Seq, &ev.AccountID, &typ, &ev.DeltaPoints, &ev.BalanceAfter,
			&amount, &rulesetID, &actor, &ev.OperationID, &ev.Ts)
		if err != nil {
			return nil, pkgerrors.WithStack(err)
		}
		ev.Type = models.OpType(typ)
		ev.Ts = ev.Ts.UTC()
		if amount.Valid {
			d, err := decimal.NewFromString(amount.String)
			if err != nil {
				return nil, pkgerrors.WithStack(err)
			}
			ev.AmountMoney = &d
		}
		if rulesetID.Valid {
			ev.RulesetID = &rulesetID.String
		}
		if actor.Valid {
			ev.ActorUserID = &actor.String
		}
		events = append(events, ev)
	}
	return events, pkgerrors.WithStack(rows.Err())
}
