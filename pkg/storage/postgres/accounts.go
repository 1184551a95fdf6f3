package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
	"github.com/jackc/pgx/v4"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const selectAccount = `SELECT id, user_id, public_code, balance_points, total_spend_money::text, level_code, version, created_at, last_ts, last_seq FROM accounts`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		acc    models.Account
		spend  string
		lastTs sql.NullTime
	)
	err := row.Scan(&acc.ID, &acc.UserID, &acc.PublicCode, &acc.BalancePoints, &spend,
		&acc.LevelCode, &acc.Version, &acc.CreatedAt, &lastTs, &acc.LastSeq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, pkgerrors.WithStack(err)
	}
	d, err := decimal.NewFromString(spend)
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}
	acc.TotalSpendMoney = d
	if lastTs.Valid {
		acc.LastTs = lastTs.Time.UTC()
	}
	return &acc, nil
}

func (r *Repo) CreateAccount(ctx context.Context, acc *models.Account) (*models.Account, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (id, user_id, public_code, balance_points, total_spend_money, level_code, version, created_at, last_seq)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)`,
		acc.ID, acc.UserID, acc.PublicCode, acc.BalancePoints, acc.TotalSpendMoney.String(),
		acc.LevelCode, acc.Version, acc.CreatedAt, acc.LastSeq)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrAccountExists
		}
		return nil, pkgerrors.WithStack(err)
	}
	return acc, nil
}

func (r *Repo) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, selectAccount+` WHERE id = $1`, accountID))
}

func (r *Repo) GetAccountByUserID(ctx context.Context, userID string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, selectAccount+` WHERE user_id = $1`, userID))
}

func (r *Repo) GetAccountByPublicCode(ctx context.Context, publicCode string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, selectAccount+` WHERE public_code = $1`, publicCode))
}

func (r *Repo) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := r.pool.Query(ctx, selectAccount+` ORDER BY created_at`)
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *acc)
	}
	return out, pkgerrors.WithStack(rows.Err())
}
