package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
	"github.com/jackc/pgx/v4"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const selectRuleset = `SELECT id, effective_from, base_rub_per_point::text, levels, created_at FROM rulesets`

func scanRuleset(row pgx.Row) (*models.Ruleset, error) {
	var (
		rs     models.Ruleset
		base   string
		levels []byte
	)
	if err := row.Scan(&rs.ID, &rs.EffectiveFrom, &base, &levels, &rs.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(base)
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}
	rs.BaseRubPerPoint = d
	if err := json.Unmarshal(levels, &rs.Levels); err != nil {
		return nil, pkgerrors.WithStack(err)
	}
	rs.EffectiveFrom = rs.EffectiveFrom.UTC()
	return &rs, nil
}

func (r *Repo) CreateRuleset(ctx context.Context, rs *models.Ruleset) (*models.Ruleset, error) {
	levels, err := json.Marshal(rs.Levels)
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO rulesets (id, effective_from, base_rub_per_point, levels, created_at) VALUES ($1, $2, $3::numeric, $4, $5)`,
		rs.ID, rs.EffectiveFrom, rs.BaseRubPerPoint.String(), levels, rs.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrRulesetExists
		}
		return nil, pkgerrors.WithStack(err)
	}
	return rs, nil
}

func (r *Repo) RulesetAt(ctx context.Context, asOf time.Time) (*models.Ruleset, error) {
	rs, err := scanRuleset(r.pool.QueryRow(ctx,
		selectRuleset+` WHERE effective_from <= $1 ORDER BY effective_from DESC LIMIT 1`, asOf))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrRulesetNotFound
		}
		return nil, pkgerrors.WithStack(err)
	}
	return rs, nil
}

func (r *Repo) ListRulesets(ctx context.Context, limit, offset int) ([]models.Ruleset, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM rulesets`).Scan(&total); err != nil {
		return nil, 0, pkgerrors.WithStack(err)
	}

	rows, err := r.pool.Query(ctx,
		selectRuleset+` ORDER BY effective_from DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, pkgerrors.WithStack(err)
	}
	defer rows.Close()

	items := make([]models.Ruleset, 0, limit)
	for rows.Next() {
		rs, err := scanRuleset(rows)
		if err != nil {
			return nil, 0, pkgerrors.WithStack(err)
		}
		items = append(items, *rs)
	}
	return items, total, pkgerrors.WithStack(rows.Err())
}
