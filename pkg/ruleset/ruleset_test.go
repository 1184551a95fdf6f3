package ruleset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
	"github.com/chris/loyalty-ledger/pkg/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type failingStore struct {
	storage.RulesetStore
}

func (failingStore) CreateRuleset(ctx context.Context, rs *models.Ruleset) (*models.Ruleset, error) {
	return nil, errors.New("disk full")
}

func input(effectiveFrom *time.Time) CreateInput {
	return CreateInput{
		EffectiveFrom:   effectiveFrom,
		BaseRubPerPoint: d("10.00"),
		Levels: []models.LevelRule{
			{LevelCode: " Light ", ThresholdTotalSpend: d("3000"), PercentEarn: d("105")},
			{LevelCode: "Green", ThresholdTotalSpend: d("0"), PercentEarn: d("100")},
		},
	}
}

func TestCreateRuleset(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		s := memory.New()
		svc := New(s, nil).WithClock(func() time.Time { return now })

		rs, err := svc.CreateRuleset(ctx, input(nil))
		require.NoError(t, err)
		assert.NotEmpty(t, rs.ID)
		assert.Equal(t, now, rs.EffectiveFrom)
		assert.Equal(t, now, rs.CreatedAt)
		require.Len(t, rs.Levels, 2)
		assert.Equal(t, "Green", rs.Levels[0].LevelCode)
		assert.Equal(t, "Light", rs.Levels[1].LevelCode)

		current, err := s.RulesetAt(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, rs.ID, current.ID)
	})

	t.Run("Backdated Does Not Replace Newer", func(t *testing.T) {
		s := memory.New()
		svc := New(s, nil).WithClock(func() time.Time { return now })
		newer, err := svc.CreateRuleset(ctx, input(nil))
		require.NoError(t, err)

		past := now.Add(-24 * time.Hour)
		_, err = svc.CreateRuleset(ctx, input(&past))
		require.NoError(t, err)

		current, err := s.RulesetAt(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, newer.ID, current.ID)
	})

	t.Run("Duplicate EffectiveFrom", func(t *testing.T) {
		s := memory.New()
		svc := New(s, nil).WithClock(func() time.Time { return now })
		at := now.Add(time.Hour)
		_, err := svc.CreateRuleset(ctx, input(&at))
		require.NoError(t, err)

		_, err = svc.CreateRuleset(ctx, input(&at))
		require.Error(t, err)
		code, _ := errs.CodeOf(err)
		assert.Equal(t, errs.CodeRulesetExists, code)
	})

	t.Run("Validation Error", func(t *testing.T) {
		svc := New(memory.New(), nil)
		in := input(nil)
		in.BaseRubPerPoint = d("0")
		_, err := svc.CreateRuleset(ctx, in)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	})

	t.Run("Zero Timestamp", func(t *testing.T) {
		svc := New(memory.New(), nil)
		zero := time.Time{}
		_, err := svc.CreateRuleset(ctx, input(&zero))
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	})

	t.Run("Storage Error", func(t *testing.T) {
		svc := New(failingStore{}, nil)
		_, err := svc.CreateRuleset(ctx, input(nil))
		require.Error(t, err)
		assert.Equal(t, errs.KindInternal, errs.KindOf(err))
		assert.Contains(t, err.Error(), "disk full")
	})
}
