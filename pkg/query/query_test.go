package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed(t *testing.T) (*memory.Store, *models.Account) {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	_, err := s.CreateRuleset(ctx, &models.Ruleset{
		ID:              "rs-1",
		EffectiveFrom:   epoch,
		BaseRubPerPoint: d("10"),
		Levels: []models.LevelRule{
			{LevelCode: "Light", ThresholdTotalSpend: d("3000"), PercentEarn: d("105")},
			{LevelCode: "Green", ThresholdTotalSpend: d("0"), PercentEarn: d("100")},
		},
	})
	require.NoError(t, err)
	acc, err := s.CreateAccount(ctx, &models.Account{
		ID:              uuid.NewString(),
		UserID:          "user-1",
		PublicCode:      uuid.NewString(),
		TotalSpendMoney: d("0"),
		LevelCode:       "Green",
		CreatedAt:       epoch,
	})
	require.NoError(t, err)
	return s, acc
}

func appendEarn(t *testing.T, s *memory.Store, accountID string, points int64, spend string, ts time.Time) models.Event {
	t.Helper()
	for {
		cur, err := s.GetAccount(context.Background(), accountID)
		require.NoError(t, err)
		res, err := s.Append(context.Background(), &models.EventDraft{
			AccountID:       accountID,
			ExpectedVersion: cur.Version,
			Type:            models.EARN,
			DeltaPoints:     points,
			SpendDelta:      d(spend),
			OperationID:     uuid.NewString(),
			Ts:              ts,
		})
		if err == nil {
			return res.Event
		}
	}
}

func TestBalance(t *testing.T) {
	ctx := context.Background()
	s, acc := seed(t)
	appendEarn(t, s, acc.ID, 300, "3000", epoch.Add(time.Hour))

	now := epoch.Add(48 * time.Hour)
	svc := New(s, nil).WithClock(func() time.Time { return now })

	t.Run("Success", func(t *testing.T) {
		bal, err := svc.BalanceAsOf(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(300), bal.BalancePoints)
		assert.True(t, bal.TotalSpendMoney.Equal(d("3000")))
		assert.Equal(t, "Light", bal.LevelCode)
		assert.Equal(t, now, bal.AsOf)
	})

	t.Run("For User", func(t *testing.T) {
		bal, err := svc.BalanceForUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, acc.ID, bal.AccountID)
	})

	t.Run("Not Found", func(t *testing.T) {
		_, err := svc.BalanceAsOf(ctx, "missing")
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

		_, err = svc.BalanceForUser(ctx, "nobody")
		code, _ := errs.CodeOf(err)
		assert.Equal(t, errs.CodeAccountNotFound, code)
	})
}

func TestAccountByPublicCode(t *testing.T) {
	ctx := context.Background()
	s, acc := seed(t)
	svc := New(s, nil)

	t.Run("Success", func(t *testing.T) {
		got, err := svc.AccountByPublicCode(ctx, acc.PublicCode)
		require.NoError(t, err)
		assert.Equal(t, acc.ID, got.ID)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := svc.AccountByPublicCode(ctx, "not-a-code")
		code, _ := errs.CodeOf(err)
		assert.Equal(t, errs.CodeInvalidPublicCode, code)
	})

	t.Run("Not Found", func(t *testing.T) {
		_, err := svc.AccountByPublicCode(ctx, uuid.NewString())
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	})
}

func TestHistoryPage(t *testing.T) {
	ctx := context.Background()
	s, acc := seed(t)
	for i := 0; i < 5; i++ {
		appendEarn(t, s, acc.ID, 1, "1", epoch.Add(time.Duration(i)*time.Minute))
	}
	svc := New(s, nil)

	t.Run("Pages Newest First", func(t *testing.T) {
		page, err := svc.HistoryPage(ctx, acc.ID, 2, nil)
		require.NoError(t, err)
		require.Len(t, page.Items, 2)
		assert.Equal(t, int64(5), page.Items[0].Seq)
		require.NotNil(t, page.NextBeforeTs)
		assert.Equal(t, page.Items[1].Ts, *page.NextBeforeTs)

		page, err = svc.HistoryPage(ctx, acc.ID, 2, page.NextBeforeTs)
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Items[0].Seq)

		page, err = svc.HistoryPage(ctx, acc.ID, 2, page.NextBeforeTs)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Nil(t, page.NextBeforeTs)
	})

	t.Run("Exact Fit Has No Cursor", func(t *testing.T) {
		page, err := svc.HistoryPage(ctx, acc.ID, 5, nil)
		require.NoError(t, err)
		assert.Len(t, page.Items, 5)
		assert.Nil(t, page.NextBeforeTs)
	})

	t.Run("Default Limit", func(t *testing.T) {
		page, err := svc.HistoryPage(ctx, acc.ID, 0, nil)
		require.NoError(t, err)
		assert.Len(t, page.Items, 5)
	})

	t.Run("Invalid Limit", func(t *testing.T) {
		_, err := svc.HistoryPage(ctx, acc.ID, MaxLimit+1, nil)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		_, err = svc.HistoryPage(ctx, acc.ID, -1, nil)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	})

	t.Run("Empty Page Is Not Nil", func(t *testing.T) {
		before := epoch.Add(-time.Hour)
		page, err := svc.HistoryPage(ctx, acc.ID, 10, &before)
		require.NoError(t, err)
		assert.NotNil(t, page.Items)
		assert.Empty(t, page.Items)
	})
}

func TestHistoryPaginationUnderConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s, acc := seed(t)
	seeded := make(map[string]struct{})
	for i := 0; i < 60; i++ {
		ev := appendEarn(t, s, acc.ID, 1, "1", epoch.Add(time.Duration(i)*time.Second))
		seeded[ev.ID] = struct{}{}
	}
	svc := New(s, nil)

	first, err := svc.HistoryPage(ctx, acc.ID, 7, nil)
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				cur, err := s.GetAccount(ctx, acc.ID)
				if !assert.NoError(t, err) {
					return
				}
				_, _ = s.Append(ctx, &models.EventDraft{
					AccountID:       acc.ID,
					ExpectedVersion: cur.Version,
					Type:            models.EARN,
					DeltaPoints:     1,
					OperationID:     uuid.NewString(),
					Ts:              time.Now(),
				})
			}
		}
	}()

	seen := make(map[string]int)
	for _, ev := range first.Items {
		seen[ev.ID]++
	}
	cursor := first.NextBeforeTs
	for cursor != nil {
		page, err := svc.HistoryPage(ctx, acc.ID, 7, cursor)
		require.NoError(t, err)
		for _, ev := range page.Items {
			assert.True(t, ev.Ts.Before(*cursor))
			seen[ev.ID]++
		}
		cursor = page.NextBeforeTs
	}
	close(stop)
	wg.Wait()

	assert.Len(t, seen, len(seeded))
	for id, n := range seen {
		_, ok := seeded[id]
		assert.True(t, ok, "event %s was not part of the paginated history", id)
		assert.Equal(t, 1, n, "event %s seen %d times", id, n)
	}
}

func TestRulesets(t *testing.T) {
	ctx := context.Background()
	s, _ := seed(t)
	_, err := s.CreateRuleset(ctx, &models.Ruleset{
		ID:              "rs-2",
		EffectiveFrom:   epoch.Add(24 * time.Hour),
		BaseRubPerPoint: d("5"),
		Levels:          []models.LevelRule{{LevelCode: "Only", ThresholdTotalSpend: d("0"), PercentEarn: d("100")}},
	})
	require.NoError(t, err)
	svc := New(s, nil)

	t.Run("Current Uses Timeline", func(t *testing.T) {
		rs, err := svc.CurrentRuleset(ctx, epoch.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "rs-1", rs.ID)
		assert.Equal(t, "Green", rs.Levels[0].LevelCode)

		rs, err = svc.CurrentRuleset(ctx, epoch.Add(25*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "rs-2", rs.ID)
	})

	t.Run("Before First Ruleset", func(t *testing.T) {
		_, err := svc.CurrentRuleset(ctx, epoch.Add(-time.Hour))
		code, _ := errs.CodeOf(err)
		assert.Equal(t, errs.CodeRulesetNotFound, code)
	})

	t.Run("Page", func(t *testing.T) {
		page, err := svc.RulesetsPage(ctx, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "rs-2", page.Items[0].ID)

		page, err = svc.RulesetsPage(ctx, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, "rs-1", page.Items[0].ID)

		page, err = svc.RulesetsPage(ctx, 10, 5)
		require.NoError(t, err)
		assert.Empty(t, page.Items)
	})

	t.Run("Negative Offset", func(t *testing.T) {
		_, err := svc.RulesetsPage(ctx, 10, -1)
		assert.True(t, errors.Is(err, &errs.Error{Kind: errs.KindValidation, Code: errs.CodeValidation}))
	})
}
