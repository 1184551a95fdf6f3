package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(t *testing.T, s *Store, userID string) *models.Account {
	t.Helper()
	acc, err := s.CreateAccount(context.Background(), &models.Account{
		ID:              uuid.NewString(),
		UserID:          userID,
		PublicCode:      uuid.NewString(),
		TotalSpendMoney: decimal.Zero,
		CreatedAt:       time.Now(),
	})
	require.NoError(t, err)
	return acc
}

func earn(acc *models.Account, opID string, points int64, ts time.Time) *models.EventDraft {
	return &models.EventDraft{
		AccountID:       acc.ID,
		ExpectedVersion: acc.Version,
		Type:            models.EARN,
		DeltaPoints:     points,
		OperationID:     opID,
		Ts:              ts,
		ExpiresAt:       ts.Add(time.Hour),
	}
}

func TestCreateAccount(t *testing.T) {
	s := New()
	acc := newAccount(t, s, "user-1")

	t.Run("Duplicate User", func(t *testing.T) {
		_, err := s.CreateAccount(context.Background(), &models.Account{ID: "other", UserID: "user-1", PublicCode: "x"})
		assert.ErrorIs(t, err, storage.ErrAccountExists)
	})

	t.Run("Lookups", func(t *testing.T) {
		got, err := s.GetAccountByUserID(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, acc.ID, got.ID)

		got, err = s.GetAccountByPublicCode(context.Background(), acc.PublicCode)
		require.NoError(t, err)
		assert.Equal(t, acc.ID, got.ID)

		_, err = s.GetAccount(context.Background(), "missing")
		assert.ErrorIs(t, err, storage.ErrAccountNotFound)
	})
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		s := New()
		acc := newAccount(t, s, "u")

		res, err := s.Append(ctx, earn(acc, "op-1", 50, now))
		require.NoError(t, err)
		assert.Equal(t, int64(50), res.Balance.BalancePoints)
		assert.Equal(t, int64(1), res.Event.Seq)

		stored, err := s.GetAccount(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(50), stored.BalancePoints)
		assert.Equal(t, int64(1), stored.Version)

		op, err := s.GetOperation(ctx, acc.ID, "op-1")
		require.NoError(t, err)
		assert.Equal(t, res.Event.ID, op.Result.Event.ID)
	})

	t.Run("Insufficient Balance Writes Nothing", func(t *testing.T) {
		s := New()
		acc := newAccount(t, s, "u")
		_, err := s.Append(ctx, earn(acc, "op-1", 50, now))
		require.NoError(t, err)

		spend := &models.EventDraft{AccountID: acc.ID, ExpectedVersion: 1, Type: models.SPEND, DeltaPoints: -60, OperationID: "op-2", Ts: now}
		_, err = s.Append(ctx, spend)
		assert.ErrorIs(t, err, storage.ErrInsufficientBalance)

		stored, _ := s.GetAccount(ctx, acc.ID)
		assert.Equal(t, int64(50), stored.BalancePoints)
		events, _ := s.ListEvents(ctx, acc.ID, nil, 10)
		assert.Len(t, events, 1)
		_, err = s.GetOperation(ctx, acc.ID, "op-2")
		assert.ErrorIs(t, err, storage.ErrOperationNotFound)
	})

	t.Run("Duplicate Operation", func(t *testing.T) {
		s := New()
		acc := newAccount(t, s, "u")
		_, err := s.Append(ctx, earn(acc, "op-1", 5, now))
		require.NoError(t, err)

		again := earn(acc, "op-1", 5, now)
		again.ExpectedVersion = 1
		_, err = s.Append(ctx, again)
		assert.ErrorIs(t, err, storage.ErrDuplicateOperation)
	})

	t.Run("Version Conflict", func(t *testing.T) {
		s := New()
		acc := newAccount(t, s, "u")
		_, err := s.Append(ctx, earn(acc, "op-1", 5, now))
		require.NoError(t, err)
		_, err = s.Append(ctx, earn(acc, "op-2", 5, now))
		assert.ErrorIs(t, err, storage.ErrVersionConflict)
	})

	t.Run("Same Timestamp Is Bumped", func(t *testing.T) {
		s := New()
		acc := newAccount(t, s, "u")
		r1, err := s.Append(ctx, earn(acc, "op-1", 5, now))
		require.NoError(t, err)
		d := earn(acc, "op-2", 5, now)
		d.ExpectedVersion = 1
		r2, err := s.Append(ctx, d)
		require.NoError(t, err)
		assert.True(t, r2.Event.Ts.After(r1.Event.Ts))
	})
}

func TestConcurrentSpends(t *testing.T) {
	ctx := context.Background()
	s := New()
	acc := newAccount(t, s, "u")
	_, err := s.Append(ctx, earn(acc, "seed", 40, time.Now()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for {
				cur, _ := s.GetAccount(ctx, acc.ID)
				_, err := s.Append(ctx, &models.EventDraft{
					AccountID:       acc.ID,
					ExpectedVersion: cur.Version,
					Type:            models.SPEND,
					DeltaPoints:     -30,
					OperationID:     uuid.NewString(),
					Ts:              time.Now(),
				})
				if err == storage.ErrVersionConflict {
					continue
				}
				results <- err
				return
			}
		}(i)
	}
	wg.Wait()
	close(results)

	var ok, insufficient int
	for err := range results {
		switch err {
		case nil:
			ok++
		case storage.ErrInsufficientBalance:
			insufficient++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)

	final, _ := s.GetAccount(ctx, acc.ID)
	assert.Equal(t, int64(10), final.BalancePoints)
}

func TestListEvents(t *testing.T) {
	ctx := context.Background()
	s := New()
	acc := newAccount(t, s, "u")
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		cur, _ := s.GetAccount(ctx, acc.ID)
		_, err := s.Append(ctx, earn(cur, uuid.NewString(), 1, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	all, err := s.ListEvents(ctx, acc.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, int64(5), all[0].Seq)

	cursor := all[1].Ts
	page, err := s.ListEvents(ctx, acc.ID, &cursor, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].Seq)
	assert.Equal(t, int64(2), page[1].Seq)
}

func TestRulesets(t *testing.T) {
	ctx := context.Background()
	s := New()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.RulesetAt(ctx, t0)
	assert.ErrorIs(t, err, storage.ErrRulesetNotFound)

	for i, id := range []string{"b", "a", "c"} {
		_, err := s.CreateRuleset(ctx, &models.Ruleset{ID: id, EffectiveFrom: t0.Add(time.Duration([]int{2, 1, 3}[i]) * time.Hour)})
		require.NoError(t, err)
	}

	t.Run("Duplicate EffectiveFrom", func(t *testing.T) {
		_, err := s.CreateRuleset(ctx, &models.Ruleset{ID: "d", EffectiveFrom: t0.Add(time.Hour)})
		assert.ErrorIs(t, err, storage.ErrRulesetExists)
	})

	t.Run("At", func(t *testing.T) {
		_, err := s.RulesetAt(ctx, t0)
		assert.ErrorIs(t, err, storage.ErrRulesetNotFound)

		rs, err := s.RulesetAt(ctx, t0.Add(90*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "a", rs.ID)

		rs, err = s.RulesetAt(ctx, t0.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "b", rs.ID)
	})

	t.Run("List", func(t *testing.T) {
		items, total, err := s.ListRulesets(ctx, 2, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, items, 2)
		assert.Equal(t, "b", items[0].ID)
		assert.Equal(t, "a", items[1].ID)
	})
}

func TestPurgeOperations(t *testing.T) {
	ctx := context.Background()
	s := New()
	acc := newAccount(t, s, "u")
	now := time.Now()
	_, err := s.Append(ctx, earn(acc, "op-1", 1, now))
	require.NoError(t, err)

	n, err := s.PurgeOperations(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.PurgeOperations(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = s.GetOperation(ctx, acc.ID, "op-1")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
}
