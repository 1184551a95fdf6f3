package storage

import (
	"math"
	"testing"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	acc := &models.Account{
		ID:              "acc-1",
		BalancePoints:   50,
		TotalSpendMoney: decimal.NewFromInt(2500),
		LevelCode:       "Green",
		Version:         3,
		LastTs:          now,
		LastSeq:         7,
	}

	t.Run("Earn", func(t *testing.T) {
		amount := decimal.NewFromInt(700)
		applied, err := Apply(acc, &models.EventDraft{
			AccountID:       acc.ID,
			ExpectedVersion: 3,
			Type:            models.EARN,
			DeltaPoints:     70,
			SpendDelta:      amount,
			LevelCodeAfter:  "Light",
			AmountMoney:     &amount,
			OperationID:     "op-1",
			Ts:              now.Add(time.Second),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(120), applied.Event.BalanceAfter)
		assert.Equal(t, int64(8), applied.Event.Seq)
		assert.Equal(t, int64(4), applied.Account.Version)
		assert.True(t, applied.Account.TotalSpendMoney.Equal(decimal.NewFromInt(3200)))
		assert.Equal(t, "Light", applied.Account.LevelCode)
		assert.Equal(t, applied.Event, applied.Record.Result.Event)
		// input untouched
		assert.Equal(t, int64(50), acc.BalancePoints)
	})

	t.Run("Insufficient Balance", func(t *testing.T) {
		_, err := Apply(acc, &models.EventDraft{ExpectedVersion: 3, Type: models.SPEND, DeltaPoints: -60})
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	})

	t.Run("Balance Overflow", func(t *testing.T) {
		rich := *acc
		rich.BalancePoints = math.MaxInt64 - 5
		_, err := Apply(&rich, &models.EventDraft{ExpectedVersion: 3, Type: models.EARN, DeltaPoints: 6})
		assert.ErrorIs(t, err, ErrBalanceOverflow)

		applied, err := Apply(&rich, &models.EventDraft{ExpectedVersion: 3, Type: models.EARN, DeltaPoints: 5})
		require.NoError(t, err)
		assert.Equal(t, int64(math.MaxInt64), applied.Event.BalanceAfter)
	})

	t.Run("Total Spend Overflow", func(t *testing.T) {
		big := *acc
		big.TotalSpendMoney = decimal.RequireFromString("9999999999999000.00")
		_, err := Apply(&big, &models.EventDraft{ExpectedVersion: 3, Type: models.EARN, DeltaPoints: 1, SpendDelta: decimal.NewFromInt(1000)})
		assert.ErrorIs(t, err, ErrBalanceOverflow)
	})

	t.Run("Version Conflict", func(t *testing.T) {
		_, err := Apply(acc, &models.EventDraft{ExpectedVersion: 2, Type: models.SPEND, DeltaPoints: -1})
		assert.ErrorIs(t, err, ErrVersionConflict)
	})

	t.Run("Clock Skew Bumps Ts", func(t *testing.T) {
		applied, err := Apply(acc, &models.EventDraft{ExpectedVersion: 3, Type: models.SPEND, DeltaPoints: -10, Ts: now.Add(-time.Minute)})
		require.NoError(t, err)
		assert.Equal(t, now.Add(TsResolution), applied.Event.Ts)
	})
}
