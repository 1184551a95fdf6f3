package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(pkgerrors.WithStack(&pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(assert.AnError))
}

// newTestRepo connects to POSTGRES_TEST_URL; the integration tests are skipped without it.
func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	addr := os.Getenv("POSTGRES_TEST_URL")
	if addr == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, addr))
	repo, err := New(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return repo
}

func TestAppendIntegration(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	acc, err := repo.CreateAccount(ctx, &models.Account{
		ID:              uuid.NewString(),
		UserID:          uuid.NewString(),
		PublicCode:      uuid.NewString(),
		TotalSpendMoney: decimal.Zero,
		CreatedAt:       time.Now().UTC(),
	})
	require.NoError(t, err)

	amount := decimal.RequireFromString("700.00")
	now := time.Now().UTC()
	res, err := repo.Append(ctx, &models.EventDraft{
		AccountID:   acc.ID,
		Type:        models.EARN,
		DeltaPoints: 70,
		SpendDelta:  amount,
		AmountMoney: &amount,
		OperationID: "op-1",
		Ts:          now,
		ExpiresAt:   now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(70), res.Balance.BalancePoints)

	t.Run("Duplicate Operation", func(t *testing.T) {
		_, err := repo.Append(ctx, &models.EventDraft{AccountID: acc.ID, ExpectedVersion: 1, Type: models.EARN, DeltaPoints: 1, OperationID: "op-1", Ts: now})
		assert.ErrorIs(t, err, storage.ErrDuplicateOperation)
	})

	t.Run("Insufficient Balance", func(t *testing.T) {
		_, err := repo.Append(ctx, &models.EventDraft{AccountID: acc.ID, ExpectedVersion: 1, Type: models.SPEND, DeltaPoints: -71, OperationID: "op-2", Ts: now})
		assert.ErrorIs(t, err, storage.ErrInsufficientBalance)
	})

	t.Run("History", func(t *testing.T) {
		events, err := repo.ListEvents(ctx, acc.ID, nil, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.True(t, events[0].AmountMoney.Equal(amount))
	})

	t.Run("Operation Record", func(t *testing.T) {
		op, err := repo.GetOperation(ctx, acc.ID, "op-1")
		require.NoError(t, err)
		assert.Equal(t, res.Event.ID, op.Result.Event.ID)
	})

	t.Run("Expired Key Executes Again", func(t *testing.T) {
		first, err := repo.Append(ctx, &models.EventDraft{
			AccountID: acc.ID, ExpectedVersion: 1, Type: models.SPEND, DeltaPoints: -5,
			OperationID: "op-expired", Ts: now.Add(time.Second), ExpiresAt: now.Add(-time.Hour),
		})
		require.NoError(t, err)

		_, err = repo.GetOperation(ctx, acc.ID, "op-expired")
		require.ErrorIs(t, err, storage.ErrOperationNotFound)

		again, err := repo.Append(ctx, &models.EventDraft{
			AccountID: acc.ID, ExpectedVersion: 2, Type: models.SPEND, DeltaPoints: -5,
			OperationID: "op-expired", Ts: now.Add(2 * time.Second), ExpiresAt: now.Add(time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(60), again.Balance.BalancePoints)

		op, err := repo.GetOperation(ctx, acc.ID, "op-expired")
		require.NoError(t, err)
		assert.Equal(t, again.Event.ID, op.Result.Event.ID)
		assert.NotEqual(t, first.Event.ID, op.Result.Event.ID)
	})
}
