package storage

import (
	"math"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TsResolution is the granularity used to keep event timestamps strictly increasing.
const TsResolution = time.Microsecond

// maxTotalSpend is the exclusive bound of a NUMERIC(18,2) money column.
var maxTotalSpend = decimal.New(1, 16)

// Applied is the outcome of applying a draft to an account snapshot.
type Applied struct {
	Account models.Account
	Event   models.Event
	Result  models.OperationResult
	Record  models.OperationRecord
}

// NextTs returns the draft timestamp, bumped past the account's last event when needed.
func NextTs(lastTs, want time.Time) time.Time {
	want = want.UTC().Truncate(TsResolution)
	if !lastTs.IsZero() && !want.After(lastTs) {
		return lastTs.Add(TsResolution)
	}
	return want
}

// Apply computes the post-append state of acc for draft without touching storage.
// Backends call it inside their atomic unit and persist the returned values.
func Apply(acc *models.Account, draft *models.EventDraft) (*Applied, error) {
	if acc.Version != draft.ExpectedVersion {
		return nil, ErrVersionConflict
	}
	if draft.DeltaPoints > 0 && acc.BalancePoints > math.MaxInt64-draft.DeltaPoints {
		return nil, ErrBalanceOverflow
	}
	balance := acc.BalancePoints + draft.DeltaPoints
	if balance < 0 {
		return nil, ErrInsufficientBalance
	}
	totalSpend := acc.TotalSpendMoney.Add(draft.SpendDelta)
	if totalSpend.GreaterThanOrEqual(maxTotalSpend) {
		return nil, ErrBalanceOverflow
	}

	ts := NextTs(acc.LastTs, draft.Ts)
	ev := models.Event{
		ID:           uuid.New().String(),
		Seq:          acc.LastSeq + 1,
		AccountID:    acc.ID,
		Type:         draft.Type,
		DeltaPoints:  draft.DeltaPoints,
		BalanceAfter: balance,
		AmountMoney:  draft.AmountMoney,
		RulesetID:    draft.RulesetID,
		ActorUserID:  draft.ActorUserID,
		OperationID:  draft.OperationID,
		Ts:           ts,
	}

	next := *acc
	next.BalancePoints = balance
	next.TotalSpendMoney = totalSpend
	if draft.LevelCodeAfter != "" {
		next.LevelCode = draft.LevelCodeAfter
	}
	next.Version = acc.Version + 1
	next.LastTs = ts
	next.LastSeq = ev.Seq

	res := models.OperationResult{
		OperationID: draft.OperationID,
		OpType:      draft.Type,
		Event:       ev,
		Balance: models.BalanceView{
			AccountID:       acc.ID,
			BalancePoints:   balance,
			TotalSpendMoney: next.TotalSpendMoney,
			LevelCode:       next.LevelCode,
			AsOf:            ts,
		},
	}

	return &Applied{
		Account: next,
		Event:   ev,
		Result:  res,
		Record: models.OperationRecord{
			AccountID:   acc.ID,
			OperationID: draft.OperationID,
			OpType:      draft.Type,
			Result:      res,
			CommittedAt: ts,
			ExpiresAt:   draft.ExpiresAt,
		},
	}, nil
}
