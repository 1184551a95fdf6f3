package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpType identifies a point-changing operation.
type OpType string

const (
	EARN  OpType = "EARN"
	SPEND OpType = "SPEND"
)

// Valid reports whether the op type is one the engine understands.
func (t OpType) Valid() bool {
	return t == EARN || t == SPEND
}

// LevelRule is one loyalty tier of a ruleset.
type LevelRule struct {
	LevelCode           string          `json:"levelCode"`
	ThresholdTotalSpend decimal.Decimal `json:"thresholdTotalSpend"`
	PercentEarn         decimal.Decimal `json:"percentEarn"`
}

// Ruleset is an immutable earn/spend configuration effective from a given instant.
type Ruleset struct {
	ID              string          `json:"id"`
	EffectiveFrom   time.Time       `json:"effectiveFrom"`
	BaseRubPerPoint decimal.Decimal `json:"baseRubPerPoint"`
	Levels          []LevelRule     `json:"levels"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Account is a loyalty account. BalancePoints and LevelCode are caches of the ledger.
type Account struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	PublicCode      string          `json:"publicCode"`
	BalancePoints   int64           `json:"balancePoints"`
	TotalSpendMoney decimal.Decimal `json:"totalSpendMoney"`
	LevelCode       string          `json:"levelCode"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"createdAt"`
	LastTs          time.Time       `json:"lastTs"`
	LastSeq         int64           `json:"lastSeq"`
}

// Event is one immutable ledger entry.
type Event struct {
	ID           string           `json:"id"`
	Seq          int64            `json:"seq"`
	AccountID    string           `json:"accountId"`
	Type         OpType           `json:"type"`
	DeltaPoints  int64            `json:"deltaPoints"`
	BalanceAfter int64            `json:"balanceAfter"`
	AmountMoney  *decimal.Decimal `json:"amountMoney,omitempty"`
	RulesetID    *string          `json:"rulesetId,omitempty"`
	ActorUserID  *string          `json:"actorUserId,omitempty"`
	OperationID  string           `json:"operationId"`
	Ts           time.Time        `json:"ts"`
}

// EventDraft is what the engine hands to the ledger. The ledger fills in
// the id, sequence, balance and the final timestamp.
type EventDraft struct {
	AccountID       string
	ExpectedVersion int64
	Type            OpType
	DeltaPoints     int64
	SpendDelta      decimal.Decimal
	LevelCodeAfter  string
	AmountMoney     *decimal.Decimal
	RulesetID       *string
	ActorUserID     *string
	OperationID     string
	Ts              time.Time
	// ExpiresAt bounds how long the idempotency record is retained.
	ExpiresAt time.Time
}

// OperationRequest is the input of the operation engine.
type OperationRequest struct {
	AccountID     string
	OpType        OpType
	AmountMoney   *decimal.Decimal
	PointsToSpend *int64
	OperationID   string
	ActorUserID   *string
}

// BalanceView is the balance of an account at a point in time.
type BalanceView struct {
	AccountID       string          `json:"accountId"`
	BalancePoints   int64           `json:"balancePoints"`
	TotalSpendMoney decimal.Decimal `json:"totalSpendMoney"`
	LevelCode       string          `json:"levelCode"`
	AsOf            time.Time       `json:"asOf"`
}

// OperationResult is the outcome of a committed operation.
type OperationResult struct {
	OperationID      string      `json:"operationId"`
	OpType           OpType      `json:"opType"`
	Event            Event       `json:"event"`
	Balance          BalanceView `json:"balance"`
	IdempotentReplay bool        `json:"idempotentReplay"`
}

// OperationRecord is the durable idempotency entry written with the event.
type OperationRecord struct {
	AccountID   string          `json:"accountId"`
	OperationID string          `json:"operationId"`
	OpType      OpType          `json:"opType"`
	Result      OperationResult `json:"result"`
	CommittedAt time.Time       `json:"committedAt"`
	ExpiresAt   time.Time       `json:"expiresAt"`
}

// EventPage is one newest-first page of ledger history.
type EventPage struct {
	Items        []Event    `json:"items"`
	NextBeforeTs *time.Time `json:"nextBeforeTs,omitempty"`
}

// RulesetPage is one page of the ruleset timeline, newest first.
type RulesetPage struct {
	Items  []Ruleset `json:"items"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
	Total  int       `json:"total"`
}
