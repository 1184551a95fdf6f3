package dynamodb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Decimals are stored as strings and timestamps used in key conditions as
// unix nanoseconds, so item types mirror the domain models field by field.

const rulesetsPartition = "RULESETS"

type levelItem struct {
	LevelCode           string `dynamodbav:"level_code"`
	ThresholdTotalSpend string `dynamodbav:"threshold_total_spend"`
	PercentEarn         string `dynamodbav:"percent_earn"`
}

type rulesetItem struct {
	GSI1PK          string      `dynamodbav:"gsi1pk"`
	EffectiveFrom   int64       `dynamodbav:"effective_from"`
	ID              string      `dynamodbav:"id"`
	BaseRubPerPoint string      `dynamodbav:"base_rub_per_point"`
	Levels          []levelItem `dynamodbav:"levels"`
	CreatedAt       time.Time   `dynamodbav:"created_at"`
}

type accountItem struct {
	ID              string    `dynamodbav:"id"`
	UserID          string    `dynamodbav:"user_id"`
	PublicCode      string    `dynamodbav:"public_code"`
	BalancePoints   int64     `dynamodbav:"balance_points"`
	TotalSpendMoney string    `dynamodbav:"total_spend_money"`
	LevelCode       string    `dynamodbav:"level_code"`
	Version         int64     `dynamodbav:"version"`
	CreatedAt       time.Time `dynamodbav:"created_at"`
	LastTs          int64     `dynamodbav:"last_ts"`
	LastSeq         int64     `dynamodbav:"last_seq"`
}

// guardItem reserves a unique attribute value inside the accounts table.
type guardItem struct {
	ID        string `dynamodbav:"id"`
	AccountID string `dynamodbav:"account_id"`
}

type eventItem struct {
	AccountID    string  `dynamodbav:"account_id"`
	Ts           int64   `dynamodbav:"ts"`
	ID           string  `dynamodbav:"id"`
	Seq          int64   `dynamodbav:"seq"`
	Type         string  `dynamodbav:"type"`
	DeltaPoints  int64   `dynamodbav:"delta_points"`
	BalanceAfter int64   `dynamodbav:"balance_after"`
	AmountMoney  *string `dynamodbav:"amount_money,omitempty"`
	RulesetID    *string `dynamodbav:"ruleset_id,omitempty"`
	ActorUserID  *string `dynamodbav:"actor_user_id,omitempty"`
	OperationID  string  `dynamodbav:"operation_id"`
}

type operationItem struct {
	AccountID   string    `dynamodbav:"account_id"`
	OperationID string    `dynamodbav:"operation_id"`
	OpType      string    `dynamodbav:"op_type"`
	Result      string    `dynamodbav:"result"`
	CommittedAt time.Time `dynamodbav:"committed_at"`
	ExpiresAt   time.Time `dynamodbav:"expires_at"`
	TTL         int64     `dynamodbav:"ttl,omitempty"`
}

func userGuardKey(userID string) string { return "USER#" + userID }

func codeGuardKey(code string) string { return "CODE#" + code }

func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s: %w", field, err)
	}
	return d, nil
}

func toRulesetItem(rs *models.Ruleset) rulesetItem {
	levels := make([]levelItem, len(rs.Levels))
	for i, l := range rs.Levels {
		levels[i] = levelItem{
			LevelCode:           l.LevelCode,
			ThresholdTotalSpend: l.ThresholdTotalSpend.String(),
			PercentEarn:         l.PercentEarn.String(),
		}
	}
	return rulesetItem{
		GSI1PK:          rulesetsPartition,
		EffectiveFrom:   rs.EffectiveFrom.UnixNano(),
		ID:              rs.ID,
		BaseRubPerPoint: rs.BaseRubPerPoint.String(),
		Levels:          levels,
		CreatedAt:       rs.CreatedAt,
	}
}

func (it rulesetItem) toModel() (*models.Ruleset, error) {
	base, err := parseDecimal("base_rub_per_point", it.BaseRubPerPoint)
	if err != nil {
		return nil, err
	}
	levels := make([]models.LevelRule, len(it.Levels))
	for i, l := range it.Levels {
		th, err := parseDecimal("threshold_total_spend", l.ThresholdTotalSpend)
		if err != nil {
			return nil, err
		}
		pct, err := parseDecimal("percent_earn", l.PercentEarn)
		if err != nil {
			return nil, err
		}
		levels[i] = models.LevelRule{LevelCode: l.LevelCode, ThresholdTotalSpend: th, PercentEarn: pct}
	}
	return &models.Ruleset{
		ID:              it.ID,
		EffectiveFrom:   fromNanos(it.EffectiveFrom),
		BaseRubPerPoint: base,
		Levels:          levels,
		CreatedAt:       it.CreatedAt,
	}, nil
}

func toAccountItem(acc *models.Account) accountItem {
	return accountItem{
		ID:              acc.ID,
		UserID:          acc.UserID,
		PublicCode:      acc.PublicCode,
		BalancePoints:   acc.BalancePoints,
		TotalSpendMoney: acc.TotalSpendMoney.String(),
		LevelCode:       acc.LevelCode,
		Version:         acc.Version,
		CreatedAt:       acc.CreatedAt,
		LastTs:          nanos(acc.LastTs),
		LastSeq:         acc.LastSeq,
	}
}

func (it accountItem) toModel() (*models.Account, error) {
	spend, err := parseDecimal("total_spend_money", it.TotalSpendMoney)
	if err != nil {
		return nil, err
	}
	return &models.Account{
		ID:              it.ID,
		UserID:          it.UserID,
		PublicCode:      it.PublicCode,
		BalancePoints:   it.BalancePoints,
		TotalSpendMoney: spend,
		LevelCode:       it.LevelCode,
		Version:         it.Version,
		CreatedAt:       it.CreatedAt,
		LastTs:          fromNanos(it.LastTs),
		LastSeq:         it.LastSeq,
	}, nil
}

func toEventItem(ev *models.Event) eventItem {
	it := eventItem{
		AccountID:    ev.AccountID,
		Ts:           ev.Ts.UnixNano(),
		ID:           ev.ID,
		Seq:          ev.Seq,
		Type:         string(ev.Type),
		DeltaPoints:  ev.DeltaPoints,
		BalanceAfter: ev.BalanceAfter,
		RulesetID:    ev.RulesetID,
		ActorUserID:  ev.ActorUserID,
		OperationID:  ev.OperationID,
	}
	if ev.AmountMoney != nil {
		s := ev.AmountMoney.String()
		it.AmountMoney = &s
	}
	return it
}

func (it eventItem) toModel() (*models.Event, error) {
	ev := &models.Event{
		ID:           it.ID,
		Seq:          it.Seq,
		AccountID:    it.AccountID,
		Type:         models.OpType(it.Type),
		DeltaPoints:  it.DeltaPoints,
		BalanceAfter: it.BalanceAfter,
		RulesetID:    it.RulesetID,
		ActorUserID:  it.ActorUserID,
		OperationID:  it.OperationID,
		Ts:           fromNanos(it.Ts),
	}
	if it.AmountMoney != nil {
		amount, err := parseDecimal("amount_money", *it.AmountMoney)
		if err != nil {
			return nil, err
		}
		ev.AmountMoney = &amount
	}
	return ev, nil
}

func toOperationItem(rec *models.OperationRecord) (operationItem, error) {
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return operationItem{}, fmt.Errorf("failed to marshal operation result: %w", err)
	}
	it := operationItem{
		AccountID:   rec.AccountID,
		OperationID: rec.OperationID,
		OpType:      string(rec.OpType),
		Result:      string(result),
		CommittedAt: rec.CommittedAt,
		ExpiresAt:   rec.ExpiresAt,
	}
	if !rec.ExpiresAt.IsZero() {
		it.TTL = rec.ExpiresAt.Unix()
	}
	return it, nil
}

// expired uses the same second granularity as the ttl attribute, so a record
// reported expired here also passes the overwrite condition in Append.
func (it operationItem) expired(now time.Time) bool {
	return it.TTL > 0 && it.TTL < now.Unix()
}

func (it operationItem) toModel() (*models.OperationRecord, error) {
	var result models.OperationResult
	if err := json.Unmarshal([]byte(it.Result), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation result: %w", err)
	}
	return &models.OperationRecord{
		AccountID:   it.AccountID,
		OperationID: it.OperationID,
		OpType:      models.OpType(it.OpType),
		Result:      result,
		CommittedAt: it.CommittedAt,
		ExpiresAt:   it.ExpiresAt,
	}, nil
}
