// Package api holds the JSON wire types of the loyalty HTTP API.
// Money, percents and rates travel as decimal strings.
package api

import "time"

// Problem is an RFC 7807 error body.
type Problem struct {
	Type     string  `json:"type"`
	Title    string  `json:"title"`
	Status   int     `json:"status"`
	Detail   *string `json:"detail,omitempty"`
	Code     *string `json:"code,omitempty"`
	Instance *string `json:"instance,omitempty"`
}

type LevelRule struct {
	LevelCode           string `json:"levelCode" validate:"required,max=64"`
	ThresholdTotalSpend string `json:"thresholdTotalSpend" validate:"required"`
	PercentEarn         string `json:"percentEarn" validate:"required"`
}

type NewRuleset struct {
	EffectiveFrom   *time.Time  `json:"effectiveFrom,omitempty"`
	BaseRubPerPoint string      `json:"baseRubPerPoint" validate:"required"`
	Levels          []LevelRule `json:"levels" validate:"required,min=1,dive"`
}

type Ruleset struct {
	Id              string      `json:"id"`
	EffectiveFrom   time.Time   `json:"effectiveFrom"`
	BaseRubPerPoint string      `json:"baseRubPerPoint"`
	Levels          []LevelRule `json:"levels"`
	CreatedAt       time.Time   `json:"createdAt"`
}

type RulesetsPage struct {
	Items  []Ruleset `json:"items"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
	Total  int       `json:"total"`
}

type NewAccount struct {
	UserId string `json:"userId" validate:"required,max=128"`
}

type Account struct {
	Id              string    `json:"id"`
	UserId          string    `json:"userId,omitempty"`
	PublicCode      string    `json:"publicCode"`
	BalancePoints   int64     `json:"balancePoints"`
	TotalSpendMoney string    `json:"totalSpendMoney"`
	LevelCode       string    `json:"levelCode"`
	CreatedAt       time.Time `json:"createdAt"`
}

type Balance struct {
	AccountId       string    `json:"accountId"`
	BalancePoints   int64     `json:"balancePoints"`
	TotalSpendMoney string    `json:"totalSpendMoney"`
	LevelCode       string    `json:"levelCode"`
	AsOf            time.Time `json:"asOf"`
}

type Event struct {
	Id           string    `json:"id"`
	Seq          int64     `json:"seq"`
	AccountId    string    `json:"accountId"`
	Type         string    `json:"type"`
	DeltaPoints  int64     `json:"deltaPoints"`
	BalanceAfter int64     `json:"balanceAfter"`
	AmountMoney  *string   `json:"amountMoney,omitempty"`
	RulesetId    *string   `json:"rulesetId,omitempty"`
	ActorUserId  *string   `json:"actorUserId,omitempty"`
	OperationId  string    `json:"operationId"`
	Ts           time.Time `json:"ts"`
}

type EventsPage struct {
	Items        []Event    `json:"items"`
	NextBeforeTs *time.Time `json:"nextBeforeTs,omitempty"`
}

// NewOperation is the generic cashier operation body. OperationId may be
// omitted when the Idempotency-Key header is sent.
type NewOperation struct {
	OperationId   string  `json:"operationId" validate:"omitempty,max=128"`
	OpType        string  `json:"opType" validate:"required,oneof=EARN SPEND"`
	PublicCode    string  `json:"publicCode" validate:"required,uuid"`
	AmountMoney   *string `json:"amountMoney,omitempty"`
	PointsToSpend *int64  `json:"pointsToSpend,omitempty"`
}

type EarnRequest struct {
	OperationId string `json:"operationId" validate:"omitempty,max=128"`
	PublicCode  string `json:"publicCode" validate:"required,uuid"`
	AmountMoney string `json:"amountMoney"`
}

type SpendRequest struct {
	OperationId  string `json:"operationId" validate:"omitempty,max=128"`
	PublicCode   string `json:"publicCode" validate:"required,uuid"`
	AmountPoints int64  `json:"amountPoints"`
}

type OperationResult struct {
	OperationId      string  `json:"operationId"`
	OpType           string  `json:"opType"`
	Event            Event   `json:"event"`
	Balance          Balance `json:"balance"`
	IdempotentReplay bool    `json:"idempotentReplay"`
}

type Health struct {
	Status string `json:"status"`
}
