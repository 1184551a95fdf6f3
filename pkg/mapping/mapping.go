package mapping

import (
	"strings"

	"github.com/chris/loyalty-ledger/pkg/api"
	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/ruleset"
	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

// FormatMoney renders d with exactly two fraction digits.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(moneyPlaces)
}

// ParseDecimal parses a decimal string, reporting failures under code.
func ParseDecimal(code, field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, errs.Validation(code, "%s is required", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errs.Validation(code, "%s must be a decimal string, got %q", field, s)
	}
	return d, nil
}

// ToApiRuleset converts a domain Ruleset to its wire form.
func ToApiRuleset(rs *models.Ruleset) api.Ruleset {
	levels := make([]api.LevelRule, len(rs.Levels))
	for i, l := range rs.Levels {
		levels[i] = api.LevelRule{
			LevelCode:           l.LevelCode,
			ThresholdTotalSpend: FormatMoney(l.ThresholdTotalSpend),
			PercentEarn:         FormatMoney(l.PercentEarn),
		}
	}
	return api.Ruleset{
		Id:              rs.ID,
		EffectiveFrom:   rs.EffectiveFrom,
		BaseRubPerPoint: FormatMoney(rs.BaseRubPerPoint),
		Levels:          levels,
		CreatedAt:       rs.CreatedAt,
	}
}

func ToApiRulesetsPage(page *models.RulesetPage) api.RulesetsPage {
	items := make([]api.Ruleset, len(page.Items))
	for i := range page.Items {
		items[i] = ToApiRuleset(&page.Items[i])
	}
	return api.RulesetsPage{Items: items, Limit: page.Limit, Offset: page.Offset, Total: page.Total}
}

// ToDomainNewRuleset parses decimal strings of a submitted ruleset.
func ToDomainNewRuleset(in *api.NewRuleset) (ruleset.CreateInput, error) {
	base, err := ParseDecimal(errs.CodeInvalidRuleset, "baseRubPerPoint", in.BaseRubPerPoint)
	if err != nil {
		return ruleset.CreateInput{}, err
	}
	levels := make([]models.LevelRule, len(in.Levels))
	for i, l := range in.Levels {
		threshold, err := ParseDecimal(errs.CodeInvalidLevels, "thresholdTotalSpend", l.ThresholdTotalSpend)
		if err != nil {
			return ruleset.CreateInput{}, err
		}
		percent, err := ParseDecimal(errs.CodeInvalidLevels, "percentEarn", l.PercentEarn)
		if err != nil {
			return ruleset.CreateInput{}, err
		}
		levels[i] = models.LevelRule{LevelCode: l.LevelCode, ThresholdTotalSpend: threshold, PercentEarn: percent}
	}
	return ruleset.CreateInput{EffectiveFrom: in.EffectiveFrom, BaseRubPerPoint: base, Levels: levels}, nil
}

// ToApiAccount converts an account including its owner.
func ToApiAccount(acc *models.Account) api.Account {
	out := ToApiAccountSummary(acc)
	out.UserId = acc.UserID
	return out
}

// ToApiAccountSummary converts an account for cashiers, without the owner id.
func ToApiAccountSummary(acc *models.Account) api.Account {
	return api.Account{
		Id:              acc.ID,
		PublicCode:      acc.PublicCode,
		BalancePoints:   acc.BalancePoints,
		TotalSpendMoney: FormatMoney(acc.TotalSpendMoney),
		LevelCode:       acc.LevelCode,
		CreatedAt:       acc.CreatedAt,
	}
}

func ToApiBalance(b *models.BalanceView) api.Balance {
	return api.Balance{
		AccountId:       b.AccountID,
		BalancePoints:   b.BalancePoints,
		TotalSpendMoney: FormatMoney(b.TotalSpendMoney),
		LevelCode:       b.LevelCode,
		AsOf:            b.AsOf,
	}
}

func ToApiEvent(ev *models.Event) api.Event {
	out := api.Event{
		Id:           ev.ID,
		Seq:          ev.Seq,
		AccountId:    ev.AccountID,
		Type:         string(ev.Type),
		DeltaPoints:  ev.DeltaPoints,
		BalanceAfter: ev.BalanceAfter,
		RulesetId:    ev.RulesetID,
		ActorUserId:  ev.ActorUserID,
		OperationId:  ev.OperationID,
		Ts:           ev.Ts,
	}
	if ev.AmountMoney != nil {
		amount := FormatMoney(*ev.AmountMoney)
		out.AmountMoney = &amount
	}
	return out
}

func ToApiEventsPage(page *models.EventPage) api.EventsPage {
	items := make([]api.Event, len(page.Items))
	for i := range page.Items {
		items[i] = ToApiEvent(&page.Items[i])
	}
	return api.EventsPage{Items: items, NextBeforeTs: page.NextBeforeTs}
}

func ToApiOperationResult(res *models.OperationResult) api.OperationResult {
	return api.OperationResult{
		OperationId:      res.OperationID,
		OpType:           string(res.OpType),
		Event:            ToApiEvent(&res.Event),
		Balance:          ToApiBalance(&res.Balance),
		IdempotentReplay: res.IdempotentReplay,
	}
}

// ToDomainOperation builds an engine request for an already resolved account.
func ToDomainOperation(in *api.NewOperation, accountID, actorUserID string) (models.OperationRequest, error) {
	req := models.OperationRequest{
		AccountID:     accountID,
		OpType:        models.OpType(in.OpType),
		PointsToSpend: in.PointsToSpend,
		OperationID:   in.OperationId,
	}
	if actorUserID != "" {
		req.ActorUserID = &actorUserID
	}
	if in.AmountMoney != nil {
		amount, err := ParseDecimal(errs.CodeInvalidMoney, "amountMoney", *in.AmountMoney)
		if err != nil {
			return models.OperationRequest{}, err
		}
		req.AmountMoney = &amount
	}
	return req, nil
}

// EarnToOperation adapts the dedicated earn body to the generic form.
func EarnToOperation(in *api.EarnRequest) *api.NewOperation {
	amount := in.AmountMoney
	return &api.NewOperation{
		OperationId: in.OperationId,
		OpType:      string(models.EARN),
		PublicCode:  in.PublicCode,
		AmountMoney: &amount,
	}
}

// SpendToOperation adapts the dedicated spend body to the generic form.
func SpendToOperation(in *api.SpendRequest) *api.NewOperation {
	points := in.AmountPoints
	return &api.NewOperation{
		OperationId:   in.OperationId,
		OpType:        string(models.SPEND),
		PublicCode:    in.PublicCode,
		PointsToSpend: &points,
	}
}
