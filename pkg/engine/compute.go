package engine

import (
	"strings"

	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/rules"
	"github.com/shopspring/decimal"
)

const maxOperationIDLen = 128

func validateRequest(req *models.OperationRequest) error {
	req.OperationID = strings.TrimSpace(req.OperationID)
	if req.AccountID == "" {
		return errs.Validation(errs.CodeValidation, "accountId is required")
	}
	if req.OperationID == "" {
		return errs.Validation(errs.CodeValidation, "operationId is required")
	}
	if len(req.OperationID) > maxOperationIDLen {
		return errs.Validation(errs.CodeValidation, "operationId exceeds %d characters", maxOperationIDLen)
	}

	switch req.OpType {
	case models.EARN:
		if req.PointsToSpend != nil {
			return errs.Validation(errs.CodeInvalidOperation, "pointsToSpend is not allowed for EARN")
		}
		if req.AmountMoney == nil {
			return errs.Validation(errs.CodeInvalidMoney, "amountMoney is required for EARN")
		}
		if !req.AmountMoney.IsPositive() {
			return errs.Validation(errs.CodeInvalidMoney, "amountMoney must be > 0")
		}
		return rules.CheckMoney("amountMoney", *req.AmountMoney)
	case models.SPEND:
		if req.AmountMoney != nil {
			return errs.Validation(errs.CodeInvalidOperation, "amountMoney is not allowed for SPEND")
		}
		if req.PointsToSpend == nil || *req.PointsToSpend <= 0 {
			return errs.Validation(errs.CodeInvalidPoints, "pointsToSpend must be > 0")
		}
		return nil
	default:
		return errs.Validation(errs.CodeInvalidOperation, "opType must be EARN or SPEND")
	}
}

// computeDraft derives the ledger draft from the account as it stood before
// the operation. rs may be nil for SPEND.
func computeDraft(acc *models.Account, rs *models.Ruleset, req models.OperationRequest) (*models.EventDraft, error) {
	draft := &models.EventDraft{
		AccountID:       acc.ID,
		ExpectedVersion: acc.Version,
		Type:            req.OpType,
		SpendDelta:      decimal.Zero,
		LevelCodeAfter:  acc.LevelCode,
		ActorUserID:     req.ActorUserID,
		OperationID:     req.OperationID,
	}
	if rs != nil {
		id := rs.ID
		draft.RulesetID = &id
	}

	switch req.OpType {
	case models.EARN:
		level, err := rules.ResolveLevel(rs, acc.TotalSpendMoney)
		if err != nil {
			return nil, err
		}
		points, err := rules.ComputeEarnPoints(*req.AmountMoney, rs.BaseRubPerPoint, level.PercentEarn)
		if err != nil {
			return nil, err
		}
		amount := *req.AmountMoney
		draft.DeltaPoints = points
		draft.SpendDelta = amount
		draft.AmountMoney = &amount

		after, err := rules.ResolveLevel(rs, acc.TotalSpendMoney.Add(amount))
		if err != nil {
			return nil, err
		}
		draft.LevelCodeAfter = after.LevelCode
	case models.SPEND:
		draft.DeltaPoints = -*req.PointsToSpend
		// Keep the cached level in step with the current ruleset when one exists.
		if rs != nil {
			if lvl, err := rules.ResolveLevel(rs, acc.TotalSpendMoney); err == nil {
				draft.LevelCodeAfter = lvl.LevelCode
			}
		}
	}
	return draft, nil
}
