// Package rules validates rulesets and resolves levels and earned points.
package rules

import (
	"math"
	"sort"
	"strings"

	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

const (
	MaxLevelCodeLen = 64
	moneyScale      = 2
	// divisionPrecision keeps enough digits that the floor of the quotient is exact
	// for any 2-digit money amount we accept.
	divisionPrecision = 24
)

var (
	hundred = decimal.NewFromInt(100)
	// MaxMoney is the exclusive upper bound of any money value, the range of NUMERIC(18,2).
	MaxMoney  = decimal.New(1, 16)
	maxPoints = decimal.NewFromInt(math.MaxInt64)
)

// CheckMoney rejects values with more than two fraction digits or at or above MaxMoney.
func CheckMoney(field string, d decimal.Decimal) error {
	if d.Exponent() < -moneyScale && !d.Equal(d.Round(moneyScale)) {
		return errs.Validation(errs.CodeInvalidMoney, "%s must have at most %d fraction digits", field, moneyScale)
	}
	if d.GreaterThanOrEqual(MaxMoney) {
		return errs.Validation(errs.CodeInvalidMoney, "%s must be below %s", field, MaxMoney.String())
	}
	return nil
}

// ValidateRuleset checks base rate and levels. It does not mutate its input.
func ValidateRuleset(base decimal.Decimal, levels []models.LevelRule) error {
	if !base.IsPositive() {
		return errs.Validation(errs.CodeInvalidRuleset, "baseRubPerPoint must be > 0")
	}
	if err := CheckMoney("baseRubPerPoint", base); err != nil {
		return err
	}
	if len(levels) == 0 {
		return errs.Validation(errs.CodeInvalidLevels, "levels must not be empty")
	}

	codes := make(map[string]struct{}, len(levels))
	thresholds := make(map[string]struct{}, len(levels))
	for i, l := range levels {
		code := strings.TrimSpace(l.LevelCode)
		if code == "" {
			return errs.Validation(errs.CodeInvalidLevels, "levels[%d].levelCode must not be empty", i)
		}
		if len(code) > MaxLevelCodeLen {
			return errs.Validation(errs.CodeInvalidLevels, "levels[%d].levelCode exceeds %d characters", i, MaxLevelCodeLen)
		}
		if _, dup := codes[code]; dup {
			return errs.Validation(errs.CodeInvalidLevels, "duplicate levelCode %q", code)
		}
		codes[code] = struct{}{}

		if l.ThresholdTotalSpend.IsNegative() {
			return errs.Validation(errs.CodeInvalidLevels, "levels[%d].thresholdTotalSpend must be >= 0", i)
		}
		if err := CheckMoney("thresholdTotalSpend", l.ThresholdTotalSpend); err != nil {
			return err
		}
		key := l.ThresholdTotalSpend.StringFixed(moneyScale)
		if _, dup := thresholds[key]; dup {
			return errs.Validation(errs.CodeInvalidLevels, "duplicate thresholdTotalSpend %s", key)
		}
		thresholds[key] = struct{}{}

		if !l.PercentEarn.IsPositive() {
			return errs.Validation(errs.CodeInvalidLevels, "levels[%d].percentEarn must be > 0", i)
		}
		if err := CheckMoney("percentEarn", l.PercentEarn); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeLevels trims codes and returns a copy sorted by ascending threshold.
func NormalizeLevels(levels []models.LevelRule) []models.LevelRule {
	out := make([]models.LevelRule, len(levels))
	for i, l := range levels {
		l.LevelCode = strings.TrimSpace(l.LevelCode)
		out[i] = l
	}
	SortLevels(out)
	return out
}

// SortLevels orders levels by ascending threshold, keeping creation order for ties.
func SortLevels(levels []models.LevelRule) {
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].ThresholdTotalSpend.LessThan(levels[j].ThresholdTotalSpend)
	})
}

// ResolveLevel picks the highest level whose threshold is <= totalSpend.
// A spend below every threshold means the ruleset has no floor level, which
// is a configuration error.
func ResolveLevel(rs *models.Ruleset, totalSpend decimal.Decimal) (models.LevelRule, error) {
	if rs == nil || len(rs.Levels) == 0 {
		return models.LevelRule{}, errs.Configuration("ruleset has no levels")
	}
	levels := make([]models.LevelRule, len(rs.Levels))
	copy(levels, rs.Levels)
	SortLevels(levels)

	idx := -1
	for i, l := range levels {
		if l.ThresholdTotalSpend.LessThanOrEqual(totalSpend) {
			idx = i
			continue
		}
		break
	}
	if idx < 0 {
		return models.LevelRule{}, errs.Configuration("ruleset %s has no level for total spend %s", rs.ID, totalSpend.StringFixed(moneyScale))
	}
	return levels[idx], nil
}

// ComputeEarnPoints returns floor(amount / base * percent / 100) in exact decimal arithmetic.
func ComputeEarnPoints(amount, base, percent decimal.Decimal) (int64, error) {
	if !base.IsPositive() {
		return 0, errs.Configuration("baseRubPerPoint must be > 0")
	}
	if amount.IsNegative() {
		return 0, errs.Validation(errs.CodeInvalidMoney, "amountMoney must be >= 0")
	}
	// Multiply before dividing so the only inexact step is the single division.
	num := amount.Mul(percent)
	den := base.Mul(hundred)
	pts := num.DivRound(den, divisionPrecision).Floor()
	// DivRound may round the last digit up across an integer boundary.
	if pts.Mul(den).GreaterThan(num) {
		pts = pts.Sub(decimal.NewFromInt(1))
	}
	if !pts.IsInteger() || pts.GreaterThan(maxPoints) {
		return 0, errs.Validation(errs.CodeInvalidMoney, "amountMoney %s earns more points than a balance can hold", amount.String())
	}
	return pts.IntPart(), nil
}
