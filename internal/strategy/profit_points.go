package strategy

import (
	"fmt"

	"stocktracker/internal/domain"

	"github.com/shopspring/decimal"
)

// ProfitPointFunc returns the target price for a profit level, starting at
// level 1. Implementations are pure.
type ProfitPointFunc func(p domain.PositionState, level int) decimal.Decimal

// RiskMultiple places level k at k times the initial risk above cost
func RiskMultiple(p domain.PositionState, level int) decimal.Decimal {
	return p.AverageCostPerShare.Add(
		p.RiskPerShare().Mul(decimal.NewFromInt(int64(level))),
	)
}

// PercentGain places level k at k times pct above cost, where pct is a
// fraction (0.1 is 10%)
func PercentGain(pct decimal.Decimal) ProfitPointFunc {
	return func(p domain.PositionState, level int) decimal.Decimal {
		return p.AverageCostPerShare.Add(
			p.AverageCostPerShare.Mul(pct).Mul(decimal.NewFromInt(int64(level))),
		)
	}
}

type ProfitPointKind string

const (
	ProfitPointRiskMultiple ProfitPointKind = "risk_multiple"
	ProfitPointPercentGain  ProfitPointKind = "percent_gain"
)

// ProfitPoint is the serializable choice of profit-level formula
type ProfitPoint struct {
	Kind    ProfitPointKind `json:"kind"`
	Percent decimal.Decimal `json:"percent,omitempty"`
}

func (pp ProfitPoint) Func() (ProfitPointFunc, error) {
	switch pp.Kind {
	case ProfitPointRiskMultiple:
		return RiskMultiple, nil
	case ProfitPointPercentGain:
		if !pp.Percent.IsPositive() {
			return nil, &domain.ValidationError{
				Field:   "profitPoint.percent",
				Message: fmt.Sprintf("must be > 0, got %s", pp.Percent.String()),
			}
		}
		return PercentGain(pp.Percent), nil
	}
	return nil, &domain.ValidationError{
		Field:   "profitPoint.kind",
		Message: fmt.Sprintf("unknown profit point %q", pp.Kind),
	}
}
