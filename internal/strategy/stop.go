package strategy

import (
	"fmt"

	"stocktracker/internal/domain"

	"github.com/shopspring/decimal"
)

// StopAdvance decides where the stop goes after a profit level is taken
type StopAdvance string

const (
	NoAdvance StopAdvance = "none"
	// Advancing moves the stop to the previous level's target once level 2
	// is reached
	Advancing StopAdvance = "advancing"
	// DelayedAdvancing lags Advancing by one level
	DelayedAdvancing StopAdvance = "delayed"
)

func (s StopAdvance) validate() error {
	switch s {
	case NoAdvance, Advancing, DelayedAdvancing:
		return nil
	}
	return &domain.ValidationError{
		Field:   "stopAdvance",
		Message: fmt.Sprintf("unknown stop advance %q", s),
	}
}

// nextStop returns the stop to set after level has been executed, or nil
// to keep the current one
func (s StopAdvance) nextStop(target ProfitPointFunc, p domain.PositionState, level int) *decimal.Decimal {
	lag := 0
	switch s {
	case Advancing:
		lag = 1
	case DelayedAdvancing:
		lag = 2
	default:
		return nil
	}
	if level <= lag {
		return nil
	}
	stop := target(p, level-lag)
	return &stop
}
