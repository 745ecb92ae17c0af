package strategy

import (
	"fmt"
	"time"

	"stocktracker/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DownsideProtection sells part of the position once, the first time RR
// falls below the threshold
type DownsideProtection struct {
	RRThreshold  float64         `json:"rrThreshold"`
	SellFraction decimal.Decimal `json:"sellFraction"`
}

// Config describes one strategy variant. Variants differ only in these
// values.
type Config struct {
	Name               string              `json:"name"`
	Description        string              `json:"description,omitempty"`
	NumberOfLevels     int                 `json:"numberOfLevels"`
	ProfitPoint        ProfitPoint         `json:"profitPoint"`
	StopAdvance        StopAdvance         `json:"stopAdvance"`
	DownsideProtection *DownsideProtection `json:"downsideProtection,omitempty"`
	UseLowAsStop       bool                `json:"useLowAsStop"`
	CloseAtEnd         bool                `json:"closeAtEnd"`
}

func (c Config) Validate() error {
	if c.NumberOfLevels < 1 {
		return &domain.ValidationError{
			Field:   "numberOfLevels",
			Message: fmt.Sprintf("must be >= 1, got %d", c.NumberOfLevels),
		}
	}
	if _, err := c.ProfitPoint.Func(); err != nil {
		return err
	}
	if err := c.StopAdvance.validate(); err != nil {
		return err
	}
	if c.DownsideProtection != nil {
		f := c.DownsideProtection.SellFraction
		if !f.IsPositive() || f.GreaterThan(decimal.NewFromInt(1)) {
			return &domain.ValidationError{
				Field:   "downsideProtection.sellFraction",
				Message: fmt.Sprintf("must be in (0, 1], got %s", f.String()),
			}
		}
	}
	return nil
}

// Result is the outcome of folding a strategy over a price series.
// MaxGainPct and MaxDrawdownPct are percent moves of the bar high and low
// away from average cost.
type Result struct {
	StrategyName           string                 `json:"strategyName"`
	MaxDrawdownPct         float64                `json:"maxDrawdownPct"`
	MaxGainPct             float64                `json:"maxGainPct"`
	Position               domain.PositionSummary `json:"position"`
	LevelsReached          int                    `json:"levelsReached"`
	StoppedOut             bool                   `json:"stoppedOut"`
	ForcedClose            bool                   `json:"forcedClose"`
	DownsideProtectionUsed bool                   `json:"downsideProtectionUsed"`
	BarsProcessed          int                    `json:"barsProcessed"`
}

type run struct {
	cfg      Config
	position *domain.Position
	target   ProfitPointFunc

	initialShares decimal.Decimal
	level         int
	maxGain       decimal.Decimal
	maxDrawdown   decimal.Decimal
	protected     bool

	result Result
}

// Run folds cfg over bars against a private copy of position. bars must be
// in chronological order. The input position is never modified.
func Run(position *domain.Position, bars []domain.PriceBar, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	target, err := cfg.ProfitPoint.Func()
	if err != nil {
		return nil, err
	}

	state := position.State()
	if state.FirstStop == nil || state.StopPrice == nil {
		return nil, &domain.ValidationError{
			Field:   "stopPrice",
			Message: fmt.Sprintf("position %s has no stop price", state.Ticker),
		}
	}
	if cfg.ProfitPoint.Kind == ProfitPointRiskMultiple && !state.RiskPerShare().IsPositive() {
		return nil, &domain.ValidationError{
			Field:   "stopPrice",
			Message: fmt.Sprintf("stop %s must be below average cost %s to size risk levels", state.FirstStop.String(), state.AverageCostPerShare.String()),
		}
	}
	if state.IsClosed || state.IsDeleted {
		return nil, &domain.ValidationError{
			Field:   "position",
			Message: fmt.Sprintf("position %s is not open", state.PositionID),
		}
	}
	if len(bars) == 0 {
		return nil, &domain.ValidationError{
			Field:   "bars",
			Message: "at least one price bar is required",
		}
	}

	p, err := position.Copy()
	if err != nil {
		return nil, fmt.Errorf("failed to copy position: %w", err)
	}

	r := &run{
		cfg:           cfg,
		position:      p,
		target:        target,
		initialShares: state.NumberOfShares,
		level:         1,
		maxGain:       decimal.Zero,
		maxDrawdown:   decimal.Zero,
		result: Result{
			StrategyName: cfg.Name,
		},
	}

	asOf := bars[0].Date
	for _, bar := range bars {
		if r.position.IsClosed() {
			break
		}
		if err := r.step(bar); err != nil {
			return nil, err
		}
		asOf = bar.Date
		r.result.BarsProcessed++
	}

	if cfg.CloseAtEnd && !r.position.IsClosed() {
		last := bars[len(bars)-1]
		shares := r.position.State().NumberOfShares
		if err := r.sell(shares, last.Close, last.Date, "close at end"); err != nil {
			return nil, err
		}
		r.result.ForcedClose = true
		asOf = last.Date
	}

	r.result.MaxGainPct = r.maxGain.Mul(decimal.NewFromInt(100)).InexactFloat64()
	r.result.MaxDrawdownPct = r.maxDrawdown.Mul(decimal.NewFromInt(100)).InexactFloat64()
	r.result.LevelsReached = r.level - 1
	r.result.Position = r.position.Summary(asOf)

	return &r.result, nil
}

func (r *run) sell(shares, price decimal.Decimal, when time.Time, notes string) error {
	if err := r.position.Sell(shares, price, when, uuid.New(), notes); err != nil {
		return fmt.Errorf("failed to sell %s shares at %s: %w", shares.String(), price.String(), err)
	}
	return nil
}

func (r *run) step(bar domain.PriceBar) error {
	state := r.position.State()

	// profit level
	if r.level <= r.cfg.NumberOfLevels {
		target := r.target(state, r.level)
		if bar.High.GreaterThanOrEqual(target) {
			shares := r.levelShares(state.NumberOfShares)
			if err := r.sell(shares, target, bar.Date, fmt.Sprintf("profit level %d", r.level)); err != nil {
				return err
			}
			if !r.position.IsClosed() {
				if stop := r.cfg.StopAdvance.nextStop(r.target, r.position.State(), r.level); stop != nil {
					reason := fmt.Sprintf("advance after level %d", r.level)
					if err := r.position.SetStopPrice(*stop, bar.Date, reason); err != nil {
						return fmt.Errorf("failed to advance stop: %w", err)
					}
				}
			}
			r.level++
		}
	}

	// stop
	state = r.position.State()
	if !state.IsClosed {
		trigger := bar.Close
		if r.cfg.UseLowAsStop {
			trigger = bar.Low
		}
		stop := *state.StopPrice
		if trigger.LessThanOrEqual(stop) {
			price := stop
			if bar.High.LessThan(stop) {
				price = bar.High
			}
			if err := r.sell(state.NumberOfShares, price, bar.Date, "stop loss"); err != nil {
				return err
			}
			r.result.StoppedOut = true
		}
	}

	avg := state.AverageCostPerShare
	gain := bar.High.Sub(avg).Div(avg)
	if gain.GreaterThan(r.maxGain) {
		r.maxGain = gain
	}
	drawdown := bar.Low.Sub(avg).Div(avg)
	if drawdown.LessThan(r.maxDrawdown) {
		r.maxDrawdown = drawdown
	}

	r.position.SetPrice(bar.Close)

	// downside protection
	dp := r.cfg.DownsideProtection
	if dp != nil && !r.protected && !r.position.IsClosed() && r.position.RR() < dp.RRThreshold {
		owned := r.position.State().NumberOfShares
		shares := owned.Mul(dp.SellFraction).Floor()
		if shares.LessThan(decimal.NewFromInt(1)) {
			shares = decimal.NewFromInt(1)
		}
		if shares.GreaterThan(owned) {
			shares = owned
		}
		if err := r.sell(shares, bar.Close, bar.Date, "downside protection"); err != nil {
			return err
		}
		r.protected = true
		r.result.DownsideProtectionUsed = true
	}

	return nil
}

// levelShares is the portion sold at the current level: an even split of
// the starting shares, at least one, and everything left on the last level
func (r *run) levelShares(owned decimal.Decimal) decimal.Decimal {
	if r.level >= r.cfg.NumberOfLevels {
		return owned
	}
	shares := r.initialShares.Div(decimal.NewFromInt(int64(r.cfg.NumberOfLevels))).Floor()
	if shares.LessThan(decimal.NewFromInt(1)) {
		shares = decimal.NewFromInt(1)
	}
	if shares.GreaterThan(owned) {
		shares = owned
	}
	return shares
}
