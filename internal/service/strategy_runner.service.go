package service

import (
	"context"
	"fmt"
	"time"

	"stocktracker/internal/aggregate"
	"stocktracker/internal/domain"
	"stocktracker/internal/logger"
	"stocktracker/internal/repository"
	"stocktracker/internal/strategy"
	"stocktracker/internal/util"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type StrategyRunner interface {
	Run(ctx context.Context, in RunInput) (*strategy.Result, error)
	RunMany(ctx context.Context, in RunManyInput) (*RunManyResult, error)
	RunForPosition(ctx context.Context, positionID uuid.UUID, cfg strategy.Config) (*strategy.Result, error)
}

type RunInput struct {
	UserID         uuid.UUID
	Ticker         string
	NumberOfShares decimal.Decimal
	Price          decimal.Decimal
	StopPrice      *decimal.Decimal
	When           time.Time
	Strategy       strategy.Config
}

type RunManyInput struct {
	UserID         uuid.UUID
	Ticker         string
	NumberOfShares decimal.Decimal
	Price          decimal.Decimal
	StopPrice      *decimal.Decimal
	When           time.Time
	Strategies     []strategy.Config
}

type RunManyResult struct {
	Results []strategy.Result `json:"results"`
	Summary RunSummary        `json:"summary"`
}

// RunSummary describes the spread of gain percentages across strategies
type RunSummary struct {
	MeanGainPct   float64 `json:"meanGainPct"`
	MedianGainPct float64 `json:"medianGainPct"`
	StdevGainPct  float64 `json:"stdevGainPct"`
	BestStrategy  string  `json:"bestStrategy"`
	BestGainPct   float64 `json:"bestGainPct"`
}

func NewStrategyRunner(
	priceRepository repository.PriceRepository,
	positionStore aggregate.Store[domain.PositionEvent],
	clock aggregate.Clock,
) StrategyRunner {
	return strategyRunnerHandler{
		PriceRepository: priceRepository,
		PositionStore:   positionStore,
		Clock:           clock,
	}
}

type strategyRunnerHandler struct {
	PriceRepository repository.PriceRepository
	PositionStore   aggregate.Store[domain.PositionEvent]
	Clock           aggregate.Clock
}

func (h strategyRunnerHandler) seed(userID uuid.UUID, ticker string, shares, price decimal.Decimal, stop *decimal.Decimal, when time.Time) (*domain.Position, error) {
	if stop == nil {
		return nil, &domain.ValidationError{
			Field:   "stopPrice",
			Message: "a stop price is required to run a strategy",
		}
	}
	// bars are dated at midnight, so the simulated entry is too
	return domain.OpenPosition(h.Clock, userID, ticker, shares, price, util.DateOf(when), stop)
}

// fetchBars loads one year of daily bars from the entry date
func (h strategyRunnerHandler) fetchBars(ctx context.Context, ticker string, when time.Time) ([]domain.PriceBar, error) {
	profile, _ := domain.GetProfile(ctx)
	_, endSpan := profile.StartNewSpan("fetch price history")
	defer endSpan()

	start := util.DateOf(when)
	end := start.AddDate(1, 0, 0)
	bars, err := h.PriceRepository.GetPriceHistory(ctx, ticker, domain.FrequencyDaily, start, end)
	if err != nil {
		return nil, &domain.DataUnavailableError{Ticker: ticker, Err: err}
	}
	if len(bars) == 0 {
		return nil, &domain.DataUnavailableError{Ticker: ticker}
	}
	return bars, nil
}

func (h strategyRunnerHandler) Run(ctx context.Context, in RunInput) (*strategy.Result, error) {
	log := logger.FromContext(ctx)

	if err := in.Strategy.Validate(); err != nil {
		return nil, err
	}
	position, err := h.seed(in.UserID, in.Ticker, in.NumberOfShares, in.Price, in.StopPrice, in.When)
	if err != nil {
		return nil, err
	}

	bars, err := h.fetchBars(ctx, position.State().Ticker, in.When)
	if err != nil {
		return nil, err
	}

	profile, _ := domain.GetProfile(ctx)
	_, endSpan := profile.StartNewSpan("run " + in.Strategy.Name)
	result, err := strategy.Run(position, bars, in.Strategy)
	endSpan()
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", in.Strategy.Name, err)
	}

	log.Infow(
		"strategy run complete",
		"ticker", position.State().Ticker,
		"strategy", in.Strategy.Name,
		"bars", len(bars),
		"gainPct", result.Position.GainPct,
	)

	return result, nil
}

// RunMany fetches prices once and runs every strategy against them in
// parallel. Results keep the order of in.Strategies.
func (h strategyRunnerHandler) RunMany(ctx context.Context, in RunManyInput) (*RunManyResult, error) {
	log := logger.FromContext(ctx)

	if len(in.Strategies) == 0 {
		return nil, &domain.ValidationError{
			Field:   "strategies",
			Message: "at least one strategy is required",
		}
	}
	for _, cfg := range in.Strategies {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	position, err := h.seed(in.UserID, in.Ticker, in.NumberOfShares, in.Price, in.StopPrice, in.When)
	if err != nil {
		return nil, err
	}

	bars, err := h.fetchBars(ctx, position.State().Ticker, in.When)
	if err != nil {
		return nil, err
	}

	results := make([]strategy.Result, len(in.Strategies))
	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range in.Strategies {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := strategy.Run(position, bars, cfg)
			if err != nil {
				return fmt.Errorf("failed to run %s: %w", cfg.Name, err)
			}
			results[i] = *result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary, err := summarize(results)
	if err != nil {
		return nil, err
	}

	log.Infow(
		"strategy comparison complete",
		"ticker", position.State().Ticker,
		"strategies", len(results),
		"best", summary.BestStrategy,
	)

	return &RunManyResult{
		Results: results,
		Summary: *summary,
	}, nil
}

func summarize(results []strategy.Result) (*RunSummary, error) {
	gains := stats.Float64Data{}
	out := RunSummary{}
	for i, r := range results {
		gains = append(gains, r.Position.GainPct)
		if i == 0 || r.Position.GainPct > out.BestGainPct {
			out.BestGainPct = r.Position.GainPct
			out.BestStrategy = r.StrategyName
		}
	}

	mean, err := stats.Mean(gains)
	if err != nil {
		return nil, fmt.Errorf("failed to compute mean gain: %w", err)
	}
	median, err := stats.Median(gains)
	if err != nil {
		return nil, fmt.Errorf("failed to compute median gain: %w", err)
	}
	stdev, err := stats.StandardDeviation(gains)
	if err != nil {
		return nil, fmt.Errorf("failed to compute gain stdev: %w", err)
	}

	out.MeanGainPct = mean
	out.MedianGainPct = median
	out.StdevGainPct = stdev
	return &out, nil
}

// RunForPosition replays a stored position's opening trade, first buy and
// first stop, through cfg
func (h strategyRunnerHandler) RunForPosition(ctx context.Context, positionID uuid.UUID, cfg strategy.Config) (*strategy.Result, error) {
	events, err := h.PositionStore.Load(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load position %s: %w", positionID, err)
	}
	position, err := domain.ReplayPosition(h.Clock, events)
	if err != nil {
		return nil, err
	}

	state := position.State()
	if state.IsDeleted {
		return nil, fmt.Errorf("position %s is deleted: %w", positionID, aggregate.ErrNotFound)
	}
	firstBuy := state.FirstBuy()
	if firstBuy == nil {
		return nil, &domain.ValidationError{
			Field:   "position",
			Message: fmt.Sprintf("position %s has no buys", positionID),
		}
	}

	return h.Run(ctx, RunInput{
		UserID:         state.UserID,
		Ticker:         state.Ticker,
		NumberOfShares: firstBuy.NumberOfShares,
		Price:          firstBuy.Price,
		StopPrice:      state.FirstStop,
		When:           firstBuy.When,
		Strategy:       cfg,
	})
}
