package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"stocktracker/internal/aggregate"
	"stocktracker/internal/domain"
	mock_repository "stocktracker/internal/repository/mocks"
	"stocktracker/internal/strategy"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var entryDate = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

func risingBars() []domain.PriceBar {
	out := []domain.PriceBar{}
	for i := 1; i <= 150; i++ {
		p := decimal.NewFromInt(int64(10 + i))
		out = append(out, domain.PriceBar{
			Date:  entryDate.AddDate(0, 0, i-1),
			Open:  p,
			High:  p,
			Low:   p,
			Close: p,
		})
	}
	return out
}

func mustPreset(t *testing.T, name string) strategy.Config {
	t.Helper()
	cfg, ok := strategy.ByName(name)
	require.True(t, ok)
	return cfg
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func Test_strategyRunnerHandler_Run(t *testing.T) {
	ctx := context.Background()
	end := entryDate.AddDate(1, 0, 0)

	newInput := func(t *testing.T) RunInput {
		return RunInput{
			UserID:         uuid.New(),
			Ticker:         "aapl",
			NumberOfShares: decimal.NewFromInt(100),
			Price:          decimal.NewFromInt(10),
			StopPrice:      decimalPtr(decimal.NewFromInt(5)),
			When:           entryDate,
			Strategy:       mustPreset(t, "rr_3_advancing"),
		}
	}

	t.Run("folds a year of bars", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		priceRepository := mock_repository.NewMockPriceRepository(ctrl)
		priceRepository.EXPECT().
			GetPriceHistory(gomock.Any(), "AAPL", domain.FrequencyDaily, entryDate, end).
			Return(risingBars(), nil)

		runner := NewStrategyRunner(priceRepository, aggregate.NewMemoryStore[domain.PositionEvent](), aggregate.SystemClock{})
		result, err := runner.Run(ctx, newInput(t))
		require.NoError(t, err)

		require.Equal(t, "rr_3_advancing", result.StrategyName)
		require.True(t, result.Position.IsClosed)
		require.True(t, result.Position.Profit.Equal(decimal.NewFromInt(1005)))
		require.InDelta(t, 100.5, result.Position.GainPct, 1e-9)
		require.InDelta(t, 2.01, result.Position.RR, 1e-9)
		require.Equal(t, 14, result.Position.DaysHeld)
	})

	t.Run("intraday entry is held from its calendar date", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		priceRepository := mock_repository.NewMockPriceRepository(ctrl)
		priceRepository.EXPECT().
			GetPriceHistory(gomock.Any(), "AAPL", domain.FrequencyDaily, entryDate, end).
			Return(risingBars(), nil)

		in := newInput(t)
		in.When = entryDate.Add(15 * time.Hour)
		runner := NewStrategyRunner(priceRepository, aggregate.NewMemoryStore[domain.PositionEvent](), aggregate.SystemClock{})
		result, err := runner.Run(ctx, in)
		require.NoError(t, err)
		require.Equal(t, 14, result.Position.DaysHeld)
		require.Equal(t, entryDate, result.Position.Opened)
		for _, tx := range result.Position.Transactions {
			require.False(t, tx.When.Before(result.Position.Opened))
		}
	})

	t.Run("stop above cost is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		priceRepository := mock_repository.NewMockPriceRepository(ctrl)
		priceRepository.EXPECT().
			GetPriceHistory(gomock.Any(), "AAPL", domain.FrequencyDaily, entryDate, end).
			Return(risingBars(), nil)

		in := newInput(t)
		in.StopPrice = decimalPtr(decimal.NewFromInt(12))
		runner := NewStrategyRunner(priceRepository, aggregate.NewMemoryStore[domain.PositionEvent](), aggregate.SystemClock{})
		result, err := runner.Run(ctx, in)
		require.Nil(t, result)
		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.Equal(t, "stopPrice", validationErr.Field)
	})

	t.Run("provider failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		providerErr := errors.New("connection reset")
		priceRepository := mock_repository.NewMockPriceRepository(ctrl)
		priceRepository.EXPECT().
			GetPriceHistory(gomock.Any(), "AAPL", domain.FrequencyDaily, entryDate, end).
			Return(nil, providerErr)

		runner := NewStrategyRunner(priceRepository, aggregate.NewMemoryStore[domain.PositionEvent](), aggregate.SystemClock{})
		result, err := runner.Run(ctx, newInput(t))
		require.Nil(t, result)

		var dataErr *domain.DataUnavailableError
		require.ErrorAs(t, err, &dataErr)
		require.Equal(t, "AAPL", dataErr.Ticker)
		require.ErrorIs(t, err, providerErr)
	})

	t.Run("no bars", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		priceRepository := mock_repository.NewMockPriceRepository(ctrl)
		priceRepository.EXPECT().
			GetPriceHistory(gomock.Any(), "AAPL", domain.FrequencyDaily, entryDate, end).
			Return([]domain.PriceBar{}, nil)

		runner := NewStrategyRunner(priceRepository, aggregate.NewMemoryStore[domain.PositionEvent](), aggregate.SystemClock{})
		_, err := runner.Run(ctx, newInput(t))

		var dataErr *domain.DataUnavailableError
		require.ErrorAs(t, err, &dataErr)
	})

	t.Run("missing stop does not fetch prices", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		priceRepository := mock_repository.NewMockPriceRepository(ctrl)

		runner := NewStrategyRunner(priceRepository, aggregate.NewMemoryStore[domain.PositionEvent](), aggregate.SystemClock{})
		in := newInput(t)
		in.StopPrice = nil
		_, err := runner.Run(ctx, in)

		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.Equal(t, "stopPrice", validationErr.Field)
	})
}

func Test_strategyRunnerHandler_RunMany(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	priceRepository := mock_repository.NewMockPriceRepository(ctrl)
	priceRepository.EXPECT().
		GetPriceHistory(gomock.Any(), "AAPL", domain.FrequencyDaily, entryDate, entryDate.AddDate(1, 0, 0)).
		Return(risingBars(), nil).
		Times(1)

	runner := NewStrategyRunner(priceRepository, aggregate.NewMemoryStore[domain.PositionEvent](), aggregate.SystemClock{})
	result, err := runner.RunMany(ctx, RunManyInput{
		UserID:         uuid.New(),
		Ticker:         "AAPL",
		NumberOfShares: decimal.NewFromInt(100),
		Price:          decimal.NewFromInt(10),
		StopPrice:      decimalPtr(decimal.NewFromInt(5)),
		When:           entryDate,
		Strategies: []strategy.Config{
			mustPreset(t, "rr_3_advancing"),
			mustPreset(t, "pct_5_3_advancing"),
			mustPreset(t, "rr_3_delayed"),
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Results, 3)
	require.Equal(t, "rr_3_advancing", result.Results[0].StrategyName)
	require.Equal(t, "pct_5_3_advancing", result.Results[1].StrategyName)
	require.Equal(t, "rr_3_delayed", result.Results[2].StrategyName)
	require.InDelta(t, 10.05, result.Results[1].Position.GainPct, 1e-9)

	require.Equal(t, "rr_3_advancing", result.Summary.BestStrategy)
	require.InDelta(t, 100.5, result.Summary.BestGainPct, 1e-9)
	require.InDelta(t, 70.35, result.Summary.MeanGainPct, 1e-9)
	require.InDelta(t, 100.5, result.Summary.MedianGainPct, 1e-9)
	require.Greater(t, result.Summary.StdevGainPct, 0.0)

	t.Run("no strategies", func(t *testing.T) {
		_, err := runner.RunMany(ctx, RunManyInput{Ticker: "AAPL"})
		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})
}

func Test_strategyRunnerHandler_RunForPosition(t *testing.T) {
	ctx := context.Background()
	store := aggregate.NewMemoryStore[domain.PositionEvent]()
	positionService := NewPositionService(store, aggregate.SystemClock{})

	p, err := positionService.Open(ctx, OpenPositionInput{
		UserID:         uuid.New(),
		Ticker:         "AAPL",
		NumberOfShares: decimal.NewFromInt(2),
		Price:          decimal.NewFromInt(10),
		StopPrice:      decimalPtr(decimal.NewFromInt(5)),
		When:           entryDate,
	})
	require.NoError(t, err)
	_, err = positionService.SetStopPrice(ctx, p.ID(), StopInput{StopPrice: decimal.NewFromInt(8), When: entryDate.AddDate(0, 0, 1)})
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	priceRepository := mock_repository.NewMockPriceRepository(ctrl)
	priceRepository.EXPECT().
		GetPriceHistory(gomock.Any(), "AAPL", domain.FrequencyDaily, entryDate, entryDate.AddDate(1, 0, 0)).
		Return(risingBars(), nil)

	runner := NewStrategyRunner(priceRepository, store, aggregate.SystemClock{})
	result, err := runner.RunForPosition(ctx, p.ID(), mustPreset(t, "rr_3_advancing"))
	require.NoError(t, err)

	// simulated from the first stop, not the raised one
	require.True(t, result.Position.Profit.Equal(decimal.NewFromInt(15)))
	require.InDelta(t, 1.5, result.Position.RR, 1e-9)

	t.Run("unknown position", func(t *testing.T) {
		_, err := runner.RunForPosition(ctx, uuid.New(), mustPreset(t, "rr_3_advancing"))
		require.ErrorIs(t, err, aggregate.ErrNotFound)
	})
}
