package strategy

import (
	"testing"
	"time"

	"stocktracker/internal/aggregate"
	"stocktracker/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool {
	return a.Equal(b)
})

var start = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

func newPosition(t *testing.T, shares int64, price, stop float64) *domain.Position {
	t.Helper()
	stopPrice := decimal.NewFromFloat(stop)
	p, err := domain.OpenPosition(
		aggregate.FixedClock{T: start},
		uuid.New(),
		"SPY",
		decimal.NewFromInt(shares),
		decimal.NewFromFloat(price),
		start,
		&stopPrice,
	)
	require.NoError(t, err)
	return p
}

func bar(day int, open, high, low, close float64) domain.PriceBar {
	return domain.PriceBar{
		Date:  start.AddDate(0, 0, day),
		Open:  decimal.NewFromFloat(open),
		High:  decimal.NewFromFloat(high),
		Low:   decimal.NewFromFloat(low),
		Close: decimal.NewFromFloat(close),
	}
}

// flat bars at the given closes, one per day starting on the entry date
func closes(prices ...float64) []domain.PriceBar {
	out := []domain.PriceBar{}
	for i, p := range prices {
		out = append(out, bar(i, p, p, p, p))
	}
	return out
}

func risingBars() []domain.PriceBar {
	out := []domain.PriceBar{}
	for i := 1; i <= 150; i++ {
		p := float64(10 + i)
		out = append(out, bar(i-1, p, p, p, p))
	}
	return out
}

func preset(t *testing.T, name string) Config {
	t.Helper()
	cfg, ok := ByName(name)
	require.True(t, ok, name)
	return cfg
}

func sells(s domain.PositionSummary) []domain.PositionTransaction {
	out := []domain.PositionTransaction{}
	for _, tx := range s.Transactions {
		if tx.Type == domain.TransactionTypeSell {
			out = append(out, tx)
		}
	}
	return out
}

func TestRun_ThreeLevelsRiskMultiple(t *testing.T) {
	p := newPosition(t, 100, 10, 5)

	result, err := Run(p, risingBars(), preset(t, "rr_3_advancing"))
	require.NoError(t, err)

	pos := result.Position
	require.True(t, pos.IsClosed)
	require.True(t, pos.Profit.Equal(decimal.NewFromInt(1005)))
	require.InDelta(t, 100.5, pos.GainPct, 1e-9)
	require.InDelta(t, 2.01, pos.RR, 1e-9)
	require.Equal(t, 0.0, result.MaxDrawdownPct)
	require.InDelta(t, 150.0, result.MaxGainPct, 1e-9)
	require.Equal(t, 14, pos.DaysHeld)
	require.Equal(t, 3, result.LevelsReached)
	require.False(t, result.ForcedClose)
	require.False(t, result.StoppedOut)
	require.Equal(t, 15, result.BarsProcessed)

	got := sells(pos)
	require.Len(t, got, 3)
	expected := []struct {
		shares, price int64
		day           int
	}{
		{33, 15, 4},
		{33, 20, 9},
		{34, 25, 14},
	}
	for i, e := range expected {
		require.True(t, got[i].NumberOfShares.Equal(decimal.NewFromInt(e.shares)), "sell %d shares", i)
		require.True(t, got[i].Price.Equal(decimal.NewFromInt(e.price)), "sell %d price", i)
		require.Equal(t, start.AddDate(0, 0, e.day), got[i].When)
	}
	require.True(t, pos.StopPrice.Equal(decimal.NewFromInt(15)))
}

func TestRun_MinimumOneSharePerLevel(t *testing.T) {
	p := newPosition(t, 2, 10, 5)

	result, err := Run(p, risingBars(), preset(t, "rr_3_advancing"))
	require.NoError(t, err)

	pos := result.Position
	require.True(t, pos.IsClosed)
	require.True(t, pos.Profit.Equal(decimal.NewFromInt(15)))
	require.InDelta(t, 75.0, pos.GainPct, 1e-9)
	require.InDelta(t, 1.5, pos.RR, 1e-9)
	require.Equal(t, 9, pos.DaysHeld)
	require.Equal(t, 2, result.LevelsReached)
	require.Len(t, sells(pos), 2)
}

func TestRun_CloseAtEnd(t *testing.T) {
	p := newPosition(t, 100, 10, 5)
	cfg := preset(t, "rr_3_advancing")
	cfg.CloseAtEnd = true

	result, err := Run(p, closes(11, 12, 13, 12, 11), cfg)
	require.NoError(t, err)

	pos := result.Position
	require.True(t, pos.IsClosed)
	require.True(t, result.ForcedClose)
	require.Equal(t, 0, result.LevelsReached)
	require.Len(t, sells(pos), 1)
	require.True(t, sells(pos)[0].Price.Equal(decimal.NewFromInt(11)))
	require.Equal(t, start.AddDate(0, 0, 4), *pos.Closed)
	require.True(t, pos.Profit.Equal(decimal.NewFromInt(100)))

	t.Run("without close at end the position stays open", func(t *testing.T) {
		result, err := Run(p, closes(11, 12, 13, 12, 11), preset(t, "rr_3_advancing"))
		require.NoError(t, err)
		require.False(t, result.Position.IsClosed)
		require.True(t, result.Position.MarkPrice.Equal(decimal.NewFromInt(11)))
		require.InDelta(t, 0.2, result.Position.RR, 1e-9)
	})
}

func TestRun_DoesNotModifyInput(t *testing.T) {
	p := newPosition(t, 100, 10, 5)
	before := p.State()
	version := p.Version()

	_, err := Run(p, risingBars(), preset(t, "rr_3_advancing"))
	require.NoError(t, err)

	require.Equal(t, version, p.Version())
	require.Equal(t, "", cmp.Diff(before, p.State(), decimalComparer))
	require.Nil(t, p.MarkPrice())
}

func TestRun_MissingStop(t *testing.T) {
	p, err := domain.OpenPosition(aggregate.FixedClock{T: start}, uuid.New(), "SPY", decimal.NewFromInt(10), decimal.NewFromInt(10), start, nil)
	require.NoError(t, err)

	_, err = Run(p, risingBars(), preset(t, "rr_3_advancing"))
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "stopPrice", validationErr.Field)
}

func TestRun_StopNotBelowCost(t *testing.T) {
	for _, stop := range []float64{10, 12} {
		p := newPosition(t, 100, 10, stop)

		result, err := Run(p, closes(10, 10, 10), preset(t, "rr_3_advancing"))
		require.Nil(t, result)
		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr, "stop %v", stop)
		require.Equal(t, "stopPrice", validationErr.Field)
	}

	t.Run("percent targets do not need risk", func(t *testing.T) {
		p := newPosition(t, 100, 10, 12)
		result, err := Run(p, closes(10, 10, 10), preset(t, "pct_10_3_advancing"))
		require.NoError(t, err)
		require.True(t, result.StoppedOut)
	})
}

func TestRun_StopLoss(t *testing.T) {
	t.Run("stopped on close", func(t *testing.T) {
		p := newPosition(t, 100, 10, 5)
		bars := []domain.PriceBar{
			bar(0, 10, 10, 9, 9),
			bar(1, 9, 9, 4.5, 4.8),
			bar(2, 5, 6, 5, 6),
		}

		result, err := Run(p, bars, preset(t, "rr_3_advancing"))
		require.NoError(t, err)
		require.True(t, result.StoppedOut)
		require.True(t, result.Position.IsClosed)
		require.Equal(t, 2, result.BarsProcessed)

		got := sells(result.Position)
		require.Len(t, got, 1)
		require.True(t, got[0].Price.Equal(decimal.NewFromInt(5)))
		require.True(t, got[0].NumberOfShares.Equal(decimal.NewFromInt(100)))
		require.InDelta(t, -55.0, result.MaxDrawdownPct, 1e-9)
		require.InDelta(t, -1.0, result.Position.RR, 1e-9)
	})

	t.Run("low pierces the stop", func(t *testing.T) {
		bars := []domain.PriceBar{
			bar(0, 6, 6.5, 4.9, 6),
		}

		result, err := Run(newPosition(t, 100, 10, 5), bars, preset(t, "rr_3_advancing"))
		require.NoError(t, err)
		require.False(t, result.StoppedOut)

		result, err = Run(newPosition(t, 100, 10, 5), bars, preset(t, "rr_3_advancing_lowstop"))
		require.NoError(t, err)
		require.True(t, result.StoppedOut)
		require.True(t, sells(result.Position)[0].Price.Equal(decimal.NewFromInt(5)))
	})

	t.Run("gap down sells at the high", func(t *testing.T) {
		bars := []domain.PriceBar{
			bar(0, 4, 4, 3, 3.5),
		}

		result, err := Run(newPosition(t, 100, 10, 5), bars, preset(t, "rr_3_advancing"))
		require.NoError(t, err)
		require.True(t, result.StoppedOut)
		require.True(t, sells(result.Position)[0].Price.Equal(decimal.NewFromInt(4)))
	})

	t.Run("advanced stop", func(t *testing.T) {
		p := newPosition(t, 100, 10, 5)
		bars := append(closes(15, 20), bar(2, 16, 16, 14, 14))
		result, err := Run(p, bars, preset(t, "rr_3_advancing"))
		require.NoError(t, err)
		require.True(t, result.StoppedOut)
		require.Equal(t, 2, result.LevelsReached)

		got := sells(result.Position)
		require.Len(t, got, 3)
		require.True(t, got[2].Price.Equal(decimal.NewFromInt(15)))
		require.True(t, got[2].NumberOfShares.Equal(decimal.NewFromInt(34)))
	})
}

func TestRun_StopAdvance(t *testing.T) {
	for _, tc := range []struct {
		name         string
		preset       string
		prices       []float64
		expectedStop decimal.Decimal
	}{
		{"advancing after one level", "rr_4_advancing", []float64{15}, decimal.NewFromInt(5)},
		{"advancing after two levels", "rr_4_advancing", []float64{15, 20}, decimal.NewFromInt(15)},
		{"advancing after three levels", "rr_4_advancing", []float64{15, 20, 25}, decimal.NewFromInt(20)},
		{"delayed after two levels", "rr_4_delayed", []float64{15, 20}, decimal.NewFromInt(5)},
		{"delayed after three levels", "rr_4_delayed", []float64{15, 20, 25}, decimal.NewFromInt(15)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Run(newPosition(t, 100, 10, 5), closes(tc.prices...), preset(t, tc.preset))
			require.NoError(t, err)
			require.False(t, result.Position.IsClosed)
			require.Equal(t, len(tc.prices), result.LevelsReached)
			require.True(t, result.Position.StopPrice.Equal(tc.expectedStop), result.Position.StopPrice.String())
		})
	}
}

func TestRun_DownsideProtection(t *testing.T) {
	p := newPosition(t, 100, 10, 5)
	bars := closes(7, 8, 7, 6.5)

	result, err := Run(p, bars, preset(t, "rr_3_advancing_downside"))
	require.NoError(t, err)
	require.True(t, result.DownsideProtectionUsed)
	require.False(t, result.Position.IsClosed)

	got := sells(result.Position)
	require.Len(t, got, 1)
	require.True(t, got[0].NumberOfShares.Equal(decimal.NewFromInt(50)))
	require.True(t, got[0].Price.Equal(decimal.NewFromInt(7)))
	require.Equal(t, start, got[0].When)
	require.True(t, result.Position.NumberOfShares.Equal(decimal.NewFromInt(50)))

	t.Run("not armed without config", func(t *testing.T) {
		result, err := Run(p, bars, preset(t, "rr_3_advancing"))
		require.NoError(t, err)
		require.False(t, result.DownsideProtectionUsed)
		require.Empty(t, sells(result.Position))
	})
}

func TestRun_PercentGain(t *testing.T) {
	p := newPosition(t, 90, 10, 5)

	result, err := Run(p, closes(10.5, 11, 11.5, 12, 13, 14), preset(t, "pct_10_3_advancing"))
	require.NoError(t, err)

	got := sells(result.Position)
	require.Len(t, got, 3)
	for i, price := range []string{"11", "12", "13"} {
		require.True(t, got[i].Price.Equal(decimal.RequireFromString(price)), got[i].Price.String())
		require.True(t, got[i].NumberOfShares.Equal(decimal.NewFromInt(30)))
	}
	require.True(t, result.Position.IsClosed)
	require.True(t, result.Position.Profit.Equal(decimal.NewFromInt(180)))
}

func TestRun_StatisticsAreMonotonic(t *testing.T) {
	bars := []domain.PriceBar{
		bar(0, 10, 10.5, 9.5, 10),
		bar(1, 10, 11, 9, 10.5),
		bar(2, 10.5, 10.8, 9.8, 10),
		bar(3, 10, 12, 8, 9),
		bar(4, 9, 9.5, 8.5, 9),
		bar(5, 9, 13, 8.8, 12),
		bar(6, 12, 12.5, 7, 8),
	}
	cfg := preset(t, "rr_3_advancing")

	var prev *Result
	for i := 1; i <= len(bars); i++ {
		result, err := Run(newPosition(t, 100, 10, 5), bars[:i], cfg)
		require.NoError(t, err)
		if prev != nil {
			require.GreaterOrEqual(t, result.MaxGainPct, prev.MaxGainPct)
			require.LessOrEqual(t, result.MaxDrawdownPct, prev.MaxDrawdownPct)
		}
		prev = result
	}
	require.InDelta(t, 30.0, prev.MaxGainPct, 1e-9)
	require.InDelta(t, -30.0, prev.MaxDrawdownPct, 1e-9)
}

func TestRun_InvalidConfig(t *testing.T) {
	p := newPosition(t, 100, 10, 5)

	for _, tc := range []struct {
		name  string
		cfg   Config
		field string
	}{
		{"no levels", Config{NumberOfLevels: 0, ProfitPoint: riskMultiple, StopAdvance: Advancing}, "numberOfLevels"},
		{"unknown profit point", Config{NumberOfLevels: 3, ProfitPoint: ProfitPoint{Kind: "fib"}, StopAdvance: Advancing}, "profitPoint.kind"},
		{"zero percent", Config{NumberOfLevels: 3, ProfitPoint: ProfitPoint{Kind: ProfitPointPercentGain}, StopAdvance: Advancing}, "profitPoint.percent"},
		{"unknown stop advance", Config{NumberOfLevels: 3, ProfitPoint: riskMultiple, StopAdvance: "trailing"}, "stopAdvance"},
		{"sell fraction over one", Config{
			NumberOfLevels:     3,
			ProfitPoint:        riskMultiple,
			StopAdvance:        Advancing,
			DownsideProtection: &DownsideProtection{RRThreshold: -0.5, SellFraction: decimal.NewFromInt(2)},
		}, "downsideProtection.sellFraction"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Run(p, risingBars(), tc.cfg)
			var validationErr *domain.ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.Equal(t, tc.field, validationErr.Field)
		})
	}

	t.Run("no bars", func(t *testing.T) {
		_, err := Run(p, nil, preset(t, "rr_3_advancing"))
		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})
}

func TestPresets(t *testing.T) {
	names := map[string]bool{}
	for _, cfg := range Presets() {
		require.NoError(t, cfg.Validate(), cfg.Name)
		require.False(t, cfg.CloseAtEnd, cfg.Name)
		require.False(t, names[cfg.Name], "duplicate %s", cfg.Name)
		names[cfg.Name] = true
	}

	cfg, ok := ByName("rr_3_advancing_downside")
	require.True(t, ok)
	cfg.DownsideProtection.RRThreshold = -10
	again, _ := ByName("rr_3_advancing_downside")
	require.Equal(t, -0.5, again.DownsideProtection.RRThreshold)

	_, ok = ByName("missing")
	require.False(t, ok)
}
