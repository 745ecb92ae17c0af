package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"stocktracker/internal/domain"
	"stocktracker/internal/util"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
)

// PriceRepository fetches ordered historical bars for a ticker. Bars come
// back oldest first and an empty range is an error.
type PriceRepository interface {
	GetPriceHistory(ctx context.Context, ticker string, frequency domain.Frequency, start, end time.Time) ([]domain.PriceBar, error)
}

// QuoteRepository fetches the latest price for each symbol
type QuoteRepository interface {
	GetLatestQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error)
}

type yahooPriceRepositoryHandler struct{}

func NewYahooPriceRepository() PriceRepository {
	return yahooPriceRepositoryHandler{}
}

func yahooInterval(f domain.Frequency) (datetime.Interval, error) {
	switch f {
	case domain.FrequencyDaily, "":
		return datetime.OneDay, nil
	case domain.FrequencyWeekly:
		return datetime.Interval("1wk"), nil
	}
	return "", fmt.Errorf("unsupported frequency %q", f)
}

func (h yahooPriceRepositoryHandler) GetPriceHistory(ctx context.Context, ticker string, frequency domain.Frequency, start, end time.Time) ([]domain.PriceBar, error) {
	interval, err := yahooInterval(frequency)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbol := strings.ToUpper(ticker)
	params := &chart.Params{
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Symbol:   symbol,
		Interval: interval,
	}
	iter := chart.Get(params)

	out := []domain.PriceBar{}
	for iter.Next() {
		bar := iter.Bar()
		// yahoo occasionally returns placeholder rows with no prices
		if bar.Close.IsZero() {
			continue
		}
		out = append(out, domain.PriceBar{
			Date:   util.DateOf(time.Unix(int64(bar.Timestamp), 0).UTC()),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: int64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no prices returned for %s between %s and %s", symbol, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	sortBars(out)
	return out, nil
}

func sortBars(bars []domain.PriceBar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
}

type yahooQuoteRepositoryHandler struct{}

func NewYahooQuoteRepository() QuoteRepository {
	return yahooQuoteRepositoryHandler{}
}

func (h yahooQuoteRepositoryHandler) GetLatestQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	upper := make([]string, 0, len(symbols))
	for _, s := range symbols {
		upper = append(upper, strings.ToUpper(s))
	}

	out := map[string]domain.Quote{}
	iter := quote.List(upper)
	for iter.Next() {
		q := iter.Quote()
		if q == nil || q.RegularMarketPrice == 0 {
			continue
		}
		out[q.Symbol] = domain.Quote{
			Symbol: q.Symbol,
			Price:  decimal.NewFromFloat(q.RegularMarketPrice),
			Date:   time.Unix(int64(q.RegularMarketTime), 0).UTC(),
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get quotes for %v: %w", upper, err)
	}
	return out, nil
}
