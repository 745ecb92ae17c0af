package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stocktracker/internal/domain"
	"stocktracker/internal/logger"
	"stocktracker/internal/util"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

type AlpacaRepository interface {
	PriceRepository
	QuoteRepository
}

func NewAlpacaRepository(apiKey, apiSecret string, dataEndpoint string) AlpacaRepository {
	mdClient := marketdata.NewClient(marketdata.ClientOpts{
		BaseURL:    dataEndpoint,
		APIKey:     apiKey,
		APISecret:  apiSecret,
		RetryLimit: 3,
	})

	return &alpacaRepositoryHandler{
		MdClient: mdClient,
	}
}

type alpacaRepositoryHandler struct {
	MdClient *marketdata.Client
}

func alpacaTimeFrame(f domain.Frequency) (marketdata.TimeFrame, error) {
	switch f {
	case domain.FrequencyDaily, "":
		return marketdata.OneDay, nil
	case domain.FrequencyWeekly:
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("unsupported frequency %q", f)
}

func (h alpacaRepositoryHandler) GetPriceHistory(ctx context.Context, ticker string, frequency domain.Frequency, start, end time.Time) ([]domain.PriceBar, error) {
	timeFrame, err := alpacaTimeFrame(frequency)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbol := strings.ToUpper(ticker)
	bars, err := h.MdClient.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  timeFrame,
		Adjustment: marketdata.Split,
		Start:      start,
		End:        end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars returned for %s between %s and %s", symbol, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	out := make([]domain.PriceBar, 0, len(bars))
	for _, b := range bars {
		out = append(out, domain.PriceBar{
			Date:   util.DateOf(b.Timestamp.UTC()),
			Open:   decimal.NewFromFloat(b.Open),
			High:   decimal.NewFromFloat(b.High),
			Low:    decimal.NewFromFloat(b.Low),
			Close:  decimal.NewFromFloat(b.Close),
			Volume: int64(b.Volume),
		})
	}
	sortBars(out)

	return out, nil
}

func (h alpacaRepositoryHandler) GetLatestQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	log := logger.FromContext(ctx)

	if len(symbols) == 0 {
		return map[string]domain.Quote{}, nil
	}
	results, err := h.MdClient.GetLatestQuotes(symbols, marketdata.GetLatestQuoteRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to get latest quotes: %w", err)
	}

	out := map[string]domain.Quote{}
	for symbol, result := range results {
		price := decimal.NewFromFloat(result.BidPrice)
		if price.IsZero() {
			return nil, fmt.Errorf("failed to get price for %s: got 0 price", symbol)
		}
		out[symbol] = domain.Quote{
			Symbol: symbol,
			Price:  price,
			Date:   result.Timestamp.UTC(),
		}
	}
	if len(out) < len(symbols) {
		log.Warnw("missing quotes", "requested", len(symbols), "received", len(out))
	}

	return out, nil
}
