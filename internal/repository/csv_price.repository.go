package repository

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"stocktracker/internal/domain"
	"stocktracker/internal/util"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

type csvPriceRow struct {
	Date   string          `csv:"date"`
	Symbol string          `csv:"symbol"`
	Open   decimal.Decimal `csv:"open"`
	High   decimal.Decimal `csv:"high"`
	Low    decimal.Decimal `csv:"low"`
	Close  decimal.Decimal `csv:"close"`
	Volume int64           `csv:"volume"`
}

type csvPriceRepositoryHandler struct {
	Bars map[string][]domain.PriceBar
}

// NewCsvPriceRepository serves daily bars from a csv file with the header
// date,symbol,open,high,low,close,volume
func NewCsvPriceRepository(path string) (PriceRepository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows := []csvPriceRow{}
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	bars := map[string][]domain.PriceBar{}
	for i, row := range rows {
		date, err := util.ParseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d of %s has invalid date %q: %w", i+1, path, row.Date, err)
		}
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		bars[symbol] = append(bars[symbol], domain.PriceBar{
			Date:   date,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}
	for _, b := range bars {
		sortBars(b)
	}

	return csvPriceRepositoryHandler{Bars: bars}, nil
}

func (h csvPriceRepositoryHandler) GetPriceHistory(ctx context.Context, ticker string, frequency domain.Frequency, start, end time.Time) ([]domain.PriceBar, error) {
	if frequency != domain.FrequencyDaily && frequency != "" {
		return nil, fmt.Errorf("unsupported frequency %q", frequency)
	}
	symbol := strings.ToUpper(ticker)

	out := []domain.PriceBar{}
	for _, bar := range h.Bars[symbol] {
		if bar.Date.Before(start) || bar.Date.After(end) {
			continue
		}
		out = append(out, bar)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no prices for %s between %s and %s", symbol, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return out, nil
}
