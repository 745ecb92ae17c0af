package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stocktracker/internal/domain"
	"stocktracker/internal/logger"

	"github.com/redis/go-redis/v9"
)

// cachedPriceRepositoryHandler is a read-through cache in front of another
// PriceRepository. Redis failures are logged and the request falls through
// to the underlying provider.
type cachedPriceRepositoryHandler struct {
	Rdb  *redis.Client
	Next PriceRepository
	TTL  time.Duration
}

func NewCachedPriceRepository(rdb *redis.Client, next PriceRepository, ttl time.Duration) PriceRepository {
	return cachedPriceRepositoryHandler{
		Rdb:  rdb,
		Next: next,
		TTL:  ttl,
	}
}

func priceHistoryKey(ticker string, frequency domain.Frequency, start, end time.Time) string {
	return fmt.Sprintf(
		"prices:%s:%s:%s:%s",
		strings.ToUpper(ticker),
		frequency,
		start.UTC().Format(time.DateOnly),
		end.UTC().Format(time.DateOnly),
	)
}

func (h cachedPriceRepositoryHandler) GetPriceHistory(ctx context.Context, ticker string, frequency domain.Frequency, start, end time.Time) ([]domain.PriceBar, error) {
	log := logger.FromContext(ctx)
	key := priceHistoryKey(ticker, frequency, start, end)

	data, err := h.Rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		bars := []domain.PriceBar{}
		if err := json.Unmarshal(data, &bars); err == nil && len(bars) > 0 {
			return bars, nil
		}
		log.Warnw("discarding unreadable cached prices", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		log.Warnw("price cache unavailable", "key", key, "error", err)
	}

	bars, err := h.Next.GetPriceHistory(ctx, ticker, frequency, start, end)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(bars)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prices for %s: %w", ticker, err)
	}
	if err := h.Rdb.Set(ctx, key, data, h.TTL).Err(); err != nil {
		log.Warnw("failed to cache prices", "key", key, "error", err)
	}

	return bars, nil
}
