package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"stocktracker/api"
	"stocktracker/internal/aggregate"
	"stocktracker/internal/config"
	"stocktracker/internal/db"
	"stocktracker/internal/domain"
	"stocktracker/internal/repository"
	"stocktracker/internal/service"
	"stocktracker/internal/strategy"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the wired services plus the connections that need
// closing on shutdown
type Dependencies struct {
	Config          *config.Config
	Db              *sql.DB
	Redis           *redis.Client
	PriceRepository repository.PriceRepository
	PositionStore   aggregate.Store[domain.PositionEvent]
	StrategyRunner  service.StrategyRunner
	PositionService service.PositionService
	MonitorService  service.MonitorService
}

func (d Dependencies) ApiHandler() *api.ApiHandler {
	return &api.ApiHandler{
		Logger:          zap.S(),
		Clock:           aggregate.SystemClock{},
		CORSOrigins:     d.Config.Server.CORSOrigins,
		MonitorStrategy: d.Config.Monitor.Strategy,
		StrategyRunner:  d.StrategyRunner,
		PositionService: d.PositionService,
		MonitorService:  d.MonitorService,
	}
}

func (d Dependencies) Close() {
	if d.Db != nil {
		if err := d.Db.Close(); err != nil {
			log.Printf("failed to close db: %v", err)
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			log.Printf("failed to close redis: %v", err)
		}
	}
}

func CloseDependencies(deps *Dependencies) {
	deps.Close()
}

func InitializeDependencies() (*Dependencies, error) {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return nil, err
	}
	return Wire(context.Background(), cfg, nil)
}

// Wire builds the dependency graph from cfg. priceOverride replaces the
// configured price provider, e.g. with bars read from a csv file.
func Wire(ctx context.Context, cfg *config.Config, priceOverride repository.PriceRepository) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg}
	logger := zap.S()

	if cfg.Postgres.Enabled() {
		dbConn, err := db.Open(cfg.Postgres.ToConnectionStr())
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, dbConn); err != nil {
			dbConn.Close()
			return nil, err
		}
		deps.Db = dbConn
		deps.PositionStore = repository.NewEventRepository[domain.PositionEvent](dbConn, domain.PositionAggregateType, domain.PositionEventCodec{})
	} else {
		logger.Info("postgres not configured, keeping positions in memory")
		deps.PositionStore = aggregate.NewMemoryStore[domain.PositionEvent]()
	}

	var alpacaRepository repository.AlpacaRepository
	if cfg.Alpaca.Enabled() {
		alpacaRepository = repository.NewAlpacaRepository(cfg.Alpaca.ApiKey, cfg.Alpaca.ApiSecret, cfg.Alpaca.DataEndpoint)
	}

	var priceRepository repository.PriceRepository
	switch {
	case priceOverride != nil:
		priceRepository = priceOverride
	case cfg.Prices.Provider == config.PriceProviderAlpaca:
		priceRepository = alpacaRepository
	default:
		priceRepository = repository.NewYahooPriceRepository()
	}

	if cfg.Redis.Enabled() && priceOverride == nil {
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := deps.Redis.Ping(pingCtx).Err(); err != nil {
			logger.Warnw("redis unreachable, price cache will fall through", "addr", cfg.Redis.Addr, "error", err)
		}
		cancel()
		priceRepository = repository.NewCachedPriceRepository(deps.Redis, priceRepository, cfg.Redis.TTL.Duration)
	}
	deps.PriceRepository = priceRepository

	var quoteRepository repository.QuoteRepository = repository.NewYahooQuoteRepository()
	if alpacaRepository != nil {
		quoteRepository = alpacaRepository
	}

	clock := aggregate.SystemClock{}
	deps.PositionService = service.NewPositionService(deps.PositionStore, clock)
	deps.StrategyRunner = service.NewStrategyRunner(priceRepository, deps.PositionStore, clock)
	deps.MonitorService = service.NewMonitorService(
		deps.PositionService,
		quoteRepository,
		repository.NewLogNotificationRepository(logger),
	)

	if _, ok := strategy.ByName(cfg.Monitor.Strategy); !ok {
		deps.Close()
		return nil, fmt.Errorf("unknown monitor.strategy %q", cfg.Monitor.Strategy)
	}

	return deps, nil
}
