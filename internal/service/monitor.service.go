package service

import (
	"context"
	"errors"
	"fmt"

	"stocktracker/internal/aggregate"
	"stocktracker/internal/domain"
	"stocktracker/internal/logger"
	"stocktracker/internal/repository"
	"stocktracker/internal/strategy"

	"github.com/google/uuid"
)

// MonitorService marks open positions to the latest quotes and raises
// alerts for stops that were breached or profit levels that were reached
type MonitorService interface {
	Evaluate(ctx context.Context, positionIDs []uuid.UUID, cfg strategy.Config) ([]domain.Alert, error)
}

func NewMonitorService(
	positionService PositionService,
	quoteRepository repository.QuoteRepository,
	notificationRepository repository.NotificationRepository,
) MonitorService {
	return monitorServiceHandler{
		PositionService:        positionService,
		QuoteRepository:        quoteRepository,
		NotificationRepository: notificationRepository,
	}
}

type monitorServiceHandler struct {
	PositionService        PositionService
	QuoteRepository        repository.QuoteRepository
	NotificationRepository repository.NotificationRepository
}

func (h monitorServiceHandler) Evaluate(ctx context.Context, positionIDs []uuid.UUID, cfg strategy.Config) ([]domain.Alert, error) {
	log := logger.FromContext(ctx)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	target, err := cfg.ProfitPoint.Func()
	if err != nil {
		return nil, err
	}

	positions := []*domain.Position{}
	symbols := []string{}
	seen := map[string]bool{}
	for _, id := range positionIDs {
		p, err := h.PositionService.Get(ctx, id)
		if errors.Is(err, aggregate.ErrNotFound) {
			log.Warnw("skipping unknown position", "positionID", id)
			continue
		} else if err != nil {
			return nil, err
		}
		state := p.State()
		if state.IsClosed {
			continue
		}
		positions = append(positions, p)
		if !seen[state.Ticker] {
			seen[state.Ticker] = true
			symbols = append(symbols, state.Ticker)
		}
	}
	if len(positions) == 0 {
		return []domain.Alert{}, nil
	}

	quotes, err := h.QuoteRepository.GetLatestQuotes(ctx, symbols)
	if err != nil {
		return nil, &domain.DataUnavailableError{Ticker: fmt.Sprint(symbols), Err: err}
	}

	alerts := []domain.Alert{}
	for _, p := range positions {
		state := p.State()
		quote, ok := quotes[state.Ticker]
		if !ok {
			log.Warnw("no quote for position", "positionID", state.PositionID, "ticker", state.Ticker)
			continue
		}
		p.SetPrice(quote.Price)

		alert := domain.Alert{
			PositionID: state.PositionID,
			UserID:     state.UserID,
			Ticker:     state.Ticker,
			Price:      quote.Price,
			RR:         p.RR(),
			Date:       quote.Date,
		}

		if state.StopPrice != nil && quote.Price.LessThanOrEqual(*state.StopPrice) {
			alert.Type = domain.AlertTypeStopLossBreached
			alert.Level = *state.StopPrice
			alerts = append(alerts, alert)
			continue
		}

		// risk based levels need a stop to measure from
		if cfg.ProfitPoint.Kind == strategy.ProfitPointRiskMultiple && state.FirstStop == nil {
			continue
		}
		level := nextLevel(state, cfg.NumberOfLevels)
		levelPrice := target(state, level)
		if quote.Price.GreaterThanOrEqual(levelPrice) {
			alert.Type = domain.AlertTypeProfitTargetReached
			alert.Level = levelPrice
			alerts = append(alerts, alert)
		}
	}

	errs := []error{}
	for _, alert := range alerts {
		if err := h.NotificationRepository.Send(ctx, alert); err != nil {
			log.Errorw("failed to send alert", "positionID", alert.PositionID, "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return alerts, fmt.Errorf("failed to deliver %d alert(s): %w", len(errs), err)
	}

	return alerts, nil
}

// nextLevel is the first profit level not yet taken, counting each sell
// as one level
func nextLevel(state domain.PositionState, numberOfLevels int) int {
	level := 1
	for _, tx := range state.Transactions {
		if tx.Type == domain.TransactionTypeSell {
			level++
		}
	}
	if level > numberOfLevels {
		level = numberOfLevels
	}
	return level
}
