package service

import (
	"context"
	"fmt"
	"time"

	"stocktracker/internal/aggregate"
	"stocktracker/internal/domain"
	"stocktracker/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PositionService interface {
	Open(ctx context.Context, in OpenPositionInput) (*domain.Position, error)
	Get(ctx context.Context, positionID uuid.UUID) (*domain.Position, error)
	Buy(ctx context.Context, positionID uuid.UUID, in TradeInput) (*domain.Position, error)
	Sell(ctx context.Context, positionID uuid.UUID, in TradeInput) (*domain.Position, error)
	SetStopPrice(ctx context.Context, positionID uuid.UUID, in StopInput) (*domain.Position, error)
	Delete(ctx context.Context, positionID uuid.UUID) error
}

type OpenPositionInput struct {
	UserID         uuid.UUID
	Ticker         string
	NumberOfShares decimal.Decimal
	Price          decimal.Decimal
	StopPrice      *decimal.Decimal
	When           time.Time
}

type TradeInput struct {
	NumberOfShares decimal.Decimal
	Price          decimal.Decimal
	When           time.Time
	TransactionID  *uuid.UUID
	Notes          string
}

type StopInput struct {
	StopPrice decimal.Decimal
	When      time.Time
	Reason    string
}

func NewPositionService(store aggregate.Store[domain.PositionEvent], clock aggregate.Clock) PositionService {
	return positionServiceHandler{
		Store: store,
		Clock: clock,
	}
}

type positionServiceHandler struct {
	Store aggregate.Store[domain.PositionEvent]
	Clock aggregate.Clock
}

func (h positionServiceHandler) save(ctx context.Context, p *domain.Position) error {
	return aggregate.Save[domain.PositionState, domain.PositionEvent](ctx, h.Store, p.Aggregate())
}

func (h positionServiceHandler) Open(ctx context.Context, in OpenPositionInput) (*domain.Position, error) {
	p, err := domain.OpenPosition(h.Clock, in.UserID, in.Ticker, in.NumberOfShares, in.Price, in.When, in.StopPrice)
	if err != nil {
		return nil, err
	}
	if err := h.save(ctx, p); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Infow(
		"opened position",
		"positionID", p.ID(),
		"ticker", p.State().Ticker,
		"shares", in.NumberOfShares.String(),
	)
	return p, nil
}

func (h positionServiceHandler) load(ctx context.Context, positionID uuid.UUID) (*domain.Position, error) {
	events, err := h.Store.Load(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load position %s: %w", positionID, err)
	}
	p, err := domain.ReplayPosition(h.Clock, events)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Get hides deleted positions
func (h positionServiceHandler) Get(ctx context.Context, positionID uuid.UUID) (*domain.Position, error) {
	p, err := h.load(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if p.State().IsDeleted {
		return nil, fmt.Errorf("position %s is deleted: %w", positionID, aggregate.ErrNotFound)
	}
	return p, nil
}

// update runs one command against the latest stored version
func (h positionServiceHandler) update(ctx context.Context, positionID uuid.UUID, command func(p *domain.Position) error) (*domain.Position, error) {
	p, err := h.Get(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if err := command(p); err != nil {
		return nil, err
	}
	if err := h.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func transactionID(in TradeInput) uuid.UUID {
	if in.TransactionID != nil {
		return *in.TransactionID
	}
	return uuid.New()
}

func (h positionServiceHandler) Buy(ctx context.Context, positionID uuid.UUID, in TradeInput) (*domain.Position, error) {
	return h.update(ctx, positionID, func(p *domain.Position) error {
		return p.Buy(in.NumberOfShares, in.Price, in.When, transactionID(in), in.Notes)
	})
}

func (h positionServiceHandler) Sell(ctx context.Context, positionID uuid.UUID, in TradeInput) (*domain.Position, error) {
	return h.update(ctx, positionID, func(p *domain.Position) error {
		return p.Sell(in.NumberOfShares, in.Price, in.When, transactionID(in), in.Notes)
	})
}

func (h positionServiceHandler) SetStopPrice(ctx context.Context, positionID uuid.UUID, in StopInput) (*domain.Position, error) {
	return h.update(ctx, positionID, func(p *domain.Position) error {
		return p.SetStopPrice(in.StopPrice, in.When, in.Reason)
	})
}

func (h positionServiceHandler) Delete(ctx context.Context, positionID uuid.UUID) error {
	_, err := h.update(ctx, positionID, func(p *domain.Position) error {
		return p.Delete()
	})
	return err
}
