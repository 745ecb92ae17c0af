package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"stocktracker/internal/aggregate"
	"stocktracker/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "buy"
	TransactionTypeSell TransactionType = "sell"
)

type PositionTransaction struct {
	TransactionID  uuid.UUID       `json:"transactionId"`
	Type           TransactionType `json:"type"`
	NumberOfShares decimal.Decimal `json:"numberOfShares"`
	Price          decimal.Decimal `json:"price"`
	When           time.Time       `json:"when"`
	Notes          string          `json:"notes,omitempty"`
}

// PositionState is the projection folded from a position's events.
// Cost basis is a single weighted average across all buys.
type PositionState struct {
	PositionID          uuid.UUID             `json:"positionId"`
	UserID              uuid.UUID             `json:"userId"`
	Ticker              string                `json:"ticker"`
	Opened              time.Time             `json:"opened"`
	Closed              *time.Time            `json:"closed,omitempty"`
	IsClosed            bool                  `json:"isClosed"`
	IsDeleted           bool                  `json:"isDeleted"`
	NumberOfShares      decimal.Decimal       `json:"numberOfShares"`
	AverageCostPerShare decimal.Decimal       `json:"averageCostPerShare"`
	SharesBought        decimal.Decimal       `json:"sharesBought"`
	TotalCost           decimal.Decimal       `json:"totalCost"`
	Profit              decimal.Decimal       `json:"profit"`
	FirstStop           *decimal.Decimal      `json:"firstStop,omitempty"`
	StopPrice           *decimal.Decimal      `json:"stopPrice,omitempty"`
	Transactions        []PositionTransaction `json:"transactions"`
	LastTransaction     time.Time             `json:"lastTransaction"`
}

// RiskPerShare is the distance from average cost down to the first stop
func (s PositionState) RiskPerShare() decimal.Decimal {
	if s.FirstStop == nil {
		return decimal.Zero
	}
	return s.AverageCostPerShare.Sub(*s.FirstStop)
}

// FirstBuy returns the earliest buy transaction, if any
func (s PositionState) FirstBuy() *PositionTransaction {
	for _, t := range s.Transactions {
		if t.Type == TransactionTypeBuy {
			tx := t
			return &tx
		}
	}
	return nil
}

func reducePosition(s PositionState, e PositionEvent) (PositionState, error) {
	switch ev := e.(type) {
	case PositionOpened:
		s.PositionID = ev.AggregateID()
		s.UserID = ev.UserID()
		s.Ticker = ev.Ticker
		s.NumberOfShares = decimal.Zero
		s.AverageCostPerShare = decimal.Zero
		s.SharesBought = decimal.Zero
		s.TotalCost = decimal.Zero
		s.Profit = decimal.Zero
		s.Transactions = []PositionTransaction{}

	case SharesBought:
		newShares := s.NumberOfShares.Add(ev.NumberOfShares)
		s.AverageCostPerShare = s.NumberOfShares.Mul(s.AverageCostPerShare).
			Add(ev.NumberOfShares.Mul(ev.Price)).
			Div(newShares)
		s.NumberOfShares = newShares
		s.SharesBought = s.SharesBought.Add(ev.NumberOfShares)
		s.TotalCost = s.TotalCost.Add(ev.NumberOfShares.Mul(ev.Price))
		if s.Opened.IsZero() {
			s.Opened = ev.When
		}
		s.LastTransaction = ev.When
		s.Transactions = append(slices.Clip(s.Transactions), PositionTransaction{
			TransactionID:  ev.TransactionID,
			Type:           TransactionTypeBuy,
			NumberOfShares: ev.NumberOfShares,
			Price:          ev.Price,
			When:           ev.When,
			Notes:          ev.Notes,
		})

	case SharesSold:
		s.Profit = s.Profit.Add(ev.Price.Sub(s.AverageCostPerShare).Mul(ev.NumberOfShares))
		s.NumberOfShares = s.NumberOfShares.Sub(ev.NumberOfShares)
		if s.NumberOfShares.IsZero() {
			closed := ev.When
			s.Closed = &closed
			s.IsClosed = true
		}
		s.LastTransaction = ev.When
		s.Transactions = append(slices.Clip(s.Transactions), PositionTransaction{
			TransactionID:  ev.TransactionID,
			Type:           TransactionTypeSell,
			NumberOfShares: ev.NumberOfShares,
			Price:          ev.Price,
			When:           ev.When,
			Notes:          ev.Notes,
		})

	case StopPriceSet:
		stop := ev.StopPrice
		s.StopPrice = &stop
		if s.FirstStop == nil {
			first := ev.StopPrice
			s.FirstStop = &first
		}

	case PositionDeleted:
		s.IsDeleted = true

	default:
		return s, aggregate.UnknownEvent(e)
	}
	return s, nil
}

// Position tracks ownership of one instrument. Every change except the
// mark price goes through an event.
type Position struct {
	agg       *aggregate.Aggregate[PositionState, PositionEvent]
	clock     aggregate.Clock
	markPrice *decimal.Decimal
}

// OpenPosition creates a position with its initial buy and, when given,
// its initial stop
func OpenPosition(
	clock aggregate.Clock,
	userID uuid.UUID,
	ticker string,
	numberOfShares decimal.Decimal,
	price decimal.Decimal,
	when time.Time,
	stopPrice *decimal.Decimal,
) (*Position, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, newValidationError("ticker", "ticker is required")
	}

	id := uuid.New()
	p := &Position{
		agg:   aggregate.New[PositionState, PositionEvent](id, PositionState{}, reducePosition),
		clock: clock,
	}
	_, err := p.agg.Handle(func(s PositionState) (PositionEvent, error) {
		return PositionOpened{
			Metadata: aggregate.NewMetadata(id, userID, clock),
			Ticker:   ticker,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if err := p.Buy(numberOfShares, price, when, uuid.New(), ""); err != nil {
		return nil, err
	}
	if stopPrice != nil {
		if err := p.SetStopPrice(*stopPrice, when, "initial stop"); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// ReplayPosition reconstructs a position from its stored history
func ReplayPosition(clock aggregate.Clock, events []PositionEvent) (*Position, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("cannot replay position without events: %w", aggregate.ErrNotFound)
	}
	agg, err := aggregate.Replay[PositionState, PositionEvent](events[0].AggregateID(), PositionState{}, reducePosition, events)
	if err != nil {
		return nil, fmt.Errorf("failed to replay position %s: %w", events[0].AggregateID(), err)
	}
	return &Position{
		agg:   agg,
		clock: clock,
	}, nil
}

func (p *Position) checkWritable(s PositionState) error {
	if s.IsDeleted {
		return newValidationError("position", "position %s is deleted", s.PositionID)
	}
	if s.IsClosed {
		return newValidationError("position", "position %s is closed", s.PositionID)
	}
	return nil
}

func (p *Position) Buy(numberOfShares, price decimal.Decimal, when time.Time, transactionID uuid.UUID, notes string) error {
	_, err := p.agg.Handle(func(s PositionState) (PositionEvent, error) {
		if err := p.checkWritable(s); err != nil {
			return nil, err
		}
		if !numberOfShares.IsPositive() {
			return nil, newValidationError("numberOfShares", "must be > 0, got %s", numberOfShares.String())
		}
		if !price.IsPositive() {
			return nil, newValidationError("price", "must be > 0, got %s", price.String())
		}
		return SharesBought{
			Metadata:       aggregate.NewMetadata(s.PositionID, s.UserID, p.clock),
			TransactionID:  transactionID,
			NumberOfShares: numberOfShares,
			Price:          price,
			When:           when,
			Notes:          notes,
		}, nil
	})
	return err
}

func (p *Position) Sell(numberOfShares, price decimal.Decimal, when time.Time, transactionID uuid.UUID, notes string) error {
	_, err := p.agg.Handle(func(s PositionState) (PositionEvent, error) {
		if err := p.checkWritable(s); err != nil {
			return nil, err
		}
		if !numberOfShares.IsPositive() {
			return nil, newValidationError("numberOfShares", "must be > 0, got %s", numberOfShares.String())
		}
		if !price.IsPositive() {
			return nil, newValidationError("price", "must be > 0, got %s", price.String())
		}
		if numberOfShares.GreaterThan(s.NumberOfShares) {
			return nil, newValidationError(
				"numberOfShares",
				"cannot sell %s shares of %s, only %s owned",
				numberOfShares.String(),
				s.Ticker,
				s.NumberOfShares.String(),
			)
		}
		return SharesSold{
			Metadata:       aggregate.NewMetadata(s.PositionID, s.UserID, p.clock),
			TransactionID:  transactionID,
			NumberOfShares: numberOfShares,
			Price:          price,
			When:           when,
			Notes:          notes,
		}, nil
	})
	return err
}

// SetStopPrice replaces the protective stop. The stop is free to move in
// either direction.
func (p *Position) SetStopPrice(stopPrice decimal.Decimal, when time.Time, reason string) error {
	_, err := p.agg.Handle(func(s PositionState) (PositionEvent, error) {
		if err := p.checkWritable(s); err != nil {
			return nil, err
		}
		if !stopPrice.IsPositive() {
			return nil, newValidationError("stopPrice", "must be > 0, got %s", stopPrice.String())
		}
		return StopPriceSet{
			Metadata:  aggregate.NewMetadata(s.PositionID, s.UserID, p.clock),
			StopPrice: stopPrice,
			When:      when,
			Reason:    reason,
		}, nil
	})
	return err
}

// Delete marks a mistakenly entered position as deleted. Positions with
// sells are history and can't be deleted.
func (p *Position) Delete() error {
	_, err := p.agg.Handle(func(s PositionState) (PositionEvent, error) {
		if s.IsDeleted {
			return nil, newValidationError("position", "position %s is already deleted", s.PositionID)
		}
		for _, t := range s.Transactions {
			if t.Type == TransactionTypeSell {
				return nil, newValidationError("position", "position %s has sells and cannot be deleted", s.PositionID)
			}
		}
		return PositionDeleted{
			Metadata: aggregate.NewMetadata(s.PositionID, s.UserID, p.clock),
		}, nil
	})
	return err
}

// SetPrice records the last seen market price. No event is produced.
func (p *Position) SetPrice(markPrice decimal.Decimal) {
	p.markPrice = &markPrice
}

func (p *Position) MarkPrice() *decimal.Decimal {
	return p.markPrice
}

func (p *Position) ID() uuid.UUID {
	return p.agg.ID()
}

func (p *Position) State() PositionState {
	return p.agg.State()
}

func (p *Position) Version() int {
	return p.agg.Version()
}

func (p *Position) Events() []PositionEvent {
	return p.agg.Events()
}

// Aggregate exposes the underlying aggregate for persistence
func (p *Position) Aggregate() *aggregate.Aggregate[PositionState, PositionEvent] {
	return p.agg
}

func (p *Position) IsClosed() bool {
	return p.agg.State().IsClosed
}

// Copy returns an independent position replayed from this one's history,
// carrying over the mark price
func (p *Position) Copy() (*Position, error) {
	out, err := ReplayPosition(p.clock, p.agg.Events())
	if err != nil {
		return nil, err
	}
	if p.markPrice != nil {
		out.SetPrice(*p.markPrice)
	}
	return out, nil
}

func (p *Position) UnrealizedProfit() decimal.Decimal {
	s := p.agg.State()
	if p.markPrice == nil || s.IsClosed {
		return decimal.Zero
	}
	return p.markPrice.Sub(s.AverageCostPerShare).Mul(s.NumberOfShares)
}

// RR is the reward expressed in multiples of the initial risk. Open
// positions use the mark price, closed ones the realized profit over the
// risk taken on every share bought.
func (p *Position) RR() float64 {
	s := p.agg.State()
	risk := s.RiskPerShare()
	if risk.IsZero() {
		return 0
	}
	if s.IsClosed {
		risked := risk.Mul(s.SharesBought)
		if risked.IsZero() {
			return 0
		}
		return s.Profit.Div(risked).InexactFloat64()
	}
	if p.markPrice == nil {
		return 0
	}
	return p.markPrice.Sub(s.AverageCostPerShare).Div(risk).InexactFloat64()
}

// GainPct is realized plus unrealized profit as a percent of everything
// spent buying
func (p *Position) GainPct() float64 {
	s := p.agg.State()
	if s.TotalCost.IsZero() {
		return 0
	}
	return s.Profit.Add(p.UnrealizedProfit()).
		Div(s.TotalCost).
		Mul(decimal.NewFromInt(100)).
		InexactFloat64()
}

// DaysHeld counts calendar days from the first buy to the close, or to
// asOf for open positions
func (p *Position) DaysHeld(asOf time.Time) int {
	s := p.agg.State()
	end := asOf
	if s.Closed != nil {
		end = *s.Closed
	}
	if s.Opened.IsZero() {
		return 0
	}
	opened := util.DateOf(s.Opened)
	end = util.DateOf(end)
	if end.Before(opened) {
		return 0
	}
	return int(end.Sub(opened).Hours() / 24)
}

// PositionSummary is a read model of the state plus derived figures
type PositionSummary struct {
	PositionState
	MarkPrice        *decimal.Decimal `json:"markPrice,omitempty"`
	UnrealizedProfit decimal.Decimal  `json:"unrealizedProfit"`
	RR               float64          `json:"rr"`
	GainPct          float64          `json:"gainPct"`
	DaysHeld         int              `json:"daysHeld"`
}

func (p *Position) Summary(asOf time.Time) PositionSummary {
	return PositionSummary{
		PositionState:    p.agg.State(),
		MarkPrice:        p.markPrice,
		UnrealizedProfit: p.UnrealizedProfit(),
		RR:               p.RR(),
		GainPct:          p.GainPct(),
		DaysHeld:         p.DaysHeld(asOf),
	}
}
