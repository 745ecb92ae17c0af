package domain

import (
	"time"

	"stocktracker/internal/aggregate"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionEvent is the closed set of events a Position folds. Only types in
// this file implement it.
type PositionEvent interface {
	aggregate.Event
	isPositionEvent()
}

// PositionAggregateType tags stored position events
const PositionAggregateType = "position"

const (
	EventTypePositionOpened  = "PositionOpened"
	EventTypeSharesBought    = "SharesBought"
	EventTypeSharesSold      = "SharesSold"
	EventTypeStopPriceSet    = "StopPriceSet"
	EventTypePositionDeleted = "PositionDeleted"
)

type PositionOpened struct {
	aggregate.Metadata
	Ticker string `json:"ticker"`
}

type SharesBought struct {
	aggregate.Metadata
	TransactionID  uuid.UUID       `json:"transactionId"`
	NumberOfShares decimal.Decimal `json:"numberOfShares"`
	Price          decimal.Decimal `json:"price"`
	When           time.Time       `json:"when"`
	Notes          string          `json:"notes,omitempty"`
}

type SharesSold struct {
	aggregate.Metadata
	TransactionID  uuid.UUID       `json:"transactionId"`
	NumberOfShares decimal.Decimal `json:"numberOfShares"`
	Price          decimal.Decimal `json:"price"`
	When           time.Time       `json:"when"`
	Notes          string          `json:"notes,omitempty"`
}

type StopPriceSet struct {
	aggregate.Metadata
	StopPrice decimal.Decimal `json:"stopPrice"`
	When      time.Time       `json:"when"`
	Reason    string          `json:"reason,omitempty"`
}

type PositionDeleted struct {
	aggregate.Metadata
}

func (PositionOpened) EventType() string  { return EventTypePositionOpened }
func (SharesBought) EventType() string    { return EventTypeSharesBought }
func (SharesSold) EventType() string      { return EventTypeSharesSold }
func (StopPriceSet) EventType() string    { return EventTypeStopPriceSet }
func (PositionDeleted) EventType() string { return EventTypePositionDeleted }

func (PositionOpened) isPositionEvent()  {}
func (SharesBought) isPositionEvent()    {}
func (SharesSold) isPositionEvent()      {}
func (StopPriceSet) isPositionEvent()    {}
func (PositionDeleted) isPositionEvent() {}
