package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AlertType string

const (
	AlertTypeStopLossBreached    AlertType = "STOP_LOSS_BREACHED"
	AlertTypeProfitTargetReached AlertType = "PROFIT_TARGET_REACHED"
)

// Alert is raised when a quote crosses a level on an open position
type Alert struct {
	Type       AlertType       `json:"type"`
	PositionID uuid.UUID       `json:"positionId"`
	UserID     uuid.UUID       `json:"userId"`
	Ticker     string          `json:"ticker"`
	Price      decimal.Decimal `json:"price"`
	Level      decimal.Decimal `json:"level"`
	RR         float64         `json:"rr"`
	Date       time.Time       `json:"date"`
}
