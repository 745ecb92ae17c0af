package api

import (
	"fmt"
	"net/http"
	"time"

	"stocktracker/internal/domain"
	"stocktracker/internal/service"
	"stocktracker/internal/strategy"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type openPositionRequest struct {
	UserID         uuid.UUID        `json:"userID"`
	Ticker         string           `json:"ticker"`
	NumberOfShares decimal.Decimal  `json:"numberOfShares"`
	Price          decimal.Decimal  `json:"price"`
	StopPrice      *decimal.Decimal `json:"stopPrice"`
	Date           string           `json:"date"`
}

type tradeRequest struct {
	NumberOfShares decimal.Decimal `json:"numberOfShares"`
	Price          decimal.Decimal `json:"price"`
	Date           string          `json:"date"`
	TransactionID  *uuid.UUID      `json:"transactionID"`
	Notes          string          `json:"notes"`
}

type stopRequest struct {
	StopPrice decimal.Decimal `json:"stopPrice"`
	Date      string          `json:"date"`
	Reason    string          `json:"reason"`
}

type simulatePositionRequest struct {
	Strategy   string           `json:"strategy"`
	Config     *strategy.Config `json:"config"`
	CloseAtEnd bool             `json:"closeAtEnd"`
}

type positionResponse struct {
	Version  int                    `json:"version"`
	Position domain.PositionSummary `json:"position"`
}

func (m ApiHandler) now() time.Time {
	if m.Clock == nil {
		return time.Now().UTC()
	}
	return m.Clock.Now()
}

// dateOrNow parses an optional trade date, defaulting to the handler clock
func (m ApiHandler) dateOrNow(s string) (time.Time, error) {
	if s == "" {
		return m.now(), nil
	}
	return parseDate(s)
}

func (m ApiHandler) positionJson(c *gin.Context, code int, p *domain.Position) {
	c.JSON(code, positionResponse{
		Version:  p.Version(),
		Position: p.Summary(m.now()),
	})
}

func (m ApiHandler) openPosition(c *gin.Context) {
	var requestBody openPositionRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to read request body: %w", err), c, http.StatusBadRequest)
		return
	}
	when, err := m.dateOrNow(requestBody.Date)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	p, err := m.PositionService.Open(c.Request.Context(), service.OpenPositionInput{
		UserID:         requestBody.UserID,
		Ticker:         requestBody.Ticker,
		NumberOfShares: requestBody.NumberOfShares,
		Price:          requestBody.Price,
		StopPrice:      requestBody.StopPrice,
		When:           when,
	})
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	m.positionJson(c, http.StatusCreated, p)
}

func (m ApiHandler) getPosition(c *gin.Context) {
	positionID, ok := parsePositionID(c)
	if !ok {
		return
	}
	p, err := m.PositionService.Get(c.Request.Context(), positionID)
	if err != nil {
		returnErrorJson(err, c)
		return
	}
	m.positionJson(c, 200, p)
}

func (m ApiHandler) trade(c *gin.Context, command func(positionID uuid.UUID, in service.TradeInput) (*domain.Position, error)) {
	positionID, ok := parsePositionID(c)
	if !ok {
		return
	}
	var requestBody tradeRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to read request body: %w", err), c, http.StatusBadRequest)
		return
	}
	when, err := m.dateOrNow(requestBody.Date)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	p, err := command(positionID, service.TradeInput{
		NumberOfShares: requestBody.NumberOfShares,
		Price:          requestBody.Price,
		When:           when,
		TransactionID:  requestBody.TransactionID,
		Notes:          requestBody.Notes,
	})
	if err != nil {
		returnErrorJson(err, c)
		return
	}
	m.positionJson(c, 200, p)
}

func (m ApiHandler) buy(c *gin.Context) {
	m.trade(c, func(positionID uuid.UUID, in service.TradeInput) (*domain.Position, error) {
		return m.PositionService.Buy(c.Request.Context(), positionID, in)
	})
}

func (m ApiHandler) sell(c *gin.Context) {
	m.trade(c, func(positionID uuid.UUID, in service.TradeInput) (*domain.Position, error) {
		return m.PositionService.Sell(c.Request.Context(), positionID, in)
	})
}

func (m ApiHandler) setStopPrice(c *gin.Context) {
	positionID, ok := parsePositionID(c)
	if !ok {
		return
	}
	var requestBody stopRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to read request body: %w", err), c, http.StatusBadRequest)
		return
	}
	when, err := m.dateOrNow(requestBody.Date)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	p, err := m.PositionService.SetStopPrice(c.Request.Context(), positionID, service.StopInput{
		StopPrice: requestBody.StopPrice,
		When:      when,
		Reason:    requestBody.Reason,
	})
	if err != nil {
		returnErrorJson(err, c)
		return
	}
	m.positionJson(c, 200, p)
}

func (m ApiHandler) deletePosition(c *gin.Context) {
	positionID, ok := parsePositionID(c)
	if !ok {
		return
	}
	if err := m.PositionService.Delete(c.Request.Context(), positionID); err != nil {
		returnErrorJson(err, c)
		return
	}
	c.Status(http.StatusNoContent)
}

func (m ApiHandler) simulatePosition(c *gin.Context) {
	positionID, ok := parsePositionID(c)
	if !ok {
		return
	}
	var requestBody simulatePositionRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to read request body: %w", err), c, http.StatusBadRequest)
		return
	}
	cfg, err := resolveStrategy(requestBody.Strategy, requestBody.Config, requestBody.CloseAtEnd)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	result, err := m.StrategyRunner.RunForPosition(c.Request.Context(), positionID, cfg)
	if err != nil {
		returnErrorJson(err, c)
		return
	}
	c.JSON(200, simulateResponse{Result: result})
}
