package api

import (
	"fmt"
	"net/http"
	"time"

	"stocktracker/internal/domain"
	"stocktracker/internal/service"
	"stocktracker/internal/strategy"
	"stocktracker/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type simulateRequest struct {
	UserID         uuid.UUID        `json:"userID"`
	Ticker         string           `json:"ticker"`
	NumberOfShares decimal.Decimal  `json:"numberOfShares"`
	Price          decimal.Decimal  `json:"price"`
	StopPrice      *decimal.Decimal `json:"stopPrice"`
	Date           string           `json:"date"`
	Strategy       string           `json:"strategy"`
	// Config runs a custom strategy instead of a named one
	Config     *strategy.Config `json:"config"`
	CloseAtEnd bool             `json:"closeAtEnd"`
}

type simulateResponse struct {
	Result *strategy.Result `json:"result"`
}

type strategyListResponse struct {
	Strategies []strategy.Config `json:"strategies"`
}

func (m ApiHandler) listStrategies(c *gin.Context) {
	c.JSON(200, strategyListResponse{
		Strategies: strategy.Presets(),
	})
}

// resolveStrategy picks the custom config or the named preset
func resolveStrategy(name string, custom *strategy.Config, closeAtEnd bool) (strategy.Config, error) {
	var cfg strategy.Config
	if custom != nil {
		cfg = *custom
		if cfg.Name == "" {
			cfg.Name = "custom"
		}
	} else {
		preset, ok := strategy.ByName(name)
		if !ok {
			return strategy.Config{}, &domain.ValidationError{
				Field:   "strategy",
				Message: fmt.Sprintf("unknown strategy %q", name),
			}
		}
		cfg = preset
	}
	if closeAtEnd {
		cfg.CloseAtEnd = true
	}
	return cfg, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := util.ParseDate(s)
	if err != nil {
		return time.Time{}, &domain.ValidationError{
			Field:   "date",
			Message: fmt.Sprintf("expected YYYY-MM-DD, got %q", s),
		}
	}
	return d, nil
}

func (m ApiHandler) simulate(c *gin.Context) {
	var requestBody simulateRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to read request body: %w", err), c, http.StatusBadRequest)
		return
	}

	cfg, err := resolveStrategy(requestBody.Strategy, requestBody.Config, requestBody.CloseAtEnd)
	if err != nil {
		returnErrorJson(err, c)
		return
	}
	when, err := parseDate(requestBody.Date)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	result, err := m.StrategyRunner.Run(c.Request.Context(), service.RunInput{
		UserID:         requestBody.UserID,
		Ticker:         requestBody.Ticker,
		NumberOfShares: requestBody.NumberOfShares,
		Price:          requestBody.Price,
		StopPrice:      requestBody.StopPrice,
		When:           when,
		Strategy:       cfg,
	})
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(200, simulateResponse{Result: result})
}

func (m ApiHandler) simulateAll(c *gin.Context) {
	var requestBody simulateRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to read request body: %w", err), c, http.StatusBadRequest)
		return
	}

	when, err := parseDate(requestBody.Date)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	strategies := strategy.Presets()
	for i := range strategies {
		strategies[i].CloseAtEnd = requestBody.CloseAtEnd
	}

	result, err := m.StrategyRunner.RunMany(c.Request.Context(), service.RunManyInput{
		UserID:         requestBody.UserID,
		Ticker:         requestBody.Ticker,
		NumberOfShares: requestBody.NumberOfShares,
		Price:          requestBody.Price,
		StopPrice:      requestBody.StopPrice,
		When:           when,
		Strategies:     strategies,
	})
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(200, result)
}
