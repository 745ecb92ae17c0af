package api

import (
	"fmt"
	"net/http"

	"stocktracker/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type evaluateAlertsRequest struct {
	PositionIDs []uuid.UUID `json:"positionIDs"`
	// Strategy defaults to the configured monitor strategy
	Strategy string `json:"strategy"`
}

type evaluateAlertsResponse struct {
	Alerts []domain.Alert `json:"alerts"`
	// DeliveryError is set when alerts were raised but some could not be sent
	DeliveryError *string `json:"deliveryError,omitempty"`
}

func (m ApiHandler) evaluateAlerts(c *gin.Context) {
	var requestBody evaluateAlertsRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to read request body: %w", err), c, http.StatusBadRequest)
		return
	}

	name := requestBody.Strategy
	if name == "" {
		name = m.MonitorStrategy
	}
	cfg, err := resolveStrategy(name, nil, false)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	alerts, err := m.MonitorService.Evaluate(c.Request.Context(), requestBody.PositionIDs, cfg)
	if err != nil && alerts == nil {
		returnErrorJson(err, c)
		return
	}

	out := evaluateAlertsResponse{
		Alerts: alerts,
	}
	if out.Alerts == nil {
		out.Alerts = []domain.Alert{}
	}
	if err != nil {
		msg := err.Error()
		out.DeliveryError = &msg
	}
	c.JSON(200, out)
}
