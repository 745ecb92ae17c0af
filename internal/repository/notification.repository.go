package repository

import (
	"context"

	"stocktracker/internal/domain"

	"go.uber.org/zap"
)

type NotificationRepository interface {
	Send(ctx context.Context, alert domain.Alert) error
}

type logNotificationRepositoryHandler struct {
	Logger *zap.SugaredLogger
}

// NewLogNotificationRepository delivers alerts to the log
func NewLogNotificationRepository(logger *zap.SugaredLogger) NotificationRepository {
	return logNotificationRepositoryHandler{Logger: logger}
}

func (h logNotificationRepositoryHandler) Send(ctx context.Context, alert domain.Alert) error {
	h.Logger.Infow(
		"position alert",
		"type", alert.Type,
		"positionID", alert.PositionID,
		"userID", alert.UserID,
		"ticker", alert.Ticker,
		"price", alert.Price.String(),
		"level", alert.Level.String(),
		"rr", alert.RR,
		"date", alert.Date,
	)
	return nil
}
