package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"stocktracker/internal/aggregate"
	"stocktracker/internal/domain"
	"stocktracker/internal/logger"
	"stocktracker/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ApiHandler struct {
	Logger          *zap.SugaredLogger
	Clock           aggregate.Clock
	CORSOrigins     []string
	MonitorStrategy string
	StrategyRunner  service.StrategyRunner
	PositionService service.PositionService
	MonitorService  service.MonitorService
}

func (m ApiHandler) InitializeRouterEngine() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(m.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = m.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))
	router.Use(m.logRequestMiddleware)

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(200, map[string]string{"message": "welcome to stocktracker"})
	})
	router.GET("/strategies", m.listStrategies)
	router.POST("/simulate", m.simulate)
	router.POST("/simulate/all", m.simulateAll)

	router.POST("/positions", m.openPosition)
	router.GET("/positions/:positionID", m.getPosition)
	router.POST("/positions/:positionID/buy", m.buy)
	router.POST("/positions/:positionID/sell", m.sell)
	router.POST("/positions/:positionID/stop", m.setStopPrice)
	router.DELETE("/positions/:positionID", m.deletePosition)
	router.POST("/positions/:positionID/simulate", m.simulatePosition)

	router.POST("/alerts/evaluate", m.evaluateAlerts)

	return router
}

func (m ApiHandler) StartApi(port int) error {
	return m.InitializeRouterEngine().Run(fmt.Sprintf(":%d", port))
}

// statusForError maps domain and storage errors onto http codes
func statusForError(err error) int {
	var validationErr *domain.ValidationError
	var dataErr *domain.DataUnavailableError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, aggregate.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, aggregate.ErrVersionConflict):
		return http.StatusConflict
	case errors.As(err, &dataErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func returnErrorJson(err error, c *gin.Context) {
	returnErrorJsonCode(err, c, statusForError(err))
}

func returnErrorJsonCode(err error, c *gin.Context, code int) {
	log := logger.FromContext(c.Request.Context())
	if code >= 500 {
		log.Errorw("request failed", "route", c.FullPath(), "status", code, "error", err)
	} else {
		log.Infow("request rejected", "route", c.FullPath(), "status", code, "error", err.Error())
	}
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}

// logRequestMiddleware attaches a request scoped logger and profile to the
// request context and logs the outcome
func (m ApiHandler) logRequestMiddleware(c *gin.Context) {
	base := m.Logger
	if base == nil {
		base = zap.S()
	}
	requestID := uuid.New()
	log := base.With("requestID", requestID)

	profile, endProfile := domain.NewProfile()
	ctx := logger.WithContext(c.Request.Context(), log)
	ctx = domain.ContextWithProfile(ctx, profile)
	c.Request = c.Request.WithContext(ctx)

	start := time.Now().UTC()
	c.Next()
	endProfile()

	spans, err := profile.ToJsonBytes()
	if err != nil {
		spans = nil
	}
	log.Infow(
		"request",
		"method", c.Request.Method,
		"route", c.Request.URL.Path,
		"ip", c.ClientIP(),
		"status", c.Writer.Status(),
		"durationMs", time.Since(start).Milliseconds(),
		"spans", string(spans),
	)
}

func parsePositionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("positionID"))
	if err != nil {
		returnErrorJsonCode(fmt.Errorf("invalid position id %q", c.Param("positionID")), c, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
