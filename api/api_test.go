package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stocktracker/internal/aggregate"
	"stocktracker/internal/domain"
	mock_repository "stocktracker/internal/repository/mocks"
	"stocktracker/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var entryDate = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

type testApi struct {
	engine                 *gin.Engine
	priceRepository        *mock_repository.MockPriceRepository
	quoteRepository        *mock_repository.MockQuoteRepository
	notificationRepository *mock_repository.MockNotificationRepository
}

func newTestApi(t *testing.T) testApi {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	priceRepository := mock_repository.NewMockPriceRepository(ctrl)
	quoteRepository := mock_repository.NewMockQuoteRepository(ctrl)
	notificationRepository := mock_repository.NewMockNotificationRepository(ctrl)

	clock := aggregate.FixedClock{T: entryDate.AddDate(0, 0, 10)}
	store := aggregate.NewMemoryStore[domain.PositionEvent]()
	positionService := service.NewPositionService(store, clock)

	handler := ApiHandler{
		Clock:           clock,
		MonitorStrategy: "rr_3_advancing",
		StrategyRunner:  service.NewStrategyRunner(priceRepository, store, clock),
		PositionService: positionService,
		MonitorService:  service.NewMonitorService(positionService, quoteRepository, notificationRepository),
	}
	return testApi{
		engine:                 handler.InitializeRouterEngine(),
		priceRepository:        priceRepository,
		quoteRepository:        quoteRepository,
		notificationRepository: notificationRepository,
	}
}

func (a testApi) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	if out != nil && w.Code < 300 && w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func risingBars() []domain.PriceBar {
	out := []domain.PriceBar{}
	for i := 1; i <= 150; i++ {
		p := decimal.NewFromInt(int64(10 + i))
		out = append(out, domain.PriceBar{
			Date:  entryDate.AddDate(0, 0, i-1),
			Open:  p,
			High:  p,
			Low:   p,
			Close: p,
		})
	}
	return out
}

func Test_statusForError(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, statusForError(fmt.Errorf("wrapped: %w", &domain.ValidationError{Field: "price"})))
	require.Equal(t, http.StatusNotFound, statusForError(fmt.Errorf("failed to load: %w", aggregate.ErrNotFound)))
	require.Equal(t, http.StatusConflict, statusForError(aggregate.ErrVersionConflict))
	require.Equal(t, http.StatusBadGateway, statusForError(&domain.DataUnavailableError{Ticker: "AAPL"}))
	require.Equal(t, http.StatusInternalServerError, statusForError(errors.New("boom")))
}

func TestApi_strategies(t *testing.T) {
	a := newTestApi(t)
	out := strategyListResponse{}
	code := a.do(t, http.MethodGet, "/strategies", nil, &out)
	require.Equal(t, 200, code)
	require.Len(t, out.Strategies, 9)
	require.Equal(t, "rr_3_advancing", out.Strategies[0].Name)
}

func TestApi_simulate(t *testing.T) {
	request := map[string]any{
		"userID":         uuid.New(),
		"ticker":         "AAPL",
		"numberOfShares": 100,
		"price":          10,
		"stopPrice":      5,
		"date":           "2023-03-01",
		"strategy":       "rr_3_advancing",
	}

	t.Run("named strategy", func(t *testing.T) {
		a := newTestApi(t)
		a.priceRepository.EXPECT().
			GetPriceHistory(gomock.Any(), "AAPL", domain.FrequencyDaily, entryDate, entryDate.AddDate(1, 0, 0)).
			Return(risingBars(), nil)

		out := simulateResponse{}
		code := a.do(t, http.MethodPost, "/simulate", request, &out)
		require.Equal(t, 200, code)
		require.Equal(t, "rr_3_advancing", out.Result.StrategyName)
		require.True(t, out.Result.Position.IsClosed)
		require.True(t, out.Result.Position.Profit.Equal(decimal.NewFromInt(1005)))
	})

	t.Run("unknown strategy", func(t *testing.T) {
		a := newTestApi(t)
		body := map[string]any{}
		for k, v := range request {
			body[k] = v
		}
		body["strategy"] = "moon"
		require.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, "/simulate", body, nil))
	})

	t.Run("bad date", func(t *testing.T) {
		a := newTestApi(t)
		body := map[string]any{}
		for k, v := range request {
			body[k] = v
		}
		body["date"] = "03/01/2023"
		require.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, "/simulate", body, nil))
	})

	t.Run("price provider down", func(t *testing.T) {
		a := newTestApi(t)
		a.priceRepository.EXPECT().
			GetPriceHistory(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("connection reset"))
		require.Equal(t, http.StatusBadGateway, a.do(t, http.MethodPost, "/simulate", request, nil))
	})

	t.Run("all strategies", func(t *testing.T) {
		a := newTestApi(t)
		a.priceRepository.EXPECT().
			GetPriceHistory(gomock.Any(), "AAPL", domain.FrequencyDaily, entryDate, entryDate.AddDate(1, 0, 0)).
			Return(risingBars(), nil)

		out := service.RunManyResult{}
		code := a.do(t, http.MethodPost, "/simulate/all", request, &out)
		require.Equal(t, 200, code)
		require.Len(t, out.Results, 9)
		require.NotEmpty(t, out.Summary.BestStrategy)
	})
}

func TestApi_positions(t *testing.T) {
	a := newTestApi(t)

	opened := positionResponse{}
	code := a.do(t, http.MethodPost, "/positions", map[string]any{
		"userID":         uuid.New(),
		"ticker":         "msft",
		"numberOfShares": 10,
		"price":          100,
		"stopPrice":      90,
		"date":           "2023-03-01",
	}, &opened)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "MSFT", opened.Position.Ticker)
	positionID := opened.Position.PositionID
	path := "/positions/" + positionID.String()

	t.Run("get", func(t *testing.T) {
		out := positionResponse{}
		require.Equal(t, 200, a.do(t, http.MethodGet, path, nil, &out))
		require.Equal(t, opened.Version, out.Version)
		require.Equal(t, 10, out.Position.DaysHeld)
	})

	t.Run("buy sell and stop", func(t *testing.T) {
		out := positionResponse{}
		require.Equal(t, 200, a.do(t, http.MethodPost, path+"/buy", map[string]any{
			"numberOfShares": 10,
			"price":          110,
			"date":           "2023-03-02",
		}, &out))
		require.True(t, out.Position.AverageCostPerShare.Equal(decimal.NewFromInt(105)))

		require.Equal(t, 200, a.do(t, http.MethodPost, path+"/sell", map[string]any{
			"numberOfShares": 5,
			"price":          120,
			"date":           "2023-03-03",
		}, &out))
		require.True(t, out.Position.Profit.Equal(decimal.NewFromInt(75)))

		require.Equal(t, 200, a.do(t, http.MethodPost, path+"/stop", map[string]any{
			"stopPrice": 105,
			"reason":    "breakeven",
		}, &out))
		require.True(t, out.Position.StopPrice.Equal(decimal.NewFromInt(105)))
	})

	t.Run("oversell is rejected", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, path+"/sell", map[string]any{
			"numberOfShares": 1000,
			"price":          120,
		}, nil))
	})

	t.Run("malformed id", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/positions/not-a-uuid", nil, nil))
	})

	t.Run("unknown position", func(t *testing.T) {
		require.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/positions/"+uuid.NewString(), nil, nil))
	})

	t.Run("delete a position with sells", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, a.do(t, http.MethodDelete, path, nil, nil))
	})
}

func TestApi_deletePosition(t *testing.T) {
	a := newTestApi(t)
	opened := positionResponse{}
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/positions", map[string]any{
		"userID":         uuid.New(),
		"ticker":         "AMD",
		"numberOfShares": 1,
		"price":          100,
	}, &opened))
	path := "/positions/" + opened.Position.PositionID.String()

	require.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, path, nil, nil))
	require.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, path, nil, nil))
}

func TestApi_evaluateAlerts(t *testing.T) {
	a := newTestApi(t)
	opened := positionResponse{}
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/positions", map[string]any{
		"userID":         uuid.New(),
		"ticker":         "AAPL",
		"numberOfShares": 100,
		"price":          10,
		"stopPrice":      5,
		"date":           "2023-03-01",
	}, &opened))

	a.quoteRepository.EXPECT().
		GetLatestQuotes(gomock.Any(), []string{"AAPL"}).
		Return(map[string]domain.Quote{
			"AAPL": {Symbol: "AAPL", Price: decimal.RequireFromString("4.5"), Date: entryDate.AddDate(0, 0, 10)},
		}, nil)
	a.notificationRepository.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		Return(nil)

	out := evaluateAlertsResponse{}
	code := a.do(t, http.MethodPost, "/alerts/evaluate", map[string]any{
		"positionIDs": []uuid.UUID{opened.Position.PositionID},
	}, &out)
	require.Equal(t, 200, code)
	require.Len(t, out.Alerts, 1)
	require.Equal(t, domain.AlertTypeStopLossBreached, out.Alerts[0].Type)
	require.Nil(t, out.DeliveryError)
}
