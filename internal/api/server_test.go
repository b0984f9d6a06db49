package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reversal-trading-bot/internal/bot"
	"reversal-trading-bot/internal/chart"
	"reversal-trading-bot/internal/database"
	"reversal-trading-bot/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	status bot.Status
	trades []database.Trade
}

func (f *fakeBot) Status() bot.Status        { return f.status }
func (f *fakeBot) Trades() []database.Trade { return f.trades }

type fakeChart struct {
	works []chart.Work
}

func (f *fakeChart) Works() []chart.Work    { return f.works[1:] }
func (f *fakeChart) AllWorks() []chart.Work { return f.works }
func (f *fakeChart) Smooth(works []chart.Work) []chart.Work {
	return chart.Smooth(works, chart.SmoothingMovingAverage, 0)
}

type fakeHistory struct {
	limit int
	err   error
}

func (f *fakeHistory) ListTrades(ctx context.Context, symbol string, limit int) ([]database.Trade, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []database.Trade{{ID: "from-ledger", Kind: database.TradeBuy}}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newTestServer(t *testing.T) (*Server, *fakeBot, *events.EventBus) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &fakeBot{
		status: bot.Status{Symbol: "BTCUSDT", State: bot.StateWaitingToBuy, QuoteBalance: 1000},
		trades: []database.Trade{
			{ID: "1", Kind: database.TradeBuy, Price: 100},
			{ID: "2", Kind: database.TradeSell, Price: 102},
		},
	}
	c := &fakeChart{works: []chart.Work{
		{ID: 0, Time: 0, Price: 100, Trend: chart.TrendUnknown},
		{ID: 1, Time: 10, Price: 103, Trend: chart.TrendUpward},
		{ID: 2, Time: 20, Price: 100, Trend: chart.TrendDownward},
		{ID: 3, Time: 30, Price: 97, Trend: chart.TrendDownward},
	}}
	bus := events.NewEventBus()
	return NewServer(ServerConfig{AllowedOrigins: "http://localhost:5173"}, b, c, bus, zerolog.Nop()), b, bus
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealthEndpoint(t *testing.T) {
	s, b, _ := newTestServer(t)
	s.AddHealthCheck("redis", func(ctx context.Context) error { return nil })

	w, _ := get(t, s, "/api/health")
	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "healthy", body["checks"].(map[string]interface{})["redis"])

	s.AddHealthCheck("postgres", func(ctx context.Context) error { return errors.New("connection refused") })
	w, _ = get(t, s, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	delete(s.checks, "postgres")
	b.status.Halted = true
	b.status.HaltReason = "order failed"
	w, _ = get(t, s, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "order failed")
}

func TestStatusEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	w, env := get(t, s, "/api/status")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	var status bot.Status
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "BTCUSDT", status.Symbol)
	assert.Equal(t, bot.StateWaitingToBuy, status.State)
	assert.Equal(t, 1000.0, status.QuoteBalance)
}

func TestWorksEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantIDs   []int64
		wantPrice float64 // price of the second item, 0 skips
	}{
		{"current", "/api/works", http.StatusOK, []int64{1, 2, 3}, 0},
		{"all", "/api/works?scope=all", http.StatusOK, []int64{0, 1, 2, 3}, 0},
		{"limit", "/api/works?scope=all&limit=2", http.StatusOK, []int64{2, 3}, 0},
		{"smoothed", "/api/works?scope=all&smoothed=true", http.StatusOK, []int64{0, 1, 2, 3}, (100.0 + 103 + 100) / 3},
		{"bad scope", "/api/works?scope=future", http.StatusBadRequest, nil, 0},
		{"bad limit", "/api/works?limit=-1", http.StatusBadRequest, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := get(t, s, tt.path)
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantIDs == nil {
				return
			}
			var works []chart.Work
			require.NoError(t, json.Unmarshal(env.Data, &works))
			ids := make([]int64, len(works))
			for i, wk := range works {
				ids[i] = wk.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
			if tt.wantPrice != 0 {
				assert.InDelta(t, tt.wantPrice, works[1].Price, 1e-9)
			}
		})
	}
}

func TestTradesEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	_, env := get(t, s, "/api/trades?limit=1")
	var trades []database.Trade
	require.NoError(t, json.Unmarshal(env.Data, &trades))
	require.Len(t, trades, 1)
	assert.Equal(t, "2", trades[0].ID)

	history := &fakeHistory{}
	s.SetTradeHistory(history)
	_, env = get(t, s, "/api/trades")
	require.NoError(t, json.Unmarshal(env.Data, &trades))
	require.Len(t, trades, 1)
	assert.Equal(t, "from-ledger", trades[0].ID)
	assert.Equal(t, maxListLimit, history.limit)

	history.err = errors.New("db down")
	w, _ := get(t, s, "/api/trades?limit=10")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(ServerConfig{RequestsPerMin: 2}, &fakeBot{}, &fakeChart{works: make([]chart.Work, 1)}, nil, zerolog.Nop())

	for i := 0; i < 2; i++ {
		w, _ := get(t, s, "/api/status")
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w, env := get(t, s, "/api/status")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Rate limit exceeded", env.Message)
}

func TestCORSHeaders(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	s, _, bus := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Hub().Run(ctx)

	server := httptest.NewServer(s.Handler())
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var welcome struct {
		Type string     `json:"type"`
		Data bot.Status `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "CONNECTED", welcome.Type)
	assert.Equal(t, "BTCUSDT", welcome.Data.Symbol)

	require.Eventually(t, func() bool { return s.Hub().GetClientCount() == 1 }, time.Second, 5*time.Millisecond)
	bus.PublishModeChanged(true, 5*time.Second)

	var event events.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, events.EventModeChanged, event.Type)
	assert.Equal(t, true, event.Data["fast"])
}
