package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exchangeInfoJSON = `{
  "timezone": "UTC",
  "serverTime": 1700000000000,
  "symbols": [{
    "symbol": "BTCUSDT",
    "status": "TRADING",
    "baseAsset": "BTC",
    "baseAssetPrecision": 8,
    "quoteAsset": "USDT",
    "quotePrecision": 8,
    "quoteAssetPrecision": 8,
    "isSpotTradingAllowed": true,
    "quoteOrderQtyMarketAllowed": true,
    "filters": [
      {"filterType": "PRICE_FILTER", "minPrice": "0.01000000", "maxPrice": "1000000.00000000", "tickSize": "0.01000000"},
      {"filterType": "LOT_SIZE", "minQty": "0.00001000", "maxQty": "9000.00000000", "stepSize": "0.00001000"},
      {"filterType": "NOTIONAL", "minNotional": "5.00000000", "applyMinToMarket": true}
    ]
  }]
}`

func TestClientGetCurrentPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"43210.55000000"}`))
	}))
	defer server.Close()

	client := NewClient("", "", server.URL, zerolog.Nop())
	price, err := client.GetCurrentPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 43210.55, price, 1e-9)
}

func TestClientGetExchangeInfoFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(exchangeInfoJSON))
	}))
	defer server.Close()

	client := NewClient("", "", server.URL, zerolog.Nop())
	info, err := client.GetExchangeInfo(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	sym, ok := info.Symbol("btcusdt")
	require.True(t, ok)
	filters, err := sym.ParseFilters()
	require.NoError(t, err)

	assert.InDelta(t, 0.00001, filters.MinQty, 1e-12)
	assert.InDelta(t, 9000.0, filters.MaxQty, 1e-9)
	assert.InDelta(t, 0.00001, filters.StepSize, 1e-12)
	assert.InDelta(t, 5.0, filters.MinNotional, 1e-9)
	assert.Equal(t, int32(5), filters.QuantityPrecision)
	assert.Equal(t, int32(8), filters.QuotePrecision)
}

func TestClientPlaceOrderIsSigned(t *testing.T) {
	const secret = "test-secret"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "api-key", r.Header.Get("X-MBX-APIKEY"))

		raw := r.URL.RawQuery
		idx := strings.LastIndex(raw, "&signature=")
		if !assert.True(t, idx > 0, "signature must be the last parameter") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payload, signature := raw[:idx], raw[idx+len("&signature="):]

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(payload))
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), signature)

		q := r.URL.Query()
		assert.Equal(t, "MARKET", q.Get("type"))
		assert.Equal(t, "FULL", q.Get("newOrderRespType"))
		assert.True(t, strings.HasPrefix(q.Get("newClientOrderId"), "rvb"))
		assert.NotEmpty(t, q.Get("timestamp"))

		w.Write([]byte(`{
			"symbol": "BTCUSDT", "orderId": 42, "clientOrderId": "` + q.Get("newClientOrderId") + `",
			"transactTime": 1700000000000, "price": "0.00000000", "origQty": "0.00200000",
			"executedQty": "0.00200000", "cummulativeQuoteQty": "86.42000000",
			"status": "FILLED", "type": "MARKET", "side": "BUY",
			"fills": [
				{"price": "43200.00000000", "qty": "0.00100000", "commission": "0.00000100", "commissionAsset": "BTC", "tradeId": 1},
				{"price": "43220.00000000", "qty": "0.00100000", "commission": "0.00000100", "commissionAsset": "BTC", "tradeId": 2}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient("api-key", secret, server.URL, zerolog.Nop())
	resp, err := client.PlaceOrder(context.Background(), map[string]string{
		"symbol":        "BTCUSDT",
		"side":          SideBuy,
		"type":          OrderTypeMarket,
		"quoteOrderQty": "86.42",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), resp.OrderId)
	assert.Equal(t, OrderStatusFilled, resp.Status)
	assert.Len(t, resp.Fills, 2)
	assert.InDelta(t, 43210.0, resp.AveragePrice(), 1e-6)
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer server.Close()

	client := NewClient("", "", server.URL, zerolog.Nop())
	_, err := client.GetCurrentPrice(context.Background(), "NOPE")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, -1121, apiErr.Code)
	assert.Equal(t, "Invalid symbol.", apiErr.Message)
}

func TestClientRateLimitOpensCircuit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code":-1003,"msg":"Too many requests."}`))
	}))
	defer server.Close()

	client := NewClient("", "", server.URL, zerolog.Nop())
	_, err := client.GetCurrentPrice(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, client.limiter.IsCircuitOpen())

	// the open circuit blocks the next call until ctx expires
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.GetCurrentPrice(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClientOrderID(t *testing.T) {
	id := NewClientOrderID()
	assert.True(t, strings.HasPrefix(id, "rvb"))
	assert.LessOrEqual(t, len(id), 36)
	assert.NotEqual(t, id, NewClientOrderID())
}

func TestRateLimiterBudget(t *testing.T) {
	limiter := NewRateLimiter(50, zerolog.Nop())
	now := time.Now()
	limiter.now = func() time.Time { return now }
	limiter.weightResetAt = now.Add(time.Minute)

	// 80% of 50 is 40: two exchangeInfo calls fit, the third does not
	_, ok := limiter.tryAcquire("/api/v3/exchangeInfo")
	assert.True(t, ok)
	_, ok = limiter.tryAcquire("/api/v3/exchangeInfo")
	assert.True(t, ok)
	wait, ok := limiter.tryAcquire("/api/v3/exchangeInfo")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)

	// a new window resets the budget
	now = now.Add(61 * time.Second)
	_, ok = limiter.tryAcquire("/api/v3/exchangeInfo")
	assert.True(t, ok)
}

func TestRateLimiterFollowsHeader(t *testing.T) {
	limiter := NewRateLimiter(100, zerolog.Nop())
	limiter.UpdateFromHeader("79")
	_, ok := limiter.tryAcquire("/api/v3/order")
	assert.True(t, ok)
	_, ok = limiter.tryAcquire("/api/v3/order")
	assert.False(t, ok)

	limiter.UpdateFromHeader("garbage")
}
