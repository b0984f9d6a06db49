package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPrice float64

func (p staticPrice) GetCurrentPrice(ctx context.Context) (float64, error) {
	return float64(p), nil
}

func TestTickerStreamReceivesPrices(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/btcusdt@miniTicker", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"e":"24hrMiniTicker","E":1700000000000,"s":"BTCUSDT","c":"43000.10","o":"42000","h":"43500","l":"41000"}`))
		// keep the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	stream := NewTickerStream(wsURL, "BTCUSDT", staticPrice(1), time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream.Start(ctx)

	require.Eventually(t, func() bool {
		price, err := stream.GetCurrentPrice(ctx)
		return err == nil && price == 43000.10
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, stream.IsConnected())

	cancel()
	assert.Eventually(t, func() bool { return !stream.IsConnected() }, 2*time.Second, 10*time.Millisecond)
}

func TestTickerStreamFallsBackWhenStale(t *testing.T) {
	stream := NewTickerStream("ws://127.0.0.1:1", "BTCUSDT", staticPrice(99.5), 50*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	price, err := stream.GetCurrentPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, 99.5, price)

	stream.handleMessage([]byte(`{"e":"24hrMiniTicker","s":"BTCUSDT","c":"101.25"}`))
	price, err = stream.GetCurrentPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, 101.25, price)

	stream.mu.Lock()
	stream.updatedAt = time.Now().Add(-time.Second)
	stream.mu.Unlock()
	price, err = stream.GetCurrentPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, 99.5, price)
}

func TestTickerStreamIgnoresBadMessages(t *testing.T) {
	stream := NewTickerStream("", "BTCUSDT", staticPrice(10), time.Minute, zerolog.Nop())

	stream.handleMessage([]byte(`not json`))
	stream.handleMessage([]byte(`{"e":"trade","c":"50"}`))
	stream.handleMessage([]byte(`{"e":"24hrMiniTicker","c":"-1"}`))

	price, err := stream.GetCurrentPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10.0, price)
	assert.Equal(t, "wss://stream.binance.com:9443/ws/btcusdt@miniTicker", stream.url)
}
