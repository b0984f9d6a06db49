package binance

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"reversal-trading-bot/internal/chart"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// DefaultStreamURL is the production spot websocket endpoint
	DefaultStreamURL = "wss://stream.binance.com:9443"
	// TestnetStreamURL is the spot testnet websocket endpoint
	TestnetStreamURL = "wss://testnet.binance.vision"
)

// MiniTickerEvent is a 24hrMiniTicker message of the market stream
type MiniTickerEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
}

// TickerStream keeps the last traded price of a symbol from the miniTicker
// websocket stream. When the stream is down or its price is older than
// maxAge, GetCurrentPrice falls back to the REST source.
type TickerStream struct {
	mu        sync.RWMutex
	price     float64
	updatedAt time.Time
	connected bool

	url        string
	fallback   chart.PriceSource
	maxAge     time.Duration
	reconnects int
	dialer     *websocket.Dialer

	logger zerolog.Logger
}

// NewTickerStream creates a stream for symbol on baseURL (DefaultStreamURL
// when empty).
func NewTickerStream(baseURL, symbol string, fallback chart.PriceSource, maxAge time.Duration, logger zerolog.Logger) *TickerStream {
	if baseURL == "" {
		baseURL = DefaultStreamURL
	}
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	return &TickerStream{
		url:      strings.TrimRight(baseURL, "/") + "/ws/" + strings.ToLower(symbol) + "@miniTicker",
		fallback: fallback,
		maxAge:   maxAge,
		dialer:   websocket.DefaultDialer,
		logger:   logger.With().Str("component", "ticker-stream").Str("symbol", symbol).Logger(),
	}
}

// Start connects in the background and keeps reconnecting until ctx is done.
func (s *TickerStream) Start(ctx context.Context) {
	go s.connect(ctx)
}

// GetCurrentPrice returns the streamed price, or the REST price when the
// stream has nothing fresh.
func (s *TickerStream) GetCurrentPrice(ctx context.Context) (float64, error) {
	s.mu.RLock()
	price, updatedAt := s.price, s.updatedAt
	s.mu.RUnlock()

	if price > 0 && time.Since(updatedAt) <= s.maxAge {
		return price, nil
	}
	s.logger.Debug().Time("updated_at", updatedAt).Msg("Stream price stale, using REST")
	return s.fallback.GetCurrentPrice(ctx)
}

// IsConnected reports whether the websocket is up.
func (s *TickerStream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *TickerStream) connect(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		s.logger.Info().Str("url", s.url).Msg("Connecting to ticker stream")
		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.mu.Lock()
			s.reconnects++
			s.mu.Unlock()
			s.logger.Warn().Err(err).Msg("Ticker stream connection failed, retrying in 5s")
			if !sleepCtx(ctx, 5*time.Second) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.connected = true
		s.reconnects = 0
		s.mu.Unlock()
		s.logger.Info().Msg("Ticker stream connected")

		// unblock the read loop on shutdown
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-done:
			}
		}()

		s.readLoop(conn)
		close(done)
		conn.Close()

		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		s.logger.Warn().Msg("Ticker stream lost, reconnecting in 3s")
		if !sleepCtx(ctx, 3*time.Second) {
			return
		}
	}
}

func (s *TickerStream) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info().Msg("Ticker stream closed normally")
			} else {
				s.logger.Warn().Err(err).Msg("Ticker stream read error")
			}
			return
		}
		s.handleMessage(message)
	}
}

func (s *TickerStream) handleMessage(message []byte) {
	var event MiniTickerEvent
	if err := json.Unmarshal(message, &event); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to parse ticker message")
		return
	}
	if event.EventType != "24hrMiniTicker" {
		return
	}
	price, err := strconv.ParseFloat(event.Close, 64)
	if err != nil || price <= 0 {
		s.logger.Warn().Str("close", event.Close).Msg("Invalid ticker price")
		return
	}

	s.mu.Lock()
	s.price = price
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

var _ chart.PriceSource = (*TickerStream)(nil)
