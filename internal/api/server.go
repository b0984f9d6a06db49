package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"reversal-trading-bot/internal/bot"
	"reversal-trading-bot/internal/chart"
	"reversal-trading-bot/internal/database"
	"reversal-trading-bot/internal/events"
	"reversal-trading-bot/internal/logging"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimiter provides simple in-memory rate limiting per client
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	// Filter out old requests
	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// BotAPI is the read-only view of the trader the API exposes
type BotAPI interface {
	Status() bot.Status
	Trades() []database.Trade
}

// ChartAPI is the read-only view of the observation worker
type ChartAPI interface {
	Works() []chart.Work
	AllWorks() []chart.Work
	Smooth(works []chart.Work) []chart.Work
}

// TradeHistory is a durable ledger that outlives the process
type TradeHistory interface {
	ListTrades(ctx context.Context, symbol string, limit int) ([]database.Trade, error)
}

// HealthCheck reports the health of one dependency
type HealthCheck func(ctx context.Context) error

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins string // comma separated, "*" allows all
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestsPerMin int
	ProductionMode bool
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      ServerConfig
	bot         BotAPI
	chart       ChartAPI
	history     TradeHistory
	checks      map[string]HealthCheck
	hub         *WSHub
	rateLimiter *RateLimiter
	startedAt   time.Time
	logger      zerolog.Logger
}

// NewServer creates a new API server. Events of bus are streamed to
// websocket clients.
func NewServer(config ServerConfig, botAPI BotAPI, chartAPI ChartAPI, bus *events.EventBus, logger zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.RequestsPerMin <= 0 {
		config.RequestsPerMin = 600
	}
	logger = logger.With().Str("component", "api").Logger()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware(logger))

	corsConfig := cors.DefaultConfig()
	origins := splitOrigins(config.AllowedOrigins)
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Trace-ID"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "X-Trace-ID"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		config:      config,
		bot:         botAPI,
		chart:       chartAPI,
		checks:      make(map[string]HealthCheck),
		hub:         NewWSHub(logger),
		rateLimiter: NewRateLimiter(config.RequestsPerMin, time.Minute),
		startedAt:   time.Now(),
		logger:      logger,
	}
	server.hub.Attach(bus)
	server.setupRoutes()

	return server
}

// SetTradeHistory serves /api/trades from a durable ledger instead of memory.
func (s *Server) SetTradeHistory(h TradeHistory) {
	s.history = h
}

// AddHealthCheck registers a dependency reported by /api/health.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *WSHub {
	return s.hub
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)
		api.GET("/works", s.handleWorks)
		api.GET("/trades", s.handleTrades)
	}
	s.router.GET("/ws", s.handleWebSocket)
}

// rateLimitMiddleware limits requests per client IP
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.ClientIP()) {
			errorResponse(c, http.StatusTooManyRequests, "Rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Start starts the HTTP server and the websocket hub. It blocks until the
// server stops.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go s.hub.Run(ctx)
	s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
