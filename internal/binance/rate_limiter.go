package binance

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrRateLimited is returned when the exchange rejected a request for
// exceeding its request weight budget.
var ErrRateLimited = errors.New("rate limited")

// Endpoint weights for the Binance Spot API
var endpointWeights = map[string]int{
	"/api/v3/ticker/price":      2,
	"/api/v3/exchangeInfo":      20,
	"/api/v3/account":           20,
	"/api/v3/order":             1,
	"/api/v3/order/test":        1,
	"/api/v3/ping":              1,
	"/api/v3/time":              1,
	"/api/v3/ticker/24hr":       2,
	"/api/v3/ticker/bookTicker": 2,
}

// RateLimiter tracks the request weight used in the current minute and
// blocks callers before the exchange would reject them. A 429 or 418 answer
// opens the circuit until the ban expires.
type RateLimiter struct {
	mu sync.Mutex

	maxWeight     int
	currentWeight int
	weightResetAt time.Time

	circuitOpen bool
	banUntil    time.Time

	logger zerolog.Logger
	now    func() time.Time
}

// NewRateLimiter creates a limiter for maxWeight per minute. Only a share of
// the budget is used so other processes on the same key keep some headroom.
func NewRateLimiter(maxWeight int, logger zerolog.Logger) *RateLimiter {
	if maxWeight <= 0 {
		maxWeight = 6000
	}
	return &RateLimiter{
		maxWeight:     maxWeight * 8 / 10,
		weightResetAt: time.Now().Add(time.Minute),
		logger:        logger.With().Str("component", "rate-limiter").Logger(),
		now:           time.Now,
	}
}

// Wait blocks until endpoint can be called, then records its weight.
func (r *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	for {
		wait, ok := r.tryAcquire(endpoint)
		if ok {
			return nil
		}
		r.logger.Warn().Str("endpoint", endpoint).Dur("wait", wait).Msg("Request weight exhausted, waiting")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *RateLimiter) tryAcquire(endpoint string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.After(r.weightResetAt) {
		r.currentWeight = 0
		r.weightResetAt = now.Add(time.Minute)
	}

	if r.circuitOpen {
		if now.Before(r.banUntil) {
			return r.banUntil.Sub(now), false
		}
		r.circuitOpen = false
		r.logger.Info().Msg("Circuit breaker closed, ban expired")
	}

	weight := getEndpointWeight(endpoint)
	if r.currentWeight+weight > r.maxWeight {
		wait := r.weightResetAt.Sub(now)
		if wait <= 0 {
			wait = 100 * time.Millisecond
		}
		return wait, false
	}

	r.currentWeight += weight
	return 0, true
}

// UpdateFromHeader aligns the local counter with the X-MBX-USED-WEIGHT-1M
// header of a response.
func (r *RateLimiter) UpdateFromHeader(value string) {
	used, err := strconv.Atoi(value)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if used > r.currentWeight {
		r.currentWeight = used
	}
}

// RecordRateLimitError opens the circuit for retryAfter, one minute when the
// exchange gave no Retry-After.
func (r *RateLimiter) RecordRateLimitError(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = time.Minute
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.circuitOpen = true
	r.banUntil = r.now().Add(retryAfter)
	r.logger.Error().Time("ban_until", r.banUntil).Msg("Rate limit hit, circuit breaker opened")
}

// IsCircuitOpen returns true if circuit breaker is open
func (r *RateLimiter) IsCircuitOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.circuitOpen && r.now().Before(r.banUntil)
}

func getEndpointWeight(endpoint string) int {
	if w, ok := endpointWeights[endpoint]; ok {
		return w
	}
	return 1
}
