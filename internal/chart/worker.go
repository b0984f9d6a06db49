package chart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"reversal-trading-bot/internal/equation"
	"reversal-trading-bot/internal/events"

	"github.com/rs/zerolog"
)

// ErrInvalidPrice is returned by the worker when the source hands back a
// price that cannot be plotted.
var ErrInvalidPrice = errors.New("invalid price")

// PriceSource supplies the current price of the traded pair. Calls must be
// safe to retry.
type PriceSource interface {
	GetCurrentPrice(ctx context.Context) (float64, error)
}

// Handler receives every new observation, on the worker goroutine.
type Handler func(ctx context.Context, work Work)

// Config holds the sampling settings of a Worker.
type Config struct {
	TickerInterval        time.Duration // normal polling interval
	FastModeReduction     float64       // fraction removed from the interval in fast mode, in [0,1)
	RetryInterval         time.Duration // delay between price fetch retries
	Smoothing             Smoothing
	MinPriceDifferencePct float64 // sampling filter collapse threshold, in %
}

// Worker polls a PriceSource on a self-rescheduling timer and records every
// sample as a Work.
type Worker struct {
	source PriceSource
	cfg    Config
	logger zerolog.Logger
	bus    *events.EventBus

	mu        sync.RWMutex
	works     []Work // since the last trade baseline
	allWorks  []Work
	hasLast   bool
	lastTime  int64
	lastPrice float64
	lastTrend Trend
	nextID    int64
	clock     int64
	fast      bool
	handlers  []Handler

	rearm chan struct{}
}

// NewWorker creates a worker. Zero intervals fall back to 15s polling and a
// 5s retry delay.
func NewWorker(source PriceSource, cfg Config, logger zerolog.Logger) *Worker {
	if cfg.TickerInterval <= 0 {
		cfg.TickerInterval = 15 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	if cfg.FastModeReduction < 0 || cfg.FastModeReduction >= 1 {
		cfg.FastModeReduction = 0
	}
	return &Worker{
		source:    source,
		cfg:       cfg,
		logger:    logger.With().Str("component", "chart-worker").Logger(),
		lastTrend: TrendUnknown,
		rearm:     make(chan struct{}, 1),
	}
}

// SetEventBus enables publishing of every observation on bus.
func (w *Worker) SetEventBus(bus *events.EventBus) {
	w.bus = bus
}

// Subscribe registers a handler for new observations.
func (w *Worker) Subscribe(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Run ticks until ctx is cancelled. The first tick fires immediately.
func (w *Worker) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	w.logger.Info().
		Dur("interval", w.Interval()).
		Bool("fast", w.IsFastMode()).
		Msg("Chart worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.rearm:
			resetTimer(timer, w.Interval())
		case <-timer.C:
			if _, err := w.Tick(ctx); err != nil {
				return err
			}
			// a mode switch during the tick is honoured by the reset below
			select {
			case <-w.rearm:
			default:
			}
			timer.Reset(w.Interval())
		}
	}
}

// Tick samples one price and publishes the resulting observation. A failed
// fetch is retried every RetryInterval until it succeeds; the tick keeps its
// logical time so the history stays evenly spaced. Only a cancelled ctx
// makes Tick return an error.
func (w *Worker) Tick(ctx context.Context) (Work, error) {
	w.mu.RLock()
	logicalTime := w.clock
	w.mu.RUnlock()

	price, err := w.fetchPrice(ctx, logicalTime)
	if err != nil {
		return Work{}, err
	}

	work := w.record(logicalTime, price)
	w.dispatch(ctx, work)
	return work, nil
}

func (w *Worker) fetchPrice(ctx context.Context, logicalTime int64) (float64, error) {
	for attempt := 1; ; attempt++ {
		price, err := w.source.GetCurrentPrice(ctx)
		if err == nil && (price <= 0 || math.IsNaN(price) || math.IsInf(price, 0)) {
			err = fmt.Errorf("%w: %v", ErrInvalidPrice, price)
		}
		if err == nil {
			if attempt > 1 {
				w.logger.Info().Int("attempts", attempt).Int64("time", logicalTime).Msg("Price feed recovered")
			}
			return price, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		w.logger.Warn().Err(err).
			Int("attempt", attempt).
			Int64("time", logicalTime).
			Dur("retry_in", w.cfg.RetryInterval).
			Msg("Failed to fetch price, retrying")

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(w.cfg.RetryInterval):
		}
	}
}

func (w *Worker) record(logicalTime int64, price float64) Work {
	w.mu.Lock()
	defer w.mu.Unlock()

	current := &equation.Point{X: float64(logicalTime), Y: price}
	var previous *equation.Point
	if w.hasLast {
		previous = &equation.Point{X: float64(w.lastTime), Y: w.lastPrice}
	}

	work := Work{
		ID:        w.nextID,
		Time:      logicalTime,
		Price:     price,
		LastPrice: w.lastPrice,
		Trend:     TrendBetween(previous, current),
		LastTrend: w.lastTrend,
	}

	w.works = append(w.works, work)
	w.allWorks = append(w.allWorks, work)
	w.nextID++
	w.hasLast = true
	w.lastTime = logicalTime
	w.lastPrice = price
	w.lastTrend = work.Trend
	w.clock = logicalTime + w.intervalLocked().Milliseconds()

	return work
}

func (w *Worker) dispatch(ctx context.Context, work Work) {
	w.mu.RLock()
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	w.logger.Debug().
		Int64("id", work.ID).
		Int64("time", work.Time).
		Float64("price", work.Price).
		Str("trend", string(work.Trend)).
		Msg("New work")

	for _, h := range handlers {
		h(ctx, work)
	}

	if w.bus != nil {
		w.bus.PublishWork(work.ID, work.Time, work.Price, string(work.Trend))
	}
}

// FastMode shortens the polling interval and re-arms the timer. No-op when
// already fast.
func (w *Worker) FastMode() {
	w.setFast(true)
}

// NormalMode restores the normal polling interval. No-op when already normal.
func (w *Worker) NormalMode() {
	w.setFast(false)
}

func (w *Worker) setFast(fast bool) {
	w.mu.Lock()
	if w.fast == fast {
		w.mu.Unlock()
		return
	}
	w.fast = fast
	interval := w.intervalLocked()
	w.mu.Unlock()

	select {
	case w.rearm <- struct{}{}:
	default:
	}

	w.logger.Info().Bool("fast", fast).Dur("interval", interval).Msg("Polling mode changed")
	if w.bus != nil {
		w.bus.PublishModeChanged(fast, interval)
	}
}

// IsFastMode reports whether the reduced interval is active.
func (w *Worker) IsFastMode() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fast
}

// Interval returns the active polling interval.
func (w *Worker) Interval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.intervalLocked()
}

func (w *Worker) intervalLocked() time.Duration {
	if !w.fast {
		return w.cfg.TickerInterval
	}
	return time.Duration(float64(w.cfg.TickerInterval) * (1 - w.cfg.FastModeReduction))
}

// Rehydrate restores the worker from a persisted history. Only observations
// at or after restartFrom are re-seeded into the live window.
func (w *Worker) Rehydrate(history []Work, restartFrom int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(history) == 0 {
		return
	}

	w.allWorks = cloneWorks(history)
	w.works = w.works[:0]
	for _, work := range history {
		if work.Time >= restartFrom {
			w.works = append(w.works, work)
		}
	}

	tail := history[len(history)-1]
	w.hasLast = true
	w.lastTime = tail.Time
	w.lastPrice = tail.Price
	w.lastTrend = tail.Trend
	w.nextID = tail.ID + 1
	w.clock = tail.Time + w.intervalLocked().Milliseconds()

	w.logger.Info().
		Int("history", len(history)).
		Int("live", len(w.works)).
		Int64("restart_from", restartFrom).
		Int64("next_id", w.nextID).
		Msg("Chart worker rehydrated")
}

// ResetWorks starts a new trade baseline: the live window restarts from the
// latest observation.
func (w *Worker) ResetWorks() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.works) == 0 {
		return
	}
	tail := w.works[len(w.works)-1]
	w.works = []Work{tail}
}

// Works returns a copy of the live window.
func (w *Worker) Works() []Work {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return cloneWorks(w.works)
}

// AllWorks returns a copy of the full history.
func (w *Worker) AllWorks() []Work {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return cloneWorks(w.allWorks)
}

// LastWork returns the most recent observation.
func (w *Worker) LastWork() (Work, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.allWorks) == 0 {
		return Work{}, false
	}
	return w.allWorks[len(w.allWorks)-1], true
}

// Smooth applies the configured noise filter to works.
func (w *Worker) Smooth(works []Work) []Work {
	return Smooth(works, w.cfg.Smoothing, w.cfg.MinPriceDifferencePct)
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
