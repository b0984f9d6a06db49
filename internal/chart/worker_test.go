package chart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource replays a fixed list of prices and errors.
type scriptedSource struct {
	mu     sync.Mutex
	prices []float64
	errs   []error
	calls  int
}

func (s *scriptedSource) GetCurrentPrice(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return 0, s.errs[i]
	}
	if i < len(s.prices) {
		return s.prices[i], nil
	}
	return s.prices[len(s.prices)-1], nil
}

func testConfig() Config {
	return Config{
		TickerInterval:    time.Second,
		FastModeReduction: 0.5,
		RetryInterval:     time.Millisecond,
		Smoothing:         SmoothingSampling,
	}
}

func TestWorkerTickAnnotatesWorks(t *testing.T) {
	src := &scriptedSource{prices: []float64{10, 11, 11, 9}}
	w := NewWorker(src, testConfig(), zerolog.Nop())
	ctx := context.Background()

	var got []Work
	for i := 0; i < 4; i++ {
		work, err := w.Tick(ctx)
		require.NoError(t, err)
		got = append(got, work)
	}

	assert.Equal(t, TrendUnknown, got[0].Trend)
	assert.Equal(t, TrendUnknown, got[0].LastTrend)
	assert.Equal(t, 0.0, got[0].LastPrice)
	assert.Equal(t, TrendUpward, got[1].Trend)
	assert.Equal(t, TrendFlat, got[2].Trend)
	assert.Equal(t, TrendDownward, got[3].Trend)
	assert.Equal(t, TrendFlat, got[3].LastTrend)
	assert.Equal(t, 11.0, got[3].LastPrice)

	for i, work := range got {
		assert.Equal(t, int64(i), work.ID)
		assert.Equal(t, int64(i)*1000, work.Time)
	}
	assert.Len(t, w.Works(), 4)
	assert.Len(t, w.AllWorks(), 4)
}

func TestWorkerRetryKeepsLogicalTime(t *testing.T) {
	netErr := errors.New("connection refused")
	src := &scriptedSource{
		prices: []float64{10, 0, 0, 0, 12},
		errs:   []error{nil, netErr, netErr, nil, nil},
	}
	w := NewWorker(src, testConfig(), zerolog.Nop())
	ctx := context.Background()

	first, err := w.Tick(ctx)
	require.NoError(t, err)

	second, err := w.Tick(ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, src.calls, "two network errors and one zero price must be retried")
	assert.Equal(t, first.Time+1000, second.Time)
	assert.Equal(t, 12.0, second.Price)
	assert.Equal(t, int64(1), second.ID)
}

func TestWorkerTickStopsOnCancel(t *testing.T) {
	src := &scriptedSource{prices: []float64{1}, errs: []error{errors.New("down")}}
	cfg := testConfig()
	cfg.RetryInterval = time.Hour
	w := NewWorker(src, cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := w.Tick(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, w.AllWorks())
}

func TestWorkerModeSwitching(t *testing.T) {
	w := NewWorker(&scriptedSource{prices: []float64{1}}, testConfig(), zerolog.Nop())

	assert.Equal(t, time.Second, w.Interval())
	w.FastMode()
	assert.True(t, w.IsFastMode())
	assert.Equal(t, 500*time.Millisecond, w.Interval())

	// idempotent: a second switch does not queue another re-arm
	w.FastMode()
	assert.Len(t, w.rearm, 1)

	w.NormalMode()
	w.NormalMode()
	assert.False(t, w.IsFastMode())
	assert.Equal(t, time.Second, w.Interval())
}

func TestWorkerClockFollowsActiveInterval(t *testing.T) {
	w := NewWorker(&scriptedSource{prices: []float64{1, 2, 3}}, testConfig(), zerolog.Nop())
	ctx := context.Background()

	a, _ := w.Tick(ctx)
	w.FastMode()
	b, _ := w.Tick(ctx)
	c, _ := w.Tick(ctx)

	assert.Equal(t, int64(0), a.Time)
	assert.Equal(t, int64(1000), b.Time)
	assert.Equal(t, int64(1500), c.Time)
}

func TestWorkerRehydrate(t *testing.T) {
	history := buildWorks(10, 9, 8, 9, 10)
	w := NewWorker(&scriptedSource{prices: []float64{11}}, testConfig(), zerolog.Nop())

	w.Rehydrate(history, 2000)

	live := w.Works()
	require.Len(t, live, 3)
	assert.Equal(t, int64(2), live[0].ID)
	assert.Len(t, w.AllWorks(), 5)

	next, err := w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), next.ID)
	assert.Equal(t, int64(5000), next.Time)
	assert.Equal(t, 10.0, next.LastPrice)
	assert.Equal(t, TrendUpward, next.LastTrend)
	assert.Equal(t, TrendUpward, next.Trend)
}

func TestWorkerResetWorksKeepsLatest(t *testing.T) {
	w := NewWorker(&scriptedSource{prices: []float64{1, 2, 3}}, testConfig(), zerolog.Nop())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := w.Tick(ctx)
		require.NoError(t, err)
	}

	w.ResetWorks()

	live := w.Works()
	require.Len(t, live, 1)
	assert.Equal(t, int64(2), live[0].ID)
	assert.Len(t, w.AllWorks(), 3)
}

func TestWorkerRunDispatchesToSubscribers(t *testing.T) {
	cfg := testConfig()
	cfg.TickerInterval = 5 * time.Millisecond
	w := NewWorker(&scriptedSource{prices: []float64{1, 2, 3, 4, 5}}, cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []int64
	w.Subscribe(func(ctx context.Context, work Work) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, work.ID)
		if len(seen) == 3 {
			cancel()
		}
	})

	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(seen), 3)
	assert.Equal(t, []int64{0, 1, 2}, seen[:3])
}
