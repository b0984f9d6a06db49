package main

import (
	"testing"

	"reversal-trading-bot/internal/chart"
	"reversal-trading-bot/internal/database"
	"reversal-trading-bot/internal/patterns"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hollowWorks() []chart.Work {
	prices := []float64{1, 0.9, 0.9, 1.0, 1.1}
	trends := []chart.Trend{chart.TrendDownward, chart.TrendDownward, chart.TrendFlat, chart.TrendUpward, chart.TrendUpward}
	works := make([]chart.Work, len(prices))
	for i := range prices {
		w := chart.Work{ID: int64(i), Time: int64(i), Price: prices[i], Trend: trends[i], LastTrend: chart.TrendUnknown}
		if i > 0 {
			w.LastPrice = prices[i-1]
			w.LastTrend = trends[i-1]
		}
		works[i] = w
	}
	return works
}

func replayOptions(mode chart.Smoothing) Options {
	return Options{
		Smoothing: mode,
		MinDiff:   0.1,
		Patterns: patterns.Config{
			ThresholdRateToApproveInversion:    0.4,
			ThresholdMaxRateToApproveInversion: 1,
			NumberOfUpPointsToValidatePump:     2,
			NumberOfDownPointsToValidateDump:   2,
		},
	}
}

func TestReplayDeterministic(t *testing.T) {
	works := hollowWorks()
	snap := &database.Snapshot{
		Symbol:        "BTCUSDT",
		Works:         works,
		WorksSmoothed: chart.Smooth(works, chart.SmoothingSampling, 0.1),
	}

	r := Replay(snap, replayOptions(chart.SmoothingSampling))
	assert.True(t, r.Deterministic)
	assert.Equal(t, -1, r.FirstMismatch)
}

func TestReplayDetectsTamperedHistory(t *testing.T) {
	works := hollowWorks()
	smoothed := chart.Smooth(works, chart.SmoothingSampling, 0.1)
	require.NotEmpty(t, smoothed)
	smoothed[len(smoothed)-1].Price += 1

	r := Replay(&database.Snapshot{Works: works, WorksSmoothed: smoothed}, replayOptions(chart.SmoothingSampling))
	assert.False(t, r.Deterministic)
	assert.Equal(t, len(smoothed)-1, r.FirstMismatch)

	r = Replay(&database.Snapshot{Works: works, WorksSmoothed: smoothed[:1]}, replayOptions(chart.SmoothingSampling))
	assert.False(t, r.Deterministic)
	assert.Equal(t, 1, r.FirstMismatch)
}

func TestReplayReportsSignalsAndPnL(t *testing.T) {
	works := hollowWorks()
	snap := &database.Snapshot{
		Works:         works,
		WorksSmoothed: chart.Smooth(works, chart.SmoothingNone, 0),
		Trades: []database.Trade{
			{Kind: database.TradeBuy, Price: 0.9, Quantity: 100, Benefits: -90},
			{Kind: database.TradeSellPartial, Price: 1.0, Quantity: 50, Benefits: 4.9},
			{Kind: database.TradeSell, Price: 0.85, Quantity: 50, Benefits: -2.6},
		},
	}

	r := Replay(snap, replayOptions(chart.SmoothingNone))
	assert.True(t, r.Deterministic)

	require.NotEmpty(t, r.Signals)
	for _, s := range r.Signals {
		assert.Equal(t, SignalHollow, s.Kind)
	}
	last := r.Signals[len(r.Signals)-1]
	assert.LessOrEqual(t, last.WorkID, int64(4))

	assert.InDelta(t, 2.3, r.RealizedPnL, 1e-9)
	assert.Equal(t, 1, r.Wins)
	assert.Equal(t, 1, r.Losses)
}
