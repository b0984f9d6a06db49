package main

import (
	"reflect"

	"reversal-trading-bot/internal/chart"
	"reversal-trading-bot/internal/database"
	"reversal-trading-bot/internal/patterns"
)

// SignalKind names a detected reversal shape.
type SignalKind string

const (
	SignalHollow SignalKind = "HOLLOW"
	SignalBump   SignalKind = "BUMP"
)

// Signal is a reversal first seen when the given observation arrived.
type Signal struct {
	Kind   SignalKind
	WorkID int64
	Time   int64
	Price  float64
}

// Options selects the filter and analyzer settings used for the replay.
type Options struct {
	Smoothing chart.Smoothing
	MinDiff   float64
	Patterns  patterns.Config
}

// Report is the outcome of a replay.
type Report struct {
	Deterministic bool
	FirstMismatch int // -1 when deterministic
	Signals       []Signal
	RealizedPnL   float64
	Wins          int
	Losses        int
}

// Replay re-derives the denoised chart and the signals of a snapshot.
func Replay(snap *database.Snapshot, opts Options) *Report {
	r := &Report{FirstMismatch: -1}

	smoothed := chart.Smooth(snap.Works, opts.Smoothing, opts.MinDiff)
	r.FirstMismatch = firstMismatch(smoothed, snap.WorksSmoothed)
	r.Deterministic = r.FirstMismatch < 0

	// Each observation is judged against the chart as it stood at that tick.
	// Only the rising edge of a signal is reported.
	analyzer := patterns.NewAnalyzer(opts.Patterns)
	var hollow, bump bool
	for i := range snap.Works {
		view := chart.Smooth(snap.Works[:i+1], opts.Smoothing, opts.MinDiff)
		w := snap.Works[i]

		h := analyzer.DetectHollow(view)
		if h && !hollow {
			r.Signals = append(r.Signals, Signal{Kind: SignalHollow, WorkID: w.ID, Time: w.Time, Price: w.Price})
		}
		hollow = h

		b := analyzer.DetectBump(view)
		if b && !bump {
			r.Signals = append(r.Signals, Signal{Kind: SignalBump, WorkID: w.ID, Time: w.Time, Price: w.Price})
		}
		bump = b
	}

	for _, t := range snap.Trades {
		if !t.IsSell() {
			continue
		}
		r.RealizedPnL += t.Benefits
		if t.Benefits > 0 {
			r.Wins++
		} else {
			r.Losses++
		}
	}
	return r
}

func firstMismatch(got, want []chart.Work) int {
	n := min(len(got), len(want))
	for i := 0; i < n; i++ {
		if !reflect.DeepEqual(got[i], want[i]) {
			return i
		}
	}
	if len(got) != len(want) {
		return n
	}
	return -1
}
