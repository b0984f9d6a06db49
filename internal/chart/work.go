// Package chart turns a price feed into an evenly spaced, annotated
// observation timeline and offers the noise filters applied to it.
package chart

import (
	"math"

	"reversal-trading-bot/internal/equation"
)

// Trend is the direction of the chart between two consecutive observations.
type Trend string

const (
	TrendUpward   Trend = "UPWARD"
	TrendDownward Trend = "DOWNWARD"
	TrendFlat     Trend = "FLAT"
	TrendUnknown  Trend = "UNKNOWN"
)

// Opposite returns the reverse direction. FLAT and UNKNOWN have none.
func (t Trend) Opposite() Trend {
	switch t {
	case TrendUpward:
		return TrendDownward
	case TrendDownward:
		return TrendUpward
	default:
		return TrendUnknown
	}
}

// TrendFromSlope maps a slope to a trend. ok=false or a non-finite slope
// means no trend can be determined.
func TrendFromSlope(slope float64, ok bool) Trend {
	switch {
	case !ok || math.IsNaN(slope) || math.IsInf(slope, 0):
		return TrendUnknown
	case slope == 0:
		return TrendFlat
	case slope > 0:
		return TrendUpward
	default:
		return TrendDownward
	}
}

// TrendBetween returns the trend from a to b.
func TrendBetween(a, b *equation.Point) Trend {
	return TrendFromSlope(equation.LineSlope(a, b))
}

// Work is one immutable observation of the chart. Time is a logical clock in
// milliseconds advanced by the tick interval, not wall-clock time.
type Work struct {
	ID        int64   `json:"id"`
	Time      int64   `json:"time"`
	Price     float64 `json:"price"`
	LastPrice float64 `json:"last_price"`
	Trend     Trend   `json:"trend"`
	LastTrend Trend   `json:"last_trend"`
}

// Point returns the time/price sample of the observation.
func (w Work) Point() *equation.Point {
	return &equation.Point{X: float64(w.Time), Y: w.Price}
}

// FindNeighbor returns the observation offset positions away from the one
// with the given id inside works (-1 is the previous one, +1 the next one).
func FindNeighbor(works []Work, id int64, offset int) (Work, bool) {
	for i := range works {
		if works[i].ID != id {
			continue
		}
		j := i + offset
		if j < 0 || j >= len(works) {
			return Work{}, false
		}
		return works[j], true
	}
	return Work{}, false
}

func cloneWorks(works []Work) []Work {
	out := make([]Work, len(works))
	copy(out, works)
	return out
}
