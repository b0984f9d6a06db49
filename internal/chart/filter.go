package chart

import (
	"math"

	"reversal-trading-bot/internal/equation"
)

// Smoothing selects the noise filter applied to the observation history.
type Smoothing string

const (
	SmoothingSampling      Smoothing = "sampling"
	SmoothingMovingAverage Smoothing = "moving_average"
	SmoothingNone          Smoothing = "none"
)

// Smooth applies the filter selected by mode. Unknown modes fall back to sampling.
func Smooth(works []Work, mode Smoothing, minPriceDifferencePct float64) []Work {
	switch mode {
	case SmoothingMovingAverage:
		return SmoothByMovingAverage(works)
	case SmoothingNone:
		return cloneWorks(works)
	default:
		return SmoothBySampling(works, minPriceDifferencePct)
	}
}

// SmoothBySampling removes isolated one-tick reversals, then collapses
// consecutive observations whose price moved less than minPriceDifferencePct
// percent from the last kept one. Surviving observations get their
// LastPrice, Trend and LastTrend recomputed against their new predecessor.
// The first and last observations are always kept.
func SmoothBySampling(works []Work, minPriceDifferencePct float64) []Work {
	if len(works) < 3 {
		return cloneWorks(works)
	}

	last := len(works) - 1

	// reversals are judged against the raw neighbours
	filtered := make([]Work, 0, len(works))
	filtered = append(filtered, works[0])
	for i := 1; i < last; i++ {
		if isIsolatedReversal(works[i-1], works[i], works[i+1]) {
			continue
		}
		filtered = append(filtered, works[i])
	}
	filtered = append(filtered, works[last])

	kept := make([]Work, 0, len(filtered))
	kept = append(kept, filtered[0])
	for i := 1; i < len(filtered)-1; i++ {
		rate := equation.RateBetweenValues(kept[len(kept)-1].Price, filtered[i].Price)
		if math.Abs(rate) < minPriceDifferencePct {
			continue
		}
		kept = append(kept, filtered[i])
	}
	kept = append(kept, filtered[len(filtered)-1])

	for i := 1; i < len(kept); i++ {
		kept[i] = relink(kept[i-1], kept[i])
	}
	return kept
}

// SmoothByMovingAverage replaces every interior price by the mean of itself
// and its two raw neighbours and recomputes its trend against the smoothed
// previous observation. Endpoints are returned untouched.
func SmoothByMovingAverage(works []Work) []Work {
	if len(works) < 3 {
		return cloneWorks(works)
	}

	out := make([]Work, len(works))
	out[0] = works[0]
	last := len(works) - 1
	for i := 1; i < last; i++ {
		w := works[i]
		w.Price = (works[i-1].Price + works[i].Price + works[i+1].Price) / 3
		out[i] = relink(out[i-1], w)
	}
	out[last] = works[last]
	return out
}

func isIsolatedReversal(prev, cur, next Work) bool {
	if cur.Trend != TrendUpward && cur.Trend != TrendDownward {
		return false
	}
	opposite := cur.Trend.Opposite()
	return prev.Trend == opposite && next.Trend == opposite
}

func relink(prev, cur Work) Work {
	cur.LastPrice = prev.Price
	cur.LastTrend = prev.Trend
	cur.Trend = TrendBetween(prev.Point(), cur.Point())
	return cur
}
