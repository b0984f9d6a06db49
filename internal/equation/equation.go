// Package equation holds the pure financial math the trading loop depends on:
// percentage rates, chart slopes, fee-adjusted profitability thresholds and
// exchange quantity normalization.
package equation

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidFeeRate is returned when a fee rate would consume the whole trade value.
	ErrInvalidFeeRate = errors.New("invalid fee rate")
	// ErrBelowMinimum is returned when a quantity cannot satisfy the exchange minimum.
	ErrBelowMinimum = errors.New("quantity below exchange minimum")
)

// Point is a single time/price sample.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LotSize mirrors the exchange LOT_SIZE filter for a symbol.
type LotSize struct {
	MinQty   float64 `json:"min_qty"`
	MaxQty   float64 `json:"max_qty"`   // 0 means no upper bound
	StepSize float64 `json:"step_size"` // 0 disables step rounding
}

// RateBetweenValues returns the percentage change from a to b.
func RateBetweenValues(a, b float64) float64 {
	return 100 * (b/a - 1)
}

// LineSlope returns the slope between two samples. ok is false when either
// sample is missing or has a non-finite coordinate.
func LineSlope(a, b *Point) (slope float64, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if !finite(a.X) || !finite(a.Y) || !finite(b.X) || !finite(b.Y) {
		return 0, false
	}
	slope = (b.Y - a.Y) / (b.X - a.X)
	if !finite(slope) {
		return 0, false
	}
	return slope, true
}

// ThresholdPriceOfProfitability returns the smallest sell price that recovers
// buyPrice after paying feeRate on both legs and clearing thresholdPct.
func ThresholdPriceOfProfitability(buyPrice, thresholdPct, feeRate float64) (float64, error) {
	if feeRate >= 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFeeRate, feeRate)
	}
	kept := 1 - feeRate
	return buyPrice * (1 + thresholdPct/100) / (kept * kept), nil
}

// IsProfitable reports whether selling at comparePrice covers the round-trip fees.
func IsProfitable(buyPrice, comparePrice, feeRate float64) (bool, error) {
	threshold, err := ThresholdPriceOfProfitability(buyPrice, 0, feeRate)
	if err != nil {
		return false, err
	}
	return comparePrice >= threshold, nil
}

// TruncateDigits drops every decimal digit past digits without rounding.
func TruncateDigits(value float64, digits int32) float64 {
	return decimal.NewFromFloat(value).Truncate(digits).InexactFloat64()
}

// FloatSafeRemainder returns value mod step computed on exact decimals.
// 0.3 mod 0.1 is 0 here, not 0.09999999999999998.
func FloatSafeRemainder(value, step float64) float64 {
	if step == 0 {
		return 0
	}
	return decimal.NewFromFloat(value).Mod(decimal.NewFromFloat(step)).InexactFloat64()
}

// NormalizeQuantity makes quantity acceptable for an order against lot:
// truncated to precision digits, clamped to [MinQty, MaxQty] and rounded down
// to a multiple of StepSize. In strict mode a quantity under MinQty fails with
// ErrBelowMinimum, otherwise it is raised to MinQty.
func NormalizeQuantity(quantity float64, lot LotSize, precision int32, strict bool) (float64, error) {
	if !finite(quantity) || quantity < 0 {
		return 0, fmt.Errorf("%w: invalid quantity %v", ErrBelowMinimum, quantity)
	}

	q := decimal.NewFromFloat(quantity).Truncate(precision)
	minQty := decimal.NewFromFloat(lot.MinQty)

	if q.LessThan(minQty) || q.IsZero() {
		if strict {
			return 0, fmt.Errorf("%w: %s < %s", ErrBelowMinimum, q, minQty)
		}
		q = minQty
	}
	if lot.MaxQty > 0 {
		maxQty := decimal.NewFromFloat(lot.MaxQty)
		if q.GreaterThan(maxQty) {
			q = maxQty
		}
	}
	if lot.StepSize > 0 {
		step := decimal.NewFromFloat(lot.StepSize)
		q = q.Sub(q.Mod(step))
	}

	if q.LessThan(minQty) || q.IsZero() {
		if strict {
			return 0, fmt.Errorf("%w: %s after step rounding", ErrBelowMinimum, q)
		}
		q = minQty
	}

	return q.InexactFloat64(), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
