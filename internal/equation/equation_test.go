package equation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateBetweenValues(t *testing.T) {
	assert.InDelta(t, 10.0, RateBetweenValues(100, 110), 1e-9)
	assert.InDelta(t, -10.0, RateBetweenValues(100, 90), 1e-9)
	assert.Equal(t, 0.0, RateBetweenValues(5, 5))
}

func TestLineSlope(t *testing.T) {
	tests := []struct {
		name   string
		a, b   *Point
		want   float64
		wantOK bool
	}{
		{"rising", &Point{X: 0, Y: 1}, &Point{X: 2, Y: 2}, 0.5, true},
		{"falling", &Point{X: 0, Y: 2}, &Point{X: 1, Y: 1}, -1, true},
		{"flat", &Point{X: 0, Y: 2}, &Point{X: 1, Y: 2}, 0, true},
		{"missing predecessor", nil, &Point{X: 1, Y: 2}, 0, false},
		{"nan price", &Point{X: 0, Y: math.NaN()}, &Point{X: 1, Y: 2}, 0, false},
		{"same time", &Point{X: 1, Y: 1}, &Point{X: 1, Y: 2}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LineSlope(tt.a, tt.b)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestThresholdPriceOfProfitability(t *testing.T) {
	threshold, err := ThresholdPriceOfProfitability(100, 0, 0.001)
	require.NoError(t, err)
	assert.InDelta(t, 100/(0.999*0.999), threshold, 1e-9)
	assert.InDelta(t, 100.2, threshold, 0.001)

	withMargin, err := ThresholdPriceOfProfitability(100, 1, 0.001)
	require.NoError(t, err)
	assert.InDelta(t, threshold*1.01, withMargin, 1e-9)

	_, err = ThresholdPriceOfProfitability(100, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidFeeRate)
}

func TestIsProfitable(t *testing.T) {
	threshold, err := ThresholdPriceOfProfitability(100, 0, 0.001)
	require.NoError(t, err)

	ok, err := IsProfitable(100, threshold, 0.001)
	require.NoError(t, err)
	assert.True(t, ok, "selling exactly at the threshold must be profitable")

	ok, err = IsProfitable(100, threshold-0.01, 0.001)
	require.NoError(t, err)
	assert.False(t, ok, "one cent below the threshold must not be profitable")

	_, err = IsProfitable(100, 200, 1)
	assert.ErrorIs(t, err, ErrInvalidFeeRate)
}

func TestFloatSafeRemainder(t *testing.T) {
	assert.Equal(t, 0.0, FloatSafeRemainder(0.3, 0.1))
	assert.InDelta(t, 0.00000678, FloatSafeRemainder(0.12345678, 0.00001), 1e-15)
	assert.Equal(t, 0.0, FloatSafeRemainder(1.5, 0))
}

func TestTruncateDigits(t *testing.T) {
	assert.Equal(t, 0.12345678, TruncateDigits(0.123456789, 8))
	assert.Equal(t, 1.99, TruncateDigits(1.999, 2))
}

func TestNormalizeQuantity(t *testing.T) {
	lot := LotSize{MinQty: 0.001, MaxQty: 100, StepSize: 0.00001}

	t.Run("truncates and rounds down to step", func(t *testing.T) {
		got, err := NormalizeQuantity(0.123456789, lot, 8, true)
		require.NoError(t, err)
		assert.Equal(t, 0.12345, got)
	})

	t.Run("clamps to maximum", func(t *testing.T) {
		got, err := NormalizeQuantity(250, lot, 8, true)
		require.NoError(t, err)
		assert.Equal(t, 100.0, got)
	})

	t.Run("strict below minimum fails", func(t *testing.T) {
		_, err := NormalizeQuantity(0.0005, lot, 8, true)
		assert.ErrorIs(t, err, ErrBelowMinimum)
	})

	t.Run("lenient below minimum clamps", func(t *testing.T) {
		got, err := NormalizeQuantity(0.0005, lot, 8, false)
		require.NoError(t, err)
		assert.Equal(t, 0.001, got)
	})

	t.Run("precision truncation can push below minimum", func(t *testing.T) {
		_, err := NormalizeQuantity(0.0019, LotSize{MinQty: 0.01, StepSize: 0.01}, 2, true)
		assert.ErrorIs(t, err, ErrBelowMinimum)
	})

	t.Run("exact step multiple is untouched", func(t *testing.T) {
		got, err := NormalizeQuantity(0.3, LotSize{MinQty: 0.1, StepSize: 0.1}, 8, true)
		require.NoError(t, err)
		assert.Equal(t, 0.3, got)
	})

	t.Run("negative quantity fails", func(t *testing.T) {
		_, err := NormalizeQuantity(-1, lot, 8, false)
		assert.ErrorIs(t, err, ErrBelowMinimum)
	})
}
