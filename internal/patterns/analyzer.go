// Package patterns recognizes reversal shapes in a denoised chart.
//
// Every detector is pure and re-evaluated from scratch on each call: the noise
// filter can rewrite the trend of earlier observations when a new one arrives,
// so nothing is cached between calls.
package patterns

import (
	"math"

	"reversal-trading-bot/internal/chart"
	"reversal-trading-bot/internal/equation"
)

// Config holds the confirmation thresholds of the analyzer.
type Config struct {
	ThresholdRateToApproveInversion    float64 `json:"threshold_rate_to_approve_inversion"`     // %, single-move confirmation
	ThresholdMaxRateToApproveInversion float64 `json:"threshold_max_rate_to_approve_inversion"` // %, over this a move is too violent to trust
	NumberOfUpPointsToValidatePump     int     `json:"number_of_up_points_to_validate_pump"`
	NumberOfDownPointsToValidateDump   int     `json:"number_of_down_points_to_validate_dump"`
	ValidatePumpWhenBigPumpIsDetected  bool    `json:"validate_pump_when_big_pump_is_detected"`
	ValidateDumpWhenBigDumpIsDetected  bool    `json:"validate_dump_when_big_dump_is_detected"`
	IgnoreBigPumpWhenBuying            bool    `json:"ignore_big_pump_when_buying"`
	IgnoreBigDumpWhenSelling           bool    `json:"ignore_big_dump_when_selling"`
}

// Analyzer answers reversal questions over a sequence of observations.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an analyzer. Point counts below one are raised to one.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.NumberOfUpPointsToValidatePump < 1 {
		cfg.NumberOfUpPointsToValidatePump = 1
	}
	if cfg.NumberOfDownPointsToValidateDump < 1 {
		cfg.NumberOfDownPointsToValidateDump = 1
	}
	return &Analyzer{cfg: cfg}
}

// Config returns the effective configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// TrendConfirmed reports whether direction is confirmed at work inside works.
// A single move larger than the inversion threshold confirms on its own when
// the matching validate flag is set. Otherwise the walk goes backward from
// work, counting observations with the same trend; FLAT ones are skipped and
// any other trend ends the run.
func (a *Analyzer) TrendConfirmed(direction chart.Trend, work chart.Work, works []chart.Work) bool {
	index := indexByID(works)
	i, ok := index[work.ID]
	if !ok {
		return a.confirmedAt(direction, []chart.Work{work}, 0)
	}
	return a.confirmedAt(direction, works, i)
}

// DetectHollow reports a confirmed fall followed by a confirmed rise.
func (a *Analyzer) DetectHollow(works []chart.Work) bool {
	return a.detectInversion(works, chart.TrendDownward, chart.TrendUpward, a.cfg.IgnoreBigPumpWhenBuying)
}

// DetectBump reports a confirmed rise followed by a confirmed fall.
func (a *Analyzer) DetectBump(works []chart.Work) bool {
	return a.detectInversion(works, chart.TrendUpward, chart.TrendDownward, a.cfg.IgnoreBigDumpWhenSelling)
}

// DetectProfitablePump reports whether some observation sits at or above the
// fee-adjusted break-even price of buyPrice while confirming a rise.
func (a *Analyzer) DetectProfitablePump(works []chart.Work, buyPrice, feeRate float64) (bool, error) {
	threshold, err := equation.ThresholdPriceOfProfitability(buyPrice, 0, feeRate)
	if err != nil {
		return false, err
	}
	for i := range works {
		if works[i].Price >= threshold && a.confirmedAt(chart.TrendUpward, works, i) {
			return true, nil
		}
	}
	return false, nil
}

func (a *Analyzer) detectInversion(works []chart.Work, first, second chart.Trend, vetoViolent bool) bool {
	firstAt := -1
	for i := range works {
		if firstAt < 0 {
			if a.confirmedAt(first, works, i) {
				firstAt = i
			}
			continue
		}
		if !a.confirmedAt(second, works, i) {
			continue
		}
		if vetoViolent && a.exceedsMaxInversion(works[i]) {
			continue
		}
		return true
	}
	return false
}

func (a *Analyzer) confirmedAt(direction chart.Trend, works []chart.Work, i int) bool {
	if a.bigMove(direction, works[i]) {
		return true
	}

	required := a.requiredPoints(direction)
	count := 0
	for j := i; j >= 0; j-- {
		switch works[j].Trend {
		case chart.TrendFlat:
			continue
		case direction:
			count++
			if count >= required {
				return true
			}
		default:
			return false
		}
	}
	return false
}

func (a *Analyzer) bigMove(direction chart.Trend, w chart.Work) bool {
	if w.Trend != direction || w.LastPrice <= 0 {
		return false
	}
	switch direction {
	case chart.TrendUpward:
		if !a.cfg.ValidatePumpWhenBigPumpIsDetected {
			return false
		}
	case chart.TrendDownward:
		if !a.cfg.ValidateDumpWhenBigDumpIsDetected {
			return false
		}
	default:
		return false
	}
	return math.Abs(equation.RateBetweenValues(w.LastPrice, w.Price)) > a.cfg.ThresholdRateToApproveInversion
}

func (a *Analyzer) exceedsMaxInversion(w chart.Work) bool {
	if w.LastPrice <= 0 || a.cfg.ThresholdMaxRateToApproveInversion <= 0 {
		return false
	}
	return math.Abs(equation.RateBetweenValues(w.LastPrice, w.Price)) > a.cfg.ThresholdMaxRateToApproveInversion
}

func (a *Analyzer) requiredPoints(direction chart.Trend) int {
	if direction == chart.TrendUpward {
		return a.cfg.NumberOfUpPointsToValidatePump
	}
	return a.cfg.NumberOfDownPointsToValidateDump
}

func indexByID(works []chart.Work) map[int64]int {
	index := make(map[int64]int, len(works))
	for i, w := range works {
		index[w.ID] = i
	}
	return index
}
