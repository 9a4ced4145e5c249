// Package metrics provides pure performance and risk statistics over
// return and equity series. Every function is total over valid input:
// degenerate cases (zero variance, empty tails, flat curves) resolve to
// a zero sentinel instead of an error or NaN.
package metrics

import (
	"math"
	"sort"

	"github.com/quantforge/riskengine/pkg/types"
)

// TradingDaysPerYear is the bar-count annualization convention.
const TradingDaysPerYear = 252

// drawdownOpenTolerance is the depth below the running peak at which a
// drawdown period opens (0.1% of peak).
const drawdownOpenTolerance = -0.001

// Returns derives the simple return series from an equity curve:
// r_i = (V_i - V_{i-1}) / V_{i-1}. Points following a zero value are
// skipped to keep the series finite.
func Returns(curve []types.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value.InexactFloat64()
		if prev == 0 {
			continue
		}
		curr := curve[i].Value.InexactFloat64()
		returns = append(returns, (curr-prev)/prev)
	}
	return returns
}

// Mean returns the arithmetic mean, 0 for an empty series.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation (n-1 denominator),
// 0 when fewer than two observations exist.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}

// Sharpe returns the annualized Sharpe ratio at a zero risk-free rate:
// mean(r) / stdev(r) * sqrt(252). Defined as 0 for a flat series.
func Sharpe(returns []float64) float64 {
	std := StdDev(returns)
	if std == 0 {
		return 0
	}
	return Mean(returns) / std * math.Sqrt(TradingDaysPerYear)
}

// Sortino returns (mean(r) - target) / stdev(r | r < target).
// Defined as 0 when no downside observations exist or the downside
// deviation is zero.
func Sortino(returns []float64, target float64) float64 {
	var downside []float64
	for _, r := range returns {
		if r < target {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return 0
	}
	std := StdDev(downside)
	if std == 0 {
		return 0
	}
	return (Mean(returns) - target) / std
}

// MaxDrawdown returns the minimum fractional decline from the running
// peak: min over i of (V_i - peak_i) / peak_i. Always <= 0.
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	minDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak != 0 {
			dd := (v - peak) / peak
			if dd < minDD {
				minDD = dd
			}
		}
	}
	return minDD
}

// AnnualizedReturn converts a total return over the given bar count to
// an annual rate using the 252-bar convention. The elapsed-year
// denominator is floored at 0.1 so short series do not blow up the
// exponent.
func AnnualizedReturn(totalReturn float64, bars int) float64 {
	if bars <= 0 {
		return 0
	}
	years := float64(bars) / TradingDaysPerYear
	if years < 0.1 {
		years = 0.1
	}
	return math.Pow(1+totalReturn, 1/years) - 1
}

// Calmar returns annualized return over max drawdown magnitude,
// computed from a compounded growth curve of the return series.
// Defined as 0 when the drawdown is zero.
func Calmar(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	cumulative := make([]float64, len(returns))
	growth := 1.0
	for i, r := range returns {
		growth *= 1 + r
		cumulative[i] = growth
	}
	maxDD := math.Abs(MaxDrawdown(cumulative))
	if maxDD == 0 {
		return 0
	}
	final := cumulative[len(cumulative)-1]
	if final <= 0 {
		return 0
	}
	annual := math.Pow(final, TradingDaysPerYear/float64(len(returns))) - 1
	return annual / maxDD
}

// VaR returns the (1-confidence) quantile of the return distribution
// with linear interpolation between order statistics. A loss measure,
// reported as a signed return (negative for losses).
func VaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	return quantile(sorted, 1-confidence)
}

// CVaR returns the mean of all returns at or below VaR(confidence).
// Always <= VaR, or equal when the tail is a single point.
func CVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	threshold := VaR(returns, confidence)
	var sum float64
	var n int
	for _, r := range returns {
		if r <= threshold {
			sum += r
			n++
		}
	}
	if n == 0 {
		return threshold
	}
	return sum / float64(n)
}

// quantile interpolates the q-quantile of an ascending-sorted series.
func quantile(sorted []float64, q float64) float64 {
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	weight := pos - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// DrawdownSeries returns the fractional drawdown from the running peak
// at every point of the equity curve.
func DrawdownSeries(curve []types.EquityPoint) []float64 {
	dd := make([]float64, len(curve))
	var peak float64
	for i, p := range curve {
		v := p.Value.InexactFloat64()
		if i == 0 || v > peak {
			peak = v
		}
		if peak != 0 {
			dd[i] = (v - peak) / peak
		}
	}
	return dd
}

// DrawdownPeriods extracts every maximal drawdown period from the
// equity curve. A period opens when drawdown first drops below the
// 0.1% tolerance and closes on the first bar where drawdown recovers
// to >= 0. An unterminated period at sequence end is reported with
// Open set rather than dropped.
func DrawdownPeriods(curve []types.EquityPoint) []types.DrawdownPeriod {
	dd := DrawdownSeries(curve)

	var periods []types.DrawdownPeriod
	inDrawdown := false
	start := 0

	for i := range dd {
		switch {
		case dd[i] < drawdownOpenTolerance && !inDrawdown:
			inDrawdown = true
			start = i
		case dd[i] >= 0 && inDrawdown:
			inDrawdown = false
			periods = append(periods, types.DrawdownPeriod{
				Start: curve[start].Timestamp,
				End:   curve[i].Timestamp,
				Depth: minOf(dd[start:i]),
				Bars:  i - start,
			})
		}
	}

	if inDrawdown {
		last := len(curve) - 1
		periods = append(periods, types.DrawdownPeriod{
			Start: curve[start].Timestamp,
			End:   curve[last].Timestamp,
			Depth: minOf(dd[start:]),
			Bars:  last - start,
			Open:  true,
		})
	}

	return periods
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
