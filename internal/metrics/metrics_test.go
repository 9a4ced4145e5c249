package metrics_test

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/riskengine/internal/metrics"
	"github.com/quantforge/riskengine/pkg/types"
)

func makeCurve(values ...float64) []types.EquityPoint {
	curve := make([]types.EquityPoint, len(values))
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		curve[i] = types.EquityPoint{
			Timestamp: start.AddDate(0, 0, i),
			Value:     decimal.NewFromFloat(v),
		}
	}
	return curve
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestReturns(t *testing.T) {
	returns := metrics.Returns(makeCurve(100, 110, 99))
	if len(returns) != 2 {
		t.Fatalf("Expected 2 returns, got %d", len(returns))
	}
	if !almostEqual(returns[0], 0.1) {
		t.Errorf("First return: expected 0.1, got %f", returns[0])
	}
	if !almostEqual(returns[1], -0.1) {
		t.Errorf("Second return: expected -0.1, got %f", returns[1])
	}

	if metrics.Returns(makeCurve(100)) != nil {
		t.Error("Single point curve should yield no returns")
	}
}

func TestSharpeFlatSeries(t *testing.T) {
	if s := metrics.Sharpe([]float64{0.01, 0.01, 0.01}); s != 0 {
		t.Errorf("Zero-variance series should yield Sharpe 0, got %f", s)
	}
	if s := metrics.Sharpe(nil); s != 0 {
		t.Errorf("Empty series should yield Sharpe 0, got %f", s)
	}
}

func TestSharpeSign(t *testing.T) {
	up := metrics.Sharpe([]float64{0.01, 0.02, 0.015, 0.01})
	if up <= 0 {
		t.Errorf("All-positive returns should yield positive Sharpe, got %f", up)
	}
	down := metrics.Sharpe([]float64{-0.01, -0.02, -0.015, -0.01})
	if down >= 0 {
		t.Errorf("All-negative returns should yield negative Sharpe, got %f", down)
	}
}

func TestSortino(t *testing.T) {
	if s := metrics.Sortino([]float64{0.01, 0.02, 0.03}, 0); s != 0 {
		t.Errorf("No downside observations should yield Sortino 0, got %f", s)
	}
	s := metrics.Sortino([]float64{0.02, -0.01, -0.03}, 0)
	if s >= 0 {
		t.Errorf("Net-negative series should yield negative Sortino, got %f", s)
	}
}

func TestMaxDrawdown(t *testing.T) {
	dd := metrics.MaxDrawdown([]float64{100, 120, 90, 130, 80})
	expected := (80.0 - 130.0) / 130.0
	if !almostEqual(dd, expected) {
		t.Errorf("MaxDrawdown: expected %f, got %f", expected, dd)
	}

	if dd := metrics.MaxDrawdown([]float64{100, 110, 120}); dd != 0 {
		t.Errorf("Monotonic series should yield drawdown 0, got %f", dd)
	}
	if dd := metrics.MaxDrawdown(nil); dd != 0 {
		t.Errorf("Empty series should yield drawdown 0, got %f", dd)
	}
}

func TestAnnualizedReturnFloor(t *testing.T) {
	// 5 bars floors the elapsed time at 0.1 years.
	got := metrics.AnnualizedReturn(0.01, 5)
	expected := math.Pow(1.01, 10) - 1
	if !almostEqual(got, expected) {
		t.Errorf("AnnualizedReturn: expected %f, got %f", expected, got)
	}

	// A full year of bars annualizes to itself.
	got = metrics.AnnualizedReturn(0.10, 252)
	if !almostEqual(got, 0.10) {
		t.Errorf("Full-year return should be unchanged, got %f", got)
	}
}

func TestVaRInterpolation(t *testing.T) {
	returns := []float64{0.01, -0.05, 0.03, -0.02, -0.01}
	got := metrics.VaR(returns, 0.95)
	// Sorted: -0.05 -0.02 -0.01 0.01 0.03; q=0.05 -> pos 0.2.
	expected := -0.05*0.8 + -0.02*0.2
	if !almostEqual(got, expected) {
		t.Errorf("VaR: expected %f, got %f", expected, got)
	}
}

func TestVaRTailBehavior(t *testing.T) {
	// With meaningful negative mass the interpolated 5% quantile sits
	// in the loss tail.
	mostlyNegative := []float64{-0.05, -0.04, -0.03, -0.02, -0.01, 0.01}
	got := metrics.VaR(mostlyNegative, 0.95)
	// Sorted tail: pos 0.25 between -0.05 and -0.04.
	expected := -0.05*0.75 + -0.04*0.25
	if !almostEqual(got, expected) {
		t.Errorf("VaR: expected %f, got %f", expected, got)
	}
	if got > 0 {
		t.Errorf("VaR on a mostly-negative series must not be positive, got %f", got)
	}
	if cv := metrics.CVaR(mostlyNegative, 0.95); cv > got {
		t.Errorf("CVaR %f must not exceed VaR %f", cv, got)
	}

	// When losses are rarer than the tail probability the quantile
	// lands in the positive mass: VaR is a distribution statistic, not
	// a worst-case bound.
	rareLoss := make([]float64, 100)
	for i := range rareLoss {
		rareLoss[i] = 0.01
	}
	rareLoss[0] = -0.10
	if got := metrics.VaR(rareLoss, 0.95); got <= 0 {
		t.Errorf("Sub-tail negative mass should yield the bulk quantile, got %f", got)
	}
}

func TestCVaRNotAboveVaR(t *testing.T) {
	returns := []float64{0.01, -0.05, 0.03, -0.02, -0.01, 0.02, -0.04, 0.005}
	v := metrics.VaR(returns, 0.95)
	cv := metrics.CVaR(returns, 0.95)
	if cv > v {
		t.Errorf("CVaR %f must not exceed VaR %f", cv, v)
	}

	if metrics.CVaR(nil, 0.95) != 0 {
		t.Error("Empty series should yield CVaR 0")
	}
}

func TestDrawdownPeriodsMonotonic(t *testing.T) {
	periods := metrics.DrawdownPeriods(makeCurve(100, 101, 102, 103, 104))
	if len(periods) != 0 {
		t.Errorf("Monotonic curve should yield no drawdown periods, got %d", len(periods))
	}
}

func TestDrawdownPeriodsClosed(t *testing.T) {
	periods := metrics.DrawdownPeriods(makeCurve(100, 95, 90, 97, 101, 102))
	if len(periods) != 1 {
		t.Fatalf("Expected 1 drawdown period, got %d", len(periods))
	}
	p := periods[0]
	if p.Open {
		t.Error("Recovered period should not be open")
	}
	if !almostEqual(p.Depth, -0.1) {
		t.Errorf("Depth: expected -0.1, got %f", p.Depth)
	}
	if p.Bars != 3 {
		t.Errorf("Bars: expected 3, got %d", p.Bars)
	}
}

func TestDrawdownPeriodsOpenTail(t *testing.T) {
	periods := metrics.DrawdownPeriods(makeCurve(100, 105, 95, 90, 92))
	if len(periods) != 1 {
		t.Fatalf("Expected 1 drawdown period, got %d", len(periods))
	}
	if !periods[0].Open {
		t.Error("Unrecovered tail period should be reported open")
	}
	if !almostEqual(periods[0].Depth, (90.0-105.0)/105.0) {
		t.Errorf("Depth: got %f", periods[0].Depth)
	}
}

func TestCalmar(t *testing.T) {
	if c := metrics.Calmar([]float64{0.01, 0.01, 0.01}); c != 0 {
		t.Errorf("Drawdown-free series should yield Calmar 0, got %f", c)
	}
	c := metrics.Calmar([]float64{0.05, -0.1, 0.08, 0.02, -0.03, 0.06})
	if c == 0 {
		t.Error("Series with drawdown and growth should yield non-zero Calmar")
	}
}

func TestStdDev(t *testing.T) {
	if s := metrics.StdDev([]float64{1}); s != 0 {
		t.Errorf("Single observation should yield stddev 0, got %f", s)
	}
	// Sample stddev of {2, 4} is sqrt(2).
	if s := metrics.StdDev([]float64{2, 4}); !almostEqual(s, math.Sqrt2) {
		t.Errorf("StdDev: expected sqrt(2), got %f", s)
	}
}
