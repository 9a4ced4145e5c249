// Package stress provides synthetic adverse-market transforms and the
// orchestrator that replays a strategy against each of them.
package stress

import (
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/quantforge/riskengine/pkg/types"
)

// Scenario names one member of the closed set of stress transforms.
type Scenario string

const (
	ScenarioNormal               Scenario = "normal"
	ScenarioHighVolatility       Scenario = "high_volatility"
	ScenarioFlashCrash           Scenario = "flash_crash"
	ScenarioLimitDown            Scenario = "limit_down"
	ScenarioIlliquid             Scenario = "illiquid"
	ScenarioCorrelationBreakdown Scenario = "correlation_breakdown"
)

// AllScenarios returns the full scenario set in canonical order.
func AllScenarios() []Scenario {
	return []Scenario{
		ScenarioNormal,
		ScenarioHighVolatility,
		ScenarioFlashCrash,
		ScenarioLimitDown,
		ScenarioIlliquid,
		ScenarioCorrelationBreakdown,
	}
}

// ParseScenario maps a configuration name onto a Scenario.
func ParseScenario(name string) (Scenario, bool) {
	for _, s := range AllScenarios() {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

// correlationShocks is the discrete per-bar multiplier set for the
// correlation-breakdown scenario.
var correlationShocks = []float64{0.95, 0.96, 1.00, 1.04, 1.05}

// Perturb applies the named transform to the price series and returns a
// new, independent series of identical length and timestamps. Every
// transform is deterministic for a given seed. OHLC ordering
// (high >= close >= low >= 0) is re-established by clamping after the
// transform. An unknown scenario tag is the only error case.
func Perturb(prices []types.PriceBar, scenario Scenario, seed int64) ([]types.PriceBar, error) {
	out := make([]types.PriceBar, len(prices))
	copy(out, prices)
	rng := rand.New(rand.NewSource(seed))

	switch scenario {
	case ScenarioNormal:
		// Identity.

	case ScenarioHighVolatility:
		for i := range out {
			closeNoise := 1 + rng.NormFloat64()*0.02
			highNoise := 1 + abs(rng.NormFloat64())*0.03
			lowNoise := 1 - abs(rng.NormFloat64())*0.03
			out[i].Close = out[i].Close.Mul(decimal.NewFromFloat(closeNoise))
			out[i].High = out[i].High.Mul(decimal.NewFromFloat(highNoise))
			out[i].Low = out[i].Low.Mul(decimal.NewFromFloat(lowNoise))
		}

	case ScenarioFlashCrash:
		// Short sharp drop about one-third in, partial rebound after.
		crash := len(out) / 3
		drop := decimal.NewFromFloat(0.95)
		rebound := decimal.NewFromFloat(1.02)
		for i := crash; i <= crash+5 && i < len(out); i++ {
			out[i].Close = out[i].Close.Mul(drop)
		}
		for i := crash + 5; i <= crash+10 && i < len(out); i++ {
			out[i].Close = out[i].Close.Mul(rebound)
		}

	case ScenarioLimitDown:
		mid := len(out) / 2
		if mid < len(out) {
			limit := decimal.NewFromFloat(0.90)
			out[mid].Close = out[mid].Close.Mul(limit)
			out[mid].Low = out[mid].Low.Mul(limit)
		}

	case ScenarioIlliquid:
		highWiden := decimal.NewFromFloat(1.02)
		lowWiden := decimal.NewFromFloat(0.98)
		volumeCut := decimal.NewFromFloat(0.3)
		for i := range out {
			out[i].High = out[i].High.Mul(highWiden)
			out[i].Low = out[i].Low.Mul(lowWiden)
			out[i].Volume = out[i].Volume.Mul(volumeCut)
		}

	case ScenarioCorrelationBreakdown:
		for i := range out {
			shock := correlationShocks[rng.Intn(len(correlationShocks))]
			out[i].Close = out[i].Close.Mul(decimal.NewFromFloat(shock))
		}

	default:
		return nil, fmt.Errorf("unknown stress scenario %q", scenario)
	}

	clampOHLC(out)
	return out, nil
}

// clampOHLC restores high >= close >= low >= 0 for every bar.
func clampOHLC(bars []types.PriceBar) {
	for i := range bars {
		if bars[i].Close.IsNegative() {
			bars[i].Close = decimal.Zero
		}
		if bars[i].Low.IsNegative() {
			bars[i].Low = decimal.Zero
		}
		if bars[i].Low.GreaterThan(bars[i].Close) {
			bars[i].Low = bars[i].Close
		}
		if bars[i].High.LessThan(bars[i].Close) {
			bars[i].High = bars[i].Close
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
