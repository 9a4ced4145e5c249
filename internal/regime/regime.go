// Package regime classifies the coarse behavior of a price series into
// one of four market regimes. The classification is advisory context
// for stress reports and monitoring dashboards; nothing in the engine
// branches on it.
package regime

import (
	"github.com/quantforge/riskengine/internal/metrics"
	"github.com/quantforge/riskengine/pkg/types"
)

// Regime labels the dominant market behavior over a lookback window.
type Regime string

const (
	RegimeFlat    Regime = "flat"
	RegimeUp      Regime = "trending_up"
	RegimeDown    Regime = "trending_down"
	RegimeChaos   Regime = "chaos"
	RegimeUnknown Regime = "unknown"
)

// Classification is a regime label with a confidence score in [0, 1]
// and the raw vote counts behind it.
type Classification struct {
	Regime     Regime         `json:"regime"`
	Confidence float64        `json:"confidence"`
	Scores     map[Regime]int `json:"scores"`
}

// Classify scores the last lookback bars on trailing volatility, trend
// strength, and volume behavior, and returns the regime with the most
// votes. Fewer than lookback+1 bars yields Unknown.
func Classify(bars []types.PriceBar, lookback int) Classification {
	if lookback <= 0 {
		lookback = 20
	}
	if len(bars) < lookback+1 {
		return Classification{Regime: RegimeUnknown, Scores: map[Regime]int{}}
	}

	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close.InexactFloat64()
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, bars[i].Close.InexactFloat64()/prev-1)
	}

	recentVol := metrics.StdDev(returns[len(returns)-lookback:])
	baselineVol := metrics.StdDev(returns)

	first := bars[len(bars)-1-lookback].Close.InexactFloat64()
	last := bars[len(bars)-1].Close.InexactFloat64()
	var trend float64
	if first != 0 {
		trend = (last - first) / first
	}

	scores := map[Regime]int{}

	if baselineVol > 0 {
		switch {
		case recentVol < 0.8*baselineVol:
			scores[RegimeFlat] += 2
		case recentVol > 1.5*baselineVol:
			scores[RegimeChaos] += 2
		}
	}

	if trend > 0.02 && recentVol <= 1.2*baselineVol {
		scores[RegimeUp] += 2
	}
	if trend < -0.02 && recentVol <= 1.2*baselineVol {
		scores[RegimeDown] += 2
	}

	if ratio, ok := volumeRatio(bars, lookback); ok {
		switch {
		case ratio > 1.5:
			scores[RegimeChaos]++
		case ratio < 0.7:
			scores[RegimeFlat]++
		}
	}

	best, total := RegimeUnknown, 0
	bestScore := 0
	for _, r := range []Regime{RegimeFlat, RegimeUp, RegimeDown, RegimeChaos} {
		total += scores[r]
		if scores[r] > bestScore {
			best, bestScore = r, scores[r]
		}
	}
	if total == 0 {
		return Classification{Regime: RegimeUnknown, Scores: scores}
	}
	return Classification{
		Regime:     best,
		Confidence: float64(bestScore) / float64(total),
		Scores:     scores,
	}
}

// volumeRatio compares the latest bar's volume to the trailing average.
func volumeRatio(bars []types.PriceBar, lookback int) (float64, bool) {
	if len(bars) < lookback+1 {
		return 0, false
	}
	var sum float64
	for _, b := range bars[len(bars)-1-lookback : len(bars)-1] {
		sum += b.Volume.InexactFloat64()
	}
	avg := sum / float64(lookback)
	if avg == 0 {
		return 0, false
	}
	return bars[len(bars)-1].Volume.InexactFloat64() / avg, true
}
