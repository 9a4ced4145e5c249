// Package strategy provides the reference signal generators used by the
// backtest and stress pipelines. A strategy is any function from a
// price series to an index-aligned signal series; the generators here
// are deliberately simple and fully deterministic.
package strategy

import (
	"github.com/quantforge/riskengine/pkg/types"
)

// SMACross is a simple-moving-average crossover generator: Buy when the
// short average crosses above the long one, Sell when it crosses below,
// Hold otherwise. Bars inside the warm-up window are always Hold.
type SMACross struct {
	short int
	long  int
}

// NewSMACross creates a crossover generator. Windows are swapped if
// given out of order; non-positive windows fall back to 10/30.
func NewSMACross(short, long int) *SMACross {
	if short <= 0 || long <= 0 {
		short, long = 10, 30
	}
	if short > long {
		short, long = long, short
	}
	return &SMACross{short: short, long: long}
}

// Signals produces a signal series aligned with prices. The output
// always has the same length as the input.
func (s *SMACross) Signals(prices []types.PriceBar) []types.Signal {
	signals := make([]types.Signal, len(prices))
	if len(prices) <= s.long {
		return signals
	}

	closes := make([]float64, len(prices))
	for i, bar := range prices {
		closes[i] = bar.Close.InexactFloat64()
	}

	shortMA := rollingMean(closes, s.short)
	longMA := rollingMean(closes, s.long)

	for i := s.long; i < len(prices); i++ {
		above := shortMA[i] > longMA[i]
		wasAbove := shortMA[i-1] > longMA[i-1]
		switch {
		case above && !wasAbove:
			signals[i] = types.SignalBuy
		case !above && wasAbove:
			signals[i] = types.SignalSell
		}
	}
	return signals
}

// BuyAndHold buys on the first bar and never exits. Useful as a
// baseline under stress scenarios.
func BuyAndHold(prices []types.PriceBar) []types.Signal {
	signals := make([]types.Signal, len(prices))
	if len(signals) > 0 {
		signals[0] = types.SignalBuy
	}
	return signals
}

// rollingMean computes trailing window means. Positions before a full
// window use the mean of the available prefix.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		n := window
		if i+1 < window {
			n = i + 1
		} else if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(n)
	}
	return out
}
