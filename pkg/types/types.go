// Package types provides shared type definitions for the risk engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Signal is a discrete trade instruction aligned by index with a price series.
type Signal int8

const (
	SignalSell Signal = -1
	SignalHold Signal = 0
	SignalBuy  Signal = 1
)

// ParseSignal converts the external {-1, 0, 1} encoding into a Signal.
// Unknown values are reported via ok=false.
func ParseSignal(v int) (Signal, bool) {
	switch v {
	case -1:
		return SignalSell, true
	case 0:
		return SignalHold, true
	case 1:
		return SignalBuy, true
	default:
		return SignalHold, false
	}
}

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	default:
		return "hold"
	}
}

// PositionState tracks the engine's long-only position state machine.
type PositionState int8

const (
	PositionFlat PositionState = iota
	PositionLong
)

func (p PositionState) String() string {
	if p == PositionLong {
		return "long"
	}
	return "flat"
}

// PriceBar is a single OHLCV observation. Bars are immutable once
// constructed and always appear in strictly increasing timestamp order.
type PriceBar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Trade is one closed round trip. Created on a Long->Flat transition and
// never mutated afterwards.
type Trade struct {
	EntryTime  time.Time       `json:"entryTime"`
	ExitTime   time.Time       `json:"exitTime"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	ExitPrice  decimal.Decimal `json:"exitPrice"`
	Quantity   decimal.Decimal `json:"quantity"`
	GrossPnL   decimal.Decimal `json:"grossPnl"`
	Commission decimal.Decimal `json:"commission"` // round trip: entry + exit leg
	PnLPct     decimal.Decimal `json:"pnlPct"`
}

// EquityPoint is one point on the equity curve, aligned 1:1 with the
// input bar at the same index.
type EquityPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
}

// PerformanceMetrics is the flat metrics record derived from an equity
// curve plus a trade list. It is recomputed as a whole, never patched.
type PerformanceMetrics struct {
	TotalReturn      float64 `json:"totalReturn"`
	AnnualizedReturn float64 `json:"annualizedReturn"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	SortinoRatio     float64 `json:"sortinoRatio"`
	CalmarRatio      float64 `json:"calmarRatio"`
	MaxDrawdown      float64 `json:"maxDrawdown"`
	VaR              float64 `json:"var"`
	CVaR             float64 `json:"cvar"`
	WinRate          float64 `json:"winRate"`
	ProfitFactor     float64 `json:"profitFactor"`
	AvgWin           float64 `json:"avgWin"`
	AvgLoss          float64 `json:"avgLoss"`
	TradeCount       int     `json:"tradeCount"`
	WinningTrades    int     `json:"winningTrades"`
	LosingTrades     int     `json:"losingTrades"`
}

// DrawdownPeriod is a maximal contiguous stretch where portfolio value
// sits below its running peak by more than the open tolerance.
type DrawdownPeriod struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Depth    float64   `json:"depth"` // negative fraction
	Bars     int       `json:"bars"`
	Open     bool      `json:"open"` // unterminated at sequence end
}

// AlertLevel grades monitoring alerts.
type AlertLevel int

const (
	AlertInfo AlertLevel = iota + 1
	AlertWarning
	AlertCritical
	AlertKillSwitch
)

func (l AlertLevel) String() string {
	switch l {
	case AlertInfo:
		return "info"
	case AlertWarning:
		return "warning"
	case AlertCritical:
		return "critical"
	case AlertKillSwitch:
		return "kill_switch"
	default:
		return "unknown"
	}
}

// Alert is one entry in the append-only monitoring alert log.
type Alert struct {
	Timestamp time.Time  `json:"timestamp"`
	Level     AlertLevel `json:"level"`
	Message   string     `json:"message"`
	Check     string     `json:"check"` // originating check
	Value     float64    `json:"value,omitempty"`
}

// HaltStatus is the monitoring session's trading state.
type HaltStatus string

const (
	HaltStatusNormal HaltStatus = "normal"
	HaltStatusHalted HaltStatus = "halted"
)

// HaltState is a snapshot of the kill-switch state. Reason holds the
// first condition that tripped; Reasons lists every condition that was
// true on the triggering tick.
type HaltState struct {
	Status          HaltStatus `json:"status"`
	Reason          string     `json:"reason,omitempty"`
	Reasons         []string   `json:"reasons,omitempty"`
	TriggeredAt     time.Time  `json:"triggeredAt,omitempty"`
	CooldownUntil   time.Time  `json:"cooldownUntil,omitempty"`
	Recommendations []string   `json:"recommendations,omitempty"`
}

// Halted reports whether trading is halted.
func (h HaltState) Halted() bool { return h.Status == HaltStatusHalted }
