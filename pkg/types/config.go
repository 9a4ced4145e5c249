// Package types provides configuration types for the risk engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// BacktestConfig parameterizes one backtest run.
type BacktestConfig struct {
	InitialCapital       decimal.Decimal `json:"initialCapital"`
	CommissionRate       decimal.Decimal `json:"commissionRate"`       // per leg, in [0,1)
	PositionSizeFraction decimal.Decimal `json:"positionSizeFraction"` // of current cash, in (0,1]
	VaRConfidence        float64         `json:"varConfidence"`
}

// DefaultBacktestConfig returns the standard parameter set.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital:       decimal.NewFromInt(100000),
		CommissionRate:       decimal.NewFromFloat(0.001),
		PositionSizeFraction: decimal.NewFromFloat(0.1),
		VaRConfidence:        0.95,
	}
}

// KillSwitchConfig holds the hard halt thresholds.
type KillSwitchConfig struct {
	MaxDrawdownLimit float64       `json:"maxDrawdownLimit"` // negative fraction, e.g. -0.20
	SpreadMultiplier float64       `json:"spreadMultiplier"` // intraday range blow-out factor
	VolumeLookback   int           `json:"volumeLookback"`   // bars for trailing volume average
	HaltCooldown     time.Duration `json:"haltCooldown"`
}

// DefaultKillSwitchConfig returns the standard halt thresholds.
func DefaultKillSwitchConfig() KillSwitchConfig {
	return KillSwitchConfig{
		MaxDrawdownLimit: -0.20,
		SpreadMultiplier: 3.0,
		VolumeLookback:   5,
		HaltCooldown:     5 * time.Minute,
	}
}

// AnomalyConfig holds the market anomaly detection thresholds.
type AnomalyConfig struct {
	GapThreshold         float64 `json:"gapThreshold"`         // overnight gap fraction
	LimitMoveThreshold   float64 `json:"limitMoveThreshold"`   // intraday move fraction
	VolumeCollapseRatio  float64 `json:"volumeCollapseRatio"`  // recent/trailing floor
	VolumeSpikeRatio     float64 `json:"volumeSpikeRatio"`     // recent/trailing ceiling
	SpreadExpansionRatio float64 `json:"spreadExpansionRatio"` // bar range vs trailing average
	RecentWindow         int     `json:"recentWindow"`
	TrailingWindow       int     `json:"trailingWindow"`
}

// DefaultAnomalyConfig returns the standard anomaly thresholds.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		GapThreshold:         0.05,
		LimitMoveThreshold:   0.098,
		VolumeCollapseRatio:  0.3,
		VolumeSpikeRatio:     3.0,
		SpreadExpansionRatio: 2.0,
		RecentWindow:         5,
		TrailingWindow:       30,
	}
}

// AutoStopConfig holds the lower-severity stop-trading rule limits.
type AutoStopConfig struct {
	MaxConsecutiveLosses int     `json:"maxConsecutiveLosses"`
	MaxIntradayLoss      float64 `json:"maxIntradayLoss"`      // negative fraction
	EquityFloorFraction  float64 `json:"equityFloorFraction"`  // of session-starting equity
}

// DefaultAutoStopConfig returns the standard stop-rule limits.
func DefaultAutoStopConfig() AutoStopConfig {
	return AutoStopConfig{
		MaxConsecutiveLosses: 5,
		MaxIntradayLoss:      -0.05,
		EquityFloorFraction:  0.90,
	}
}

// ServerConfig configures the ops API server.
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout"`
}

// DefaultServerConfig returns the standard server settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
