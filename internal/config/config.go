// Package config loads engine parameters from an optional YAML file
// with environment variable overrides. Every parameter has a default,
// so an empty environment yields a fully working configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/quantforge/riskengine/pkg/types"
)

// Config is the full parameter set for a risk engine run.
type Config struct {
	Backtest   types.BacktestConfig
	KillSwitch types.KillSwitchConfig
	Anomaly    types.AnomalyConfig
	AutoStop   types.AutoStopConfig
	Server     types.ServerConfig

	// StressSeed is the base seed for scenario perturbation; each
	// scenario derives its own seed from it.
	StressSeed int64

	LogLevel string
}

// Load reads configuration from path (optional, YAML) and the
// RISKENGINE_* environment, layered over the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("RISKENGINE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Backtest: types.BacktestConfig{
			InitialCapital:       decimal.NewFromFloat(v.GetFloat64("backtest.initial_capital")),
			CommissionRate:       decimal.NewFromFloat(v.GetFloat64("backtest.commission_rate")),
			PositionSizeFraction: decimal.NewFromFloat(v.GetFloat64("backtest.position_size_fraction")),
			VaRConfidence:        v.GetFloat64("backtest.var_confidence"),
		},
		KillSwitch: types.KillSwitchConfig{
			MaxDrawdownLimit: v.GetFloat64("kill_switch.max_drawdown_limit"),
			SpreadMultiplier: v.GetFloat64("kill_switch.spread_multiplier"),
			VolumeLookback:   v.GetInt("kill_switch.volume_lookback"),
			HaltCooldown:     v.GetDuration("kill_switch.halt_cooldown"),
		},
		Anomaly: types.AnomalyConfig{
			GapThreshold:         v.GetFloat64("anomaly.gap_threshold"),
			LimitMoveThreshold:   v.GetFloat64("anomaly.limit_move_threshold"),
			VolumeCollapseRatio:  v.GetFloat64("anomaly.volume_collapse_ratio"),
			VolumeSpikeRatio:     v.GetFloat64("anomaly.volume_spike_ratio"),
			SpreadExpansionRatio: v.GetFloat64("anomaly.spread_expansion_ratio"),
			RecentWindow:         v.GetInt("anomaly.recent_window"),
			TrailingWindow:       v.GetInt("anomaly.trailing_window"),
		},
		AutoStop: types.AutoStopConfig{
			MaxConsecutiveLosses: v.GetInt("auto_stop.max_consecutive_losses"),
			MaxIntradayLoss:      v.GetFloat64("auto_stop.max_intraday_loss"),
			EquityFloorFraction:  v.GetFloat64("auto_stop.equity_floor_fraction"),
		},
		Server: types.ServerConfig{
			Host:         v.GetString("server.host"),
			Port:         v.GetInt("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		StressSeed: v.GetInt64("stress.seed"),
		LogLevel:   v.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !c.Backtest.InitialCapital.IsPositive() {
		return fmt.Errorf("backtest.initial_capital must be positive")
	}
	if c.Backtest.VaRConfidence <= 0 || c.Backtest.VaRConfidence >= 1 {
		return fmt.Errorf("backtest.var_confidence must be in (0, 1)")
	}
	if c.KillSwitch.MaxDrawdownLimit >= 0 {
		return fmt.Errorf("kill_switch.max_drawdown_limit must be negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	bt := types.DefaultBacktestConfig()
	v.SetDefault("backtest.initial_capital", bt.InitialCapital.InexactFloat64())
	v.SetDefault("backtest.commission_rate", bt.CommissionRate.InexactFloat64())
	v.SetDefault("backtest.position_size_fraction", bt.PositionSizeFraction.InexactFloat64())
	v.SetDefault("backtest.var_confidence", bt.VaRConfidence)

	ks := types.DefaultKillSwitchConfig()
	v.SetDefault("kill_switch.max_drawdown_limit", ks.MaxDrawdownLimit)
	v.SetDefault("kill_switch.spread_multiplier", ks.SpreadMultiplier)
	v.SetDefault("kill_switch.volume_lookback", ks.VolumeLookback)
	v.SetDefault("kill_switch.halt_cooldown", ks.HaltCooldown)

	an := types.DefaultAnomalyConfig()
	v.SetDefault("anomaly.gap_threshold", an.GapThreshold)
	v.SetDefault("anomaly.limit_move_threshold", an.LimitMoveThreshold)
	v.SetDefault("anomaly.volume_collapse_ratio", an.VolumeCollapseRatio)
	v.SetDefault("anomaly.volume_spike_ratio", an.VolumeSpikeRatio)
	v.SetDefault("anomaly.spread_expansion_ratio", an.SpreadExpansionRatio)
	v.SetDefault("anomaly.recent_window", an.RecentWindow)
	v.SetDefault("anomaly.trailing_window", an.TrailingWindow)

	as := types.DefaultAutoStopConfig()
	v.SetDefault("auto_stop.max_consecutive_losses", as.MaxConsecutiveLosses)
	v.SetDefault("auto_stop.max_intraday_loss", as.MaxIntradayLoss)
	v.SetDefault("auto_stop.equity_floor_fraction", as.EquityFloorFraction)

	srv := types.DefaultServerConfig()
	v.SetDefault("server.host", srv.Host)
	v.SetDefault("server.port", srv.Port)
	v.SetDefault("server.read_timeout", srv.ReadTimeout)
	v.SetDefault("server.write_timeout", srv.WriteTimeout)

	v.SetDefault("stress.seed", 42)
	v.SetDefault("log.level", "info")
}
