package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quantforge/riskengine/internal/config"
	"github.com/quantforge/riskengine/pkg/types"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	bt := types.DefaultBacktestConfig()
	if !cfg.Backtest.InitialCapital.Equal(bt.InitialCapital) {
		t.Errorf("InitialCapital: expected %s, got %s", bt.InitialCapital, cfg.Backtest.InitialCapital)
	}
	if !cfg.Backtest.CommissionRate.Equal(bt.CommissionRate) {
		t.Errorf("CommissionRate: expected %s, got %s", bt.CommissionRate, cfg.Backtest.CommissionRate)
	}
	if cfg.Backtest.VaRConfidence != 0.95 {
		t.Errorf("VaRConfidence: expected 0.95, got %f", cfg.Backtest.VaRConfidence)
	}

	ks := types.DefaultKillSwitchConfig()
	if cfg.KillSwitch != ks {
		t.Errorf("KillSwitch defaults wrong: %+v", cfg.KillSwitch)
	}
	if cfg.Anomaly != types.DefaultAnomalyConfig() {
		t.Errorf("Anomaly defaults wrong: %+v", cfg.Anomaly)
	}
	if cfg.AutoStop != types.DefaultAutoStopConfig() {
		t.Errorf("AutoStop defaults wrong: %+v", cfg.AutoStop)
	}
	if cfg.Server != types.DefaultServerConfig() {
		t.Errorf("Server defaults wrong: %+v", cfg.Server)
	}
	if cfg.StressSeed != 42 {
		t.Errorf("StressSeed: expected 42, got %d", cfg.StressSeed)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "riskengine.yaml")
	content := []byte(`
backtest:
  initial_capital: 50000
  commission_rate: 0.002
kill_switch:
  max_drawdown_limit: -0.10
stress:
  seed: 7
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backtest.InitialCapital.InexactFloat64() != 50000 {
		t.Errorf("InitialCapital override lost: %s", cfg.Backtest.InitialCapital)
	}
	if cfg.KillSwitch.MaxDrawdownLimit != -0.10 {
		t.Errorf("MaxDrawdownLimit override lost: %f", cfg.KillSwitch.MaxDrawdownLimit)
	}
	if cfg.StressSeed != 7 {
		t.Errorf("StressSeed override lost: %d", cfg.StressSeed)
	}
	// Untouched keys keep defaults.
	if cfg.KillSwitch.SpreadMultiplier != 3.0 {
		t.Errorf("SpreadMultiplier default lost: %f", cfg.KillSwitch.SpreadMultiplier)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RISKENGINE_STRESS_SEED", "99")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StressSeed != 99 {
		t.Errorf("Env override lost: %d", cfg.StressSeed)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("RISKENGINE_KILL_SWITCH_MAX_DRAWDOWN_LIMIT", "0.5")
	if _, err := config.Load(""); err == nil {
		t.Fatal("Positive drawdown limit should fail validation")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load("/nonexistent/riskengine.yaml"); err == nil {
		t.Fatal("Missing config file should fail")
	}
}
