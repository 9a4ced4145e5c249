// Package main provides the entry point for the risk engine: it runs a
// backtest over a price series, replays the series through the stress
// scenarios and the risk monitor, and optionally serves the ops API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quantforge/riskengine/internal/api"
	"github.com/quantforge/riskengine/internal/backtest"
	"github.com/quantforge/riskengine/internal/config"
	"github.com/quantforge/riskengine/internal/data"
	"github.com/quantforge/riskengine/internal/monitor"
	"github.com/quantforge/riskengine/internal/regime"
	"github.com/quantforge/riskengine/internal/strategy"
	"github.com/quantforge/riskengine/internal/stress"
	"github.com/quantforge/riskengine/internal/telemetry"
	"github.com/quantforge/riskengine/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "Config file path (YAML, optional)")
	csvPath := flag.String("csv", "", "Price series CSV file (sample data when empty)")
	sampleBars := flag.Int("sample-bars", 500, "Bars of sample data when no CSV is given")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	serve := flag.Bool("serve", false, "Keep running and serve the ops API")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel == "" {
		*logLevel = cfg.LogLevel
	}

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	logger.Info("starting risk engine",
		zap.String("config", *configPath),
		zap.String("csv", *csvPath),
		zap.Bool("serve", *serve),
	)

	// Load or generate the price series.
	var bars []types.PriceBar
	if *csvPath != "" {
		bars, err = data.LoadCSV(logger, *csvPath)
		if err != nil {
			logger.Fatal("loading price series", zap.Error(err))
		}
	} else {
		bars = data.SampleSeries(*sampleBars, cfg.StressSeed)
		logger.Info("using generated sample series", zap.Int("bars", len(bars)))
	}

	registry := prometheus.NewRegistry()
	tm := telemetry.New(registry)

	// Backtest the reference strategy.
	strat := strategy.NewSMACross(10, 30)
	engine := backtest.NewEngine(logger, cfg.Backtest)

	start := time.Now()
	result, err := engine.Run(bars, strat.Signals(bars))
	if err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}
	tm.ObserveBacktest(time.Since(start).Seconds())
	printPerformance(result.Metrics)

	classification := regime.Classify(bars, 20)
	logger.Info("market regime",
		zap.String("regime", string(classification.Regime)),
		zap.Float64("confidence", classification.Confidence),
	)

	// Stress test the same strategy across all scenarios.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := stress.NewOrchestrator(logger, cfg.Backtest, cfg.StressSeed, tm)
	report, err := orch.RunAll(ctx, bars, strat.Signals, nil)
	if err != nil {
		logger.Fatal("stress test failed", zap.Error(err))
	}
	printStressReport(report)

	// Replay the series through the monitoring session.
	session := monitor.NewSession(logger, cfg.KillSwitch, cfg.Anomaly, cfg.AutoStop, tm)
	replayMonitor(session, bars, result.EquityCurve, trailingLosses(result.Trades))

	halt := session.HaltState()
	logger.Info("monitoring replay complete",
		zap.String("status", string(halt.Status)),
		zap.String("reason", halt.Reason),
		zap.Int("alerts", len(session.Alerts())),
	)

	if !*serve {
		return
	}

	server := api.NewServer(logger, cfg.Server, session, registry)
	server.SetPerformance(result.Metrics)
	server.SetStressReport(report)
	server.SetRegime(classification)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("ops server error", zap.Error(err))
		}
	}()

	logger.Info("ops API ready",
		zap.String("http", fmt.Sprintf("http://%s:%d/api/v1", cfg.Server.Host, cfg.Server.Port)),
		zap.String("ws", fmt.Sprintf("ws://%s:%d/ws/alerts", cfg.Server.Host, cfg.Server.Port)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}
	logger.Info("risk engine stopped")
}

// replayMonitor feeds the series to the session bar by bar, the way a
// live feed would, tracking the running peak for the drawdown input.
func replayMonitor(session *monitor.Session, bars []types.PriceBar, equity []types.EquityPoint, consecutiveLosses int) {
	peak := 0.0
	for i := 1; i <= len(bars); i++ {
		window := bars[:i]

		var drawdown float64
		if i <= len(equity) {
			v := equity[i-1].Value.InexactFloat64()
			if v > peak {
				peak = v
			}
			if peak > 0 {
				drawdown = (v - peak) / peak
			}
		}

		session.ScanAnomalies(window)
		if state := session.EvaluateTick(window, drawdown); state.Halted() {
			break
		}
	}
	session.EvaluateAutoStop(equity, consecutiveLosses)
}

// trailingLosses counts losing trades at the tail of the trade log.
func trailingLosses(trades []types.Trade) int {
	n := 0
	for i := len(trades) - 1; i >= 0; i-- {
		if trades[i].GrossPnL.Sub(trades[i].Commission).IsNegative() {
			n++
			continue
		}
		break
	}
	return n
}

func printPerformance(m types.PerformanceMetrics) {
	fmt.Println("=== Backtest Performance ===")
	fmt.Printf("  Total return:      %8.2f%%\n", m.TotalReturn*100)
	fmt.Printf("  Annualized return: %8.2f%%\n", m.AnnualizedReturn*100)
	fmt.Printf("  Sharpe ratio:      %8.2f\n", m.SharpeRatio)
	fmt.Printf("  Sortino ratio:     %8.2f\n", m.SortinoRatio)
	fmt.Printf("  Calmar ratio:      %8.2f\n", m.CalmarRatio)
	fmt.Printf("  Max drawdown:      %8.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("  VaR (95%%):         %8.4f\n", m.VaR)
	fmt.Printf("  CVaR (95%%):        %8.4f\n", m.CVaR)
	fmt.Printf("  Trades:            %8d  (win rate %.1f%%)\n", m.TradeCount, m.WinRate*100)
	fmt.Printf("  Profit factor:     %8.2f\n", m.ProfitFactor)
}

func printStressReport(r *stress.Report) {
	fmt.Println("=== Stress Scenarios ===")
	for _, scenario := range stress.AllScenarios() {
		s, ok := r.Results[scenario]
		if !ok {
			continue
		}
		fmt.Printf("  %-22s sharpe %7.2f  maxDD %7.2f%%  return %7.2f%%  trades %d\n",
			s.Scenario, s.Sharpe, s.MaxDrawdown*100, s.TotalReturn*100, s.TradeCount)
	}
	fmt.Printf("  most resilient:  %s\n", r.MostResilient)
	fmt.Printf("  most vulnerable: %s\n", r.MostVulnerable)
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
