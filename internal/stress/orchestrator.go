package stress

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantforge/riskengine/internal/backtest"
	"github.com/quantforge/riskengine/internal/metrics"
	"github.com/quantforge/riskengine/internal/telemetry"
	"github.com/quantforge/riskengine/internal/workers"
	"github.com/quantforge/riskengine/pkg/types"
)

// StrategyFunc produces a signal series aligned by index with the given
// price series. It is invoked once per scenario on the perturbed bars
// and must not retain or mutate them.
type StrategyFunc func(prices []types.PriceBar) []types.Signal

// Summary condenses one scenario's backtest outcome.
type Summary struct {
	Scenario    Scenario `json:"scenario"`
	Sharpe      float64  `json:"sharpe"`
	MaxDrawdown float64  `json:"maxDrawdown"`
	AvgReturn   float64  `json:"avgReturn"`
	StdDev      float64  `json:"stdDev"`
	TotalReturn float64  `json:"totalReturn"`
	TradeCount  int      `json:"tradeCount"`
}

// Report aggregates all scenario outcomes. Ranking is by Sharpe ratio
// of each scenario's backtest, ties broken by smaller drawdown
// magnitude.
type Report struct {
	Results        map[Scenario]Summary `json:"results"`
	MostResilient  Scenario             `json:"mostResilient"`
	MostVulnerable Scenario             `json:"mostVulnerable"`
}

// Orchestrator replays one strategy against every stress scenario.
// Scenario backtests share no mutable state, so they run concurrently
// on a worker pool.
type Orchestrator struct {
	logger    *zap.Logger
	engine    *backtest.Engine
	seed      int64
	telemetry *telemetry.Metrics
}

// NewOrchestrator creates a stress test orchestrator. tm may be nil.
func NewOrchestrator(logger *zap.Logger, cfg types.BacktestConfig, seed int64, tm *telemetry.Metrics) *Orchestrator {
	return &Orchestrator{
		logger:    logger,
		engine:    backtest.NewEngine(logger, cfg),
		seed:      seed,
		telemetry: tm,
	}
}

// RunAll perturbs the base series once per scenario, runs the strategy
// and a full backtest on each perturbed series, and ranks the results.
// A nil scenario list selects the full set. Cancelling the context
// skips scenarios that have not started yet.
func (o *Orchestrator) RunAll(ctx context.Context, prices []types.PriceBar, strategy StrategyFunc, scenarios []Scenario) (*Report, error) {
	if len(scenarios) == 0 {
		scenarios = AllScenarios()
	}

	pool := workers.NewPool(o.logger, len(scenarios), len(scenarios))
	defer pool.Stop()

	summaries := make([]Summary, len(scenarios))
	errs := make([]error, len(scenarios))
	var wg sync.WaitGroup

	for i, scenario := range scenarios {
		i, scenario := i, scenario
		wg.Add(1)
		err := pool.SubmitFunc(func() error {
			defer wg.Done()
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return nil
			}
			summary, err := o.runScenario(prices, strategy, scenario, o.seed+int64(i))
			if err != nil {
				errs[i] = err
				return err
			}
			summaries[i] = summary
			o.telemetry.RecordScenarioRun()
			return nil
		})
		if err != nil {
			wg.Done()
			return nil, fmt.Errorf("submitting scenario %s: %w", scenario, err)
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenarios[i], err)
		}
	}

	report := &Report{Results: make(map[Scenario]Summary, len(scenarios))}
	for _, s := range summaries {
		report.Results[s.Scenario] = s
	}
	report.MostResilient, report.MostVulnerable = rank(summaries)

	o.logger.Info("stress test complete",
		zap.Int("scenarios", len(scenarios)),
		zap.String("mostResilient", string(report.MostResilient)),
		zap.String("mostVulnerable", string(report.MostVulnerable)),
	)

	return report, nil
}

func (o *Orchestrator) runScenario(prices []types.PriceBar, strategy StrategyFunc, scenario Scenario, seed int64) (Summary, error) {
	perturbed, err := Perturb(prices, scenario, seed)
	if err != nil {
		return Summary{}, err
	}

	start := time.Now()
	result, err := o.engine.Run(perturbed, strategy(perturbed))
	if err != nil {
		return Summary{}, err
	}
	o.telemetry.ObserveBacktest(time.Since(start).Seconds())

	returns := metrics.Returns(result.EquityCurve)
	return Summary{
		Scenario:    scenario,
		Sharpe:      result.Metrics.SharpeRatio,
		MaxDrawdown: result.Metrics.MaxDrawdown,
		AvgReturn:   metrics.Mean(returns),
		StdDev:      metrics.StdDev(returns),
		TotalReturn: result.Metrics.TotalReturn,
		TradeCount:  result.Metrics.TradeCount,
	}, nil
}

// rank orders summaries by Sharpe, breaking ties with the smaller
// drawdown magnitude, and returns the best and worst scenario names.
func rank(summaries []Summary) (best, worst Scenario) {
	if len(summaries) == 0 {
		return "", ""
	}
	bestIdx, worstIdx := 0, 0
	for i := 1; i < len(summaries); i++ {
		if better(summaries[i], summaries[bestIdx]) {
			bestIdx = i
		}
		if better(summaries[worstIdx], summaries[i]) {
			worstIdx = i
		}
	}
	return summaries[bestIdx].Scenario, summaries[worstIdx].Scenario
}

func better(a, b Summary) bool {
	if a.Sharpe != b.Sharpe {
		return a.Sharpe > b.Sharpe
	}
	return math.Abs(a.MaxDrawdown) < math.Abs(b.MaxDrawdown)
}
