// Package backtest provides the deterministic event-driven simulator
// that converts a price series and an aligned signal series into a
// trade ledger, an equity curve, and a performance-metric record.
package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantforge/riskengine/internal/metrics"
	"github.com/quantforge/riskengine/pkg/types"
)

// Engine runs long-only single-unit backtests. Run is a pure function
// of its inputs: the engine holds no mutable state across invocations,
// so one Engine may serve concurrent scenario runs.
type Engine struct {
	logger *zap.Logger
	config types.BacktestConfig
}

// Result is the complete output of one backtest run.
type Result struct {
	Trades      []types.Trade
	EquityCurve []types.EquityPoint
	Metrics     types.PerformanceMetrics
	FinalState  types.PositionState
}

// NewEngine creates a backtest engine with the given parameters.
func NewEngine(logger *zap.Logger, config types.BacktestConfig) *Engine {
	if config.VaRConfidence == 0 {
		config.VaRConfidence = 0.95
	}
	return &Engine{logger: logger, config: config}
}

// Run executes a single forward pass over the bars in timestamp order.
// A Buy while flat allocates PositionSizeFraction of current cash,
// takes the entry commission out of the allocation, and converts the
// remainder into shares at the bar close; cash can therefore never go
// negative. A Sell while long liquidates at the close and records a
// Trade. Every other bar is a pure mark-to-market step.
// Signals shorter than the price series are padded with Hold; signals
// longer than it are rejected.
func (e *Engine) Run(prices []types.PriceBar, signals []types.Signal) (*Result, error) {
	if err := e.validate(prices, signals); err != nil {
		return nil, err
	}

	cash := e.config.InitialCapital
	position := decimal.Zero
	state := types.PositionFlat

	var entryPrice decimal.Decimal
	var entryCommission decimal.Decimal
	var entryTime time.Time

	trades := make([]types.Trade, 0)
	curve := make([]types.EquityPoint, 0, len(prices))

	for i, bar := range prices {
		signal := types.SignalHold
		if i < len(signals) {
			signal = signals[i]
		}

		switch {
		case signal == types.SignalBuy && state == types.PositionFlat:
			// Commission comes out of the allocation, so total spend
			// never exceeds cash even at a full-cash fraction.
			allocation := cash.Mul(e.config.PositionSizeFraction)
			entryCommission = allocation.Mul(e.config.CommissionRate)
			positionValue := allocation.Sub(entryCommission)
			position = positionValue.Div(bar.Close)
			cash = cash.Sub(allocation)
			entryPrice = bar.Close
			entryTime = bar.Timestamp
			state = types.PositionLong

		case signal == types.SignalSell && state == types.PositionLong:
			positionValue := position.Mul(bar.Close)
			exitCommission := positionValue.Mul(e.config.CommissionRate)
			cash = cash.Add(positionValue).Sub(exitCommission)

			costBasis := position.Mul(entryPrice)
			gross := positionValue.Sub(costBasis)
			trades = append(trades, types.Trade{
				EntryTime:  entryTime,
				ExitTime:   bar.Timestamp,
				EntryPrice: entryPrice,
				ExitPrice:  bar.Close,
				Quantity:   position,
				GrossPnL:   gross,
				Commission: entryCommission.Add(exitCommission),
				PnLPct:     gross.Div(costBasis).Mul(decimal.NewFromInt(100)),
			})
			position = decimal.Zero
			state = types.PositionFlat
		}

		equity := cash.Add(position.Mul(bar.Close))
		curve = append(curve, types.EquityPoint{Timestamp: bar.Timestamp, Value: equity})
	}

	result := &Result{
		Trades:      trades,
		EquityCurve: curve,
		Metrics:     e.calculateMetrics(len(prices), curve, trades),
		FinalState:  state,
	}

	e.logger.Debug("backtest complete",
		zap.Int("bars", len(prices)),
		zap.Int("trades", len(trades)),
		zap.String("finalState", state.String()),
		zap.Float64("totalReturn", result.Metrics.TotalReturn),
	)

	return result, nil
}

// validate enforces the input domain. Failures are fatal to the call.
func (e *Engine) validate(prices []types.PriceBar, signals []types.Signal) error {
	if len(prices) == 0 {
		return &InvalidInputError{Field: "prices", Reason: "empty price series"}
	}
	for i, bar := range prices {
		if !bar.Open.IsPositive() || !bar.High.IsPositive() ||
			!bar.Low.IsPositive() || !bar.Close.IsPositive() {
			return &InvalidInputError{
				Field:  "prices",
				Reason: fmt.Sprintf("non-positive price at bar %d", i),
			}
		}
	}
	if len(signals) > len(prices) {
		return &InvalidInputError{
			Field:  "signals",
			Reason: fmt.Sprintf("signal series length %d exceeds price series length %d", len(signals), len(prices)),
		}
	}
	if !e.config.InitialCapital.IsPositive() {
		return &InvalidInputError{Field: "initialCapital", Reason: "must be positive"}
	}
	if e.config.CommissionRate.IsNegative() || e.config.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return &InvalidInputError{Field: "commissionRate", Reason: "must be in [0, 1)"}
	}
	one := decimal.NewFromInt(1)
	if !e.config.PositionSizeFraction.IsPositive() || e.config.PositionSizeFraction.GreaterThan(one) {
		return &InvalidInputError{Field: "positionSizeFraction", Reason: "must be in (0, 1]"}
	}
	return nil
}

// calculateMetrics derives the full performance record from the equity
// curve and closed trade list. Degenerate cases (zero trades, flat
// equity) resolve to zero-valued fields, never NaN.
func (e *Engine) calculateMetrics(bars int, curve []types.EquityPoint, trades []types.Trade) types.PerformanceMetrics {
	m := types.PerformanceMetrics{TradeCount: len(trades)}

	initial := e.config.InitialCapital.InexactFloat64()
	final := curve[len(curve)-1].Value.InexactFloat64()
	m.TotalReturn = (final - initial) / initial
	m.AnnualizedReturn = metrics.AnnualizedReturn(m.TotalReturn, bars)

	returns := metrics.Returns(curve)
	m.SharpeRatio = metrics.Sharpe(returns)
	m.SortinoRatio = metrics.Sortino(returns, 0)
	m.CalmarRatio = metrics.Calmar(returns)
	m.VaR = metrics.VaR(returns, e.config.VaRConfidence)
	m.CVaR = metrics.CVaR(returns, e.config.VaRConfidence)

	values := make([]float64, len(curve))
	for i, p := range curve {
		values[i] = p.Value.InexactFloat64()
	}
	m.MaxDrawdown = metrics.MaxDrawdown(values)

	var sumWins, sumLosses float64
	for _, t := range trades {
		pnl := t.GrossPnL.InexactFloat64()
		if pnl > 0 {
			m.WinningTrades++
			sumWins += pnl
		} else if pnl < 0 {
			m.LosingTrades++
			sumLosses += pnl
		}
	}
	if len(trades) > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(len(trades))
	}
	if m.WinningTrades > 0 {
		m.AvgWin = sumWins / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = sumLosses / float64(m.LosingTrades)
		m.ProfitFactor = sumWins / -sumLosses
	}

	return m
}
