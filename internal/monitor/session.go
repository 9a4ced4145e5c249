// Package monitor provides the stateful risk monitoring session: the
// kill-switch state machine, the market anomaly checks, and the
// lower-severity auto-stop trading rules.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantforge/riskengine/internal/telemetry"
	"github.com/quantforge/riskengine/pkg/types"
)

// Session owns one monitoring run's halt state and append-only alert
// log. All evaluation entry points serialize on an internal mutex so a
// halt transition is atomic with the reasons recorded for it. The
// session never resumes on its own: Reset is an explicit external
// decision.
type Session struct {
	mu sync.Mutex

	id         string
	logger     *zap.Logger
	killCfg    types.KillSwitchConfig
	anomalyCfg types.AnomalyConfig
	stopCfg    types.AutoStopConfig
	telemetry  *telemetry.Metrics

	halt        types.HaltState
	alerts      []types.Alert
	subscribers map[int]chan types.Alert
	nextSubID   int
	startedAt   time.Time
}

// NewSession creates a monitoring session in the Normal state.
// tm may be nil.
func NewSession(logger *zap.Logger, killCfg types.KillSwitchConfig, anomalyCfg types.AnomalyConfig, stopCfg types.AutoStopConfig, tm *telemetry.Metrics) *Session {
	s := &Session{
		id:          uuid.New().String(),
		logger:      logger,
		killCfg:     killCfg,
		anomalyCfg:  anomalyCfg,
		stopCfg:     stopCfg,
		telemetry:   tm,
		halt:        types.HaltState{Status: types.HaltStatusNormal},
		subscribers: make(map[int]chan types.Alert),
		startedAt:   time.Now(),
	}
	tm.SetHalted(false)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// haltRecommendations are the advisory actions attached to a halt.
var haltRecommendations = []string{
	"close all open positions immediately",
	"run a fresh risk assessment",
	"re-evaluate after the cooldown expires",
}

// EvaluateTick evaluates the kill-switch trigger conditions against the
// latest market snapshot and the current running drawdown. The checks
// run in a fixed order; the first true condition becomes the halt
// reason and every other true condition is recorded alongside it.
// Once halted, subsequent ticks return the existing state unchanged.
// A check whose trailing data is insufficient degrades to
// "not triggered" - a tick never fails.
func (s *Session) EvaluateTick(bars []types.PriceBar, currentDrawdown float64) types.HaltState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halt.Halted() {
		return s.halt
	}

	var reasons []string

	if currentDrawdown <= s.killCfg.MaxDrawdownLimit {
		reasons = append(reasons, fmt.Sprintf(
			"max drawdown limit breached: %.2f%% <= %.2f%%",
			currentDrawdown*100, s.killCfg.MaxDrawdownLimit*100))
	}

	if ratio, ok := spreadBlowOut(bars); ok && ratio > s.killCfg.SpreadMultiplier {
		reasons = append(reasons, fmt.Sprintf(
			"intraday range blow-out: %.1fx trailing average", ratio))
	}

	if vol, ok := trailingVolume(bars, s.killCfg.VolumeLookback); ok && vol == 0 {
		reasons = append(reasons, "market halted upstream: trailing volume is zero")
	}

	if len(reasons) == 0 {
		return s.halt
	}

	now := tickTime(bars)
	s.halt = types.HaltState{
		Status:          types.HaltStatusHalted,
		Reason:          reasons[0],
		Reasons:         reasons,
		TriggeredAt:     now,
		CooldownUntil:   now.Add(s.killCfg.HaltCooldown),
		Recommendations: haltRecommendations,
	}
	s.telemetry.SetHalted(true)

	s.record(types.Alert{
		Timestamp: now,
		Level:     types.AlertKillSwitch,
		Message:   reasons[0],
		Check:     "kill_switch",
	})
	for _, extra := range reasons[1:] {
		s.record(types.Alert{
			Timestamp: now,
			Level:     types.AlertWarning,
			Message:   "additional halt condition: " + extra,
			Check:     "kill_switch",
		})
	}

	s.logger.Error("kill switch triggered",
		zap.String("session", s.id),
		zap.String("reason", reasons[0]),
		zap.Int("conditions", len(reasons)),
	)

	return s.halt
}

// ScanAnomalies runs the independent market anomaly checks against the
// snapshot and appends any findings to the alert log. The checks do not
// read or affect the halt state.
func (s *Session) ScanAnomalies(bars []types.PriceBar) []types.Alert {
	found := DetectMarketAnomalies(s.anomalyCfg, bars)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range found {
		s.record(a)
	}
	return found
}

// EvaluateAutoStop applies the session's stop-trading rules. The
// decision is advisory and does not transition the halt state.
func (s *Session) EvaluateAutoStop(equity []types.EquityPoint, consecutiveLosses int) StopDecision {
	decision := AutoStopRules(s.stopCfg, equity, consecutiveLosses)
	if !decision.ShouldStop {
		return decision
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ts := time.Now()
	if len(equity) > 0 {
		ts = equity[len(equity)-1].Timestamp
	}
	for _, reason := range decision.Reasons {
		s.record(types.Alert{
			Timestamp: ts,
			Level:     types.AlertCritical,
			Message:   reason,
			Check:     "auto_stop",
		})
	}
	return decision
}

// HaltState returns a snapshot of the current halt state.
func (s *Session) HaltState() types.HaltState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halt
}

// Alerts returns a copy of the append-only alert log.
func (s *Session) Alerts() []types.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// Subscribe registers a live alert feed. Slow subscribers drop alerts
// rather than block the evaluation tick. The returned cancel function
// closes the feed.
func (s *Session) Subscribe(buffer int) (<-chan types.Alert, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan types.Alert, buffer)
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Reset returns the session to Normal and clears the alert log. Only an
// external operator decision calls this; the session itself never does.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.halt = types.HaltState{Status: types.HaltStatusNormal}
	s.alerts = nil
	s.telemetry.SetHalted(false)
	s.logger.Info("monitoring session reset", zap.String("session", s.id))
}

// record appends to the alert log and fans out to subscribers.
// Caller must hold s.mu.
func (s *Session) record(a types.Alert) {
	s.alerts = append(s.alerts, a)
	s.telemetry.RecordAlert(a.Level)
	for _, sub := range s.subscribers {
		select {
		case sub <- a:
		default:
		}
	}
}

// spreadBlowOut returns the latest bar's range/price ratio relative to
// the trailing average ratio. ok is false when fewer than two bars are
// available or the averages degenerate.
func spreadBlowOut(bars []types.PriceBar) (ratio float64, ok bool) {
	if len(bars) < 2 {
		return 0, false
	}
	last := bars[len(bars)-1]
	lastClose := last.Close.InexactFloat64()
	if lastClose == 0 {
		return 0, false
	}
	recent := last.High.Sub(last.Low).InexactFloat64() / lastClose

	var sum float64
	var n int
	for _, b := range bars {
		c := b.Close.InexactFloat64()
		if c == 0 {
			continue
		}
		sum += b.High.Sub(b.Low).InexactFloat64() / c
		n++
	}
	if n == 0 || sum == 0 {
		return 0, false
	}
	avg := sum / float64(n)
	return recent / avg, true
}

// trailingVolume averages volume over the last lookback bars.
func trailingVolume(bars []types.PriceBar, lookback int) (avg float64, ok bool) {
	if len(bars) == 0 || lookback <= 0 {
		return 0, false
	}
	start := len(bars) - lookback
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, b := range bars[start:] {
		sum += b.Volume.InexactFloat64()
	}
	return sum / float64(len(bars)-start), true
}

// tickTime anchors alerts to the snapshot's own clock when available.
func tickTime(bars []types.PriceBar) time.Time {
	if len(bars) > 0 {
		return bars[len(bars)-1].Timestamp
	}
	return time.Now()
}
