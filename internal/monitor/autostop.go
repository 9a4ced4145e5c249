package monitor

import (
	"fmt"

	"github.com/quantforge/riskengine/pkg/types"
)

// StopDecision is the outcome of the auto-stop rules: a should-stop
// flag plus every rule that fired. It is a lower-severity decision path
// than the kill-switch and never transitions the halt state.
type StopDecision struct {
	ShouldStop bool     `json:"shouldStop"`
	Reasons    []string `json:"reasons,omitempty"`
}

// AutoStopRules evaluates three independent stop conditions over the
// session equity curve: too many consecutive losing trades, an
// intraday loss past the limit, and equity below the floor fraction of
// the session-starting value. An empty curve triggers nothing.
func AutoStopRules(cfg types.AutoStopConfig, equity []types.EquityPoint, consecutiveLosses int) StopDecision {
	var reasons []string

	if consecutiveLosses >= cfg.MaxConsecutiveLosses && cfg.MaxConsecutiveLosses > 0 {
		reasons = append(reasons, fmt.Sprintf("%d consecutive losing trades", consecutiveLosses))
	}

	if len(equity) > 0 {
		first := equity[0].Value.InexactFloat64()
		last := equity[len(equity)-1].Value.InexactFloat64()
		if first != 0 {
			intraday := (last - first) / first
			if intraday < cfg.MaxIntradayLoss {
				reasons = append(reasons, fmt.Sprintf("intraday loss of %.1f%%", abs(intraday)*100))
			}
			if last < first*cfg.EquityFloorFraction {
				reasons = append(reasons, fmt.Sprintf("equity below %.0f%% of session start", cfg.EquityFloorFraction*100))
			}
		}
	}

	return StopDecision{ShouldStop: len(reasons) > 0, Reasons: reasons}
}
