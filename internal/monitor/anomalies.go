package monitor

import (
	"fmt"

	"github.com/quantforge/riskengine/pkg/types"
)

// DetectMarketAnomalies runs four independent, non-exclusive checks
// against the latest bar of the snapshot: overnight gap, near-limit
// intraday move, volume collapse or spike against the trailing average,
// and spread expansion. Each check is pure; the function has no memory
// between calls and no dependency on halt state. Fewer than two bars
// yields no findings.
func DetectMarketAnomalies(cfg types.AnomalyConfig, bars []types.PriceBar) []types.Alert {
	if len(bars) < 2 {
		return nil
	}

	var alerts []types.Alert
	last := bars[len(bars)-1]
	prev := bars[len(bars)-2]
	ts := last.Timestamp

	// Overnight gap against the prior close.
	if prevClose := prev.Close.InexactFloat64(); prevClose != 0 {
		gap := (last.Open.InexactFloat64() - prevClose) / prevClose
		if abs(gap) > cfg.GapThreshold {
			alerts = append(alerts, types.Alert{
				Timestamp: ts,
				Level:     types.AlertWarning,
				Message:   fmt.Sprintf("opening gap of %.2f%% against prior close", abs(gap)*100),
				Check:     "gap",
				Value:     gap,
			})
		}
	}

	// Intraday move approaching the limit-move threshold.
	if open := last.Open.InexactFloat64(); open != 0 {
		move := (last.Close.InexactFloat64() - open) / open
		if abs(move) > cfg.LimitMoveThreshold {
			alerts = append(alerts, types.Alert{
				Timestamp: ts,
				Level:     types.AlertCritical,
				Message:   fmt.Sprintf("intraday move of %.2f%%, near limit threshold", abs(move)*100),
				Check:     "limit_move",
				Value:     move,
			})
		}
	}

	// Volume collapse or spike against the trailing average.
	recent := meanVolume(bars, cfg.RecentWindow)
	trailing := meanVolume(bars, cfg.TrailingWindow)
	if trailing > 0 {
		ratio := recent / trailing
		if ratio < cfg.VolumeCollapseRatio {
			alerts = append(alerts, types.Alert{
				Timestamp: ts,
				Level:     types.AlertWarning,
				Message:   fmt.Sprintf("recent volume is %.1f%% of the trailing average", ratio*100),
				Check:     "volume_collapse",
				Value:     ratio,
			})
		} else if ratio > cfg.VolumeSpikeRatio {
			alerts = append(alerts, types.Alert{
				Timestamp: ts,
				Level:     types.AlertWarning,
				Message:   fmt.Sprintf("recent volume is %.1fx the trailing average", ratio),
				Check:     "volume_spike",
				Value:     ratio,
			})
		}
	}

	// Spread expansion against the trailing average range ratio.
	if ratio, ok := spreadBlowOut(bars); ok && ratio > cfg.SpreadExpansionRatio {
		alerts = append(alerts, types.Alert{
			Timestamp: ts,
			Level:     types.AlertWarning,
			Message:   fmt.Sprintf("bar range is %.1fx the trailing average", ratio),
			Check:     "spread_expansion",
			Value:     ratio,
		})
	}

	return alerts
}

// meanVolume averages volume over the last window bars.
func meanVolume(bars []types.PriceBar, window int) float64 {
	if len(bars) == 0 || window <= 0 {
		return 0
	}
	start := len(bars) - window
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, b := range bars[start:] {
		sum += b.Volume.InexactFloat64()
	}
	return sum / float64(len(bars)-start)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
