// Package data loads and validates externally supplied market series.
// The engine core never reads files itself; this package is the thin
// boundary between the data-acquisition collaborator and the simulator.
package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantforge/riskengine/pkg/types"
)

// ErrMalformedSeries flags input that fails structural validation:
// missing columns, unparseable values, out-of-order timestamps, or
// negative volume.
var ErrMalformedSeries = errors.New("malformed price series")

var requiredColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// timestampLayouts are accepted in column order of preference.
var timestampLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// LoadCSV reads an OHLCV series from a CSV file.
func LoadCSV(logger *zap.Logger, path string) ([]types.PriceBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening price series: %w", err)
	}
	defer f.Close()

	bars, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Info("price series loaded",
		zap.String("path", path),
		zap.Int("bars", len(bars)),
	)
	return bars, nil
}

// ParseCSV parses an OHLCV table. The header must contain the
// timestamp, open, high, low, close and volume columns (any casing,
// any order); timestamps must be strictly increasing and volume
// non-negative.
func ParseCSV(r io.Reader) ([]types.PriceBar, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedSeries)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedSeries, col)
		}
	}

	var bars []types.PriceBar
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedSeries, line+1, err)
		}
		line++

		ts, err := parseTimestamp(record[index["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedSeries, line, err)
		}

		bar := types.PriceBar{Timestamp: ts}
		for col, dst := range map[string]*decimal.Decimal{
			"open":   &bar.Open,
			"high":   &bar.High,
			"low":    &bar.Low,
			"close":  &bar.Close,
			"volume": &bar.Volume,
		} {
			v, err := decimal.NewFromString(strings.TrimSpace(record[index[col]]))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad %s value", ErrMalformedSeries, line, col)
			}
			*dst = v
		}
		if bar.Volume.IsNegative() {
			return nil, fmt.Errorf("%w: line %d: negative volume", ErrMalformedSeries, line)
		}
		if n := len(bars); n > 0 && !bar.Timestamp.After(bars[n-1].Timestamp) {
			return nil, fmt.Errorf("%w: line %d: timestamp not strictly increasing", ErrMalformedSeries, line)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseSignalInts converts an external {-1, 0, 1} signal series.
func ParseSignalInts(values []int) ([]types.Signal, error) {
	signals := make([]types.Signal, len(values))
	for i, v := range values {
		s, ok := types.ParseSignal(v)
		if !ok {
			return nil, fmt.Errorf("%w: signal value %d at index %d", ErrMalformedSeries, v, i)
		}
		signals[i] = s
	}
	return signals, nil
}

// SampleSeries generates a seeded random-walk OHLCV series for demos
// and tests when no real data file is supplied.
func SampleSeries(n int, seed int64) []types.PriceBar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]types.PriceBar, n)
	price := 100.0
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	for i := 0; i < n; i++ {
		open := price
		price *= 1 + rng.NormFloat64()*0.015
		if price < 1 {
			price = 1
		}
		high := open
		if price > open {
			high = price
		}
		low := open
		if price < open {
			low = price
		}
		high *= 1 + abs(rng.NormFloat64())*0.005
		low *= 1 - abs(rng.NormFloat64())*0.005

		bars[i] = types.PriceBar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      decimal.NewFromFloat(open),
			High:      decimal.NewFromFloat(high),
			Low:       decimal.NewFromFloat(low),
			Close:     decimal.NewFromFloat(price),
			Volume:    decimal.NewFromFloat(1e6 * (0.5 + rng.Float64())),
		}
	}
	return bars
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
