package data_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/quantforge/riskengine/internal/data"
	"github.com/quantforge/riskengine/pkg/types"
)

const validCSV = `timestamp,open,high,low,close,volume
2024-01-02,100,101,99,100.5,1000000
2024-01-03,100.5,102,100,101.5,1100000
2024-01-04,101.5,103,101,102.0,900000
`

func TestParseCSV(t *testing.T) {
	bars, err := data.ParseCSV(strings.NewReader(validCSV))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("Expected 3 bars, got %d", len(bars))
	}
	if bars[0].Close.InexactFloat64() != 100.5 {
		t.Errorf("First close: expected 100.5, got %s", bars[0].Close)
	}
	if !bars[1].Timestamp.After(bars[0].Timestamp) {
		t.Error("Timestamps should be increasing")
	}
}

func TestParseCSVColumnOrder(t *testing.T) {
	// Shuffled, upper-cased header must still parse.
	csv := "Close,VOLUME,timestamp,high,low,open\n100.5,1000000,2024-01-02,101,99,100\n"
	bars, err := data.ParseCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if bars[0].Open.InexactFloat64() != 100 || bars[0].Close.InexactFloat64() != 100.5 {
		t.Errorf("Columns mapped wrong: %+v", bars[0])
	}
}

func TestParseCSVMissingColumn(t *testing.T) {
	csv := "timestamp,open,high,low,close\n2024-01-02,100,101,99,100.5\n"
	_, err := data.ParseCSV(strings.NewReader(csv))
	if !errors.Is(err, data.ErrMalformedSeries) {
		t.Fatalf("Expected ErrMalformedSeries, got %v", err)
	}
}

func TestParseCSVOutOfOrderTimestamps(t *testing.T) {
	csv := `timestamp,open,high,low,close,volume
2024-01-03,100,101,99,100.5,1000000
2024-01-02,100,101,99,100.5,1000000
`
	_, err := data.ParseCSV(strings.NewReader(csv))
	if !errors.Is(err, data.ErrMalformedSeries) {
		t.Fatalf("Expected ErrMalformedSeries, got %v", err)
	}
}

func TestParseCSVNegativeVolume(t *testing.T) {
	csv := "timestamp,open,high,low,close,volume\n2024-01-02,100,101,99,100.5,-5\n"
	_, err := data.ParseCSV(strings.NewReader(csv))
	if !errors.Is(err, data.ErrMalformedSeries) {
		t.Fatalf("Expected ErrMalformedSeries, got %v", err)
	}
}

func TestParseCSVBadValue(t *testing.T) {
	csv := "timestamp,open,high,low,close,volume\n2024-01-02,abc,101,99,100.5,1000\n"
	_, err := data.ParseCSV(strings.NewReader(csv))
	if !errors.Is(err, data.ErrMalformedSeries) {
		t.Fatalf("Expected ErrMalformedSeries, got %v", err)
	}
}

func TestParseSignalInts(t *testing.T) {
	signals, err := data.ParseSignalInts([]int{1, 0, -1, 0})
	if err != nil {
		t.Fatalf("ParseSignalInts failed: %v", err)
	}
	expected := []types.Signal{types.SignalBuy, types.SignalHold, types.SignalSell, types.SignalHold}
	for i := range expected {
		if signals[i] != expected[i] {
			t.Errorf("Signal %d: expected %v, got %v", i, expected[i], signals[i])
		}
	}

	if _, err := data.ParseSignalInts([]int{1, 2}); !errors.Is(err, data.ErrMalformedSeries) {
		t.Fatalf("Expected ErrMalformedSeries for out-of-domain value, got %v", err)
	}
}

func TestSampleSeries(t *testing.T) {
	bars := data.SampleSeries(100, 42)
	if len(bars) != 100 {
		t.Fatalf("Expected 100 bars, got %d", len(bars))
	}
	for i, b := range bars {
		if b.High.LessThan(b.Close) || b.Low.GreaterThan(b.Close) || b.Low.IsNegative() {
			t.Fatalf("Bar %d violates OHLC ordering: %+v", i, b)
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			t.Fatalf("Timestamps not increasing at bar %d", i)
		}
	}

	// Same seed reproduces the series.
	again := data.SampleSeries(100, 42)
	for i := range bars {
		if !bars[i].Close.Equal(again[i].Close) {
			t.Fatalf("Sample series not deterministic at bar %d", i)
		}
	}
}
