package backtest

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWriteCurveCSV(t *testing.T) {
	prices := makePrices(100, 110)
	sim, err := Simulate(prices, makeSignals(prices, buy, hold), SimConfig{ReferenceCapital: 1000})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	result := &Result{
		Simulation:      sim,
		AssetBenchmark:  AssetBenchmark(prices, sim.Mode, 1000),
		// index starts on the second day
		MarketBenchmark: &Curve{Dates: []time.Time{prices[1].Date}, Values: []float64{1050.5}},
	}

	var buf bytes.Buffer
	if err := WriteCurveCSV(&buf, result); err != nil {
		t.Fatalf("WriteCurveCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2 rows:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "date,close,signal,effective,forced,cash") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2024-01-01,100,buy,buy,") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.HasSuffix(lines[1], ",") {
		t.Errorf("row 1 = %q, want empty market benchmark", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",1050.5") {
		t.Errorf("row 2 = %q, want market benchmark last", lines[2])
	}
}
