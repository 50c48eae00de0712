package backtest

import (
	"fmt"
	"time"

	"github.com/newthinker/lookback/internal/core"
)

// BenchmarkBasis returns the capital a benchmark curve is scaled to
func BenchmarkBasis(sim *Simulation, referenceCapital float64) float64 {
	if sim.Mode == CapitalModeReference {
		return referenceCapital
	}
	return sim.FirstInvestment
}

// AssetBenchmark is the curve of holding the asset itself from the first period
func AssetBenchmark(prices []core.PricePoint, mode CapitalMode, basis float64) Curve {
	dates := make([]time.Time, len(prices))
	closes := make([]float64, len(prices))
	for i, p := range prices {
		dates[i] = p.Date
		closes[i] = p.Close
	}
	return Curve{Dates: dates, Values: scaleCloses(closes, mode, basis)}
}

// IndexBenchmark scales an index onto the primary dates the same way as
// AssetBenchmark. The curve starts at the first date the index has a value for.
func IndexBenchmark(dates []time.Time, index *core.PriceSeries, mode CapitalMode, basis float64) (Curve, error) {
	kept, aligned, err := AlignForwardFill(dates, index.Points)
	if err != nil {
		return Curve{}, err
	}
	return Curve{
		Name:   index.DisplayName(),
		Dates:  kept,
		Values: scaleCloses(aligned, mode, basis),
	}, nil
}

func scaleCloses(closes []float64, mode CapitalMode, basis float64) []float64 {
	values := make([]float64, len(closes))
	if len(closes) == 0 || basis == 0 || closes[0] <= 0 {
		return values
	}
	base := closes[0]
	for i, c := range closes {
		if mode == CapitalModePnL {
			values[i] = basis * (c/base - 1)
		} else {
			values[i] = c / base * basis
		}
	}
	return values
}

// AlignForwardFill maps index closes onto dates. A date without an index
// observation takes the most recent earlier one. Dates before the first
// observation have nothing to carry forward and are dropped, so the returned
// dates are a suffix of the input. Dates are compared by calendar day.
func AlignForwardFill(dates []time.Time, index []core.PricePoint) ([]time.Time, []float64, error) {
	if len(dates) == 0 {
		return []time.Time{}, []float64{}, nil
	}
	if !overlaps(dates, index) {
		return nil, nil, core.WrapError(core.ErrNoData, fmt.Errorf("index has no observations between %s and %s",
			dates[0].Format(core.DateLayout), dates[len(dates)-1].Format(core.DateLayout)))
	}

	kept := make([]time.Time, 0, len(dates))
	out := make([]float64, 0, len(dates))
	var last float64
	j := 0
	for _, d := range dates {
		day := core.TruncateDay(d)
		for j < len(index) && !core.TruncateDay(index[j].Date).After(day) {
			last = index[j].Close
			j++
		}
		if j == 0 {
			continue
		}
		kept = append(kept, d)
		out = append(out, last)
	}
	return kept, out, nil
}

func overlaps(dates []time.Time, index []core.PricePoint) bool {
	first := core.TruncateDay(dates[0])
	last := core.TruncateDay(dates[len(dates)-1])
	for _, p := range index {
		day := core.TruncateDay(p.Date)
		if !day.Before(first) && !day.After(last) {
			return true
		}
	}
	return false
}
