package backtest

import (
	"io"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/newthinker/lookback/internal/core"
)

type curveRow struct {
	Date               string  `csv:"date"`
	Close              float64 `csv:"close"`
	Signal             string  `csv:"signal"`
	Effective          string  `csv:"effective"`
	Forced             string  `csv:"forced"`
	Cash               float64 `csv:"cash"`
	Shares             float64 `csv:"shares"`
	CostBasis          float64 `csv:"cost_basis"`
	CumulativeInvested float64 `csv:"cumulative_invested"`
	Value              float64 `csv:"portfolio_value"`
	AssetBenchmark     float64 `csv:"asset_benchmark"`
	MarketBenchmark    string  `csv:"market_benchmark"`
}

// WriteCurveCSV writes the day-by-day portfolio curve of a result, unrounded.
// The market benchmark column is empty on days before the index has a value.
func WriteCurveCSV(w io.Writer, r *Result) error {
	market := map[string]float64{}
	if r.MarketBenchmark != nil {
		for i, d := range r.MarketBenchmark.Dates {
			if i < len(r.MarketBenchmark.Values) {
				market[d.Format(core.DateLayout)] = r.MarketBenchmark.Values[i]
			}
		}
	}

	rows := []*curveRow{}
	if r.Simulation != nil {
		for i, s := range r.Simulation.States {
			row := &curveRow{
				Date:               s.Date.Format(core.DateLayout),
				Close:              s.Close,
				Signal:             string(s.Signal),
				Effective:          string(s.Effective),
				Forced:             string(s.Forced),
				Cash:               s.Cash,
				Shares:             s.Shares,
				CostBasis:          s.CostBasis,
				CumulativeInvested: s.CumulativeInvested,
				Value:              s.Value,
			}
			if i < r.AssetBenchmark.Len() {
				row.AssetBenchmark = r.AssetBenchmark.Values[i]
			}
			if v, ok := market[row.Date]; ok {
				row.MarketBenchmark = strconv.FormatFloat(v, 'f', -1, 64)
			}
			rows = append(rows, row)
		}
	}
	return gocsv.Marshal(&rows, w)
}
