package backtest

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/newthinker/lookback/internal/core"
)

// Report is the serialised backtest result. All figures are rounded to two
// decimals; nothing upstream of BuildReport rounds.
type Report struct {
	ID          string           `json:"id,omitempty"`
	Symbol      string           `json:"symbol"`
	AssetName   string           `json:"assetName"`
	Strategy    string           `json:"strategy"`
	StartDate   string           `json:"startDate"`
	EndDate     string           `json:"endDate"`
	CapitalMode CapitalMode      `json:"capitalMode"`
	Metrics     MetricsReport    `json:"metrics"`
	TradeStats  TradeStatsReport `json:"tradeStats"`
	ChartData   ChartData        `json:"chartData"`
	CreatedAt   *time.Time       `json:"createdAt,omitempty"`
}

// MetricsReport holds the rounded headline figures
type MetricsReport struct {
	TotalReturn      float64 `json:"totalReturn"`
	AnnualizedReturn float64 `json:"annualizedReturn"`
	MaxDrawdown      float64 `json:"maxDrawdown"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpeRatio"`
}

// TradeStatsReport holds the rounded round-trip summary
type TradeStatsReport struct {
	TotalTrades   int     `json:"totalTrades"`
	WinningTrades int     `json:"winningTrades"`
	LosingTrades  int     `json:"losingTrades"`
	WinRate       float64 `json:"winRate"`
}

// SeriesReport is a dated value series
type SeriesReport struct {
	Name   string    `json:"name,omitempty"`
	Dates  []string  `json:"dates"`
	Values []float64 `json:"values"`
}

// MarkerPoint is one trade marker
type MarkerPoint struct {
	Date           string  `json:"date"`
	PortfolioValue float64 `json:"portfolioValue"`
	AssetPrice     float64 `json:"assetPrice"`
}

// MarkerReport groups trade markers by side
type MarkerReport struct {
	BuyPoints  []MarkerPoint `json:"buyPoints"`
	SellPoints []MarkerPoint `json:"sellPoints"`
}

// ChartData carries every curve needed to chart a run
type ChartData struct {
	AssetName            string       `json:"assetName"`
	BenchmarkAssetName   string       `json:"benchmarkAssetName,omitempty"`
	AssetPriceCurve      SeriesReport `json:"assetPriceCurve"`
	PortfolioCurve       SeriesReport `json:"portfolioCurve"`
	AssetBenchmarkCurve  SeriesReport `json:"assetBenchmarkCurve"`
	MarketBenchmarkCurve SeriesReport `json:"marketBenchmarkCurve"`
	MonthlyReturns       SeriesReport `json:"monthlyReturns"`
	YearlyReturns        SeriesReport `json:"yearlyReturns"`
	TradeMarkers         MarkerReport `json:"tradeMarkers"`
}

// BuildReport rounds a Result into its serialised form
func BuildReport(r *Result) *Report {
	sim := r.Simulation
	if sim == nil {
		sim = &Simulation{Mode: r.Mode}
	}

	closes := make([]float64, 0)
	dates := make([]time.Time, 0)
	if r.Prices != nil {
		closes = r.Prices.Closes()
		dates = r.Prices.Dates()
	}

	chart := ChartData{
		AssetName:           r.AssetName,
		AssetPriceCurve:     series("", dates, closes),
		PortfolioCurve:      series("", sim.Dates(), sim.Values()),
		AssetBenchmarkCurve: series("", r.AssetBenchmark.Dates, r.AssetBenchmark.Values),
		MarketBenchmarkCurve: SeriesReport{
			Dates:  []string{},
			Values: []float64{},
		},
		MonthlyReturns: periodSeries(r.Monthly),
		YearlyReturns:  periodSeries(r.Yearly),
		TradeMarkers: MarkerReport{
			BuyPoints:  markerPoints(r.Markers.Buy),
			SellPoints: markerPoints(r.Markers.Sell),
		},
	}
	if r.MarketBenchmark != nil {
		chart.BenchmarkAssetName = r.MarketBenchmark.Name
		chart.MarketBenchmarkCurve = series(r.MarketBenchmark.Name, r.MarketBenchmark.Dates, r.MarketBenchmark.Values)
	}

	return &Report{
		Symbol:      r.Symbol,
		AssetName:   r.AssetName,
		Strategy:    r.Strategy,
		StartDate:   formatDate(r.StartDate),
		EndDate:     formatDate(r.EndDate),
		CapitalMode: sim.Mode,
		Metrics: MetricsReport{
			TotalReturn:      round2(r.Metrics.TotalReturn),
			AnnualizedReturn: round2(r.Metrics.AnnualizedReturn),
			MaxDrawdown:      round2(r.Metrics.MaxDrawdown),
			Volatility:       round2(r.Metrics.Volatility),
			SharpeRatio:      round2(r.Metrics.SharpeRatio),
		},
		TradeStats: TradeStatsReport{
			TotalTrades:   r.TradeStats.TotalTrades,
			WinningTrades: r.TradeStats.WinningTrades,
			LosingTrades:  r.TradeStats.LosingTrades,
			WinRate:       round2(r.TradeStats.WinRate),
		},
		ChartData: chart,
	}
}

func series(name string, dates []time.Time, values []float64) SeriesReport {
	s := SeriesReport{
		Name:   name,
		Dates:  make([]string, len(dates)),
		Values: make([]float64, len(values)),
	}
	for i, d := range dates {
		s.Dates[i] = formatDate(d)
	}
	for i, v := range values {
		s.Values[i] = round2(v)
	}
	return s
}

func periodSeries(returns []PeriodReturn) SeriesReport {
	s := SeriesReport{
		Dates:  make([]string, len(returns)),
		Values: make([]float64, len(returns)),
	}
	for i, r := range returns {
		s.Dates[i] = r.Label
		s.Values[i] = round2(r.Value)
	}
	return s
}

func markerPoints(markers []TradeMarker) []MarkerPoint {
	out := make([]MarkerPoint, len(markers))
	for i, m := range markers {
		out[i] = MarkerPoint{
			Date:           formatDate(m.Date),
			PortfolioValue: round2(m.PortfolioValue),
			AssetPrice:     round2(m.AssetPrice),
		}
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(core.DateLayout)
}

// round2 rounds half away from zero; NaN and infinities become 0
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
