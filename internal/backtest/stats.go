package backtest

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/newthinker/lookback/internal/core"
)

const tradingDaysPerYear = 252

// CalculateMetrics computes headline performance figures from a simulation
func CalculateMetrics(sim *Simulation, mode CapitalMode, referenceCapital float64) Metrics {
	if sim == nil || len(sim.States) == 0 {
		return Metrics{}
	}
	first := sim.States[0]
	last := sim.States[len(sim.States)-1]
	final := last.Value
	invested := last.CumulativeInvested

	var m Metrics
	switch {
	case referenceCapital > 0 && mode == CapitalModePnL:
		m.TotalReturn = final / referenceCapital * 100
	case referenceCapital > 0:
		m.TotalReturn = (final/referenceCapital - 1) * 100
	case invested > 0:
		m.TotalReturn = final / invested * 100
	}

	days := core.TruncateDay(last.Date).Sub(core.TruncateDay(first.Date)).Hours() / 24
	if days > 0 && (referenceCapital > 0 || invested > 0) {
		m.AnnualizedReturn = annualize(m.TotalReturn, days)
	}

	m.MaxDrawdown = MaxDrawdown(sim.Values(), mode, sim.FirstInvestment) * 100
	m.Volatility, m.SharpeRatio = riskRatios(dailyReturns(sim.States, mode))
	return m
}

// annualize converts a total return over days into a yearly rate, in percent
func annualize(totalPct, days float64) float64 {
	growth := 1 + totalPct/100
	if growth <= 0 {
		return -100
	}
	return (math.Pow(growth, 365/days) - 1) * 100
}

// MaxDrawdown returns the largest peak-to-trough decline as a fraction <= 0.
// A non-positive running peak has no meaningful ratio: PnL curves fall back to
// the value relative to the first investment, Reference curves to 0.
func MaxDrawdown(values []float64, mode CapitalMode, firstInvestment float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var maxDD float64
	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
		var dd float64
		switch {
		case peak > 0:
			dd = (v - peak) / peak
		case mode == CapitalModePnL && firstInvestment > 0:
			dd = v / firstInvestment
		case mode == CapitalModePnL:
			dd = v
		}
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// dailyReturns measures each period's value change against the prior equity.
// Flows do not move Value, so the change is pure performance.
func dailyReturns(states []PortfolioState, mode CapitalMode) []float64 {
	var returns []float64
	for i := 1; i < len(states); i++ {
		prev := states[i-1]
		equity := prev.Value
		if mode == CapitalModePnL {
			equity += prev.CumulativeInvested
		}
		if equity <= 0 {
			continue
		}
		returns = append(returns, (states[i].Value-prev.Value)/equity)
	}
	return returns
}

// riskRatios returns annualized volatility (percent) and the Sharpe ratio
// with a risk-free rate of 0
func riskRatios(returns []float64) (float64, float64) {
	if len(returns) < 2 {
		return 0, 0
	}
	stdDev, err := stats.StandardDeviationSample(returns)
	if err != nil || stdDev == 0 {
		return 0, 0
	}
	mean, err := stats.Mean(returns)
	if err != nil {
		return 0, 0
	}
	annualizedStdDev := stdDev * math.Sqrt(tradingDaysPerYear)
	return annualizedStdDev * 100, mean * tradingDaysPerYear / annualizedStdDev
}

// CalculateTradeStats pairs fills into round trips and summarises them. An
// open position is marked to lastClose.
func CalculateTradeStats(fills []Fill, lastClose float64) ([]RoundTrip, TradeStats) {
	trips := fillsToRoundTrips(fills, lastClose)
	if len(trips) == 0 {
		return trips, TradeStats{}
	}

	var winning, losing int
	for _, t := range trips {
		if !t.IsClosed() {
			continue
		}
		if t.IsWin() {
			winning++
		} else {
			losing++
		}
	}

	closed := winning + losing
	var winRate float64
	if closed > 0 {
		winRate = float64(winning) / float64(closed) * 100
	}

	return trips, TradeStats{
		TotalTrades:   len(trips),
		WinningTrades: winning,
		LosingTrades:  losing,
		WinRate:       winRate,
	}
}

// fillsToRoundTrips averages successive buys into one open trip and closes it
// on the next sell
func fillsToRoundTrips(fills []Fill, lastClose float64) []RoundTrip {
	trips := []RoundTrip{}
	var open *RoundTrip
	var openShares float64

	for _, f := range fills {
		switch f.Side {
		case SideBuy:
			if open == nil {
				open = &RoundTrip{Entry: f, EntryPrice: f.Price}
				openShares = f.Shares
				continue
			}
			total := openShares + f.Shares
			open.EntryPrice = (openShares*open.EntryPrice + f.Shares*f.Price) / total
			openShares = total
		case SideSell:
			if open == nil {
				continue
			}
			exit := f
			open.Exit = &exit
			open.ExitPrice = f.Price
			open.Return = (open.ExitPrice - open.EntryPrice) / open.EntryPrice
			trips = append(trips, *open)
			open = nil
		}
	}

	if open != nil {
		if lastClose > 0 {
			open.ExitPrice = lastClose
			open.Return = (open.ExitPrice - open.EntryPrice) / open.EntryPrice
		}
		trips = append(trips, *open)
	}
	return trips
}
