package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/newthinker/lookback/internal/commission"
	"github.com/newthinker/lookback/internal/core"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makePrices(closes ...float64) []core.PricePoint {
	prices := make([]core.PricePoint, len(closes))
	for i, c := range closes {
		prices[i] = core.PricePoint{Date: day0.AddDate(0, 0, i), Close: c}
	}
	return prices
}

func makeSignals(prices []core.PricePoint, actions ...core.Action) core.SignalSeries {
	points := make([]core.SignalPoint, len(prices))
	for i, p := range prices {
		points[i] = core.SignalPoint{Date: p.Date, Action: actions[i]}
	}
	return core.SignalSeries{Points: points}
}

func periodicSignals(prices []core.PricePoint, amount float64) core.SignalSeries {
	points := make([]core.SignalPoint, len(prices))
	for i, p := range prices {
		points[i] = core.SignalPoint{Date: p.Date, Action: core.ActionBuy, InvestmentAmount: amount}
	}
	return core.SignalSeries{Points: points, Periodic: true}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

const (
	buy  = core.ActionBuy
	sell = core.ActionSell
	hold = core.ActionHold
)

func TestResolveCapitalMode(t *testing.T) {
	tests := []struct {
		explicit CapitalMode
		capital  float64
		want     CapitalMode
	}{
		{"", 1000, CapitalModeReference},
		{"", 0, CapitalModePnL},
		{CapitalModePnL, 1000, CapitalModePnL},
		{CapitalModeReference, 0, CapitalModeReference},
	}
	for _, tt := range tests {
		if got := ResolveCapitalMode(tt.explicit, tt.capital); got != tt.want {
			t.Errorf("ResolveCapitalMode(%q, %v) = %q, want %q", tt.explicit, tt.capital, got, tt.want)
		}
	}
}

func TestParseCapitalMode(t *testing.T) {
	if m, err := ParseCapitalMode(" PnL "); err != nil || m != CapitalModePnL {
		t.Errorf("ParseCapitalMode(PnL) = %q, %v", m, err)
	}
	if m, err := ParseCapitalMode(""); err != nil || m != "" {
		t.Errorf("ParseCapitalMode(\"\") = %q, %v", m, err)
	}
	if _, err := ParseCapitalMode("margin"); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestSimulate_BuyAndHoldReference(t *testing.T) {
	prices := makePrices(100, 110, 121)
	sim, err := Simulate(prices, makeSignals(prices, buy, hold, hold), SimConfig{ReferenceCapital: 1000})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	if sim.Mode != CapitalModeReference {
		t.Errorf("Mode = %q, want reference", sim.Mode)
	}
	want := []float64{1000, 1100, 1210}
	for i, v := range sim.Values() {
		if !almostEqual(v, want[i]) {
			t.Errorf("Value[%d] = %v, want %v", i, v, want[i])
		}
	}
	if len(sim.Fills) != 1 || sim.Fills[0].Side != SideBuy {
		t.Fatalf("Fills = %+v, want one buy", sim.Fills)
	}
	if !almostEqual(sim.Fills[0].Shares, 10) {
		t.Errorf("Shares = %v, want 10", sim.Fills[0].Shares)
	}
	if sim.FirstInvestment != 1000 || sim.TotalInvested() != 1000 {
		t.Errorf("FirstInvestment = %v, TotalInvested = %v, want 1000", sim.FirstInvestment, sim.TotalInvested())
	}
}

func TestSimulate_CommissionFloor(t *testing.T) {
	prices := makePrices(100)
	sim, err := Simulate(prices, makeSignals(prices, buy), SimConfig{
		ReferenceCapital: 1000,
		Commission:       commission.Percentage(0.0003, 5),
	})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	fill := sim.Fills[0]
	if fill.Fee != 5 {
		t.Errorf("Fee = %v, want 5 (minimum)", fill.Fee)
	}
	if !almostEqual(fill.Shares, 9.95) {
		t.Errorf("Shares = %v, want 9.95", fill.Shares)
	}
	if !almostEqual(sim.States[0].Value, 995) {
		t.Errorf("Value = %v, want 995", sim.States[0].Value)
	}
}

func TestSimulate_FeeExceedsCash(t *testing.T) {
	prices := makePrices(100, 100)
	sim, err := Simulate(prices, makeSignals(prices, buy, hold), SimConfig{
		ReferenceCapital: 4,
		Commission:       commission.Fixed(5),
	})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if len(sim.Fills) != 0 {
		t.Errorf("expected no trade, got %+v", sim.Fills)
	}
	if sim.States[1].Value != 4 {
		t.Errorf("Value = %v, want 4", sim.States[1].Value)
	}
}

func TestSimulate_HoldOnlyIsFlat(t *testing.T) {
	prices := makePrices(100, 80, 130, 90)
	sim, err := Simulate(prices, makeSignals(prices, hold, hold, hold, hold), SimConfig{ReferenceCapital: 500})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	for i, s := range sim.States {
		if s.Value != 500 || s.Shares != 0 {
			t.Errorf("state %d = %+v, want flat 500 cash", i, s)
		}
	}
}

func TestSimulate_ValueConservation(t *testing.T) {
	prices := makePrices(100, 104, 97, 120, 115, 90, 99)
	signals := makeSignals(prices, buy, hold, sell, buy, buy, sell, buy)
	sim, err := Simulate(prices, signals, SimConfig{
		ReferenceCapital: 10000,
		Commission:       commission.Percentage(0.001, 5),
	})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	for i, s := range sim.States {
		if !almostEqual(s.Value, s.Cash+s.Shares*s.Close) {
			t.Errorf("state %d: value %v != cash %v + shares %v * close %v", i, s.Value, s.Cash, s.Shares, s.Close)
		}
		if s.Shares < 0 {
			t.Errorf("state %d: negative shares %v", i, s.Shares)
		}
		if s.Shares == 0 && s.CostBasis != 0 {
			t.Errorf("state %d: cost basis %v without a position", i, s.CostBasis)
		}
	}
}

func TestSimulate_TransitionsOnly(t *testing.T) {
	prices := makePrices(10, 11, 12, 13, 14)
	sim, err := Simulate(prices, makeSignals(prices, buy, buy, sell, sell, buy), SimConfig{ReferenceCapital: 1000})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	var sides []Side
	var dates []int
	for _, f := range sim.Fills {
		sides = append(sides, f.Side)
		dates = append(dates, int(f.Date.Sub(day0).Hours()/24))
	}
	wantSides := []Side{SideBuy, SideSell, SideBuy}
	wantDates := []int{0, 2, 4}
	if len(sides) != len(wantSides) {
		t.Fatalf("fills = %v on days %v, want %v on %v", sides, dates, wantSides, wantDates)
	}
	for i := range sides {
		if sides[i] != wantSides[i] || dates[i] != wantDates[i] {
			t.Errorf("fill %d = %s on day %d, want %s on day %d", i, sides[i], dates[i], wantSides[i], wantDates[i])
		}
	}

	// re-entry recycles capital rather than adding to it
	if got := sim.TotalInvested(); got != 1000 {
		t.Errorf("TotalInvested = %v, want 1000", got)
	}
}

func TestSimulate_TakeProfit(t *testing.T) {
	prices := makePrices(100, 105, 111, 120)
	sim, err := Simulate(prices, makeSignals(prices, buy, buy, buy, buy), SimConfig{
		ReferenceCapital: 1000,
		TakeProfitPct:    0.10,
		StopLossPct:      0.10,
	})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	st := sim.States[2]
	if st.Forced != ForceTakeProfit || st.Effective != sell {
		t.Errorf("day 2 = forced %q effective %q, want take_profit sell", st.Forced, st.Effective)
	}
	if st.Signal != buy {
		t.Errorf("strategy signal rewritten to %q", st.Signal)
	}
	if !almostEqual(st.Cash, 1110) || st.Shares != 0 {
		t.Errorf("after take-profit cash = %v shares = %v, want 1110 and 0", st.Cash, st.Shares)
	}
	// prior strategy signal was buy, so no re-entry on day 3
	if sim.States[3].Shares != 0 {
		t.Errorf("re-entered after forced exit without a new buy transition")
	}
	if len(sim.Fills) != 2 || sim.Fills[1].Reason != ForceTakeProfit {
		t.Errorf("Fills = %+v", sim.Fills)
	}
}

func TestSimulate_StopLoss(t *testing.T) {
	prices := makePrices(100, 95, 89, 80)
	sim, err := Simulate(prices, makeSignals(prices, buy, hold, hold, hold), SimConfig{
		ReferenceCapital: 1000,
		StopLossPct:      0.10,
	})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if sim.States[1].Forced != ForceNone {
		t.Errorf("stop-loss fired early at 95")
	}
	if sim.States[2].Forced != ForceStopLoss {
		t.Errorf("day 2 forced = %q, want stop_loss", sim.States[2].Forced)
	}
	if !almostEqual(sim.States[3].Value, 890) {
		t.Errorf("final value = %v, want 890", sim.States[3].Value)
	}
}

func TestSimulate_RiskChecksDisabled(t *testing.T) {
	prices := makePrices(100, 200, 10)
	sim, err := Simulate(prices, makeSignals(prices, buy, hold, hold), SimConfig{ReferenceCapital: 1000})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	for _, s := range sim.States {
		if s.Forced != ForceNone {
			t.Errorf("forced %q with thresholds disabled", s.Forced)
		}
	}
}

func TestSimulate_PnLSignalDriven(t *testing.T) {
	prices := makePrices(100, 110, 99)
	sim, err := Simulate(prices, makeSignals(prices, buy, sell, buy), SimConfig{Stake: 1000})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if sim.Mode != CapitalModePnL {
		t.Fatalf("Mode = %q, want pnl", sim.Mode)
	}
	if sim.States[0].Value != 0 || sim.States[0].Cash != -1000 {
		t.Errorf("day 0 = %+v, want value 0 cash -1000", sim.States[0])
	}
	if !almostEqual(sim.States[1].Value, 100) {
		t.Errorf("day 1 value = %v, want 100", sim.States[1].Value)
	}
	// re-entry deploys stake plus realised profit
	if !almostEqual(sim.Fills[2].Amount, 1100) {
		t.Errorf("re-entry amount = %v, want 1100", sim.Fills[2].Amount)
	}
	if sim.TotalInvested() != 1000 || sim.FirstInvestment != 1000 {
		t.Errorf("TotalInvested = %v FirstInvestment = %v, want 1000", sim.TotalInvested(), sim.FirstInvestment)
	}
}

func TestSimulate_PnLModeWithCapitalUsesCapitalAsStake(t *testing.T) {
	prices := makePrices(50)
	sim, err := Simulate(prices, makeSignals(prices, buy), SimConfig{
		Mode:             CapitalModePnL,
		ReferenceCapital: 2000,
		Stake:            10,
	})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if sim.Fills[0].Amount != 2000 {
		t.Errorf("amount = %v, want 2000", sim.Fills[0].Amount)
	}
}

func TestSimulate_PeriodicPnL(t *testing.T) {
	prices := makePrices(100, 50)
	sim, err := Simulate(prices, periodicSignals(prices, 100), SimConfig{})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	last := sim.States[1]
	if !almostEqual(last.Shares, 3) || !almostEqual(last.Cash, -200) {
		t.Errorf("shares = %v cash = %v, want 3 and -200", last.Shares, last.Cash)
	}
	if !almostEqual(last.Value, -50) {
		t.Errorf("value = %v, want -50", last.Value)
	}
	if !almostEqual(last.CostBasis, 200.0/3) {
		t.Errorf("cost basis = %v, want %v", last.CostBasis, 200.0/3)
	}
	if last.CumulativeInvested != 200 || last.Invested != 100 {
		t.Errorf("invested = %v (this period %v), want 200 (100)", last.CumulativeInvested, last.Invested)
	}
}

func TestSimulate_PeriodicReferenceNeedsCash(t *testing.T) {
	prices := makePrices(10, 10, 10)
	sim, err := Simulate(prices, periodicSignals(prices, 100), SimConfig{ReferenceCapital: 150})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if len(sim.Fills) != 1 {
		t.Errorf("fills = %d, want 1", len(sim.Fills))
	}
	if sim.States[2].Cash != 50 {
		t.Errorf("cash = %v, want 50", sim.States[2].Cash)
	}
}

func TestSimulate_CumulativeInvestedNonDecreasing(t *testing.T) {
	prices := makePrices(100, 90, 80, 120, 130, 70, 60, 75)
	sim, err := Simulate(prices, periodicSignals(prices, 250), SimConfig{
		Commission:  commission.Fixed(1),
		StopLossPct: 0.2,
	})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	for i := 1; i < len(sim.States); i++ {
		if sim.States[i].CumulativeInvested < sim.States[i-1].CumulativeInvested {
			t.Errorf("cumulative invested decreased at %d", i)
		}
	}
}

func TestSimulate_Misaligned(t *testing.T) {
	prices := makePrices(1, 2, 3)
	signals := makeSignals(prices[:2], buy, hold)
	if _, err := Simulate(prices, signals, SimConfig{}); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}

	shifted := makeSignals(prices, buy, hold, hold)
	shifted.Points[1].Date = shifted.Points[1].Date.AddDate(0, 0, 1)
	if _, err := Simulate(prices, shifted, SimConfig{}); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid for date mismatch, got %v", err)
	}
}

func TestSimulate_Empty(t *testing.T) {
	sim, err := Simulate(nil, core.SignalSeries{}, SimConfig{ReferenceCapital: 100})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if sim.Len() != 0 || sim.TotalInvested() != 0 {
		t.Errorf("expected empty simulation, got %+v", sim)
	}
}
