package backtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/lookback/internal/core"
)

// CapitalMode selects how the portfolio is funded for a run
type CapitalMode string

const (
	// CapitalModeReference starts with ReferenceCapital in cash; values are total account value
	CapitalModeReference CapitalMode = "reference"
	// CapitalModePnL starts from zero cash; values are profit and loss
	CapitalModePnL CapitalMode = "pnl"
)

// ParseCapitalMode parses a mode name. The empty string means "unset".
func ParseCapitalMode(s string) (CapitalMode, error) {
	switch CapitalMode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case CapitalModeReference:
		return CapitalModeReference, nil
	case CapitalModePnL:
		return CapitalModePnL, nil
	}
	return "", core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown capital mode %q", s))
}

// ResolveCapitalMode picks the run's mode: an explicit mode wins, otherwise a
// positive reference capital means Reference and anything else PnL.
func ResolveCapitalMode(explicit CapitalMode, referenceCapital float64) CapitalMode {
	if explicit != "" {
		return explicit
	}
	if referenceCapital > 0 {
		return CapitalModeReference
	}
	return CapitalModePnL
}

// Side is the direction of a fill
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ForceReason explains a risk-control override of the strategy signal
type ForceReason string

const (
	ForceNone       ForceReason = ""
	ForceTakeProfit ForceReason = "take_profit"
	ForceStopLoss   ForceReason = "stop_loss"
)

// PortfolioState is the portfolio at the close of one period
type PortfolioState struct {
	Date   time.Time
	Close  float64
	Signal core.Action // strategy signal
	// Effective is the signal after risk-control overrides
	Effective          core.Action
	Forced             ForceReason
	Cash               float64
	Shares             float64
	CostBasis          float64 // 0 when flat
	CumulativeInvested float64
	Invested           float64 // new capital deployed this period
	Value              float64 // Cash + Shares*Close
}

// Fill is one executed trade
type Fill struct {
	Date   time.Time
	Side   Side
	Price  float64
	Shares float64
	Amount float64 // buy: cash spent including fee; sell: gross proceeds
	Fee    float64
	Reason ForceReason
}

// Simulation is the day-by-day output of Simulate
type Simulation struct {
	Mode            CapitalMode
	Periodic        bool
	States          []PortfolioState
	Fills           []Fill
	FirstInvestment float64
}

// Len returns the number of simulated periods
func (s *Simulation) Len() int {
	return len(s.States)
}

// Values returns the portfolio value curve
func (s *Simulation) Values() []float64 {
	values := make([]float64, len(s.States))
	for i, st := range s.States {
		values[i] = st.Value
	}
	return values
}

// Dates returns the simulated dates
func (s *Simulation) Dates() []time.Time {
	dates := make([]time.Time, len(s.States))
	for i, st := range s.States {
		dates[i] = st.Date
	}
	return dates
}

// TotalInvested returns the capital deployed over the whole run
func (s *Simulation) TotalInvested() float64 {
	if len(s.States) == 0 {
		return 0
	}
	return s.States[len(s.States)-1].CumulativeInvested
}

// Curve is a named value series aligned to dates
type Curve struct {
	Name   string
	Dates  []time.Time
	Values []float64
}

// Len returns the number of points
func (c Curve) Len() int {
	return len(c.Values)
}

// Metrics holds headline performance figures, all in percent except SharpeRatio
type Metrics struct {
	TotalReturn      float64
	AnnualizedReturn float64
	MaxDrawdown      float64 // <= 0
	Volatility       float64
	SharpeRatio      float64
}

// PeriodReturn is the return of one calendar month or year, in percent
type PeriodReturn struct {
	Label string
	Value float64
}

// TradeMarker marks a buy or sell on the portfolio curve
type TradeMarker struct {
	Date           time.Time
	PortfolioValue float64
	AssetPrice     float64
}

// TradeMarkers groups markers by side
type TradeMarkers struct {
	Buy  []TradeMarker
	Sell []TradeMarker
}

// RoundTrip is a position from first entry to full exit
type RoundTrip struct {
	Entry      Fill
	Exit       *Fill // nil if position still open
	EntryPrice float64
	ExitPrice  float64
	Return     float64 // fraction
}

// IsWin returns true if the round trip was profitable
func (t RoundTrip) IsWin() bool {
	return t.Return > 0
}

// IsClosed returns true if the round trip has an exit
func (t RoundTrip) IsClosed() bool {
	return t.Exit != nil
}

// TradeStats summarises round trips
type TradeStats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // percentage of closed trips that were profitable
}

// Result holds the complete, unrounded backtest output
type Result struct {
	Symbol           string
	AssetName        string
	Strategy         string
	StartDate        time.Time
	EndDate          time.Time
	Mode             CapitalMode
	ReferenceCapital float64

	Prices     *core.PriceSeries
	Signals    core.SignalSeries
	Simulation *Simulation

	AssetBenchmark  Curve
	MarketBenchmark *Curve // nil when no index benchmark was requested or available

	Metrics    Metrics
	Monthly    []PeriodReturn
	Yearly     []PeriodReturn
	Markers    TradeMarkers
	Trades     []RoundTrip
	TradeStats TradeStats
}
