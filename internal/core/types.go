package core

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used across the API and CLI
const DateLayout = "2006-01-02"

// Market represents a trading market
type Market string

const (
	MarketUS  Market = "US"
	MarketHK  Market = "HK"
	MarketCNA Market = "CN_A"
	MarketEU  Market = "EU"
)

// PricePoint is one trading period's close
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is a close-price history for one symbol, ordered by date
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Name   string       `json:"name"`
	Points []PricePoint `json:"points"`
}

// Len returns the number of periods
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// DisplayName returns the series name, falling back to the symbol
func (s *PriceSeries) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Symbol
}

// Dates returns the period dates
func (s *PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date
	}
	return dates
}

// Closes returns the close prices
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Points))
	for i, p := range s.Points {
		closes[i] = p.Close
	}
	return closes
}

// Clone returns a deep copy so callers can't share the backing slice
func (s *PriceSeries) Clone() *PriceSeries {
	if s == nil {
		return nil
	}
	points := make([]PricePoint, len(s.Points))
	copy(points, s.Points)
	return &PriceSeries{Symbol: s.Symbol, Name: s.Name, Points: points}
}

// Validate checks that dates are strictly increasing and closes positive
func (s *PriceSeries) Validate() error {
	for i, p := range s.Points {
		if p.Close <= 0 {
			return WrapError(ErrConfigInvalid,
				fmt.Errorf("non-positive close %v on %s", p.Close, p.Date.Format(DateLayout)))
		}
		if i > 0 && !p.Date.After(s.Points[i-1].Date) {
			return WrapError(ErrConfigInvalid,
				fmt.Errorf("dates not strictly increasing at %s", p.Date.Format(DateLayout)))
		}
	}
	return nil
}

// Action represents a trading signal action
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Value returns the numeric form: buy=+1, hold=0, sell=-1
func (a Action) Value() int {
	switch a {
	case ActionBuy:
		return 1
	case ActionSell:
		return -1
	default:
		return 0
	}
}

// ActionFromValue maps +1/0/-1 back to an Action
func ActionFromValue(v int) Action {
	switch {
	case v > 0:
		return ActionBuy
	case v < 0:
		return ActionSell
	default:
		return ActionHold
	}
}

// SignalPoint is one period's strategy directive
type SignalPoint struct {
	Date             time.Time `json:"date"`
	Action           Action    `json:"action"`
	InvestmentAmount float64   `json:"investment_amount,omitempty"`
}

// SignalSeries is a strategy's output aligned 1:1 with a price series.
// Periodic is set by strategies that attach per-period investment amounts.
type SignalSeries struct {
	Points   []SignalPoint `json:"points"`
	Periodic bool          `json:"periodic"`
}

// AlignsWith reports whether the signals match the price dates one for one
func (s SignalSeries) AlignsWith(prices []PricePoint) error {
	if len(s.Points) != len(prices) {
		return WrapError(ErrConfigInvalid,
			fmt.Errorf("signal series has %d points, price series has %d", len(s.Points), len(prices)))
	}
	for i := range prices {
		if !s.Points[i].Date.Equal(prices[i].Date) {
			return WrapError(ErrConfigInvalid,
				fmt.Errorf("signal date %s does not match price date %s",
					s.Points[i].Date.Format(DateLayout), prices[i].Date.Format(DateLayout)))
		}
	}
	return nil
}

// TruncateDay drops the time-of-day, returning midnight UTC of t's calendar date
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
