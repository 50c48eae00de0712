package strategy

import (
	"github.com/newthinker/lookback/internal/core"
)

// Kind is the closed set of strategy variants the engine knows how to run
type Kind string

const (
	KindBuyAndHold     Kind = "buy_and_hold"
	KindFixedFrequency Kind = "fixed_frequency"
	KindSMACross       Kind = "sma_cross"
	KindDMACross       Kind = "dma_cross"
)

// Kinds returns every known variant
func Kinds() []Kind {
	return []Kind{KindBuyAndHold, KindFixedFrequency, KindSMACross, KindDMACross}
}

// Valid reports whether k is one of the known variants
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Periodic reports whether the variant invests fixed amounts on a schedule
// instead of reacting to price-derived signals
func (k Kind) Periodic() bool {
	return k == KindFixedFrequency
}

// Strategy turns a price history into a signal series aligned 1:1 with it.
// Implementations must not modify the prices slice.
type Strategy interface {
	Name() string
	Kind() Kind
	Description() string
	Init(params Params) error
	GenerateSignals(prices []core.PricePoint) (core.SignalSeries, error)
}

// Info describes a registered strategy for listings
type Info struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"kind"`
	Description string `json:"description"`
	Periodic    bool   `json:"periodic"`
}

// Uniform builds a series holding the same action on every date
func Uniform(prices []core.PricePoint, action core.Action) []core.SignalPoint {
	points := make([]core.SignalPoint, len(prices))
	for i, p := range prices {
		points[i] = core.SignalPoint{Date: p.Date, Action: action}
	}
	return points
}
