package ma_crossover

import (
	"fmt"

	"github.com/newthinker/lookback/internal/core"
	"github.com/newthinker/lookback/internal/indicator"
	"github.com/newthinker/lookback/internal/strategy"
)

// MACrossover implements a dual moving average crossover strategy
type MACrossover struct {
	fastPeriod int
	slowPeriod int
	maType     string // "sma" or "ema"
}

// New creates a new MA Crossover strategy
func New(fastPeriod, slowPeriod int) *MACrossover {
	return &MACrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
		maType:     "sma",
	}
}

func (m *MACrossover) Name() string {
	return "dma_cross"
}

func (m *MACrossover) Kind() strategy.Kind {
	return strategy.KindDMACross
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("MA Crossover (%d/%d %s)", m.fastPeriod, m.slowPeriod, m.maType)
}

func (m *MACrossover) Init(params strategy.Params) error {
	fast, err := params.Int("fast", m.fastPeriod)
	if err != nil {
		return err
	}
	slow, err := params.Int("slow", m.slowPeriod)
	if err != nil {
		return err
	}
	maType := params.String("ma_type", m.maType)

	if fast < 1 || slow < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("periods must be at least 1, got fast=%d slow=%d", fast, slow))
	}
	if fast >= slow {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fast period (%d) must be shorter than slow period (%d)", fast, slow))
	}
	if maType != "sma" && maType != "ema" {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("ma_type must be sma or ema, got %q", maType))
	}

	m.fastPeriod = fast
	m.slowPeriod = slow
	m.maType = maType
	return nil
}

// GenerateSignals is buy while the fast average is above the slow one and
// sell otherwise, including the warm-up before the slow average exists
func (m *MACrossover) GenerateSignals(prices []core.PricePoint) (core.SignalSeries, error) {
	if m.slowPeriod > len(prices) || m.fastPeriod > len(prices) {
		return core.SignalSeries{}, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("%d periods available, MA(%d/%d) requested", len(prices), m.fastPeriod, m.slowPeriod))
	}

	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Close
	}

	var fastMA, slowMA []float64
	if m.maType == "ema" {
		fastMA = indicator.EMASeries(closes, m.fastPeriod)
		slowMA = indicator.EMASeries(closes, m.slowPeriod)
	} else {
		fastMA = indicator.SMASeries(closes, m.fastPeriod)
		slowMA = indicator.SMASeries(closes, m.slowPeriod)
	}

	points := strategy.Uniform(prices, core.ActionSell)
	for i := range points {
		if fastMA[i] > slowMA[i] {
			points[i].Action = core.ActionBuy
		}
	}
	return core.SignalSeries{Points: points}, nil
}
