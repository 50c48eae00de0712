package sma_cross

import (
	"fmt"

	"github.com/newthinker/lookback/internal/core"
	"github.com/newthinker/lookback/internal/indicator"
	"github.com/newthinker/lookback/internal/strategy"
)

// SMACross holds while price is above its moving average and stays out
// while it is below
type SMACross struct {
	period int
}

// New creates a new single moving-average strategy
func New(period int) *SMACross {
	return &SMACross{period: period}
}

func (s *SMACross) Name() string {
	return "sma_cross"
}

func (s *SMACross) Kind() strategy.Kind {
	return strategy.KindSMACross
}

func (s *SMACross) Description() string {
	return fmt.Sprintf("Price vs SMA(%d)", s.period)
}

func (s *SMACross) Init(params strategy.Params) error {
	period, err := params.Int("period", s.period)
	if err != nil {
		return err
	}
	if period < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("period must be at least 1, got %d", period))
	}
	s.period = period
	return nil
}

// GenerateSignals emits buy when close > SMA, sell otherwise. Warm-up
// periods have no average and are sell.
func (s *SMACross) GenerateSignals(prices []core.PricePoint) (core.SignalSeries, error) {
	if s.period > len(prices) {
		return core.SignalSeries{}, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("%d periods available, SMA(%d) requested", len(prices), s.period))
	}

	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Close
	}
	ma := indicator.SMASeries(closes, s.period)

	points := strategy.Uniform(prices, core.ActionSell)
	for i := range points {
		// NaN comparisons are false
		if closes[i] > ma[i] {
			points[i].Action = core.ActionBuy
		}
	}
	return core.SignalSeries{Points: points}, nil
}
