// Package builtin wires the shipped strategies into a registry.
package builtin

import (
	"github.com/newthinker/lookback/internal/strategy"
	"github.com/newthinker/lookback/internal/strategy/buy_and_hold"
	"github.com/newthinker/lookback/internal/strategy/fixed_frequency"
	"github.com/newthinker/lookback/internal/strategy/ma_crossover"
	"github.com/newthinker/lookback/internal/strategy/sma_cross"
	"go.uber.org/zap"
)

// Factories returns a factory for every built-in strategy with its defaults
func Factories() []strategy.Factory {
	return []strategy.Factory{
		func() strategy.Strategy { return buy_and_hold.New() },
		func() strategy.Strategy { return fixed_frequency.New() },
		func() strategy.Strategy { return sma_cross.New(20) },
		func() strategy.Strategy { return ma_crossover.New(10, 30) },
	}
}

// NewRegistry returns a registry holding all built-in strategies
func NewRegistry(logger *zap.Logger) *strategy.Registry {
	reg := strategy.NewRegistry(logger)
	for _, f := range Factories() {
		// built-ins always carry a valid kind
		_ = reg.Register(f)
	}
	return reg
}
