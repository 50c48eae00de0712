package buy_and_hold

import (
	"github.com/newthinker/lookback/internal/core"
	"github.com/newthinker/lookback/internal/strategy"
)

// BuyAndHold buys on the first period and holds until the end
type BuyAndHold struct{}

// New creates a new buy-and-hold strategy
func New() *BuyAndHold {
	return &BuyAndHold{}
}

func (b *BuyAndHold) Name() string {
	return "buy_and_hold"
}

func (b *BuyAndHold) Kind() strategy.Kind {
	return strategy.KindBuyAndHold
}

func (b *BuyAndHold) Description() string {
	return "Buy on the first day and hold"
}

func (b *BuyAndHold) Init(params strategy.Params) error {
	return nil
}

func (b *BuyAndHold) GenerateSignals(prices []core.PricePoint) (core.SignalSeries, error) {
	points := strategy.Uniform(prices, core.ActionHold)
	if len(points) > 0 {
		points[0].Action = core.ActionBuy
	}
	return core.SignalSeries{Points: points}, nil
}
