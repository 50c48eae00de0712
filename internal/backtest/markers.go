package backtest

import (
	"sort"

	"github.com/newthinker/lookback/internal/core"
)

// ExtractTradeMarkers places buy and sell markers on the portfolio curve.
//
// The first period only ever carries a buy, and only when its effective
// signal is a buy. After that, periodic runs mark every period where capital
// was actually deployed, and signal-driven runs mark strategy transitions: a
// buy on a move into +1 from 0 or -1, a sell on a move into -1 from 0 or +1.
// Risk-control liquidations are marked as sells in both cases.
func ExtractTradeMarkers(states []PortfolioState, periodic bool) TradeMarkers {
	markers := TradeMarkers{Buy: []TradeMarker{}, Sell: []TradeMarker{}}
	prev := core.ActionHold
	for i, s := range states {
		m := TradeMarker{Date: s.Date, PortfolioValue: s.Value, AssetPrice: s.Close}
		switch {
		case i == 0:
			if s.Effective == core.ActionBuy {
				markers.Buy = append(markers.Buy, m)
			}
		case s.Forced != ForceNone:
			markers.Sell = append(markers.Sell, m)
		case periodic:
			if s.Invested > 0 {
				markers.Buy = append(markers.Buy, m)
			}
		case s.Signal == core.ActionBuy && prev.Value() <= 0:
			markers.Buy = append(markers.Buy, m)
		case s.Signal == core.ActionSell && prev.Value() >= 0:
			markers.Sell = append(markers.Sell, m)
		}
		prev = s.Signal
	}
	markers.Buy = dedupeMarkers(markers.Buy)
	markers.Sell = dedupeMarkers(markers.Sell)
	return markers
}

func dedupeMarkers(in []TradeMarker) []TradeMarker {
	type key struct {
		unix         int64
		value, price float64
	}
	seen := make(map[key]bool, len(in))
	out := make([]TradeMarker, 0, len(in))
	for _, m := range in {
		k := key{m.Date.Unix(), m.PortfolioValue, m.AssetPrice}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
