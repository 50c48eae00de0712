package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/lookback/internal/commission"
	"github.com/newthinker/lookback/internal/core"
	"github.com/newthinker/lookback/internal/strategy/builtin"
)

type stubProvider struct {
	series map[string]*core.PriceSeries
	errs   map[string]error
	calls  int
}

func (p *stubProvider) FetchHistory(_ context.Context, symbol string, _, _ time.Time) (*core.PriceSeries, error) {
	p.calls++
	if err, ok := p.errs[symbol]; ok {
		return nil, err
	}
	if s, ok := p.series[symbol]; ok {
		return s.Clone(), nil
	}
	return &core.PriceSeries{Symbol: symbol}, nil
}

func seriesOf(symbol string, closes ...float64) *core.PriceSeries {
	return &core.PriceSeries{Symbol: symbol, Name: symbol + " Inc", Points: makePrices(closes...)}
}

func newTestBacktester(p PriceProvider) *Backtester {
	return New(p, builtin.NewRegistry(nil))
}

func TestRequest_Validate(t *testing.T) {
	valid := Request{Symbol: "AAPL", Strategy: "buy_and_hold", ReferenceCapital: 1000}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Request)
		want   *core.Error
	}{
		{"missing symbol", func(r *Request) { r.Symbol = " " }, core.ErrConfigMissing},
		{"missing strategy", func(r *Request) { r.Strategy = "" }, core.ErrConfigMissing},
		{"negative capital", func(r *Request) { r.ReferenceCapital = -1 }, core.ErrConfigInvalid},
		{"negative stop", func(r *Request) { r.StopLossPct = -0.1 }, core.ErrConfigInvalid},
		{"bad mode", func(r *Request) { r.CapitalMode = "margin" }, core.ErrConfigInvalid},
		{"bad commission", func(r *Request) { r.Commission = commission.Schedule{Type: "tiered"} }, core.ErrConfigInvalid},
		{"reversed dates", func(r *Request) {
			r.Start = day0.AddDate(0, 1, 0)
			r.End = day0
		}, core.ErrConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			assert.ErrorIs(t, req.Validate(), tt.want)
		})
	}
}

func TestBacktester_Run(t *testing.T) {
	provider := &stubProvider{series: map[string]*core.PriceSeries{
		"AAPL": seriesOf("AAPL", 100, 110, 121),
	}}
	bt := newTestBacktester(provider)

	result, err := bt.Run(context.Background(), Request{
		Symbol:           "AAPL",
		Strategy:         "buy_and_hold",
		ReferenceCapital: 1000,
	})
	require.NoError(t, err)

	assert.Equal(t, CapitalModeReference, result.Mode)
	assert.Equal(t, "AAPL Inc", result.AssetName)
	assert.InDelta(t, 21, result.Metrics.TotalReturn, 1e-9)
	assert.InDeltaSlice(t, []float64{1000, 1100, 1210}, result.AssetBenchmark.Values, 1e-9)
	assert.Nil(t, result.MarketBenchmark)
	assert.Equal(t, day0, result.StartDate)
	assert.Len(t, result.Markers.Buy, 1)

	report := BuildReport(result)
	assert.Equal(t, 21.0, report.Metrics.TotalReturn)
	assert.Equal(t, []float64{1000, 1100, 1210}, report.ChartData.PortfolioCurve.Values)
}

func TestBacktester_RunErrors(t *testing.T) {
	fetchErr := core.WrapError(core.ErrCollectorFailed, errors.New("boom"))
	provider := &stubProvider{
		series: map[string]*core.PriceSeries{"AAPL": seriesOf("AAPL", 100, 110)},
		errs:   map[string]error{"DOWN": fetchErr},
	}
	bt := newTestBacktester(provider)
	ctx := context.Background()

	_, err := bt.Run(ctx, Request{Symbol: "EMPTY", Strategy: "buy_and_hold"})
	assert.ErrorIs(t, err, core.ErrNoData)

	_, err = bt.Run(ctx, Request{Symbol: "AAPL", Strategy: "nope"})
	assert.ErrorIs(t, err, core.ErrUnknownStrategy)

	_, err = bt.Run(ctx, Request{Symbol: "AAPL", Strategy: "sma_cross"})
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	_, err = bt.Run(ctx, Request{Symbol: "DOWN", Strategy: "buy_and_hold"})
	assert.ErrorIs(t, err, core.ErrCollectorFailed)

	calls := provider.calls
	_, err = bt.Run(ctx, Request{Strategy: "buy_and_hold"})
	assert.ErrorIs(t, err, core.ErrConfigMissing)
	assert.Equal(t, calls, provider.calls, "invalid request must not fetch")
}

func TestBacktester_MarketBenchmark(t *testing.T) {
	provider := &stubProvider{
		series: map[string]*core.PriceSeries{
			"AAPL":   seriesOf("AAPL", 100, 110, 121),
			"000300": {Symbol: "000300", Name: "CSI 300", Points: makePrices(10, 12)},
		},
		errs: map[string]error{"DOWN": errors.New("unreachable")},
	}
	bt := newTestBacktester(provider)

	result, err := bt.Run(context.Background(), Request{
		Symbol: "AAPL", Strategy: "buy_and_hold", ReferenceCapital: 1000, BenchmarkSymbol: "000300",
	})
	require.NoError(t, err)
	require.NotNil(t, result.MarketBenchmark)
	assert.Equal(t, "CSI 300", result.MarketBenchmark.Name)
	assert.InDeltaSlice(t, []float64{1000, 1200, 1200}, result.MarketBenchmark.Values, 1e-9)

	// a failing benchmark is dropped, not fatal
	result, err = bt.Run(context.Background(), Request{
		Symbol: "AAPL", Strategy: "buy_and_hold", ReferenceCapital: 1000, BenchmarkSymbol: "DOWN",
	})
	require.NoError(t, err)
	assert.Nil(t, result.MarketBenchmark)
}

func TestBacktester_StakeResolution(t *testing.T) {
	bt := New(&stubProvider{}, builtin.NewRegistry(nil), WithDefaultStake(500))

	assert.Equal(t, 500.0, bt.stake(Request{}))
	assert.Equal(t, 42.0, bt.stake(Request{Params: map[string]any{"amount": 42.0}}))
	assert.Equal(t, 7.0, bt.stake(Request{Stake: 7, Params: map[string]any{"amount": 42.0}}))
}

func TestBacktester_PnLDefaultStake(t *testing.T) {
	provider := &stubProvider{series: map[string]*core.PriceSeries{"X": seriesOf("X", 10, 12)}}
	bt := newTestBacktester(provider)

	result, err := bt.Run(context.Background(), Request{Symbol: "X", Strategy: "buy_and_hold"})
	require.NoError(t, err)
	assert.Equal(t, CapitalModePnL, result.Mode)
	assert.Equal(t, float64(DefaultStake), result.Simulation.FirstInvestment)
	assert.InDelta(t, 2000, result.Simulation.States[1].Value, 1e-9)
	assert.InDelta(t, 20, result.Metrics.TotalReturn, 1e-9)
}

func TestBacktester_Idempotent(t *testing.T) {
	provider := &stubProvider{series: map[string]*core.PriceSeries{
		"X": seriesOf("X", 10, 10.5, 9.8, 11, 11.4, 10.9, 12, 12.5, 11.7, 13),
	}}
	bt := newTestBacktester(provider)
	req := Request{
		Symbol:           "X",
		Strategy:         "sma_cross",
		Params:           map[string]any{"period": 3},
		ReferenceCapital: 10000,
		Commission:       commission.Percentage(0.0003, 5),
		StopLossPct:      0.05,
	}

	var out [][]byte
	for i := 0; i < 2; i++ {
		result, err := bt.Run(context.Background(), req)
		require.NoError(t, err)
		b, err := json.Marshal(BuildReport(result))
		require.NoError(t, err)
		out = append(out, b)
	}
	assert.JSONEq(t, string(out[0]), string(out[1]))
}

func TestBacktester_EvaluateDoesNotMutateInput(t *testing.T) {
	prices := seriesOf("X", 10, 11, 12)
	before := prices.Clone()
	bt := newTestBacktester(&stubProvider{})

	_, err := bt.Evaluate(Request{Symbol: "X", Strategy: "buy_and_hold", ReferenceCapital: 100}, prices, nil)
	require.NoError(t, err)
	assert.Equal(t, before, prices)
}

func TestBacktester_InvalidSeries(t *testing.T) {
	prices := seriesOf("X", 10, -1)
	bt := newTestBacktester(&stubProvider{})
	_, err := bt.Evaluate(Request{Symbol: "X", Strategy: "buy_and_hold"}, prices, nil)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
