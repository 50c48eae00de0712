package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/lookback/internal/commission"
	"github.com/newthinker/lookback/internal/core"
	"github.com/newthinker/lookback/internal/strategy"
)

// DefaultStake is the PnL-mode entry notional when nothing else sets one
const DefaultStake = 10000

// PriceProvider fetches daily close history
type PriceProvider interface {
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*core.PriceSeries, error)
}

// Request describes one backtest run
type Request struct {
	Symbol           string
	Start            time.Time
	End              time.Time
	Strategy         string
	Params           strategy.Params
	ReferenceCapital float64
	CapitalMode      CapitalMode // empty resolves from ReferenceCapital
	Stake            float64     // PnL-mode entry notional, 0 uses the strategy amount or default
	Commission       commission.Schedule
	TakeProfitPct    float64
	StopLossPct      float64
	BenchmarkSymbol  string
}

// Validate checks the request before any data is fetched
func (r Request) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return core.WrapError(core.ErrConfigMissing, errors.New("symbol is required"))
	}
	if r.Strategy == "" {
		return core.WrapError(core.ErrConfigMissing, errors.New("strategy is required"))
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return core.WrapError(core.ErrConfigInvalid, errors.New("end date is before start date"))
	}
	if r.ReferenceCapital < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("reference capital %v is negative", r.ReferenceCapital))
	}
	if r.Stake < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("stake %v is negative", r.Stake))
	}
	if r.TakeProfitPct < 0 || r.StopLossPct < 0 {
		return core.WrapError(core.ErrConfigInvalid, errors.New("take-profit and stop-loss must not be negative"))
	}
	if r.CapitalMode != "" && r.CapitalMode != CapitalModeReference && r.CapitalMode != CapitalModePnL {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown capital mode %q", r.CapitalMode))
	}
	return r.Commission.Validate()
}

// Backtester runs strategy backtests against historical data
type Backtester struct {
	provider     PriceProvider
	strategies   *strategy.Registry
	logger       *zap.Logger
	defaultStake float64
}

// Option configures a Backtester
type Option func(*Backtester)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(b *Backtester) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithDefaultStake sets the PnL-mode entry notional used when a request and
// its strategy name none
func WithDefaultStake(stake float64) Option {
	return func(b *Backtester) {
		if stake > 0 {
			b.defaultStake = stake
		}
	}
}

// New creates a new Backtester with the given price provider and strategies
func New(provider PriceProvider, strategies *strategy.Registry, opts ...Option) *Backtester {
	b := &Backtester{
		provider:     provider,
		strategies:   strategies,
		logger:       zap.NewNop(),
		defaultStake: DefaultStake,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run fetches prices and evaluates the request
func (b *Backtester) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prices, err := b.provider.FetchHistory(ctx, req.Symbol, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if prices.Len() == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no price data for %s", req.Symbol))
	}

	var index *core.PriceSeries
	if req.BenchmarkSymbol != "" {
		index, err = b.provider.FetchHistory(ctx, req.BenchmarkSymbol, req.Start, req.End)
		if err != nil {
			b.logger.Warn("benchmark fetch failed, omitting market benchmark",
				zap.String("benchmark", req.BenchmarkSymbol),
				zap.Error(err),
			)
			index = nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Evaluate(req, prices, index)
}

// Evaluate runs the pure part of a backtest on already-fetched series. It
// copies its inputs, so identical inputs always produce identical results.
func (b *Backtester) Evaluate(req Request, prices, index *core.PriceSeries) (*Result, error) {
	if prices.Len() == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no price data for %s", req.Symbol))
	}
	prices = prices.Clone()
	if err := prices.Validate(); err != nil {
		return nil, err
	}

	signals, err := b.strategies.Generate(req.Strategy, req.Params, prices.Points)
	if err != nil {
		return nil, err
	}

	mode := ResolveCapitalMode(req.CapitalMode, req.ReferenceCapital)
	sim, err := Simulate(prices.Points, signals, SimConfig{
		Mode:             mode,
		ReferenceCapital: req.ReferenceCapital,
		Stake:            b.stake(req),
		Commission:       req.Commission,
		TakeProfitPct:    req.TakeProfitPct,
		StopLossPct:      req.StopLossPct,
	})
	if err != nil {
		return nil, err
	}

	basis := BenchmarkBasis(sim, req.ReferenceCapital)
	result := &Result{
		Symbol:           req.Symbol,
		AssetName:        prices.DisplayName(),
		Strategy:         req.Strategy,
		StartDate:        req.Start,
		EndDate:          req.End,
		Mode:             mode,
		ReferenceCapital: req.ReferenceCapital,
		Prices:           prices,
		Signals:          signals,
		Simulation:       sim,
		AssetBenchmark:   AssetBenchmark(prices.Points, mode, basis),
	}
	if result.StartDate.IsZero() {
		result.StartDate = prices.Points[0].Date
	}
	if result.EndDate.IsZero() {
		result.EndDate = prices.Points[len(prices.Points)-1].Date
	}
	result.AssetBenchmark.Name = result.AssetName

	if index.Len() > 0 {
		curve, err := IndexBenchmark(sim.Dates(), index.Clone(), mode, basis)
		if err != nil {
			b.logger.Warn("benchmark alignment failed, omitting market benchmark",
				zap.String("benchmark", index.Symbol),
				zap.Error(err),
			)
		} else {
			result.MarketBenchmark = &curve
		}
	}

	result.Metrics = CalculateMetrics(sim, mode, req.ReferenceCapital)
	result.Monthly = PeriodicReturns(sim.States, mode, PeriodMonth)
	result.Yearly = PeriodicReturns(sim.States, mode, PeriodYear)
	result.Markers = ExtractTradeMarkers(sim.States, sim.Periodic)
	result.Trades, result.TradeStats = CalculateTradeStats(sim.Fills, prices.Points[len(prices.Points)-1].Close)

	b.logger.Info("backtest complete",
		zap.String("symbol", req.Symbol),
		zap.String("strategy", req.Strategy),
		zap.String("mode", string(mode)),
		zap.Int("periods", sim.Len()),
		zap.Int("fills", len(sim.Fills)),
		zap.Float64("total_return", result.Metrics.TotalReturn),
	)
	return result, nil
}

// stake resolves the PnL-mode entry notional: request, then the strategy's
// amount parameter, then the configured default
func (b *Backtester) stake(req Request) float64 {
	if req.Stake > 0 {
		return req.Stake
	}
	if req.Params.Has("amount") {
		if amount, err := req.Params.Float("amount", 0); err == nil && amount > 0 {
			return amount
		}
	}
	return b.defaultStake
}
