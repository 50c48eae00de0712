package pricecache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/lookback/internal/collector"
	"github.com/newthinker/lookback/internal/core"
)

// Source fetches price history on a cache miss
type Source interface {
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*core.PriceSeries, error)
}

// HitRecorder observes cache lookups
type HitRecorder interface {
	RecordPriceCache(result string)
}

// Provider serves history from a cache, falling through to source on a miss.
// Cache failures are logged and bypassed.
type Provider struct {
	source   Source
	cache    Cache
	logger   *zap.Logger
	recorder HitRecorder
}

// NewProvider wraps source with cache
func NewProvider(source Source, cache Cache, logger *zap.Logger, recorder HitRecorder) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewNoop()
	}
	return &Provider{
		source:   source,
		cache:    cache,
		logger:   logger,
		recorder: recorder,
	}
}

func (p *Provider) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*core.PriceSeries, error) {
	key := Key(collector.NormalizeSymbol(symbol), start, end)

	cached, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn("price cache read failed", zap.String("key", key), zap.Error(err))
	}
	if cached.Len() > 0 {
		p.record("hit")
		return cached, nil
	}
	p.record("miss")

	series, err := p.source.FetchHistory(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if series.Len() > 0 {
		if err := p.cache.Put(ctx, key, series); err != nil {
			p.logger.Warn("price cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return series, nil
}

func (p *Provider) record(result string) {
	if p.recorder != nil {
		p.recorder.RecordPriceCache(result)
	}
}
