package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/lookback/internal/core"
)

// FetchRecorder observes each collector attempt
type FetchRecorder interface {
	RecordPriceFetch(source, status string)
}

// Fallback tries collectors in order and returns the first non-empty series
type Fallback struct {
	collectors []Collector
	logger     *zap.Logger
	recorder   FetchRecorder
}

// NewFallback creates a fallback chain over collectors, tried in the given order
func NewFallback(collectors []Collector, logger *zap.Logger, recorder FetchRecorder) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{
		collectors: collectors,
		logger:     logger,
		recorder:   recorder,
	}
}

// FetchHistory normalises symbol, then asks each collector serving its market.
// If every collector came back empty the error is ErrNoData, otherwise
// ErrCollectorFailed carrying every cause.
func (f *Fallback) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*core.PriceSeries, error) {
	normalized := NormalizeSymbol(symbol)
	market := DetectMarket(normalized)

	var errs []error
	failed := false
	for _, c := range f.collectors {
		if !Supports(c, market) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		series, err := c.FetchHistory(ctx, normalized, start, end)
		if err == nil && series.Len() == 0 {
			err = core.WrapError(core.ErrNoData, fmt.Errorf("empty series"))
		}
		if err != nil {
			status := "error"
			if errors.Is(err, core.ErrNoData) {
				status = "empty"
			} else {
				failed = true
			}
			f.record(c.Name(), status)
			f.logger.Warn("collector fetch failed, trying next",
				zap.String("collector", c.Name()),
				zap.String("symbol", normalized),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}

		f.record(c.Name(), "ok")
		f.logger.Debug("price history fetched",
			zap.String("collector", c.Name()),
			zap.String("symbol", normalized),
			zap.Int("points", series.Len()),
		)
		return series, nil
	}

	if len(errs) == 0 {
		return nil, core.WrapError(core.ErrCollectorFailed,
			fmt.Errorf("no collector serves market %s for %s", market, normalized))
	}
	if !failed {
		return nil, core.WrapError(core.ErrNoData, errors.Join(errs...))
	}
	return nil, core.WrapError(core.ErrCollectorFailed, errors.Join(errs...))
}

func (f *Fallback) record(source, status string) {
	if f.recorder != nil {
		f.recorder.RecordPriceFetch(source, status)
	}
}
