package collector

import (
	"context"
	"time"

	"github.com/newthinker/lookback/internal/core"
)

// Config holds collector configuration
type Config struct {
	Enabled  bool
	Priority int
	BaseDir  string
	Timeout  time.Duration
}

// Collector fetches daily close history from one source
type Collector interface {
	// Metadata
	Name() string
	SupportedMarkets() []core.Market

	// Lifecycle
	Init(cfg Config) error

	// FetchHistory returns closes for symbol between start and end inclusive,
	// sorted by date. An empty result is an ErrNoData error.
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*core.PriceSeries, error)
}

// Supports reports whether c serves market
func Supports(c Collector, market core.Market) bool {
	for _, m := range c.SupportedMarkets() {
		if m == market {
			return true
		}
	}
	return false
}
