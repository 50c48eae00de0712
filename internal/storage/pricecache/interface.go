// Package pricecache memoises price history lookups between runs.
package pricecache

import (
	"context"
	"strings"
	"time"

	"github.com/newthinker/lookback/internal/core"
)

// Cache stores fetched price series by request key
type Cache interface {
	// Get returns the cached series, or nil when absent or expired.
	Get(ctx context.Context, key string) (*core.PriceSeries, error)

	// Put stores a series under key, replacing any previous entry.
	Put(ctx context.Context, key string, series *core.PriceSeries) error

	// Purge drops expired entries and reports how many were removed.
	Purge(ctx context.Context) (int, error)

	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)
}

// Key builds the cache key for a history request
func Key(symbol string, start, end time.Time) string {
	return strings.Join([]string{symbol, keyDate(start), keyDate(end)}, "|")
}

func keyDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(core.DateLayout)
}
