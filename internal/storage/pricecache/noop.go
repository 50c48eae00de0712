package pricecache

import (
	"context"

	"github.com/newthinker/lookback/internal/core"
)

// Noop is used when caching is disabled.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (Noop) Get(_ context.Context, _ string) (*core.PriceSeries, error) { return nil, nil }
func (Noop) Put(_ context.Context, _ string, _ *core.PriceSeries) error { return nil }
func (Noop) Purge(_ context.Context) (int, error) { return 0, nil }
func (Noop) Len(_ context.Context) (int, error) { return 0, nil }
