package pricecache

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler purges expired cache entries on a cron schedule
type Scheduler struct {
	cron   *cron.Cron
	cache  Cache
	logger *zap.Logger
}

// NewScheduler registers a purge of cache at spec (standard 5-field cron or
// a descriptor such as @daily)
func NewScheduler(ctx context.Context, cache Cache, spec string, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:   cron.New(),
		cache:  cache,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.PurgeNow(ctx) }); err != nil {
		return nil, fmt.Errorf("register cache purge %q: %w", spec, err)
	}
	return s, nil
}

// PurgeNow runs one purge immediately
func (s *Scheduler) PurgeNow(ctx context.Context) int {
	n, err := s.cache.Purge(ctx)
	if err != nil {
		s.logger.Error("price cache purge failed", zap.Error(err))
		return 0
	}
	s.logger.Info("price cache purged", zap.Int("removed", n))
	return n
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running purge to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
