package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/lookback/internal/backtest"
	"github.com/newthinker/lookback/internal/collector"
	"github.com/newthinker/lookback/internal/collector/csvfile"
	"github.com/newthinker/lookback/internal/collector/eastmoney"
	"github.com/newthinker/lookback/internal/collector/yahoo"
	"github.com/newthinker/lookback/internal/commission"
	"github.com/newthinker/lookback/internal/config"
	"github.com/newthinker/lookback/internal/core"
	"github.com/newthinker/lookback/internal/metrics"
	"github.com/newthinker/lookback/internal/storage/archive"
	"github.com/newthinker/lookback/internal/storage/pricecache"
	"github.com/newthinker/lookback/internal/strategy"
	"github.com/newthinker/lookback/internal/strategy/builtin"
)

// App wires price collection, caching, strategies, the backtester and the
// report archive into one service
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Registry
	collectors *collector.Registry
	strategies *strategy.Registry
	cache      pricecache.Cache
	scheduler  *pricecache.Scheduler
	backtester *backtest.Backtester
	reports    *archive.Reports
	now        func() time.Time

	custom     []collector.Collector
	archiveSet bool
}

// Option configures an App
type Option func(*App)

// WithMetrics records run, fetch and cache metrics into reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(a *App) { a.metrics = reg }
}

// WithCollectors replaces the configured collectors, tried in the given order
func WithCollectors(cs ...collector.Collector) Option {
	return func(a *App) { a.custom = cs }
}

// WithArchive stores reports in s regardless of the archive config. A nil
// storage disables archiving.
func WithArchive(s archive.Storage) Option {
	return func(a *App) {
		a.archiveSet = true
		if s != nil {
			a.reports = archive.NewReports(s)
		}
	}
}

// WithCache replaces the configured price cache
func WithCache(c pricecache.Cache) Option {
	return func(a *App) { a.cache = c }
}

// WithClock sets the clock used for default date windows and report times
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New builds an App from configuration
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		collectors: collector.NewRegistry(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.setupCollectors(); err != nil {
		return nil, err
	}
	if err := a.setupCache(); err != nil {
		return nil, err
	}
	if !a.archiveSet && cfg.Archive.Enabled {
		storage, err := archive.New(archive.Config{
			Type: cfg.Archive.Type,
			Path: cfg.Archive.Path,
			S3:   archive.S3Config(cfg.Archive.S3),
		})
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		a.reports = archive.NewReports(storage)
	}

	var fetchRecorder collector.FetchRecorder
	var cacheRecorder pricecache.HitRecorder
	if a.metrics != nil {
		fetchRecorder = a.metrics
		cacheRecorder = a.metrics
	}

	fallback := collector.NewFallback(a.collectors.GetAll(), logger.Named("collector"), fetchRecorder)
	provider := pricecache.NewProvider(fallback, a.cache, logger.Named("pricecache"), cacheRecorder)

	a.strategies = builtin.NewRegistry(logger.Named("strategy"))
	a.backtester = backtest.New(provider, a.strategies,
		backtest.WithLogger(logger.Named("backtest")),
		backtest.WithDefaultStake(cfg.Backtest.DefaultStake),
	)

	logger.Info("app initialized",
		zap.Strings("collectors", a.collectors.Names()),
		zap.Strings("strategies", a.strategies.Names()),
		zap.String("cache", cfg.Cache.Type),
		zap.Bool("archive", a.reports != nil),
	)
	return a, nil
}

// setupCollectors registers the custom collectors, or else every enabled
// collector from config
func (a *App) setupCollectors() error {
	if len(a.custom) > 0 {
		for i, c := range a.custom {
			a.collectors.Register(c, i)
		}
		return nil
	}

	factories := map[string]func() collector.Collector{
		"eastmoney": func() collector.Collector { return eastmoney.New() },
		"yahoo":     func() collector.Collector { return yahoo.New() },
		"csv":       func() collector.Collector { return csvfile.New() },
	}
	for name, cc := range a.cfg.Collectors {
		if !cc.Enabled {
			continue
		}
		factory, ok := factories[name]
		if !ok {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown collector %q", name))
		}
		c := factory()
		if err := c.Init(collector.Config{
			Enabled:  cc.Enabled,
			Priority: cc.Priority,
			BaseDir:  cc.BaseDir,
			Timeout:  cc.Timeout,
		}); err != nil {
			return fmt.Errorf("collector %s: %w", name, err)
		}
		a.collectors.Register(c, cc.Priority)
	}
	if len(a.collectors.Names()) == 0 {
		return core.WrapError(core.ErrConfigMissing, errors.New("no collectors enabled"))
	}
	return nil
}

func (a *App) setupCache() error {
	if a.cache != nil {
		return nil
	}
	cc := a.cfg.Cache
	switch cc.Type {
	case config.CacheNone:
		a.cache = pricecache.NewNoop()
	case config.CacheSQLite:
		c, err := pricecache.NewSQLite(cc.Path, cc.TTL)
		if err != nil {
			return err
		}
		a.cache = c
	case "", config.CacheMemory:
		a.cache = pricecache.NewMemory(cc.MaxEntries, cc.TTL)
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown cache type %q", cc.Type))
	}
	return nil
}

// Start begins background work: the scheduled cache purge, if configured
func (a *App) Start(ctx context.Context) error {
	if a.cfg.Cache.PurgeSchedule == "" {
		return nil
	}
	s, err := pricecache.NewScheduler(ctx, a.cache, a.cfg.Cache.PurgeSchedule, a.logger.Named("pricecache"))
	if err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	a.scheduler = s
	s.Start()
	a.logger.Info("price cache purge scheduled", zap.String("schedule", a.cfg.Cache.PurgeSchedule))
	return nil
}

// Close stops background work and releases the cache
func (a *App) Close() error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if closer, ok := a.cache.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Config returns the app configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// Strategies returns the strategy registry
func (a *App) Strategies() *strategy.Registry {
	return a.strategies
}

// ArchiveEnabled reports whether completed runs are archived
func (a *App) ArchiveEnabled() bool {
	return a.reports != nil
}

// WithDefaults fills what a request leaves out from configuration. Unless
// both dates are given the window is the last default_range_days days. A nil
// capital takes the configured initial capital; an explicit 0 is kept and
// selects PnL mode.
func (a *App) WithDefaults(req backtest.Request, capital *float64) backtest.Request {
	if req.Start.IsZero() || req.End.IsZero() {
		req.End = core.TruncateDay(a.now())
		req.Start = req.End.AddDate(0, 0, -a.cfg.Backtest.DefaultRangeDays)
	}
	if capital != nil {
		req.ReferenceCapital = *capital
	} else if req.CapitalMode != backtest.CapitalModePnL {
		req.ReferenceCapital = a.cfg.Backtest.InitialCapital
	}
	if req.BenchmarkSymbol == "" {
		req.BenchmarkSymbol = a.cfg.Backtest.Benchmark
	}
	if req.Commission.Type == "" {
		req.Commission = a.cfg.Backtest.Commission.Resolve()
	}
	if req.Commission.Type == "" {
		req.Commission = commission.None()
	}
	return req
}

// Run executes one backtest and returns its report
func (a *App) Run(ctx context.Context, req backtest.Request) (*backtest.Report, error) {
	_, report, err := a.RunDetailed(ctx, req)
	return report, err
}

// RunDetailed executes one backtest, archives the report when archiving is
// enabled, and returns both the unrounded result and the report. An archive
// failure is logged and does not fail the run.
func (a *App) RunDetailed(ctx context.Context, req backtest.Request) (*backtest.Result, *backtest.Report, error) {
	start := time.Now()

	result, err := a.backtester.Run(ctx, req)
	if err != nil {
		status := metrics.StatusFailed
		if core.IsCallerError(err) {
			status = metrics.StatusInvalid
		}
		a.recordBacktest(req.Strategy, status, time.Since(start))
		a.logger.Warn("backtest failed",
			zap.String("symbol", req.Symbol),
			zap.String("strategy", req.Strategy),
			zap.String("status", status),
			zap.Error(err),
		)
		return nil, nil, err
	}

	report := backtest.BuildReport(result)
	report.ID = uuid.New().String()
	created := a.now().UTC()
	report.CreatedAt = &created

	if a.reports != nil {
		path, err := a.reports.Save(ctx, report)
		if err != nil {
			a.logger.Error("archiving report failed",
				zap.String("id", report.ID),
				zap.Error(err),
			)
		} else {
			a.logger.Debug("report archived", zap.String("path", path))
		}
	}

	a.recordBacktest(req.Strategy, metrics.StatusSuccess, time.Since(start))
	return result, report, nil
}

// Archived loads a previously archived report
func (a *App) Archived(ctx context.Context, id string) (*backtest.Report, error) {
	if a.reports == nil {
		return nil, core.WrapError(core.ErrNotFound, errors.New("archive is disabled"))
	}
	return a.reports.Load(ctx, id)
}

// ArchivedIDs lists archived report ids, newest first
func (a *App) ArchivedIDs(ctx context.Context) ([]string, error) {
	if a.reports == nil {
		return []string{}, nil
	}
	return a.reports.List(ctx)
}

func (a *App) recordBacktest(strategy, status string, d time.Duration) {
	if a.metrics != nil {
		a.metrics.RecordBacktest(strategy, status, d.Seconds())
	}
}
