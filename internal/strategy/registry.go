package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/lookback/internal/core"
	"go.uber.org/zap"
)

// Factory creates a fresh, uninitialized strategy instance
type Factory func() Strategy

// Registry maps strategy names to their factories. Every lookup yields a new
// instance so concurrent runs never share strategy state.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger ...*zap.Logger) *Registry {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    l,
	}
}

// Register adds a strategy factory. The strategy's Kind must be one of the
// known variants.
func (r *Registry) Register(f Factory) error {
	s := f()
	if !s.Kind().Valid() {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("strategy %q has unknown kind %q", s.Name(), s.Kind()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[s.Name()] = f
	return nil
}

// New returns an initialized instance of the named strategy
func (r *Registry) New(name string, params Params) (Strategy, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("%q", name))
	}

	s := f()
	if err := s.Init(params); err != nil {
		return nil, err
	}
	return s, nil
}

// Names returns registered strategy names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe lists registered strategies, sorted by name
func (r *Registry) Describe() []Info {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Info, 0, len(names))
	for _, name := range names {
		s := r.factories[name]()
		result = append(result, Info{
			Name:        s.Name(),
			Kind:        s.Kind(),
			Description: s.Description(),
			Periodic:    s.Kind().Periodic(),
		})
	}
	return result
}

// Generate builds the named strategy and runs it over prices
func (r *Registry) Generate(name string, params Params, prices []core.PricePoint) (core.SignalSeries, error) {
	s, err := r.New(name, params)
	if err != nil {
		return core.SignalSeries{}, err
	}

	signals, err := s.GenerateSignals(prices)
	if err != nil {
		r.logger.Warn("signal generation failed",
			zap.String("strategy", name),
			zap.Error(err),
		)
		return core.SignalSeries{}, err
	}

	if err := signals.AlignsWith(prices); err != nil {
		return core.SignalSeries{}, fmt.Errorf("strategy %s: %w", name, err)
	}
	signals.Periodic = s.Kind().Periodic()

	r.logger.Debug("signals generated",
		zap.String("strategy", name),
		zap.Int("periods", len(signals.Points)),
	)
	return signals, nil
}
