package collector

import (
	"sort"
	"sync"
)

type entry struct {
	collector Collector
	priority  int
}

// Registry manages collectors in priority order
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]entry
}

// NewRegistry creates a new collector registry
func NewRegistry() *Registry {
	return &Registry{
		collectors: make(map[string]entry),
	}
}

// Register adds a collector. Lower priority values are tried first.
func (r *Registry) Register(c Collector, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors[c.Name()] = entry{collector: c, priority: priority}
}

// Get retrieves a collector by name
func (r *Registry) Get(name string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.collectors[name]
	return e.collector, ok
}

// GetAll returns all registered collectors ordered by priority, then name
func (r *Registry) GetAll() []Collector {
	r.mu.RLock()
	entries := make([]entry, 0, len(r.collectors))
	for _, e := range r.collectors {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].collector.Name() < entries[j].collector.Name()
	})

	result := make([]Collector, len(entries))
	for i, e := range entries {
		result[i] = e.collector
	}
	return result
}

// Names returns registered collector names in priority order
func (r *Registry) Names() []string {
	all := r.GetAll()
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = c.Name()
	}
	return names
}
