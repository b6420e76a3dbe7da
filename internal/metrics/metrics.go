package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Counter is a monotonic counter safe for concurrent use.
type Counter struct {
	n uint64
}

func (c *Counter) Add(delta uint64) {
	atomic.AddUint64(&c.n, delta)
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.n, 1)
}

func (c *Counter) Count() uint64 {
	return atomic.LoadUint64(&c.n)
}

// Rate tracks the fraction of boolean observations that were true.
// Its value is always within [0, 1]; with no observations it reports 0.
type Rate struct {
	trues uint64
	total uint64
}

func (r *Rate) Observe(ok bool) {
	atomic.AddUint64(&r.total, 1)
	if ok {
		atomic.AddUint64(&r.trues, 1)
	}
}

func (r *Rate) Value() float64 {
	// Load trues before total. Observe increments total first, so a read
	// interleaved with a writer can only undercount trues, never see
	// trues > total, keeping the value within [0, 1].
	trues := atomic.LoadUint64(&r.trues)
	total := atomic.LoadUint64(&r.total)
	if total == 0 {
		return 0
	}
	return float64(trues) / float64(total)
}

func (r *Rate) Total() uint64 {
	return atomic.LoadUint64(&r.total)
}

// Registry holds all metrics for one run, keyed by name. Workers and the
// health monitor share a single Registry; a test constructs its own isolated
// instance. Metric handles are created on first use and never removed.
type Registry struct {
	mu       sync.Mutex
	counters map[string]*Counter
	rates    map[string]*Rate
	trends   map[string]*Trend
}

func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*Counter),
		rates:    make(map[string]*Rate),
		trends:   make(map[string]*Trend),
	}
}

func (g *Registry) Counter(name string) *Counter {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.counters[name]
	if !ok {
		c = &Counter{}
		g.counters[name] = c
	}
	return c
}

func (g *Registry) Rate(name string) *Rate {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rates[name]
	if !ok {
		r = &Rate{}
		g.rates[name] = r
	}
	return r
}

func (g *Registry) Trend(name string) *Trend {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.trends[name]
	if !ok {
		t = NewTrend()
		g.trends[name] = t
	}
	return t
}

// Snapshot is a point-in-time copy of every metric's value. Taking one never
// blocks writers; values recorded while the snapshot is in progress may or
// may not be included.
type Snapshot struct {
	Counters map[string]uint64     `json:"counters"`
	Rates    map[string]float64    `json:"rates"`
	Trends   map[string]TrendStats `json:"trends"`
}

func (g *Registry) Snapshot() Snapshot {
	g.mu.Lock()
	counters := make(map[string]*Counter, len(g.counters))
	for name, c := range g.counters {
		counters[name] = c
	}
	rates := make(map[string]*Rate, len(g.rates))
	for name, r := range g.rates {
		rates[name] = r
	}
	trends := make(map[string]*Trend, len(g.trends))
	for name, t := range g.trends {
		trends[name] = t
	}
	g.mu.Unlock()

	snap := Snapshot{
		Counters: make(map[string]uint64, len(counters)),
		Rates:    make(map[string]float64, len(rates)),
		Trends:   make(map[string]TrendStats, len(trends)),
	}
	for name, c := range counters {
		snap.Counters[name] = c.Count()
	}
	for name, r := range rates {
		snap.Rates[name] = r.Value()
	}
	for name, t := range trends {
		snap.Trends[name] = t.Stats()
	}
	return snap
}

// Names returns the sorted names of all registered metrics.
func (g *Registry) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(g.counters)+len(g.rates)+len(g.trends))
	for name := range g.counters {
		names = append(names, name)
	}
	for name := range g.rates {
		names = append(names, name)
	}
	for name := range g.trends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
