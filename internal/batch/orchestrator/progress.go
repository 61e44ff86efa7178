package orchestrator

import (
	"sync"
	"time"

	"genefetch/internal/core/domain"
	"genefetch/internal/infra/cache"
)

// Stats summarizes a finished (or interrupted) run.
type Stats struct {
	Total     int                            `json:"total"`
	Completed int                            `json:"completed"`
	Succeeded int                            `json:"succeeded"`
	Failed    int                            `json:"failed"`
	ByMethod  map[domain.SelectionMethod]int `json:"by_method,omitempty"`
	ByKind    map[string]int                 `json:"by_kind,omitempty"`

	CacheHitRate float64       `json:"cache_hit_rate"`
	MeanLatency  time.Duration `json:"mean_latency"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Progress is the live view handed to OnProgress and the health
// endpoint after each completed item.
type Progress struct {
	Current      string        `json:"current,omitempty"`
	Completed    int           `json:"completed"`
	Total        int           `json:"total"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	CacheHitRate float64       `json:"cache_hit_rate"`
	Elapsed      time.Duration `json:"elapsed"`
}

// collector accumulates run counters. It has its own lock so that
// Progress reads never contend with the checkpoint mutex.
type collector struct {
	mu        sync.Mutex
	startedAt time.Time
	total     int
	completed int
	succeeded int
	failed    int
	byMethod  map[domain.SelectionMethod]int
	byKind    map[string]int

	itemTime  time.Duration
	itemCount int
}

func newCollector() *collector {
	return &collector{
		byMethod: make(map[domain.SelectionMethod]int),
		byKind:   make(map[string]int),
	}
}

// start seeds the counters. Items carried over from a resumed
// checkpoint count as completed but are not re-attributed to a
// method or failure kind.
func (c *collector) start(total, alreadyDone int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startedAt = time.Now()
	c.total = total
	c.completed = alreadyDone
}

func (c *collector) addSuccess(method domain.SelectionMethod, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed++
	c.succeeded++
	c.byMethod[method]++
	c.itemTime += latency
	c.itemCount++
}

func (c *collector) addFailure(kind string, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed++
	c.failed++
	c.byKind[kind]++
	c.itemTime += latency
	c.itemCount++
}

func (c *collector) snapshot(cs cache.Stats) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	byMethod := make(map[domain.SelectionMethod]int, len(c.byMethod))
	for k, v := range c.byMethod {
		byMethod[k] = v
	}
	byKind := make(map[string]int, len(c.byKind))
	for k, v := range c.byKind {
		byKind[k] = v
	}
	var mean time.Duration
	if c.itemCount > 0 {
		mean = c.itemTime / time.Duration(c.itemCount)
	}
	return Stats{
		Total:        c.total,
		Completed:    c.completed,
		Succeeded:    c.succeeded,
		Failed:       c.failed,
		ByMethod:     byMethod,
		ByKind:       byKind,
		CacheHitRate: cs.HitRate(),
		MeanLatency:  mean,
		Elapsed:      time.Since(c.startedAt),
	}
}

func (c *collector) progress(cs cache.Stats) Progress {
	return c.progressWith("", cs)
}

func (c *collector) progressWith(current string, cs cache.Stats) Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Progress{
		Current:      current,
		Completed:    c.completed,
		Total:        c.total,
		Succeeded:    c.succeeded,
		Failed:       c.failed,
		CacheHitRate: cs.HitRate(),
		Elapsed:      time.Since(c.startedAt),
	}
}
