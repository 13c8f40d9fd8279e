// Package depcache tracks the dependency files a bundler has read together
// with their modification times, so warm dependency records can be reused
// across compiles and dropped as soon as the file behind them changes.
//
// Before each dynamic compile the pipeline calls Refresh, which re-stats every
// tracked file and evicts records whose modification time differs from the
// one observed when the record was stored (or whose file is gone). Concurrent
// Refresh calls share a single filesystem pass.
package depcache

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Norgate-AV/bundlecache/internal/bundler"
)

// DefaultConcurrency bounds the number of stat calls in flight during a scan.
const DefaultConcurrency = 16

// StatFunc returns a file's modification time. Values are only compared for
// equality.
type StatFunc func(path string) (int64, error)

// Stat is the default StatFunc backed by os.Stat.
func Stat(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	return info.ModTime().UnixNano(), nil
}

// scan is one in-flight refresh pass shared by every caller that arrives
// while it runs.
type scan struct {
	done    chan struct{}
	waiters int
}

// Cache is the dependency table plus the modification times observed for
// each record.
type Cache struct {
	mu      sync.Mutex
	entries map[string]bundler.Dep
	mtimes  map[string]int64
	pending *scan
	scans   int

	stat    StatFunc
	workers int
	logger  *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithStat replaces the filesystem stat function.
func WithStat(fn StatFunc) Option {
	return func(c *Cache) {
		c.stat = fn
	}
}

// WithConcurrency sets the maximum number of concurrent stat calls.
// Values <= 0 use DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(c *Cache) {
		c.workers = n
	}
}

// WithLogger sets the logger used for eviction diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates an empty dependency cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]bundler.Dep),
		mtimes:  make(map[string]int64),
		stat:    Stat,
		workers: DefaultConcurrency,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if c.workers <= 0 {
		c.workers = DefaultConcurrency
	}
	if c.stat == nil {
		c.stat = Stat
	}
	return c
}

func (c *Cache) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Refresh brings the cache in line with the filesystem. A caller arriving
// while a scan is in flight joins that scan and returns when it completes,
// even though the scan began before the call. Otherwise Refresh starts a new
// scan and waits for it.
//
// ctx only bounds the wait; the scan itself always runs to completion.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()

	if len(c.mtimes) == 0 {
		c.mu.Unlock()
		return nil
	}

	if p := c.pending; p != nil {
		p.waiters++
		c.mu.Unlock()
		return wait(ctx, p.done)
	}

	p := &scan{done: make(chan struct{}), waiters: 1}
	c.pending = p
	c.scans++

	observed := make(map[string]int64, len(c.mtimes))
	for path, mtime := range c.mtimes {
		observed[path] = mtime
	}
	c.mu.Unlock()

	go c.run(p, observed)

	return wait(ctx, p.done)
}

func (c *Cache) run(p *scan, observed map[string]int64) {
	var g errgroup.Group
	g.SetLimit(c.workers)

	for path, mtime := range observed {
		if !c.tracked(path) {
			continue
		}

		g.Go(func() error {
			current, err := c.stat(path)
			if err != nil || current != mtime {
				c.evict(path)
				c.log().Debug("evicted dependency", "path", path, "error", err)
			}
			return nil
		})
	}

	_ = g.Wait()

	c.mu.Lock()
	c.pending = nil
	waiters := p.waiters
	c.mu.Unlock()

	c.log().Debug("dependency scan complete", "files", len(observed), "waiters", waiters)
	close(p.done)
}

func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tracked reports whether path still has a record. Paths that only have a
// timestamp left are treated as already evicted.
func (c *Cache) tracked(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[path]
	return ok
}

func (c *Cache) evict(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, path)
	delete(c.mtimes, path)
}

// Record stores dep with the modification time observed for it.
func (c *Cache) Record(dep bundler.Dep, mtime int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[dep.ID] = dep
	c.mtimes[dep.ID] = mtime
}

// Track stats dep's file and records it. Stat failures leave the cache
// untouched and are returned to the caller.
func (c *Cache) Track(dep bundler.Dep) error {
	mtime, err := c.stat(dep.ID)
	if err != nil {
		return err
	}

	c.Record(dep, mtime)
	return nil
}

// Snapshot returns a copy of the dependency records for a bundler.
func (c *Cache) Snapshot() bundler.DepCache {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(bundler.DepCache, len(c.entries))
	for path, dep := range c.entries {
		out[path] = dep
	}
	return out
}

// Has reports whether path has a record.
func (c *Cache) Has(path string) bool {
	return c.tracked(path)
}

// Len returns the number of records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Paths returns the tracked paths in sorted order.
func (c *Cache) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	paths := make([]string, 0, len(c.mtimes))
	for path := range c.mtimes {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Scans returns how many filesystem passes Refresh has started.
func (c *Cache) Scans() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.scans
}

// Clear drops every record.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]bundler.Dep)
	c.mtimes = make(map[string]int64)
}
