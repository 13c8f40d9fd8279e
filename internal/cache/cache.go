// Package cache memoizes compiled bundles by request identity.
//
// The cache sits in front of the compile pipeline:
//
//  1. Requests with caching off or in dynamic mode go straight to the
//     pipeline, which manages its own freshness through the dependency cache
//  2. Static requests are keyed by the canonical encoding of the request
//     identity; a hit returns the stored artifact without compiling
//  3. A static miss compiles and stores the artifact, failures are never
//     stored
//
// In every mode concurrent identical requests share one in-flight compile.
// Artifacts live in a Store: an in-memory map (optionally LRU-bounded) or an
// opt-in BoltDB file that survives restarts. Keys in a persistent store also
// carry the options fingerprint, so a later run with different options
// compiles again.
package cache

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/Norgate-AV/bundlecache/internal/compiler"
)

// Pipeline compiles a request. *compiler.Compiler implements it.
type Pipeline interface {
	Compile(ctx context.Context, req compiler.Request, opts compiler.Options) (*compiler.Artifact, error)
}

// Cache is the static output cache.
type Cache struct {
	pipeline Pipeline
	store    Store
	flight   singleflight.Group
	logger   *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore sets the artifact store. The default is an unbounded MemoryStore.
func WithStore(store Store) Option {
	return func(c *Cache) {
		c.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a cache in front of pipeline.
func New(pipeline Pipeline, opts ...Option) *Cache {
	c := &Cache{pipeline: pipeline}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	return c
}

func (c *Cache) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Store returns the artifact store.
func (c *Cache) Store() Store {
	return c.store
}

// Compile returns the artifact for req, compiling it when the cache cannot
// serve it.
func (c *Cache) Compile(ctx context.Context, req compiler.Request, opts compiler.Options) (*compiler.Artifact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	static := opts.Cache == compiler.CacheStatic

	var key string
	if static {
		k, err := c.storeKey(req, opts)
		if err != nil {
			return nil, err
		}
		key = k

		if artifact, ok := c.lookup(key); ok {
			c.log().Debug("cache hit", "request", req.String())
			return artifact, nil
		}
	}

	fk, err := flightKey(req, opts)
	if err != nil {
		return nil, err
	}

	ch := c.flight.DoChan(fk, func() (any, error) {
		// Another flight may have stored the artifact after our lookup.
		if static {
			if artifact, ok := c.lookup(key); ok {
				return artifact, nil
			}
		}

		artifact, err := c.pipeline.Compile(context.WithoutCancel(ctx), req, opts)
		if err != nil {
			return nil, err
		}

		if static {
			if err := c.store.Put(key, artifact); err != nil {
				c.log().Warn("failed to store artifact", "request", req.String(), "error", err)
			}
		}

		return artifact, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.log().Debug("joined in-flight compile", "request", req.String())
		}
		artifact, _ := res.Val.(*compiler.Artifact) //nolint:errcheck // always *compiler.Artifact when Err is nil
		return artifact, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// persistent is implemented by stores whose entries outlive the process.
type persistent interface {
	Persistent() bool
}

func (c *Cache) storeKey(req compiler.Request, opts compiler.Options) (string, error) {
	if p, ok := c.store.(persistent); ok && p.Persistent() {
		return flightKey(req, opts)
	}
	return Key(req)
}

func (c *Cache) lookup(key string) (*compiler.Artifact, bool) {
	artifact, ok, err := c.store.Get(key)
	if err != nil {
		c.log().Warn("cache lookup failed, compiling", "error", err)
		return nil, false
	}
	return artifact, ok
}

// Stats returns the number of stored artifacts and their total size.
func (c *Cache) Stats() (int, int64, error) {
	return c.store.Stats()
}

// Clear removes every stored artifact.
func (c *Cache) Clear() error {
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Close releases the store.
func (c *Cache) Close() error {
	return c.store.Close()
}
