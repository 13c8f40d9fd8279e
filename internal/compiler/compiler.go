// Package compiler runs the bundle pipeline: dependency cache refresh, job
// construction, bundling, source map rewriting, minification, fingerprinting
// and gzip.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Norgate-AV/bundlecache/internal/bundler"
	"github.com/Norgate-AV/bundlecache/internal/depcache"
)

// Compiler runs compiles against a bundler. The dependency cache is shared by
// every dynamic-mode compile it runs.
type Compiler struct {
	bundler  bundler.Bundler
	minifier bundler.Minifier
	deps     *depcache.Cache
	logger   *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithMinifier sets the minifier used when Options.Minify is set.
func WithMinifier(m bundler.Minifier) Option {
	return func(c *Compiler) {
		c.minifier = m
	}
}

// WithDepCache sets the dependency cache used in dynamic mode.
func WithDepCache(deps *depcache.Cache) Option {
	return func(c *Compiler) {
		c.deps = deps
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// New creates a compiler for b. Without WithDepCache a private dependency
// cache is created.
func New(b bundler.Bundler, opts ...Option) *Compiler {
	c := &Compiler{bundler: b}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if c.deps == nil {
		c.deps = depcache.New(depcache.WithLogger(c.logger))
	}
	return c
}

func (c *Compiler) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Deps returns the dependency cache.
func (c *Compiler) Deps() *depcache.Cache {
	return c.deps
}

// Compile bundles req and post-processes the output.
//
// The compile runs to completion in its own goroutine even if ctx is done;
// ctx only bounds how long the caller waits for it. The outcome is delivered
// once.
func (c *Compiler) Compile(ctx context.Context, req Request, opts Options) (*Artifact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	res := newResult()
	go c.run(req, opts, res, false)

	return res.wait(ctx)
}

func (c *Compiler) run(req Request, opts Options, res *result, refreshed bool) {
	dynamic := opts.Cache == CacheDynamic

	if dynamic && !refreshed {
		if err := c.deps.Refresh(context.Background()); err != nil {
			c.log().Warn("dependency refresh failed", "error", err)
		}
		c.run(req, opts, res, true)
		return
	}

	job := BuildJob(req, opts)

	var recording sync.WaitGroup
	if dynamic {
		job.OnDep(func(dep bundler.Dep) {
			recording.Add(1)
			go func() {
				defer recording.Done()
				if err := c.deps.Track(dep); err != nil {
					c.log().Debug("dependency not cached", "path", dep.ID, "error", err)
				}
			}()
		})
	}

	for _, name := range opts.External {
		job.AddExternal(name)
	}
	for _, name := range opts.Ignore {
		job.AddIgnore(name)
	}
	for _, name := range opts.Transform {
		job.AddTransform(name)
	}

	cache := bundler.DepCache{}
	if dynamic {
		cache = c.deps.Snapshot()
	}

	c.log().Debug("bundling", "request", req.String(), "cache", string(opts.Cache), "warm", len(cache))

	src, err := c.bundle(job, opts.Flags(), cache)
	recording.Wait()
	if err != nil {
		res.fail(fmt.Errorf("%w: %w", ErrBundle, err))
		return
	}

	src = c.postProcess(src, opts)
	buf := []byte(src)

	artifact := &Artifact{
		Buffer:      buf,
		Fingerprint: Fingerprint(buf),
	}

	if opts.Gzip {
		gz, err := Gzip(buf)
		if err != nil {
			res.fail(fmt.Errorf("%w: %w", ErrCompress, err))
			return
		}
		artifact.Gzip = gz
	}

	res.resolve(artifact, nil)
}

func (c *Compiler) bundle(job *bundler.Job, flags bundler.Flags, cache bundler.DepCache) (src string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bundler panic: %v", r)
		}
	}()

	return c.bundler.Bundle(context.Background(), job, flags, cache)
}

// postProcess rewrites source maps and minifies. Neither step can fail the
// compile: on error the input is passed through.
func (c *Compiler) postProcess(src string, opts Options) string {
	if opts.Debug {
		if opts.Basedir != "" {
			src = c.rewrite(src, func(s string) (string, error) { return relativeSources(s, opts.Basedir) })
		}
		src = c.rewrite(src, unixifySources)
	}

	if opts.Minify != nil {
		if c.minifier == nil {
			c.log().Warn("minify requested but no minifier configured")
			return src
		}

		minified, err := c.minify(src, *opts.Minify)
		if err != nil {
			c.log().Warn("minification failed, serving unminified source", "error", err)
			return src
		}
		src = minified
	}

	return src
}

func (c *Compiler) rewrite(src string, fn func(string) (string, error)) string {
	out, err := fn(src)
	if err != nil {
		if !errors.Is(err, errNoSourceMap) {
			c.log().Warn("source map rewrite failed", "error", err)
		}
		return src
	}
	return out
}

func (c *Compiler) minify(src string, opts bundler.MinifyOptions) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("minifier panic: %v", r)
		}
	}()

	return c.minifier.Minify(src, opts)
}
