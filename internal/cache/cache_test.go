package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/bundlecache/internal/compiler"
)

// fakePipeline returns a fresh artifact per call and counts calls.
type fakePipeline struct {
	mu    sync.Mutex
	calls int
	err   error
	block chan struct{}
}

func (p *fakePipeline) Compile(_ context.Context, req compiler.Request, opts compiler.Options) (*compiler.Artifact, error) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	err := p.err
	p.mu.Unlock()

	if p.block != nil {
		<-p.block
	}

	if err != nil {
		return nil, err
	}

	buf := []byte(fmt.Sprintf("/* %s #%d */", req.String(), n))
	artifact := &compiler.Artifact{Buffer: buf, Fingerprint: compiler.Fingerprint(buf)}
	if opts.Gzip {
		gz, err := compiler.Gzip(buf)
		if err != nil {
			return nil, err
		}
		artifact.Gzip = gz
	}
	return artifact, nil
}

func (p *fakePipeline) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *fakePipeline) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func TestCache_BypassModes(t *testing.T) {
	for _, mode := range []compiler.CacheMode{compiler.CacheOff, compiler.CacheDynamic} {
		t.Run(string(mode), func(t *testing.T) {
			p := &fakePipeline{}
			c := New(p)

			first, err := c.Compile(context.Background(), compiler.FileRequest("a.js"), compiler.Options{Cache: mode})
			require.NoError(t, err)
			second, err := c.Compile(context.Background(), compiler.FileRequest("a.js"), compiler.Options{Cache: mode})
			require.NoError(t, err)

			assert.Equal(t, 2, p.callCount(), "every call should compile")
			assert.NotSame(t, first, second)

			count, _, err := c.Stats()
			require.NoError(t, err)
			assert.Equal(t, 0, count, "nothing is stored outside static mode")
		})
	}
}

func TestCache_StaticHit(t *testing.T) {
	p := &fakePipeline{}
	c := New(p)
	opts := compiler.Options{Cache: compiler.CacheStatic, Gzip: true}

	first, err := c.Compile(context.Background(), compiler.FileRequest("a.js"), opts)
	require.NoError(t, err)

	require.NotEmpty(t, first.Gzip)
	assert.Equal(t, compiler.Fingerprint(first.Buffer), first.Fingerprint)

	second, err := c.Compile(context.Background(), compiler.FileRequest("a.js"), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, p.callCount(), "the pipeline should run once")
	assert.Same(t, first, second, "a hit returns the stored artifact")

	count, size, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, first.Size(), size)
}

func TestCache_StaticKeyIsRequestIdentity(t *testing.T) {
	p := &fakePipeline{}
	c := New(p)
	opts := compiler.Options{Cache: compiler.CacheStatic}

	requests := []compiler.Request{
		compiler.FileRequest("a.js"),
		compiler.FileRequest("b.js"),
		compiler.ModulesRequest(compiler.Named("lodash"), compiler.Named("jquery")),
		compiler.ModulesRequest(compiler.Named("jquery"), compiler.Named("lodash")),
		compiler.ModulesRequest(compiler.Named("lodash"), compiler.Exposed("jquery", "$")),
	}

	for _, req := range requests {
		_, err := c.Compile(context.Background(), req, opts)
		require.NoError(t, err)
	}
	for _, req := range requests {
		_, err := c.Compile(context.Background(), req, opts)
		require.NoError(t, err)
	}

	assert.Equal(t, len(requests), p.callCount(), "each distinct identity compiles once")
}

func TestCache_FailuresAreNotCached(t *testing.T) {
	p := &fakePipeline{err: fmt.Errorf("%w: cannot find module", compiler.ErrBundle)}
	c := New(p)
	opts := compiler.Options{Cache: compiler.CacheStatic}

	_, err := c.Compile(context.Background(), compiler.FileRequest("a.js"), opts)
	require.ErrorIs(t, err, compiler.ErrBundle)

	count, _, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	p.setErr(nil)
	artifact, err := c.Compile(context.Background(), compiler.FileRequest("a.js"), opts)
	require.NoError(t, err)
	assert.NotNil(t, artifact)
	assert.Equal(t, 2, p.callCount(), "the failed request compiles again")
}

func TestCache_StaticConcurrentRequestsCoalesce(t *testing.T) {
	const callers = 10

	p := &fakePipeline{block: make(chan struct{})}
	c := New(p)
	opts := compiler.Options{Cache: compiler.CacheStatic}

	results := make([]*compiler.Artifact, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			artifact, err := c.Compile(context.Background(), compiler.FileRequest("a.js"), opts)
			assert.NoError(t, err)
			results[i] = artifact
		}()
	}

	require.Eventually(t, func() bool { return p.callCount() == 1 }, time.Second, time.Millisecond)
	close(p.block)
	wg.Wait()

	assert.Equal(t, 1, p.callCount())
	for _, artifact := range results {
		assert.Same(t, results[0], artifact)
	}
}

func TestCache_UncachedConcurrentRequestsCoalesce(t *testing.T) {
	const callers = 5

	p := &fakePipeline{block: make(chan struct{})}
	c := New(p)

	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Compile(context.Background(), compiler.FileRequest("a.js"), compiler.Options{})
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return p.callCount() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(p.block)
	wg.Wait()

	assert.Equal(t, 1, p.callCount(), "identical in-flight requests share one compile")

	_, err := c.Compile(context.Background(), compiler.FileRequest("a.js"), compiler.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, p.callCount(), "sequential uncached requests compile again")
}

func TestCache_DifferentOptionsDoNotShareFlight(t *testing.T) {
	p := &fakePipeline{}
	c := New(p)

	plain, err := c.Compile(context.Background(), compiler.FileRequest("a.js"), compiler.Options{})
	require.NoError(t, err)
	zipped, err := c.Compile(context.Background(), compiler.FileRequest("a.js"), compiler.Options{Gzip: true})
	require.NoError(t, err)

	assert.Nil(t, plain.Gzip)
	assert.NotNil(t, zipped.Gzip)
}

func TestCache_CallerCancellation(t *testing.T) {
	p := &fakePipeline{block: make(chan struct{})}
	c := New(p)
	opts := compiler.Options{Cache: compiler.CacheStatic}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Eventually(t, func() bool { return p.callCount() == 1 }, time.Second, time.Millisecond)
		cancel()
	}()

	_, err := c.Compile(ctx, compiler.FileRequest("a.js"), opts)
	require.ErrorIs(t, err, context.Canceled)

	close(p.block)
	require.Eventually(t, func() bool {
		count, _, err := c.Stats()
		return err == nil && count == 1
	}, time.Second, time.Millisecond, "the abandoned compile still populates the cache")

	_, err = c.Compile(context.Background(), compiler.FileRequest("a.js"), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, p.callCount())
}

func TestCache_InvalidRequest(t *testing.T) {
	p := &fakePipeline{}
	c := New(p)

	_, err := c.Compile(context.Background(), compiler.Request{}, compiler.Options{Cache: compiler.CacheStatic})
	require.ErrorIs(t, err, compiler.ErrInvalidRequest)
	assert.Equal(t, 0, p.callCount())
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(string) (*compiler.Artifact, bool, error) {
	return nil, false, errors.New("disk on fire")
}

func (brokenStore) Put(string, *compiler.Artifact) error { return errors.New("disk on fire") }
func (brokenStore) Stats() (int, int64, error)           { return 0, 0, errors.New("disk on fire") }
func (brokenStore) Clear() error                         { return errors.New("disk on fire") }
func (brokenStore) Close() error                         { return nil }

func TestCache_StoreFailuresDegrade(t *testing.T) {
	p := &fakePipeline{}
	c := New(p, WithStore(brokenStore{}))

	artifact, err := c.Compile(context.Background(), compiler.FileRequest("a.js"), compiler.Options{Cache: compiler.CacheStatic})
	require.NoError(t, err)
	assert.NotNil(t, artifact)

	assert.Error(t, c.Clear())
}

func TestCache_Clear(t *testing.T) {
	p := &fakePipeline{}
	c := New(p)
	opts := compiler.Options{Cache: compiler.CacheStatic}

	_, err := c.Compile(context.Background(), compiler.FileRequest("a.js"), opts)
	require.NoError(t, err)

	require.NoError(t, c.Clear())

	_, err = c.Compile(context.Background(), compiler.FileRequest("a.js"), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, p.callCount())
	assert.NoError(t, c.Close())
}

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		req  compiler.Request
		want string
	}{
		{"path", compiler.FileRequest("a.js"), `"a.js"`},
		{"modules", compiler.ModulesRequest(compiler.Named("lodash"), compiler.Exposed("jquery", "$")), `["lodash",{"jquery":{"expose":"$"}}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := Key(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestFlightKey(t *testing.T) {
	req := compiler.FileRequest("a.js")

	plain, err := flightKey(req, compiler.Options{})
	require.NoError(t, err)
	again, err := flightKey(req, compiler.Options{})
	require.NoError(t, err)
	zipped, err := flightKey(req, compiler.Options{Gzip: true})
	require.NoError(t, err)

	assert.Equal(t, plain, again)
	assert.NotEqual(t, plain, zipped)
}
