// Package bundler defines the contract between the compile pipeline and the
// JavaScript bundling engine, plus an esbuild-backed implementation.
//
// A Bundler receives a Job (what to bundle), a set of Flags (how to bundle)
// and a DepCache of warm dependency records. While it works it reports every
// file it reads from disk through the Job's dependency listeners so callers
// can hand those records back on the next run.
package bundler

import (
	"context"
	"sync"
)

// Dep is one dependency file discovered while bundling.
type Dep struct {
	// ID is the absolute path of the file and the key in a DepCache
	ID string `json:"id" msgpack:"id"`

	// Source is the file content as the bundler read it
	Source string `json:"source" msgpack:"source"`

	// Loader names how the bundler interprets Source (js, jsx, ts, json, ...)
	Loader string `json:"loader" msgpack:"loader"`
}

// DepCache maps dependency paths to warm records. Bundlers must treat it as
// read-only.
type DepCache map[string]Dep

// ResolveFunc overrides module resolution. Returning an empty path defers
// to the bundler's own resolver.
type ResolveFunc func(path, importer string) (string, error)

// Require is a named module registered on a multi-module job.
type Require struct {
	Name   string
	Expose string
}

// Flags control a single bundle operation.
type Flags struct {
	InsertGlobals bool
	DetectGlobals bool
	IgnoreMissing bool
	Debug         bool

	// Standalone is the global export name; empty disables it
	Standalone string
}

// Job describes what to bundle. Build one with NewJob and the registration
// methods; bundlers read the exported fields.
type Job struct {
	Entries    []string
	Requires   []Require
	NoParse    []string
	Extensions []string
	Resolve    ResolveFunc
	Basedir    string
	External   []string
	Ignore     []string
	Transform  []string

	mu        sync.RWMutex
	listeners []func(Dep)
}

// NewJob creates an empty job rooted at basedir.
func NewJob(basedir string) *Job {
	return &Job{Basedir: basedir}
}

// AddEntry adds an entry file.
func (j *Job) AddEntry(path string) {
	j.Entries = append(j.Entries, path)
}

// AddRequire registers a module by name. An empty expose keeps the name.
func (j *Job) AddRequire(name, expose string) {
	j.Requires = append(j.Requires, Require{Name: name, Expose: expose})
}

// AddExternal marks a module as provided by another bundle.
func (j *Job) AddExternal(name string) {
	j.External = append(j.External, name)
}

// AddIgnore replaces a module with an empty object.
func (j *Job) AddIgnore(name string) {
	j.Ignore = append(j.Ignore, name)
}

// AddTransform registers a named source transform.
func (j *Job) AddTransform(name string) {
	j.Transform = append(j.Transform, name)
}

// OnDep subscribes fn to dependency discovery.
func (j *Job) OnDep(fn func(Dep)) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.listeners = append(j.listeners, fn)
}

// EmitDep notifies every listener. Bundlers may call it from several
// goroutines at once.
func (j *Job) EmitDep(dep Dep) {
	j.mu.RLock()
	listeners := j.listeners
	j.mu.RUnlock()

	for _, fn := range listeners {
		fn(dep)
	}
}

// Bundler produces bundle source for a job.
type Bundler interface {
	Bundle(ctx context.Context, job *Job, flags Flags, cache DepCache) (string, error)
}

// MinifyOptions selects minification passes. The zero value enables all of
// them.
type MinifyOptions struct {
	Whitespace  bool `mapstructure:"whitespace" json:"whitespace,omitempty"`
	Identifiers bool `mapstructure:"identifiers" json:"identifiers,omitempty"`
	Syntax      bool `mapstructure:"syntax" json:"syntax,omitempty"`
}

// All reports whether no pass was selected explicitly.
func (o MinifyOptions) All() bool {
	return !o.Whitespace && !o.Identifiers && !o.Syntax
}

// Minifier compresses bundle source.
type Minifier interface {
	Minify(src string, opts MinifyOptions) (string, error)
}
