package compiler

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/bundlecache/internal/bundler"
)

// CacheMode selects which cache, if any, serves a request.
type CacheMode string

const (
	// CacheOff compiles every request.
	CacheOff CacheMode = ""

	// CacheStatic memoizes compiled output by request identity.
	CacheStatic CacheMode = "static"

	// CacheDynamic reuses dependency records until their files change.
	CacheDynamic CacheMode = "dynamic"
)

// ParseCacheMode parses a cache mode name. Boolean spellings are accepted:
// true selects static, false selects off.
func ParseCacheMode(s string) (CacheMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "none", "false", "0":
		return CacheOff, nil
	case "static", "true", "1":
		return CacheStatic, nil
	case "dynamic":
		return CacheDynamic, nil
	default:
		return CacheOff, fmt.Errorf("%w: %q", ErrInvalidCacheMode, s)
	}
}

// Options configure one compile.
type Options struct {
	// Cache selects the static or dynamic cache
	Cache CacheMode `json:"cache,omitempty"`

	// Minify enables minification when non-nil
	Minify *bundler.MinifyOptions `json:"minify,omitempty"`

	// Gzip adds a gzip encoding of the output
	Gzip bool `json:"gzip,omitempty"`

	// Debug enables inline source maps
	Debug bool `json:"debug,omitempty"`

	// Basedir is used for module resolution and source map paths
	Basedir string `json:"basedir,omitempty"`

	External  []string `json:"external,omitempty"`
	Ignore    []string `json:"ignore,omitempty"`
	Transform []string `json:"transform,omitempty"`

	NoParse    []string            `json:"noParse,omitempty"`
	Extensions []string            `json:"extensions,omitempty"`
	Resolve    bundler.ResolveFunc `json:"-"`

	InsertGlobals bool `json:"insertGlobals,omitempty"`
	DetectGlobals bool `json:"detectGlobals,omitempty"`
	IgnoreMissing bool `json:"ignoreMissing,omitempty"`

	// Standalone is the global export name; empty disables it
	Standalone string `json:"standalone,omitempty"`
}

// Validate checks the cache mode and resolves Basedir to an absolute path.
func (o *Options) Validate() error {
	switch o.Cache {
	case CacheOff, CacheStatic, CacheDynamic:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCacheMode, o.Cache)
	}

	if o.Basedir != "" {
		abs, err := filepath.Abs(o.Basedir)
		if err != nil {
			return fmt.Errorf("invalid basedir: %w", err)
		}
		o.Basedir = abs
	}

	return nil
}

// Flags returns the bundler flags for these options.
func (o Options) Flags() bundler.Flags {
	return bundler.Flags{
		InsertGlobals: o.InsertGlobals,
		DetectGlobals: o.DetectGlobals,
		IgnoreMissing: o.IgnoreMissing,
		Debug:         o.Debug,
		Standalone:    o.Standalone,
	}
}

// Fingerprint returns a canonical encoding of the options. Resolve hooks are
// not part of it.
func (o Options) Fingerprint() string {
	data, err := json.Marshal(o)
	if err != nil {
		return ""
	}
	return string(data)
}
