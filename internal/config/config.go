package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Norgate-AV/bundlecache/internal/bundler"
	"github.com/Norgate-AV/bundlecache/internal/compiler"
)

// Default configuration values
const (
	DefaultCache      = "off"
	DefaultCacheDir   = ""
	DefaultMaxEntries = 0
	DefaultMinify     = false
	DefaultGzip       = false
	DefaultDebug      = false
	DefaultVerbose    = false
	DefaultTimeout    = time.Duration(0)
)

// ErrInvalidConfig is returned when a configuration value is rejected.
var ErrInvalidConfig = errors.New("invalid configuration")

// Holds the configuration options for bundlecache
type Config struct {
	// Cache mode: off, static or dynamic
	Cache compiler.CacheMode

	// Minify the bundle
	Minify bool
	// Individual minifier passes; all false means every pass
	MinifyPasses bundler.MinifyOptions

	// Add a gzip encoding of the bundle
	Gzip bool

	// Emit an inline source map
	Debug bool

	// Base directory for resolution and source map paths
	Basedir string

	External   []string
	Ignore     []string
	Transform  []string
	NoParse    []string
	Extensions []string

	InsertGlobals bool
	DetectGlobals bool
	IgnoreMissing bool

	// Global name for a standalone bundle
	Standalone string

	// Module list used when no entry is given
	Modules []string

	// Directory of the persistent static cache; empty keeps it in memory
	CacheDir string
	// Bound on the in-memory static cache; 0 is unbounded
	MaxEntries int

	// Output file for the bundle; empty writes to stdout
	Out string

	// Enable verbose output
	Verbose bool

	// How long to wait for a compile; 0 waits forever
	Timeout time.Duration
}

func Load() (*Config, error) {
	mode, err := compiler.ParseCacheMode(viper.GetString("cache"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg := &Config{
		Cache:         mode,
		Minify:        viper.GetBool("minify"),
		Gzip:          viper.GetBool("gzip"),
		Debug:         viper.GetBool("debug"),
		Basedir:       viper.GetString("basedir"),
		External:      viper.GetStringSlice("external"),
		Ignore:        viper.GetStringSlice("ignore"),
		Transform:     viper.GetStringSlice("transform"),
		NoParse:       viper.GetStringSlice("no_parse"),
		Extensions:    viper.GetStringSlice("extensions"),
		InsertGlobals: viper.GetBool("insert_globals"),
		DetectGlobals: viper.GetBool("detect_globals"),
		IgnoreMissing: viper.GetBool("ignore_missing"),
		Standalone:    viper.GetString("standalone"),
		Modules:       viper.GetStringSlice("modules"),
		CacheDir:      viper.GetString("cache_dir"),
		MaxEntries:    viper.GetInt("max_entries"),
		Out:           viper.GetString("out"),
		Verbose:       viper.GetBool("verbose"),
		Timeout:       viper.GetDuration("timeout"),
	}

	if viper.IsSet("minify_passes") {
		if err := viper.UnmarshalKey("minify_passes", &cfg.MinifyPasses); err != nil {
			return nil, fmt.Errorf("%w: minify_passes: %w", ErrInvalidConfig, err)
		}
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := compiler.ParseCacheMode(string(c.Cache)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.MaxEntries < 0 {
		return fmt.Errorf("%w: max entries must not be negative: %d", ErrInvalidConfig, c.MaxEntries)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative: %s", ErrInvalidConfig, c.Timeout)
	}

	// Resolve paths
	for _, p := range []*string{&c.Basedir, &c.Out, &c.CacheDir} {
		if *p == "" {
			continue
		}

		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("%w: invalid path %s: %w", ErrInvalidConfig, *p, err)
		}

		*p = abs
	}

	return nil
}

// Options returns the compile options described by the configuration.
func (c *Config) Options() compiler.Options {
	opts := compiler.Options{
		Cache:         c.Cache,
		Gzip:          c.Gzip,
		Debug:         c.Debug,
		Basedir:       c.Basedir,
		External:      c.External,
		Ignore:        c.Ignore,
		Transform:     c.Transform,
		NoParse:       c.NoParse,
		Extensions:    c.Extensions,
		InsertGlobals: c.InsertGlobals,
		DetectGlobals: c.DetectGlobals,
		IgnoreMissing: c.IgnoreMissing,
		Standalone:    c.Standalone,
	}

	if c.Minify {
		passes := c.MinifyPasses
		opts.Minify = &passes
	}

	return opts
}
