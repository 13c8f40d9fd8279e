package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/bundlecache/internal/bundler"
	"github.com/Norgate-AV/bundlecache/internal/compiler"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setupViper  func()
		check       func(*testing.T, *Config)
		wantErr     bool
		errContains string
	}{
		{
			name: "load with all defaults",
			setupViper: func() {
				viper.Reset()
				NewLoader().setupViperDefaults()
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, compiler.CacheOff, cfg.Cache)
				assert.False(t, cfg.Minify)
				assert.False(t, cfg.Gzip)
				assert.False(t, cfg.Debug)
				assert.False(t, cfg.Verbose)
				assert.Equal(t, DefaultMaxEntries, cfg.MaxEntries)
				assert.Equal(t, DefaultTimeout, cfg.Timeout)
				assert.Empty(t, cfg.Out)

				assert.Empty(t, cfg.CacheDir, "the static cache stays in memory unless a directory is set")
			},
		},
		{
			name: "load with custom values",
			setupViper: func() {
				viper.Reset()
				viper.Set("cache", "dynamic")
				viper.Set("minify", true)
				viper.Set("gzip", true)
				viper.Set("debug", true)
				viper.Set("basedir", "src")
				viper.Set("external", []string{"react"})
				viper.Set("ignore", []string{"fs"})
				viper.Set("standalone", "MyLib")
				viper.Set("modules", []string{"lodash", "jquery=$"})
				viper.Set("max_entries", 64)
				viper.Set("out", "dist/bundle.js")
				viper.Set("timeout", "30s")
				viper.Set("verbose", true)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, compiler.CacheDynamic, cfg.Cache)
				assert.True(t, cfg.Minify)
				assert.True(t, cfg.Gzip)
				assert.True(t, cfg.Debug)
				assert.True(t, cfg.Verbose)
				assert.Equal(t, []string{"react"}, cfg.External)
				assert.Equal(t, []string{"fs"}, cfg.Ignore)
				assert.Equal(t, "MyLib", cfg.Standalone)
				assert.Equal(t, []string{"lodash", "jquery=$"}, cfg.Modules)
				assert.Equal(t, 64, cfg.MaxEntries)
				assert.Equal(t, 30*time.Second, cfg.Timeout)

				basedir, _ := filepath.Abs("src")
				assert.Equal(t, basedir, cfg.Basedir)
				out, _ := filepath.Abs("dist/bundle.js")
				assert.Equal(t, out, cfg.Out)
			},
		},
		{
			name: "boolean cache spelling",
			setupViper: func() {
				viper.Reset()
				viper.Set("cache", "true")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, compiler.CacheStatic, cfg.Cache)
			},
		},
		{
			name: "minify passes",
			setupViper: func() {
				viper.Reset()
				viper.Set("minify", true)
				viper.Set("minify_passes", map[string]any{"whitespace": true})
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, bundler.MinifyOptions{Whitespace: true}, cfg.MinifyPasses)
			},
		},
		{
			name: "invalid cache mode",
			setupViper: func() {
				viper.Reset()
				viper.Set("cache", "sometimes")
			},
			wantErr:     true,
			errContains: "invalid cache mode",
		},
		{
			name: "negative max entries",
			setupViper: func() {
				viper.Reset()
				viper.Set("max_entries", -1)
			},
			wantErr:     true,
			errContains: "max entries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupViper()

			cfg, err := Load()

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		wantErr     bool
		errContains string
		checkFields func(*testing.T, *Config)
	}{
		{
			name: "relative paths are resolved",
			config: &Config{
				Basedir:  "src",
				Out:      "bundle.js",
				CacheDir: ".cache",
			},
			checkFields: func(t *testing.T, cfg *Config) {
				assert.True(t, filepath.IsAbs(cfg.Basedir))
				assert.True(t, filepath.IsAbs(cfg.Out))
				assert.True(t, filepath.IsAbs(cfg.CacheDir))
			},
		},
		{
			name:   "empty paths stay empty",
			config: &Config{},
			checkFields: func(t *testing.T, cfg *Config) {
				assert.Empty(t, cfg.Basedir)
				assert.Empty(t, cfg.Out)
				assert.Empty(t, cfg.CacheDir)
			},
		},
		{
			name:        "unknown cache mode",
			config:      &Config{Cache: "sometimes"},
			wantErr:     true,
			errContains: "invalid cache mode",
		},
		{
			name:        "negative timeout",
			config:      &Config{Timeout: -time.Second},
			wantErr:     true,
			errContains: "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			require.NoError(t, err)
			if tt.checkFields != nil {
				tt.checkFields(t, tt.config)
			}
		})
	}
}

func TestConfig_Options(t *testing.T) {
	t.Run("minify off", func(t *testing.T) {
		cfg := &Config{Cache: compiler.CacheStatic, Gzip: true, Standalone: "Lib"}

		opts := cfg.Options()

		assert.Equal(t, compiler.CacheStatic, opts.Cache)
		assert.True(t, opts.Gzip)
		assert.Equal(t, "Lib", opts.Standalone)
		assert.Nil(t, opts.Minify)
	})

	t.Run("minify on", func(t *testing.T) {
		cfg := &Config{Minify: true, MinifyPasses: bundler.MinifyOptions{Syntax: true}}

		opts := cfg.Options()

		require.NotNil(t, opts.Minify)
		assert.Equal(t, bundler.MinifyOptions{Syntax: true}, *opts.Minify)

		cfg.MinifyPasses.Whitespace = true
		assert.False(t, opts.Minify.Whitespace, "options do not alias the config")
	})

	t.Run("flags carry over", func(t *testing.T) {
		cfg := &Config{
			InsertGlobals: true,
			DetectGlobals: true,
			IgnoreMissing: true,
			Debug:         true,
			External:      []string{"react"},
			Transform:     []string{"envify"},
		}

		opts := cfg.Options()

		assert.Equal(t, bundler.Flags{
			InsertGlobals: true,
			DetectGlobals: true,
			IgnoreMissing: true,
			Debug:         true,
		}, opts.Flags())
		assert.Equal(t, []string{"react"}, opts.External)
		assert.Equal(t, []string{"envify"}, opts.Transform)
	})
}
