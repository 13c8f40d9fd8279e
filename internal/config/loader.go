package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configExts are the config file formats viper reads, in lookup order
var configExts = []string{"yml", "yaml", "json", "toml"}

// flagKeys maps viper keys to the command flags that override them
var flagKeys = map[string]string{
	"cache":          "cache",
	"minify":         "minify",
	"gzip":           "gzip",
	"debug":          "debug",
	"basedir":        "basedir",
	"external":       "external",
	"ignore":         "ignore",
	"transform":      "transform",
	"no_parse":       "no-parse",
	"extensions":     "extensions",
	"insert_globals": "insert-globals",
	"detect_globals": "detect-globals",
	"ignore_missing": "ignore-missing",
	"standalone":     "standalone",
	"cache_dir":      "cache-dir",
	"max_entries":    "max-entries",
	"out":            "out",
	"verbose":        "verbose",
	"timeout":        "timeout",
}

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForBuild loads configuration for build and watch operations
func (l *Loader) LoadForBuild(cmd *cobra.Command, args []string) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig(args)
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("cache", DefaultCache)
	viper.SetDefault("cache_dir", DefaultCacheDir)
	viper.SetDefault("max_entries", DefaultMaxEntries)
	viper.SetDefault("minify", DefaultMinify)
	viper.SetDefault("gzip", DefaultGzip)
	viper.SetDefault("debug", DefaultDebug)
	viper.SetDefault("verbose", DefaultVerbose)
	viper.SetDefault("timeout", DefaultTimeout)
}

// globalConfigDirs lists candidate global config directories in priority order
func globalConfigDirs() []string {
	var dirs []string

	for _, env := range []string{"XDG_CONFIG_HOME", "APPDATA"} {
		if base := os.Getenv(env); base != "" {
			dirs = append(dirs, filepath.Join(base, "bundlecache"))
		}
	}

	return dirs
}

// loadGlobalConfig loads global configuration from XDG_CONFIG_HOME or APPDATA
func (l *Loader) loadGlobalConfig() {
	for _, globalDir := range globalConfigDirs() {
		for _, ext := range configExts {
			globalPath := filepath.Join(globalDir, "config."+ext)

			if _, err := os.Stat(globalPath); err == nil {
				viper.SetConfigFile(globalPath)

				if err := viper.ReadInConfig(); err == nil {
					return
				}
			}
		}
	}
}

// loadLocalConfig loads local configuration from the project directory.
// The search starts next to the first argument, or in the working directory.
func (l *Loader) loadLocalConfig(args []string) {
	dir, err := os.Getwd()
	if err != nil {
		return
	}

	if len(args) > 0 {
		absFirstFile, err := filepath.Abs(args[0])
		if err != nil {
			return // silently ignore, config.Load() will handle validation
		}

		dir = filepath.Dir(absFirstFile)
	}

	localPath := FindLocalConfig(dir)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	for key, name := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			_ = viper.BindPFlag(key, flag)
		}
	}
}
