package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/bundlecache/internal/cache"
	"github.com/Norgate-AV/bundlecache/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the persistent bundle cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats",
	Short:        "Show cache entries and size",
	Args:         cobra.NoArgs,
	RunE:         runCacheStats,
	SilenceUsage: true,
}

var cacheClearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Remove all cached bundles",
	Args:         cobra.NoArgs,
	RunE:         runCacheClear,
	SilenceUsage: true,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

// openStore opens the persistent store named by the configuration.
func openStore(cmd *cobra.Command) (*cache.BoltStore, error) {
	cfg, err := config.NewLoader().LoadForBuild(cmd, nil)
	if err != nil {
		return nil, err
	}

	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("%w: no cache directory configured", config.ErrInvalidConfig)
	}

	return cache.NewBoltStore(cfg.CacheDir)
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	count, size, err := store.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache:   %s\n", store.Root())
	fmt.Fprintf(out, "Entries: %d\n", count)
	fmt.Fprintf(out, "Size:    %s\n", formatBytes(size))

	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("cleared"), store.Root())
	return nil
}
