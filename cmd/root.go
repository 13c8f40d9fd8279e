package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Norgate-AV/bundlecache/internal/codes"
	"github.com/Norgate-AV/bundlecache/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "bundlecache",
	Short:         "Caching JavaScript bundler",
	Long:          `Bundle JavaScript entry files or module lists, with static and dynamic build caches`,
	RunE:          runBuild,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.ArbitraryArgs,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		code := codes.ExitCode(err)
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", color.RedString("error"), codes.GetErrorMessage(code), err)
		os.Exit(code)
	}
}

// addBuildFlags registers the flags shared by build and watch.
func addBuildFlags(flags *pflag.FlagSet) {
	flags.String("cache", "", "Cache mode: off, static or dynamic")
	flags.Bool("minify", false, "Minify the bundle")
	flags.Bool("gzip", false, "Write a gzip encoding next to the bundle")
	flags.Bool("debug", false, "Emit an inline source map")
	flags.String("basedir", "", "Base directory for resolution and source map paths")
	flags.StringSlice("external", []string{}, "Modules left out of the bundle")
	flags.StringSlice("ignore", []string{}, "Modules replaced by an empty module")
	flags.StringSlice("transform", []string{}, "Registered transforms to apply")
	flags.StringSlice("no-parse", []string{}, "Files that are not parsed for imports")
	flags.StringSlice("extensions", []string{}, "Extra extensions tried during resolution")
	flags.Bool("insert-globals", false, "Define Node globals for the browser")
	flags.Bool("detect-globals", false, "Define Node globals that are referenced")
	flags.Bool("ignore-missing", false, "Replace unresolved imports with empty modules")
	flags.String("standalone", "", "Expose the bundle under this global name")
	flags.Bool("modules", false, "Treat arguments as module names (name or name=expose)")
	flags.StringP("out", "o", "", "Output file for the bundle (default stdout)")
	flags.Duration("timeout", 0, "Stop waiting for a compile after this long")
}

// addCommonFlags registers the flags every command understands.
func addCommonFlags(flags *pflag.FlagSet) {
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.String("cache-dir", "", "Persist the static cache in this directory (default in memory)")
	flags.Int("max-entries", 0, "Bound on the in-memory static cache (0 is unbounded)")
}

func init() {
	rootCmd.Version = version.String()
	addBuildFlags(rootCmd.PersistentFlags())
	addCommonFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cacheCmd)
}
