package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/bundlecache/internal/bundler"
	"github.com/Norgate-AV/bundlecache/internal/cache"
	"github.com/Norgate-AV/bundlecache/internal/compiler"
	"github.com/Norgate-AV/bundlecache/internal/config"
	"github.com/Norgate-AV/bundlecache/internal/utils"
)

var buildCmd = &cobra.Command{
	Use:          "build [entry | module...]",
	Short:        "Build a bundle",
	Long:         `Bundle an entry file, or a list of modules with --modules, and write the result.`,
	RunE:         runBuild,
	SilenceUsage: true,
}

func runBuild(cmd *cobra.Command, args []string) error {
	start := time.Now()

	cfg, err := config.NewLoader().LoadForBuild(cmd, args)
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)

	req, err := buildRequest(cmd, cfg, args)
	if err != nil {
		return err
	}

	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	if cfg.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Request: %s\nCache: %s\nStore: %s\n", req, cacheName(cfg.Cache), storeName(svc.cache.Store()))
	}

	artifact, err := svc.compile(cmd.Context(), req, cfg)
	if err != nil {
		return err
	}

	return emit(cmd, cfg, artifact, time.Since(start))
}

// buildRequest turns the arguments into a request. Without arguments the
// configured module list is used.
func buildRequest(cmd *cobra.Command, cfg *config.Config, args []string) (compiler.Request, error) {
	modules, _ := cmd.Flags().GetBool("modules")

	switch {
	case modules:
		return compiler.ModulesRequest(utils.ParseModules(args)...), nil
	case len(args) == 1:
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return compiler.Request{}, fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		return compiler.FileRequest(abs), nil
	case len(args) == 0 && len(cfg.Modules) > 0:
		return compiler.ModulesRequest(utils.ParseModules(cfg.Modules)...), nil
	default:
		return compiler.Request{}, fmt.Errorf("%w: requires exactly one entry file, or module names with --modules", compiler.ErrInvalidRequest)
	}
}

// service wires the compile pipeline behind the static output cache.
type service struct {
	compiler *compiler.Compiler
	cache    *cache.Cache
}

func newService(cfg *config.Config, logger *slog.Logger) (*service, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	comp := compiler.New(
		bundler.NewESBuild(bundler.WithLogger(logger)),
		compiler.WithMinifier(bundler.NewESBuildMinifier()),
		compiler.WithLogger(logger),
	)

	return &service{
		compiler: comp,
		cache:    cache.New(comp, cache.WithStore(store), cache.WithLogger(logger)),
	}, nil
}

// newStore opens the persistent store for static builds with a cache
// directory, and an in-memory store otherwise.
func newStore(cfg *config.Config) (cache.Store, error) {
	if cfg.Cache != compiler.CacheStatic || cfg.CacheDir == "" {
		return cache.NewMemoryStore(cache.WithMaxEntries(cfg.MaxEntries)), nil
	}

	return cache.NewBoltStore(cfg.CacheDir)
}

func (s *service) compile(ctx context.Context, req compiler.Request, cfg *config.Config) (*compiler.Artifact, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	artifact, err := s.cache.Compile(ctx, req, cfg.Options())
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", req, err)
	}

	return artifact, nil
}

func (s *service) Close() error {
	return s.cache.Close()
}

// emit writes the artifact and prints a summary. Without an output file the
// bundle goes to stdout and the gzip encoding is dropped.
func emit(cmd *cobra.Command, cfg *config.Config, artifact *compiler.Artifact, elapsed time.Duration) error {
	if cfg.Out == "" {
		_, err := cmd.OutOrStdout().Write(artifact.Buffer)
		return err
	}

	written, err := cache.WriteArtifact(artifact, cfg.Out)
	if err != nil {
		return err
	}

	printSummary(cmd.ErrOrStderr(), written, artifact, elapsed)
	return nil
}

func printSummary(w io.Writer, written []string, artifact *compiler.Artifact, elapsed time.Duration) {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintf(w, "%s %s %s in %s\n", green("built"), written[0], formatBytes(int64(len(artifact.Buffer))), elapsed.Round(time.Millisecond))
	if len(written) > 1 {
		fmt.Fprintf(w, "%s %s %s\n", green("gzip "), written[1], formatBytes(int64(len(artifact.Gzip))))
	}
	fmt.Fprintf(w, "sha256 %s\n", cyan(artifact.Fingerprint))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func cacheName(mode compiler.CacheMode) string {
	if mode == compiler.CacheOff {
		return "off"
	}
	return string(mode)
}

func storeName(store cache.Store) string {
	if bolt, ok := store.(*cache.BoltStore); ok {
		return bolt.Root()
	}
	return "memory"
}
