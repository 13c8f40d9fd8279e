package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/bundlecache/internal/cache"
	"github.com/Norgate-AV/bundlecache/internal/compiler"
	"github.com/Norgate-AV/bundlecache/internal/config"
	"github.com/Norgate-AV/bundlecache/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:          "watch [entry | module...]",
	Short:        "Rebuild a bundle when its files change",
	Long:         `Build with the dynamic cache and rebuild whenever a file in the bundle changes.`,
	RunE:         runWatch,
	SilenceUsage: true,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd, args)
	if err != nil {
		return err
	}

	if cfg.Out == "" {
		return fmt.Errorf("%w: watch requires --out", config.ErrInvalidConfig)
	}
	cfg.Cache = compiler.CacheDynamic

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

	w, err := watch.New(watch.DefaultDebounce)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watchBuild(ctx, svc, w, req, cfg, cmd.ErrOrStderr())
}

// watchBuild builds once, then rebuilds on every change signal until ctx is
// done. Failed builds are reported and watching continues.
func watchBuild(ctx context.Context, svc *service, w *watch.Watcher, req compiler.Request, cfg *config.Config, out io.Writer) error {
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	rebuild := func() {
		start := time.Now()

		artifact, err := svc.compile(ctx, req, cfg)
		if err == nil {
			var written []string
			written, err = cache.WriteArtifact(artifact, cfg.Out)
			if err == nil {
				printSummary(out, written, artifact, time.Since(start))
			}
		}
		if err != nil {
			fmt.Fprintf(out, "%s %v\n", red("error"), err)
		}

		// The entry is watched even when the build failed before loading it.
		paths := svc.compiler.Deps().Paths()
		if req.Path != "" {
			paths = append(paths, req.Path)
		}
		if err := w.Track(paths); err != nil {
			fmt.Fprintf(out, "%s %v\n", yellow("warning"), err)
		}
	}

	rebuild()
	fmt.Fprintf(out, "watching %d files\n", w.Len())

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-w.Events():
			if !ok {
				return nil
			}
			rebuild()
		}
	}
}
