package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/priceloom/priceloom/internal/config"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the sync engine until interrupted",
		Long: `Keep the remote subscription open and continuously reconcile local
and remote state. Edits made from other devices appear in the local
cache; local edits made by other priceloom invocations are not picked
up while watch runs, because each invocation owns its own engine.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watchConfig(ctx, logger)
	})

	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	if a.awaitSync() {
		statusf("Synced. Watching for changes (Ctrl-C to stop).\n")
	} else {
		statusf("Watching for changes (Ctrl-C to stop).\n")
	}

	err = g.Wait()

	// Flush pending writes before the engine goes away.
	a.syncer.Flush()

	if errors.Is(err, context.Canceled) {
		statusf("Stopped.\n")
		return nil
	}

	return err
}

// watchConfig reloads the config file when it changes on disk. Log level
// changes take effect on the next command; a changed server URL needs a
// restart, which is logged as a warning.
func watchConfig(ctx context.Context, logger *slog.Logger) error {
	path := config.DefaultConfigPath()
	if flagConfigPath != "" {
		path = flagConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		// No config file to watch; nothing to do.
		<-ctx.Done()
		return ctx.Err()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := config.Load(path)
			if err != nil {
				logger.Warn("config reload failed", slog.String("error", err.Error()))
				continue
			}

			if cfg.Server.URL != resolvedCfg.Server.URL {
				logger.Warn("server url changed, restart watch to apply",
					slog.String("url", cfg.Server.URL))
			}

			resolvedCfg = cfg
			logger.Info("config reloaded", slog.String("path", path))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}
