package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/shitsumon/internal/server"
	"github.com/hyperjump/shitsumon/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

var (
	watchCategory string
	watchDirs     []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (and the directory watcher when directories are configured)",
	RunE:  runServe,
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]...",
	Short: "Ingest documents as they appear in directories",
	Long: `Watches directories and keeps the document store in sync: new or changed files are
ingested after a short quiet period, deleted files are removed. Directories given as
arguments are watched in addition to watch.directories from the config.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchCategory, "category", "", "category recorded for ingested files")
	serveCmd.Flags().StringSliceVar(&watchDirs, "watch", nil, "additional directory to watch (repeatable)")
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// startWatcher starts watching dirs and ingests the files already there in the
// background. It returns nil when there is nothing to watch.
func startWatcher(ctx context.Context, g *errgroup.Group, c *Components, dirs []string) (*watcher.Watcher, error) {
	wcfg := cfg.Watch
	wcfg.Directories = append(append([]string(nil), wcfg.Directories...), dirs...)
	if len(wcfg.Directories) == 0 {
		return nil, nil
	}
	w := watcher.New(c.Indexer, wcfg, watcher.WithLogger(logger), watcher.WithCategory(watchCategory))
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	g.Go(func() error {
		n, err := w.SyncExisting(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("initial sync incomplete", zap.Error(err))
		}
		logger.Info("initial sync done", zap.Int("chunks", n))
		return nil
	})
	return w, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	c, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	a, err := c.Assistant()
	if err != nil {
		return err
	}

	srv := server.NewServer(server.Deps{
		Assistant:    a,
		Terms:        c.Terms,
		Examples:     c.Examples,
		Schema:       c.Schema,
		Indexer:      c.Indexer,
		Retriever:    c.Retriever,
		Store:        c.Store,
		HistoryIndex: c.History,
	}, &cfg.Server, logger)

	g, gctx := errgroup.WithContext(ctx)
	w, err := startWatcher(gctx, g, c, watchDirs)
	if err != nil {
		return err
	}
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		if w != nil {
			w.Stop()
		}
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(sctx)
	})
	return g.Wait()
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return withComponents(ctx, func(c *Components) error {
		g, gctx := errgroup.WithContext(ctx)
		w, err := startWatcher(gctx, g, c, args)
		if err != nil {
			return err
		}
		if w == nil {
			return fmt.Errorf("no directories to watch: pass them as arguments or set watch.directories")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "watching %v (Ctrl-C to stop)\n", w.Directories())
		g.Go(func() error {
			<-gctx.Done()
			w.Stop()
			return nil
		})
		return g.Wait()
	})
}
