package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/cookbook/internal/history"
	"github.com/steveyegge/cookbook/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generate API and progress streams over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		srv, err := server.New(server.Config{
			Addr:      addr,
			Runner:    a.pipeline,
			Registry:  a.registry,
			History:   a.history,
			RateLimit: cfg.Server.RateLimit,
			RateBurst: cfg.Server.RateBurst,
			Logger:    logger.Named("server"),
		})
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.ListenAndServe(gctx) })
		g.Go(func() error {
			pruneLoop(gctx, a.history, time.Hour)
			return nil
		})
		return g.Wait()
	},
}

// pruneLoop applies the history retention policy until ctx is done
func pruneLoop(ctx context.Context, store *history.Store, every time.Duration) {
	if cfg.History.Retention() == 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if _, err := store.Prune(ctx, time.Now().Add(-cfg.History.Retention()), cfg.History.Keep); err != nil {
			logger.Warn("history prune failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
