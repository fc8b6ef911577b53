package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/quilltap/quilltap/internal/api"
	plug "github.com/quilltap/quilltap/internal/plugin"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the plugin runtime and admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a := newApp(cfg)
			return runServe(cmd.Context(), a)
		},
	}
}

func runServe(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.scan()
	a.compileAndVerify(ctx)

	rescan := func(ctx context.Context) {
		a.scan()
		a.compileAndVerify(ctx)
	}

	if a.cfg.Plugins.Watch {
		watcher := plug.NewWatcher(a.scanner, rescan, a.logger)
		if err := watcher.Start(ctx); err != nil {
			a.logger.Warn("plugin hot reload unavailable", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	if schedule := a.cfg.Plugins.SweepSchedule; schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(schedule, func() { rescan(ctx) }); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
		}
		c.Start()
		defer c.Stop()
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           api.NewServer(a.cfg, a.plugins, a.scanner, a.compiler, a.loader, a.providers, a.translator, a.metrics, a.logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("admin API listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
