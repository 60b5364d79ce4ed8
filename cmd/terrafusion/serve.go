package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/terrafusion/internal/api"
	"github.com/star/terrafusion/internal/cache"
	"github.com/star/terrafusion/internal/observability"
	"github.com/star/terrafusion/internal/render"
	"github.com/star/terrafusion/internal/stream"
	"github.com/star/terrafusion/internal/telemetry"
	"github.com/star/terrafusion/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the render loop and serve the dashboard and API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", "config", cfg)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.painter.Close()

	hub := telemetry.NewHub()
	loop, err := c.newLoop(cfg, render.Options{Publisher: hub, Logger: logger})
	if err != nil {
		return err
	}
	frames := cache.NewFrameCache(c.painter, cfg.FrameCache, logger)
	streams := stream.NewHandler(hub, c.landmass, cfg.Stream, logger)

	srv := api.NewServer(api.Config{
		Addr:       cfg.HTTPAddr,
		Auth:       cfg.Auth,
		TrustProxy: cfg.TrustProxy,
	}, api.Deps{
		Loop:         loop,
		Hub:          hub,
		Registry:     c.reg,
		Frames:       frames,
		Stream:       streams,
		Landmass:     c.landmass,
		Web:          web.Content,
		TickInterval: cfg.FrameInterval,
	}, logger)

	// The globe renders from the first tick; landmass detail arrives when it
	// resolves.
	go c.resolveLandmass(ctx, cfg, logger)
	go frames.Start(ctx)

	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(ctx) }()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.HTTPAddr, "auth_enabled", cfg.Auth.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.Error("server listen error", "error", err)
		stop()
	case err := <-loopErr:
		if ctx.Err() == nil {
			logger.Error("render loop exited", "error", err)
			stop()
		}
	}
	logger.Info("shutting down server...")

	loop.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped", "frames", loop.Frames())
	return nil
}
