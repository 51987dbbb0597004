// Package main is the entry point for the snow density HTTP API.
//
// It loads configuration, wires the prediction service and the artifact
// cache, mounts the routes on the core chassis and serves until SIGINT or
// SIGTERM, then shuts down gracefully.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snowdensity/internal/api/handlers"
	"snowdensity/internal/bootstrap"
	"snowdensity/internal/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := bootstrap.NewLogger(cfg.LogLevel)
	logger.Info("snow density API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"learned_model", cfg.Artifact.Enabled,
	)

	ctx := context.Background()
	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = rt.Metrics
	srv.MetricsHandler = rt.MetricsHandler
	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
		ProbeName: "artifact_cache",
		Fn:        rt.Service.CheckArtifact,
	})

	densityHandler := handlers.NewDensityHandler(rt.Service, core.DefaultMaxBodyBytes, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, densityHandler.RegisterRoutes)
	srv.MountRoutes()

	if rt.Cache != nil {
		// A failed warm-up is retried by the next learned prediction.
		go func() {
			warmCtx, cancel := context.WithTimeout(ctx, cfg.Artifact.FetchTimeout)
			defer cancel()
			if err := rt.Service.Warm(warmCtx); err != nil {
				logger.Warn("artifact warm-up failed", "error", err)
			}
		}()
	}

	return runHTTPServer(srv, cfg.Server.Port, cfg.Server.RequestTimeout, logger)
}

// runHTTPServer serves until a shutdown signal, then drains with a
// 10-second deadline.
func runHTTPServer(srv *core.Server, port string, requestTimeout time.Duration, logger *slog.Logger) error {
	addr := ":" + port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       requestTimeout + 5*time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped cleanly")
	return nil
}
