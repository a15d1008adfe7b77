// Package main is the entry point for the livefeed live data server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livefeed/config"
	"livefeed/internal/app"
	"livefeed/internal/logging"
	"livefeed/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Server.LogFormat, slog.LevelInfo)

	logger.Info("starting livefeed",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
	)

	if cfg.Server.MasterKey == "" {
		logger.Warn("LIVE_MASTER_KEY not set - live endpoints are unauthenticated")
	} else {
		logger.Info("authentication enabled", "mode", "master_key")
	}

	application := app.New(cfg, logger)

	// Warm the cache before accepting traffic so the first poll does not 404
	// for the standard resources.
	if err := application.Refresher().RefreshTickers(cfg.Feeds.Symbols); err != nil {
		logger.Warn("initial ticker refresh failed, cache starts cold", "error", err)
	}
	if err := application.Refresher().RefreshMatches(); err != nil {
		logger.Warn("initial match refresh failed, cache starts cold", "error", err)
	}

	// Handle graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := application.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	if err := application.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("server stopped gracefully")
		} else {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}
}
