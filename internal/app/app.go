// Package app provides the main application struct for centralized dependency
// management and lifecycle control of the livefeed server.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"livefeed/config"
	"livefeed/internal/cache"
	"livefeed/internal/feeds"
	"livefeed/internal/observability"
	"livefeed/internal/scheduler"
	"livefeed/internal/server"
	"livefeed/internal/sse"
)

// App owns the live data components: the versioned cache, the SSE hub, the
// background scheduler with its refresh jobs, and the HTTP server. Everything
// is constructed here and passed by handle; there are no package-level
// singletons, so tests can run multiple independent instances.
type App struct {
	config    *config.Config
	cache     *cache.VersionedCache
	hub       *sse.Hub
	sched     *scheduler.Scheduler
	refresher *feeds.Refresher
	server    *server.Server
	logger    *slog.Logger

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates an App with all dependencies initialized. The caller must call
// Shutdown to release resources.
func New(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}

	c := cache.New(cfg.Cache.MaxEntries)
	hub := sse.NewHub(logger,
		sse.WithQueueSize(cfg.SSE.QueueSize),
		sse.WithBackpressure(sse.Backpressure(cfg.SSE.Backpressure)),
	)
	sched := scheduler.New(logger)

	// Each App owns its registry so independent instances never collide on
	// metric registration.
	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metrics = observability.New(registry)
		observability.Register(registry, c, hub)
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	fetcher := newFetcher(cfg, logger)
	refresher := feeds.NewRefresher(c, hub, fetcher, metrics, logger)
	refresher.RegisterJobs(sched, cfg.Feeds.Symbols)

	srv := server.New(c, hub, sched, &server.Config{
		MasterKey:       cfg.Server.MasterKey,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		MetricsHandler:  metricsHandler,
		Heartbeat:       cfg.SSE.Heartbeat,
	})

	return &App{
		config:    cfg,
		cache:     c,
		hub:       hub,
		sched:     sched,
		refresher: refresher,
		server:    srv,
		logger:    logger,
	}
}

func newFetcher(cfg *config.Config, logger *slog.Logger) feeds.Fetcher {
	if cfg.Feeds.Sim || cfg.Feeds.BaseURL == "" {
		logger.Info("using simulated live data feeds")
		return feeds.NewSimFetcher()
	}
	logger.Info("using upstream live data feeds", "base_url", cfg.Feeds.BaseURL)
	return feeds.NewHTTPFetcher(cfg.Feeds.BaseURL, nil)
}

// Start launches the scheduler and serves HTTP on addr, blocking until the
// server stops.
func (a *App) Start(addr string) error {
	a.sched.Start()
	a.logger.Info("live data server starting", "address", addr)
	return a.server.Start(addr)
}

// Shutdown stops the scheduler (blocking until every job loop has exited) and
// gracefully shuts down the HTTP server. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	defer a.shutdownMu.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	a.sched.Stop()
	return a.server.Shutdown(ctx)
}

// Cache exposes the versioned cache, primarily for tests and warmup.
func (a *App) Cache() *cache.VersionedCache { return a.cache }

// Hub exposes the SSE hub.
func (a *App) Hub() *sse.Hub { return a.hub }

// Scheduler exposes the background scheduler.
func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

// Refresher exposes the refresh pipeline for warmup at startup.
func (a *App) Refresher() *feeds.Refresher { return a.refresher }

// ServeHTTP implements http.Handler so the whole app can sit behind httptest.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.server.ServeHTTP(w, r)
}
