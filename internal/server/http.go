// Package server provides the live data HTTP surface: config/status
// endpoints, conditional polling with ETags, invalidation, and the SSE stream.
package server

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"livefeed/internal/cache"
	"livefeed/internal/scheduler"
	"livefeed/internal/sse"
)

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MasterKey       string        // Optional: master key for authentication
	MetricsEnabled  bool          // Whether to expose the Prometheus metrics endpoint
	MetricsEndpoint string        // HTTP path for metrics (default: /metrics)
	MetricsHandler  http.Handler  // Optional: handler for a non-default registry
	Heartbeat       time.Duration // Max stream silence before a heartbeat frame
}

// New creates a new HTTP server over the injected live components.
func New(c *cache.VersionedCache, hub *sse.Hub, sched *scheduler.Scheduler, cfg *Config) *Server {
	e := echo.New()
	e.HideBanner = true

	heartbeat := sse.DefaultHeartbeat
	if cfg != nil && cfg.Heartbeat > 0 {
		heartbeat = cfg.Heartbeat
	}
	handler := NewHandler(c, hub, sched, heartbeat)

	// Build list of paths that skip authentication
	authSkipPaths := []string{"/health"}

	metricsPath := "/metrics"
	if cfg != nil && cfg.MetricsEnabled {
		if cfg.MetricsEndpoint != "" {
			// Normalize path to prevent traversal attacks
			metricsPath = path.Clean(cfg.MetricsEndpoint)
		}
		authSkipPaths = append(authSkipPaths, metricsPath)
	}

	// Global middleware stack (order matters)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	if cfg != nil && cfg.MasterKey != "" {
		e.Use(AuthMiddleware(cfg.MasterKey, authSkipPaths))
	}

	// Public routes
	e.GET("/health", handler.Health)
	if cfg != nil && cfg.MetricsEnabled {
		metricsHandler := cfg.MetricsHandler
		if metricsHandler == nil {
			metricsHandler = promhttp.Handler()
		}
		e.GET(metricsPath, echo.WrapHandler(metricsHandler))
	}

	// Live data routes
	e.GET("/live/config", handler.LiveConfig)
	e.GET("/live/status", handler.LiveStatus)
	e.GET("/live/stream", handler.Stream)
	e.GET("/live/poll/:type/:id", handler.Poll)
	e.POST("/live/invalidate", handler.Invalidate)
	e.POST("/live/subscribe", handler.SubscribePreview)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
