// Package server exposes the pooled client over HTTP.
package server

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps request bodies on /v1 and upstream bodies returned by fetch.
const maxBodyBytes = 1 << 20

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MasterKey       string         // Optional: Master key for authentication
	MetricsEnabled  bool           // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string         // HTTP path for metrics endpoint (default: /metrics)
	Logger          zerolog.Logger // Request and warning logs; the zero value discards them
}

// New creates a new HTTP server
func New(client Client, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	log := cfg.Logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil {
				event = log.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())

	handler := NewHandler(client)

	// Public routes (no authentication required)
	e.GET("/health", handler.Health)

	if cfg.MetricsEnabled {
		metricsPath := cfg.MetricsEndpoint
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		// Normalize path to prevent traversal attacks (e.g., /v1/../admin -> /admin)
		// and then validate it doesn't shadow protected API routes
		metricsPath = path.Clean(metricsPath)
		if metricsPath == "/v1" || strings.HasPrefix(metricsPath, "/v1/") {
			log.Warn().
				Str("configured_path", cfg.MetricsEndpoint).
				Str("normalized_path", metricsPath).
				Msg("metrics endpoint path conflicts with API routes, using /metrics instead")
			metricsPath = "/metrics"
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	api := e.Group("/v1")
	api.Use(middleware.BodyLimit("1M"))
	if cfg.MasterKey != "" {
		api.Use(AuthMiddleware(cfg.MasterKey))
	}

	api.GET("/pool", handler.Pool)
	api.POST("/fetch", handler.Fetch)

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
