// Package main is the entry point for the pooled HTTP client service.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"asynchttp/config"
	"asynchttp/internal/auth"
	"asynchttp/internal/cookies"
	"asynchttp/internal/httpclient"
	"asynchttp/internal/logger"
	"asynchttp/internal/observability"
	"asynchttp/internal/server"
	"asynchttp/internal/version"
)

const shutdownTimeout = 10 * time.Second

// initCookieJar initializes the cookie store based on configuration.
// Returns an in-memory jar by default, or a Redis-backed jar if configured.
// The returned close function releases the backend.
func initCookieJar(cfg *config.Config, log zerolog.Logger) (http.CookieJar, func() error, error) {
	switch cfg.Cookies.Type {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		jar, err := cookies.DialRedisJar(ctx, cfg.Cookies.Redis.URL, cfg.RedisJarConfig(), log)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("key", cfg.Cookies.Redis.Key).Msg("using redis cookie jar")
		return jar, jar.Close, nil

	case "", "memory":
		jar, err := cookies.NewMemoryJar()
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("using in-memory cookie jar")
		return jar, func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown cookies.type %q", cfg.Cookies.Type)
	}
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(version.Info())
		return
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level})
	log.Info().Str("version", version.Info()).Msg("starting")

	jar, closeJar, err := initCookieJar(cfg, log)
	if err != nil {
		return fmt.Errorf("init cookie jar: %w", err)
	}
	defer func() {
		if err := closeJar(); err != nil {
			log.Warn().Err(err).Msg("close cookie jar")
		}
	}()

	credentials := auth.NewBasicCredentialsProvider()
	cfg.ApplyCredentials(credentials)

	clientCfg, err := cfg.HTTPClientConfig()
	if err != nil {
		return fmt.Errorf("client config: %w", err)
	}

	opts := []httpclient.Option{
		httpclient.WithLogger(log.With().Str("component", "httpclient").Logger()),
		httpclient.WithCredentialsProvider(credentials),
		httpclient.WithCookieJar(jar),
		httpclient.WithKerberos(cfg.KerberosOptions()),
	}
	if len(cfg.Auth.Preference) > 0 {
		opts = append(opts, httpclient.WithAuthPreference(cfg.Auth.Preference...))
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, httpclient.WithHooks(observability.NewPrometheusHooks()))
	}

	client, err := httpclient.Create(clientCfg, cfg.ProxyEnabled(), opts...)
	if err != nil {
		return fmt.Errorf("create http client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("close http client")
		}
	}()

	if cfg.Metrics.Enabled {
		prometheus.MustRegister(observability.NewPoolCollector(client))
	}

	// Security check: warn if no master key is configured
	if cfg.Server.MasterKey == "" {
		log.Warn().
			Str("security_risk", "unauthenticated access allowed").
			Str("recommendation", "set ASYNCHTTP_MASTER_KEY to secure /v1").
			Msg("SECURITY WARNING: master key not set - server running in UNSAFE MODE")
	} else {
		log.Info().Str("mode", "master_key").Msg("authentication enabled")
	}

	srv := server.New(client, &server.Config{
		MasterKey:       cfg.Server.MasterKey,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		Logger:          log.With().Str("component", "server").Logger(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Server.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Msg("starting server")
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
