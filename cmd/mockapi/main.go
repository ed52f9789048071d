// Command mockapi serves the mock control-plane API over the canonical
// fixture set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/oxidecomputer/console-sub002/internal/api"
	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/events"
	"github.com/oxidecomputer/console-sub002/internal/fixtures"
	"github.com/oxidecomputer/console-sub002/internal/observability"
	"github.com/oxidecomputer/console-sub002/internal/storage"
)

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "mockapi:", err)
		os.Exit(2)
	}
	logger := observability.NewLogger(cfg.Log)

	// Initialize Sentry if DSN is provided
	sentryEnabled := false
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Environment:      envOr("SENTRY_ENVIRONMENT", "development"),
			Release:          envOr("APP_VERSION", "dev"),
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		} else {
			logger.Info("sentry initialized", "environment", envOr("SENTRY_ENVIRONMENT", "development"))
			sentryEnabled = true
		}
	}

	initial, err := loadFixtures(cfg.FixturesPath)
	if err != nil {
		logger.Error("failed to load fixtures", "path", cfg.FixturesPath, "error", err)
		os.Exit(1)
	}
	store := storage.New(initial, storage.WithTransitionDelay(cfg.TransitionDelay))

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics)
		metrics.RegisterCollectionSizes(store.Counts)
		logger.Info("metrics enabled", "namespace", cfg.Metrics.Namespace, "version", cfg.Metrics.Version)
	} else {
		logger.Info("metrics disabled")
	}

	if !cfg.RateLimit.Enabled() {
		logger.Info("rate limiting disabled")
	} else {
		logger.Info("rate limiting configured",
			"requests_per_second", cfg.RateLimit.RequestsPerSecond,
			"burst", cfg.RateLimit.Burst,
		)
	}

	backend := selectAuditLogger(cfg, logger)
	publisher := selectPublisher(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go audit.RunRetention(ctx, backend.pruner, cfg.AuditRetention, logger.WithComponent("audit"))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           buildHandler(cfg, store, logger, metrics, backend.logger, publisher),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second + cfg.Latency,
		IdleTimeout:       60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("mockapi listening",
			"addr", cfg.Addr,
			"latency", cfg.Latency.String(),
			"transition_delay", cfg.TransitionDelay.String(),
		)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	}
	cancel()

	logger.Info("shutting down server", "timeout", "15s")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}

	if err := store.Close(); err != nil {
		logger.Error("error closing store", "error", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Error("error closing event publisher", "error", err)
	}
	if err := backend.logger.Close(); err != nil {
		logger.Error("error closing audit log", "error", err)
	}

	if sentryEnabled {
		logger.Info("flushing sentry events", "deadline", "2s")
		sentry.Flush(2 * time.Second)
	}
	logger.Info("shutdown complete")
}

func loadFixtures(path string) (*storage.InitialState, error) {
	if path == "" {
		return fixtures.Load()
	}
	return fixtures.LoadFile(path)
}

// selectPublisher connects to NATS when a URL is configured. Events are
// dropped when the broker cannot be reached at startup.
func selectPublisher(cfg Config, logger observability.Logger) events.Publisher {
	if cfg.NATSURL == "" {
		return events.Nop{}
	}
	p, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSPrefix, logger)
	if err != nil {
		logger.Error("nats connection failed; events disabled", "error", err)
		return events.Nop{}
	}
	logger.Info("publishing events", "url", cfg.NATSURL, "prefix", cfg.NATSPrefix)
	return p
}

// buildHandler wires the API server and its middleware stack.
// Order: metrics (outermost) -> requestID -> logging -> current user ->
// csrf -> rate limiting -> latency (innermost before handler).
func buildHandler(cfg Config, store *storage.Store, logger observability.Logger, metrics *observability.Metrics, auditLogger audit.AuditLogger, publisher events.Publisher) http.Handler {
	mux := http.NewServeMux()
	srv := api.NewServer(mux, store, logger, metrics, auditLogger)
	srv.SetPublisher(publisher)
	srv.RegisterRoutes()

	chain := []api.Middleware{
		observability.MetricsMiddleware(metrics),
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger.Slog()),
		api.CurrentUserMiddleware(),
	}
	if cfg.CSRF {
		chain = append(chain, api.CSRFMiddleware())
	}
	chain = append(chain,
		observability.RateLimitMetricsMiddleware(metrics, cfg.RateLimit.Enabled()),
		api.RateLimitMiddleware(cfg.RateLimit, logger.Slog()),
		api.LatencyMiddleware(cfg.Latency),
	)
	return api.ApplyMiddlewares(mux, chain...)
}
