// Package main is the entry point for the service. It wires all dependencies
// using samber/do v2, starts the HTTP server, and handles graceful shutdown
// on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"

	adapthttp "github.com/jsamuelsen11/cascade/internal/adapters/http"
	"github.com/jsamuelsen11/cascade/internal/app"
	"github.com/jsamuelsen11/cascade/internal/platform/config"
	"github.com/jsamuelsen11/cascade/internal/platform/health"
	"github.com/jsamuelsen11/cascade/internal/platform/httpclient"
	"github.com/jsamuelsen11/cascade/internal/platform/logging"
	"github.com/jsamuelsen11/cascade/internal/platform/metrics"
	"github.com/jsamuelsen11/cascade/internal/platform/telemetry"
	"github.com/jsamuelsen11/cascade/internal/ports"
)

const (
	otelShutdownTimeout = 5 * time.Second
	upstreamName        = "upstream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	profile := os.Getenv("APP_PROFILE")
	if profile == "" {
		return errors.New("APP_PROFILE environment variable is required (e.g. local, dev, qa, prod)")
	}

	// Bootstrap: config, logger, telemetry.
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)

	providers, err := telemetry.Setup(context.Background(), cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	// DI container.
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger)
	do.ProvideValue(injector, providers.Metrics)

	registerDependencies(injector, cfg, logger)

	// Resolve the server (eagerly wires the full graph).
	server, err := do.Invoke[*adapthttp.Server](injector)
	if err != nil {
		return fmt.Errorf("resolving server: %w", err)
	}

	// Start server in background.
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for shutdown signal or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	// Graceful shutdown: drain HTTP requests within server.shutdown_timeout.
	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	// Wait for Start() goroutine to return.
	<-serverErr

	// Flush telemetry.
	otelCtx, otelCancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
	defer otelCancel()

	if err := providers.Shutdown(otelCtx); err != nil {
		logger.Error("telemetry shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}

// newApp builds the dispatch core from the framework settings. Reported
// failures are counted when Prometheus is enabled, then written to stderr.
func newApp(cfg *config.Config, logger *slog.Logger, prom *metrics.Metrics) (*app.App, error) {
	trusted, err := cfg.Framework.TrustedPrefixes()
	if err != nil {
		return nil, err
	}

	var sink ports.ErrorSink = app.NewDiagnosticSink(os.Stderr, cfg.Framework.Silent)
	if prom != nil {
		sink = prom.CountingSink(sink)
	}

	return app.New(
		app.WithEnv(cfg.Framework.Env),
		app.WithProxy(cfg.Framework.Proxy),
		app.WithProxyIPHeader(cfg.Framework.ProxyIPHeader),
		app.WithMaxIPsCount(cfg.Framework.MaxIPsCount),
		app.WithSubdomainOffset(cfg.Framework.SubdomainOffset),
		app.WithTrustedProxies(trusted...),
		app.WithKeys(cfg.Framework.Keys...),
		app.WithSilent(cfg.Framework.Silent),
		app.WithErrorSink(sink),
		app.WithLogger(logger),
	), nil
}

func registerDependencies(injector *do.RootScope, cfg *config.Config, logger *slog.Logger) {
	do.Provide(injector, func(_ do.Injector) (*metrics.Metrics, error) {
		if !cfg.Metrics.Enabled {
			return nil, nil
		}
		return metrics.New(cfg.Metrics.Namespace), nil
	})

	do.Provide(injector, func(i do.Injector) (*httpclient.Client, error) {
		otelMetrics := do.MustInvoke[*telemetry.Metrics](i)
		return httpclient.New(&cfg.Client, upstreamName, otelMetrics, logger), nil
	})

	do.Provide(injector, func(i do.Injector) (ports.HealthRegistry, error) {
		registry := health.New(health.WithTimeout(cfg.Health.CheckTimeout))
		registry.Register(do.MustInvoke[*httpclient.Client](i))
		return registry, nil
	})

	do.Provide(injector, func(i do.Injector) (*app.App, error) {
		return newApp(cfg, logger, do.MustInvoke[*metrics.Metrics](i))
	})

	do.Provide(injector, func(i do.Injector) (nethttp.Handler, error) {
		return adapthttp.NewHandler(do.MustInvoke[*app.App](i), adapthttp.Service{
			Name:           cfg.Telemetry.ServiceName,
			Logger:         logger,
			RequestTimeout: cfg.Server.RequestTimeout,
			Health:         do.MustInvoke[ports.HealthRegistry](i),
			Upstream:       do.MustInvoke[*httpclient.Client](i),
			Telemetry:      do.MustInvoke[*telemetry.Metrics](i),
			Metrics:        do.MustInvoke[*metrics.Metrics](i),
			MetricsPath:    cfg.Metrics.Path,
		})
	})

	do.Provide(injector, func(i do.Injector) (*adapthttp.Server, error) {
		handler := do.MustInvoke[nethttp.Handler](i)
		return adapthttp.NewServer(cfg.Server, handler, logger), nil
	})
}
