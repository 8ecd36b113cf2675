package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jsamuelsen11/cascade/internal/adapters/http/handlers"
	"github.com/jsamuelsen11/cascade/internal/adapters/http/middleware"
	"github.com/jsamuelsen11/cascade/internal/app"
	"github.com/jsamuelsen11/cascade/internal/platform/metrics"
	"github.com/jsamuelsen11/cascade/internal/platform/telemetry"
	"github.com/jsamuelsen11/cascade/internal/ports"
)

// Service describes the service's endpoints and the units around them.
type Service struct {
	Name           string
	Logger         *slog.Logger
	RequestTimeout time.Duration

	Health   ports.HealthRegistry
	Upstream ports.Upstream

	// Telemetry records OpenTelemetry request metrics. Nil records spans only.
	Telemetry *telemetry.Metrics
	// Metrics enables Prometheus instrumentation and exposition at
	// MetricsPath. Nil disables both.
	Metrics     *metrics.Metrics
	MetricsPath string
}

// NewHandler registers the service's unit chain on a and returns its
// request handler. Requests pass through, outermost first: problem
// rendering, request and correlation IDs, tracing, Prometheus, access logs,
// the /ping heartbeat, the request deadline and finally the routes.
func NewHandler(a *app.App, svc Service) (http.Handler, error) {
	if svc.Logger == nil {
		svc.Logger = slog.New(slog.DiscardHandler)
	}

	rt := NewRouter()
	routes := []string{"/ping", "/health/live", "/health/ready"}

	hh := handlers.NewHealthHandler(svc.Health)
	for pattern, h := range map[string]HandlerFunc{
		"/health/live":  hh.Liveness,
		"/health/ready": hh.Readiness,
	} {
		probe, err := Wrap(h, middleware.FromHTTP(chimw.NoCache))
		if err != nil {
			return nil, fmt.Errorf("wrapping %s: %w", pattern, err)
		}
		rt.Get(pattern, probe)
	}

	if svc.Upstream != nil {
		ph := handlers.NewProxyHandler(svc.Upstream)
		rt.Get("/proxy/*", ph.Relay)
		routes = append(routes, "/proxy/*")
	}

	if svc.Metrics != nil && svc.MetricsPath != "" {
		rt.Mount(http.MethodGet, svc.MetricsPath, svc.Metrics.Handler())
		routes = append(routes, svc.MetricsPath)
	}

	ih := handlers.NewIndexHandler(svc.Name, a.Env(), append(routes, "/"))
	rt.Get("/", ih.Get)

	if err := a.Use(
		middleware.Problem(),
		middleware.RequestID(),
		middleware.CorrelationID(),
		middleware.OpenTelemetry(svc.Telemetry),
	); err != nil {
		return nil, fmt.Errorf("registering units: %w", err)
	}
	if svc.Metrics != nil {
		if err := a.Use(middleware.Prometheus(svc.Metrics)); err != nil {
			return nil, fmt.Errorf("registering units: %w", err)
		}
	}
	if err := a.Use(
		middleware.Logging(svc.Logger),
		middleware.FromHTTP(chimw.Heartbeat("/ping")),
		middleware.Deadline(svc.RequestTimeout),
		rt.Middleware(),
	); err != nil {
		return nil, fmt.Errorf("registering units: %w", err)
	}

	return a.Callback()
}
