package middleware

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
	"github.com/jsamuelsen11/cascade/internal/platform/telemetry"
)

const otelScope = "github.com/jsamuelsen11/cascade/internal/adapters/http/middleware"

// OpenTelemetry opens a server span per request, continuing any W3C trace
// context the caller sent, and records the server request metrics. The span
// is renamed after the matched route once the chain has run. A nil metrics
// records spans only.
func OpenTelemetry(metrics *telemetry.Metrics) appctx.Middleware {
	return func(c *appctx.Context, next appctx.Next) error {
		start := time.Now()
		r := c.Req()

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := otel.GetTracerProvider().Tracer(otelScope).Start(ctx, "HTTP "+r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL.String()),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()
		c.SetContext(ctx)

		err := next()

		status := settledStatus(c, err)
		route := Route(c)
		span.SetAttributes(attribute.Int("http.status_code", status))
		if route != "" {
			span.SetName("HTTP " + r.Method + " " + route)
			span.SetAttributes(attribute.String("http.route", route))
		}
		if err != nil {
			span.RecordError(err)
		}
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		recordServerMetrics(ctx, metrics, r.Method, route, start, status, err)
		return err
	}
}

func recordServerMetrics(ctx context.Context, m *telemetry.Metrics, method, route string, start time.Time, status int, err error) {
	if m == nil {
		return
	}

	result := "success"
	if status >= http.StatusBadRequest {
		result = "error"
	}

	attrs := metric.WithAttributes(
		telemetry.AttrHTTPMethod.String(method),
		telemetry.AttrHTTPRoute.String(route),
		telemetry.AttrHTTPStatus.Int(status),
		telemetry.AttrResult.String(result),
	)
	m.ServerRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	m.ServerRequestTotal.Add(ctx, 1, attrs)

	if err != nil {
		m.ServerErrorTotal.Add(ctx, 1, metric.WithAttributes(
			telemetry.AttrHTTPMethod.String(method),
			telemetry.AttrErrorStatus.Int(status),
		))
	}
}
