// Package httpclient is the outbound client used to reach the upstream
// service behind the proxy endpoint. Each call passes through, in order:
//
//	circuit breaker → rate limiter → ID headers → client span → retry → transport
//
// Response bodies are never buffered, so the proxy can stream them:
//
//	c := httpclient.New(&cfg.Client, "upstream", metrics, logger)
//	res, err := c.Fetch(ctx, "/reports/latest", nil)
//	defer res.Body.Close()
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/jsamuelsen11/cascade/internal/platform/config"
	"github.com/jsamuelsen11/cascade/internal/platform/telemetry"
)

const tracerName = "github.com/jsamuelsen11/cascade/internal/platform/httpclient"

// retryPolicy is the backoff schedule copied out of config.RetryConfig.
type retryPolicy struct {
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
}

// Client is an instrumented HTTP client for one upstream service.
type Client struct {
	http     *http.Client
	baseURL  string
	name     string
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	limiter  *rate.Limiter // nil when rate limiting is disabled
	retry    retryPolicy
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	injector propagation.TextMapPropagator
}

// New builds a Client from cfg. name identifies the upstream in breaker
// logs, spans and metrics. A nil metrics disables metric recording.
//
// cfg.Timeout bounds the wait for response headers on each attempt, not the
// whole exchange, so long streamed bodies are not cut off.
func New(cfg *config.ClientConfig, name string, metrics *telemetry.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: toUint32(cfg.CircuitBreaker.HalfOpenLimit),
		Timeout:     cfg.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= cfg.CircuitBreaker.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(breaker string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", breaker),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	var limiter *rate.Limiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.BurstSize)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	return &Client{
		http:    &http.Client{Transport: transport},
		baseURL: cfg.BaseURL,
		name:    name,
		breaker: breaker,
		limiter: limiter,
		retry: retryPolicy{
			maxAttempts:     cfg.Retry.MaxAttempts,
			initialInterval: cfg.Retry.InitialInterval,
			maxInterval:     cfg.Retry.MaxInterval,
			multiplier:      cfg.Retry.Multiplier,
		},
		metrics:  metrics,
		logger:   logger,
		tracer:   otel.GetTracerProvider().Tracer(tracerName),
		injector: otel.GetTextMapPropagator(),
	}
}

// Do sends req through the whole pipeline.
//
// A non-retryable status returns resp with an open body and a nil error.
// When retries run out on a retryable status, both resp (body open) and err
// are non-nil; close resp.Body. Breaker rejections and transport errors
// return a nil resp.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}

		injectIDs(ctx, req.Header)

		ctx, span := c.tracer.Start(ctx, "HTTP "+req.Method+" "+c.name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.url", req.URL.String()),
				attribute.String("peer.service", c.name),
			),
		)
		defer span.End()
		c.injector.Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := c.doWithRetry(ctx, req.WithContext(ctx))
		if resp != nil {
			span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return resp, err
	})

	c.recordMetrics(ctx, req.Method, start, resp, err)
	return resp, err
}

// BaseURL returns the upstream base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Name returns the upstream identifier.
func (c *Client) Name() string {
	return c.name
}

// HealthCheck reports upstream availability from the breaker state without
// a network call: closed is healthy, half-open is degraded, open is failing.
func (c *Client) HealthCheck(_ context.Context) error {
	switch state := c.breaker.State(); state {
	case gobreaker.StateClosed:
		return nil
	case gobreaker.StateHalfOpen:
		return fmt.Errorf("%s: degraded (circuit breaker half-open)", c.name)
	case gobreaker.StateOpen:
		return fmt.Errorf("%s: failing (circuit breaker open)", c.name)
	default:
		return fmt.Errorf("%s: unknown circuit breaker state %v", c.name, state)
	}
}

// recordMetrics runs outside the breaker so rejections are counted too.
func (c *Client) recordMetrics(ctx context.Context, method string, start time.Time, resp *http.Response, err error) {
	if c.metrics == nil {
		return
	}

	status := 0
	result := "error"
	if resp != nil {
		status = resp.StatusCode
		if status < http.StatusBadRequest {
			result = "success"
		}
	}
	if isBreakerRejection(err) {
		result = "circuit_open"
	}

	attrs := metric.WithAttributes(
		telemetry.AttrHTTPMethod.String(method),
		telemetry.AttrHTTPStatus.Int(status),
		telemetry.AttrPeerService.String(c.name),
		telemetry.AttrResult.String(result),
	)
	c.metrics.ClientRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	c.metrics.ClientRequestTotal.Add(ctx, 1, attrs)
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// toUint32 clamps v into the uint32 range.
func toUint32(v int) uint32 {
	if v <= 0 {
		return 0
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
