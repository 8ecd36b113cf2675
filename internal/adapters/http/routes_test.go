package http_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapthttp "github.com/jsamuelsen11/cascade/internal/adapters/http"
	"github.com/jsamuelsen11/cascade/internal/adapters/http/dto"
	"github.com/jsamuelsen11/cascade/internal/app"
	"github.com/jsamuelsen11/cascade/internal/domain"
	"github.com/jsamuelsen11/cascade/internal/platform/health"
	"github.com/jsamuelsen11/cascade/internal/platform/metrics"
	"github.com/jsamuelsen11/cascade/internal/ports"
)

type stubUpstream struct {
	err  error
	body string
}

func (s *stubUpstream) Name() string                        { return "upstream" }
func (s *stubUpstream) HealthCheck(_ context.Context) error { return s.err }

func (s *stubUpstream) Fetch(_ context.Context, _ string, _ http.Header) (*ports.UpstreamResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ports.UpstreamResponse{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"text/plain"}},
		Body:   io.NopCloser(strings.NewReader(s.body)),
	}, nil
}

type errorLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorLog) HandleError(_ context.Context, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *errorLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errs)
}

type service struct {
	handler http.Handler
	metrics *metrics.Metrics
	errors  *errorLog
}

func newService(t *testing.T, upstream *stubUpstream) *service {
	t.Helper()

	m := metrics.New("cascade")
	errs := &errorLog{}
	registry := health.New()
	registry.Register(upstream)

	a := app.New(app.WithEnv("test"), app.WithErrorSink(m.CountingSink(errs)))
	h, err := adapthttp.NewHandler(a, adapthttp.Service{
		Name:        "cascade",
		Health:      registry,
		Upstream:    upstream,
		Metrics:     m,
		MetricsPath: "/metrics",
	})
	require.NoError(t, err)

	return &service{handler: h, metrics: m, errors: errs}
}

func (s *service) get(path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestNewHandler_Heartbeat(t *testing.T) {
	t.Parallel()

	rec := newService(t, &stubUpstream{}).get("/ping")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ".", rec.Body.String())
}

func TestNewHandler_SetsRequestIDs(t *testing.T) {
	t.Parallel()

	svc := newService(t, &stubUpstream{})

	rec := svc.get("/health/live", "X-Request-ID", "req-123")
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-123", rec.Header().Get("X-Correlation-ID"))

	rec = svc.get("/health/live")
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestNewHandler_Readiness(t *testing.T) {
	t.Parallel()

	rec := newService(t, &stubUpstream{}).get("/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	down := newService(t, &stubUpstream{err: domain.ErrUnavailable})
	assert.Equal(t, http.StatusServiceUnavailable, down.get("/health/ready").Code)
}

func TestNewHandler_Proxy(t *testing.T) {
	t.Parallel()

	rec := newService(t, &stubUpstream{body: "relayed"}).get("/proxy/reports/1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "relayed", rec.Body.String())
}

func TestNewHandler_FailureRendersProblem(t *testing.T) {
	t.Parallel()

	svc := newService(t, &stubUpstream{err: domain.ErrUnavailable})

	rec := svc.get("/proxy/reports/1")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, dto.ProblemContentType, rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"type":"about:blank","title":"Bad Gateway","status":502,"instance":"/proxy/reports/1"}`, rec.Body.String())
	assert.Equal(t, 1, svc.errors.Len())
	assert.InDelta(t, 1, testutil.ToFloat64(svc.metrics.ErrorsTotal.WithLabelValues("5xx")), 0)
}

func TestNewHandler_UnknownRoute(t *testing.T) {
	t.Parallel()

	svc := newService(t, &stubUpstream{})

	rec := svc.get("/nope")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", rec.Body.String())
	assert.Zero(t, svc.errors.Len())
}

func TestNewHandler_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	svc := newService(t, &stubUpstream{})

	req := httptest.NewRequest(http.MethodPost, "/health/live", http.NoBody)
	rec := httptest.NewRecorder()
	svc.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, dto.ProblemContentType, rec.Header().Get("Content-Type"))
}

func TestNewHandler_Index(t *testing.T) {
	t.Parallel()

	rec := newService(t, &stubUpstream{}).get("/", "Accept", "application/json")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"service": "cascade",
		"env": "test",
		"routes": ["/ping", "/health/live", "/health/ready", "/proxy/*", "/metrics", "/"]
	}`, rec.Body.String())
}

func TestNewHandler_Metrics(t *testing.T) {
	t.Parallel()

	svc := newService(t, &stubUpstream{})
	svc.get("/health/live")
	svc.get("/nope")

	rec := svc.get("/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `cascade_http_requests_total{method="GET",status="2xx"} 1`)
	assert.Contains(t, body, `cascade_http_requests_total{method="GET",status="4xx"} 1`)
}
