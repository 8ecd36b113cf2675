package handlers_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	adapter "github.com/jsamuelsen11/cascade/internal/adapters/http"
	"github.com/jsamuelsen11/cascade/internal/adapters/http/handlers"
	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
)

func TestLiveness(t *testing.T) {
	t.Parallel()

	h := handlers.NewHealthHandler(newMockRegistry(t))

	rec := serveRoutes(t, httptest.NewRequest(http.MethodGet, "/health/live", http.NoBody), func(rt *adapter.Router) {
		rt.Get("/health/live", h.Liveness)
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{"status": "ok"}, decodeJSON[map[string]string](t, rec))
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		results    map[string]error
		wantCode   int
		wantStatus string
		wantFailed []string
	}{
		{
			name:       "all healthy",
			results:    map[string]error{"upstream": nil},
			wantCode:   http.StatusOK,
			wantStatus: "ready",
		},
		{
			name:       "no checks",
			results:    map[string]error{},
			wantCode:   http.StatusOK,
			wantStatus: "ready",
		},
		{
			name: "one failing",
			results: map[string]error{
				"upstream": errors.New("upstream: failing (circuit breaker open)"),
				"cache":    nil,
				"archive":  errors.New("timeout"),
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
			wantFailed: []string{"archive", "upstream"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			registry := newMockRegistry(t)
			registry.On("CheckAll", mock.Anything).Return(tt.results).Once()
			h := handlers.NewHealthHandler(registry)

			rec := serveRoutes(t, httptest.NewRequest(http.MethodGet, "/health/ready", http.NoBody), func(rt *adapter.Router) {
				rt.Get("/health/ready", h.Readiness)
			})

			require.Equal(t, tt.wantCode, rec.Code)

			got := decodeJSON[handlers.HealthReport](t, rec)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantFailed, got.Failed)
			assert.Len(t, got.Checks, len(tt.results))
			for name, err := range tt.results {
				want := "ok"
				if err != nil {
					want = err.Error()
				}
				assert.Equal(t, want, got.Checks[name], "check %q", name)
			}
		})
	}
}

func TestReadiness_ChecksRunOncePerRequest(t *testing.T) {
	t.Parallel()

	registry := newMockRegistry(t)
	registry.On("CheckAll", mock.Anything).Return(map[string]error{"upstream": nil}).Once()
	h := handlers.NewHealthHandler(registry)

	rec := serveRoutes(t, httptest.NewRequest(http.MethodGet, "/health/ready", http.NoBody), func(rt *adapter.Router) {
		rt.Get("/health/ready", func(c *appctx.Context) error {
			if _, err := h.Report(c); err != nil {
				return err
			}
			return h.Readiness(c)
		})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	registry.AssertNumberOfCalls(t, "CheckAll", 1)
}
