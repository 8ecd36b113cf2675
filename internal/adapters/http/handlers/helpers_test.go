package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	adapter "github.com/jsamuelsen11/cascade/internal/adapters/http"
	"github.com/jsamuelsen11/cascade/internal/app"
	"github.com/jsamuelsen11/cascade/internal/ports"
)

// serveRoutes sends r through an app whose only unit is a router set up
// by register.
func serveRoutes(t *testing.T, r *http.Request, register func(rt *adapter.Router)) *httptest.ResponseRecorder {
	t.Helper()

	rt := adapter.NewRouter()
	register(rt)

	a := app.New(app.WithSilent(true))
	require.NoError(t, a.Use(rt.Middleware()))
	h, err := a.Callback()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body %q", rec.Body.String())
	return v
}

type mockRegistry struct {
	mock.Mock
}

func newMockRegistry(t *testing.T) *mockRegistry {
	m := &mockRegistry{}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockRegistry) Register(checker ports.HealthChecker) {
	m.Called(checker)
}

func (m *mockRegistry) CheckAll(ctx context.Context) map[string]error {
	args := m.Called(ctx)
	return args.Get(0).(map[string]error)
}

type mockUpstream struct {
	mock.Mock
}

func newMockUpstream(t *testing.T) *mockUpstream {
	m := &mockUpstream{}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockUpstream) Name() string {
	return "upstream"
}

func (m *mockUpstream) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockUpstream) Fetch(ctx context.Context, path string, header http.Header) (*ports.UpstreamResponse, error) {
	args := m.Called(ctx, path, header)
	res, _ := args.Get(0).(*ports.UpstreamResponse)
	return res, args.Error(1)
}
