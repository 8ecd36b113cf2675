package middleware_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/cascade/internal/app"
	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
	"github.com/jsamuelsen11/cascade/internal/platform/logging"
)

type sinkRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (s *sinkRecorder) HandleError(_ context.Context, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *sinkRecorder) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

// run sends r (GET / when nil) through an app built from units.
func run(t *testing.T, sink *sinkRecorder, r *http.Request, units ...appctx.Middleware) *httptest.ResponseRecorder {
	t.Helper()

	if sink == nil {
		sink = &sinkRecorder{}
	}
	a := app.New(app.WithErrorSink(sink))
	require.NoError(t, a.Use(units...))
	h, err := a.Callback()
	require.NoError(t, err)

	if r == nil {
		r = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

// respond is a terminal unit.
func respond(fn func(c *appctx.Context) error) appctx.Middleware {
	return func(c *appctx.Context, _ appctx.Next) error { return fn(c) }
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return logging.New("debug", "json", buf)
}
