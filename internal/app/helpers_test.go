package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/cascade/internal/app"
	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
)

// recordingSink collects reported errors and signals each one on notify.
type recordingSink struct {
	mu     sync.Mutex
	errs   []error
	notify chan error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan error, 8)}
}

func (s *recordingSink) HandleError(_ context.Context, err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
	select {
	case s.notify <- err:
	default:
	}
}

func (s *recordingSink) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

// serve builds a handler from units and runs one request through it.
func serve(t *testing.T, a *app.App, r *http.Request, units ...appctx.Middleware) *httptest.ResponseRecorder {
	t.Helper()
	require.NoError(t, a.Use(units...))
	h, err := a.Callback()
	require.NoError(t, err)
	if r == nil {
		r = httptest.NewRequest(http.MethodGet, "/", nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

// terminal returns a unit that runs fn and does not call next.
func terminal(fn func(c *appctx.Context) error) appctx.Middleware {
	return func(c *appctx.Context, _ appctx.Next) error { return fn(c) }
}
