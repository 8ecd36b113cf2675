package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"

	"github.com/jsamuelsen11/cascade/internal/adapters/http/middleware"
	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
)

type ctxKey struct{}

func TestFromHTTP_PassThrough(t *testing.T) {
	t.Parallel()

	tag := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, "tagged")))
		})
	}

	var got any
	rec := run(t, nil, nil, middleware.FromHTTP(tag), respond(func(c *appctx.Context) error {
		got = c.Value(ctxKey{})
		c.SetBody("through")
		return nil
	}))

	assert.Equal(t, "tagged", got)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "through", rec.Body.String())
}

func TestFromHTTP_ShortCircuit(t *testing.T) {
	t.Parallel()

	reached := false
	req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
	rec := run(t, nil, req, middleware.FromHTTP(chimw.Heartbeat("/ping")), respond(func(*appctx.Context) error {
		reached = true
		return nil
	}))

	assert.False(t, reached, "the chain should stop at the heartbeat")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ".", rec.Body.String())
}

func TestFromHTTP_ErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	sink := &sinkRecorder{}
	rec := run(t, sink, nil, middleware.FromHTTP(chimw.NoCache), respond(func(*appctx.Context) error {
		return boom
	}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "no-cache, no-store, no-transform, must-revalidate, private, max-age=0", rec.Header().Get("Cache-Control"))
	assert.Equal(t, []error{boom}, sink.Errors())
}

func TestFromHandler(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("raw"))
	})

	reached := false
	after := func(*appctx.Context, appctx.Next) error {
		reached = true
		return nil
	}

	rec := run(t, nil, nil, middleware.FromHandler(h), after)

	assert.False(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code, "pending 404 must not leak into a bypass handler")
	assert.Equal(t, "raw", rec.Body.String())
}

func TestFromHandler_KeepsExplicitStatus(t *testing.T) {
	t.Parallel()

	set := func(c *appctx.Context, next appctx.Next) error {
		c.SetStatus(http.StatusAccepted)
		return next()
	}
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("queued"))
	})

	rec := run(t, nil, nil, set, middleware.FromHandler(h))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "queued", rec.Body.String())
}
