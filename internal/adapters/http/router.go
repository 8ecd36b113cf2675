// Package http is the inbound HTTP adapter: route matching on chi, the
// demo endpoints and the server lifecycle.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jsamuelsen11/cascade/internal/adapters/http/middleware"
	"github.com/jsamuelsen11/cascade/internal/app/compose"
	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
	"github.com/jsamuelsen11/cascade/internal/domain"
)

// HandlerFunc is a route endpoint. It shapes the response through c and
// returns an error to fail the request.
type HandlerFunc func(c *appctx.Context) error

var paramsKey = appctx.NewKey[map[string]string]("route params")

// Router matches requests against chi routes. Mounted with Middleware, a
// match runs its endpoint; no match falls through to the next unit, and a
// path that matches under another method fails with 405.
//
// Routes are registered at startup, before the first request.
type Router struct {
	mux *chi.Mux
}

type dispatchKey struct{}

// dispatch carries one request's unit state through chi's handler tree.
type dispatch struct {
	c    *appctx.Context
	next appctx.Next
	err  error
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	rt := &Router{mux: chi.NewRouter()}
	rt.mux.NotFound(func(_ http.ResponseWriter, r *http.Request) {
		d := fromRequest(r)
		d.err = d.next()
	})
	rt.mux.MethodNotAllowed(func(_ http.ResponseWriter, r *http.Request) {
		fromRequest(r).err = domain.NewHTTPError(http.StatusMethodNotAllowed, "")
	})
	return rt
}

// Get routes GET and HEAD requests for pattern to h.
func (rt *Router) Get(pattern string, h HandlerFunc) {
	rt.Handle(http.MethodGet, pattern, h)
	rt.Handle(http.MethodHead, pattern, h)
}

// Post routes POST requests for pattern to h.
func (rt *Router) Post(pattern string, h HandlerFunc) {
	rt.Handle(http.MethodPost, pattern, h)
}

// Handle routes method requests for pattern to h.
func (rt *Router) Handle(method, pattern string, h HandlerFunc) {
	rt.mux.MethodFunc(method, pattern, func(_ http.ResponseWriter, r *http.Request) {
		d := fromRequest(r)
		c := d.c

		c.SetContext(r.Context())
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			middleware.SetRoute(c, rctx.RoutePattern())
			params := make(map[string]string, len(rctx.URLParams.Keys))
			for i, k := range rctx.URLParams.Keys {
				params[k] = rctx.URLParams.Values[i]
			}
			paramsKey.Set(c.State(), params)
		}

		d.err = h(c)
	})
}

// Mount routes method requests for pattern to a plain http.Handler that
// writes its own response.
func (rt *Router) Mount(method, pattern string, h http.Handler) {
	bypass := middleware.FromHandler(h)
	rt.Handle(method, pattern, func(c *appctx.Context) error {
		return bypass(c, nil)
	})
}

// Middleware returns the unit that runs the router.
func (rt *Router) Middleware() appctx.Middleware {
	return func(c *appctx.Context, next appctx.Next) error {
		d := &dispatch{c: c, next: next}
		r := c.Req()

		// A route context owned by this request, so chi does not recycle it
		// while c still references it.
		ctx := context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext())
		ctx = context.WithValue(ctx, dispatchKey{}, d)

		rt.mux.ServeHTTP(c.Res(), r.WithContext(ctx))
		return d.err
	}
}

// Wrap puts units in front of h. They run only for the routes h serves,
// after the app-wide units and before h.
func Wrap(h HandlerFunc, units ...appctx.Middleware) (HandlerFunc, error) {
	chain, err := compose.Nest(units...)
	if err != nil {
		return nil, err
	}
	return func(c *appctx.Context) error {
		return chain(c, func() error { return h(c) })
	}, nil
}

// Param returns the named URL parameter of the matched route, or "".
func Param(c *appctx.Context, name string) string {
	params, _ := paramsKey.Get(c.State())
	return params[name]
}

func fromRequest(r *http.Request) *dispatch {
	return r.Context().Value(dispatchKey{}).(*dispatch)
}
