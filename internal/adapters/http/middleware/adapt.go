package middleware

import (
	"net/http"

	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
)

// FromHTTP runs a net/http middleware (chi's, for instance) as a unit.
//
// When mw calls its next handler, the rest of the chain runs inside it and
// any context mw attached to the request is adopted. When mw answers on its
// own instead, auto-respond is switched off so its response stands. Writes
// mw makes through a wrapped ResponseWriter are not seen by the rest of the
// chain.
func FromHTTP(mw func(http.Handler) http.Handler) appctx.Middleware {
	return func(c *appctx.Context, next appctx.Next) error {
		var (
			called bool
			err    error
		)
		h := mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			called = true
			c.SetContext(r.Context())
			err = next()
		}))

		h.ServeHTTP(c.Res(), c.Req())

		if !called {
			c.SetAutoRespond(false)
		}
		return err
	}
}

// FromHandler mounts h as a terminal unit that writes the response itself.
// Auto-respond is switched off and the status defaults to 200 unless an
// upstream unit set one. It never calls next.
func FromHandler(h http.Handler) appctx.Middleware {
	return func(c *appctx.Context, _ appctx.Next) error {
		c.SetAutoRespond(false)
		if !c.Response().ExplicitStatus() {
			c.Res().SetStatus(http.StatusOK)
		}
		h.ServeHTTP(c.Res(), c.Req())
		return nil
	}
}
