// Package appctx is the per-request context model of the dispatch core.
//
// Every request gets one Context together with a Request view and a Response
// view. The three hold mutual back-references fixed at creation:
//
//	c := appctx.New(app, w, r, defaults)
//	c.Request().Context() == c
//	c.Response().Request() == c.Request()
//
// Context implements context.Context, so units can hand it straight to
// blocking I/O. It is request-scoped and NOT safe for concurrent use: the
// units of one request run sequentially on the request's goroutine.
package appctx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jsamuelsen11/cascade/internal/app/compose"
	"github.com/jsamuelsen11/cascade/internal/domain"
	"github.com/jsamuelsen11/cascade/internal/platform/accepts"
	"github.com/jsamuelsen11/cascade/internal/platform/cookies"
)

// Middleware is a unit of the request chain.
type Middleware = compose.Middleware[*Context]

// Next runs the downstream remainder of the chain.
type Next = compose.Next

// Application is what a Context needs from its owning application.
type Application interface {
	Env() string
	HandleError(ctx context.Context, err error)
}

// Compile-time check that Context is a context.Context.
var _ context.Context = (*Context)(nil)

// ErrContextCycle is the panic value of SetContext when the new context has
// the Context itself as an ancestor.
var ErrContextCycle = errors.New("appctx: context derives from the Context it replaces; derive from Req().Context()")

// selfKey is answered by the Context it names without delegating, so a
// lookup through any context tells whether that Context is an ancestor.
type selfKey struct{ c *Context }

// Context is the shared state for one request.
type Context struct {
	base      context.Context
	transport context.Context

	app      Application
	req      *http.Request
	res      *ResponseWriter
	request  *Request
	response *Response

	state       State
	accept      *accepts.Negotiator
	cookies     *cookies.Jar
	originalURL string

	defaults ContextDefaults
	locals   map[string]any

	noRespond bool
	reported  atomic.Bool
}

// New builds the Context, Request and Response for one transport pair and
// wires their back-references before returning.
func New(app Application, w http.ResponseWriter, r *http.Request, d Defaults) *Context {
	rw := NewResponseWriter(w)

	originalURL := r.RequestURI
	if originalURL == "" {
		originalURL = r.URL.RequestURI()
	}

	c := &Context{
		base:        r.Context(),
		transport:   r.Context(),
		app:         app,
		req:         r,
		res:         rw,
		state:       State{},
		originalURL: originalURL,
		defaults:    d.Context,
		locals:      map[string]any{},
	}
	request := &Request{defaults: d.Request, originalURL: originalURL}
	response := &Response{defaults: d.Response}

	c.request = request
	c.response = response
	request.ctx = c
	request.response = response
	response.ctx = c
	response.request = request

	c.accept = accepts.New(r)
	request.accept = c.accept
	c.cookies = cookies.New(r, rw, cookies.Options{Keys: d.Keys, Secure: request.Secure()})

	h := rw.Header()
	for k, vs := range d.Response.Headers {
		if _, set := h[k]; !set {
			h[k] = append([]string(nil), vs...)
		}
	}

	return c
}

// Deadline implements context.Context.
func (c *Context) Deadline() (time.Time, bool) { return c.base.Deadline() }

// Done implements context.Context.
func (c *Context) Done() <-chan struct{} { return c.base.Done() }

// Err implements context.Context.
func (c *Context) Err() error { return c.base.Err() }

// Value implements context.Context.
func (c *Context) Value(key any) any {
	if k, ok := key.(selfKey); ok && k.c == c {
		return c
	}
	return c.base.Value(key)
}

// SetContext replaces the context.Context that c delegates to and rebinds
// the transport request to it, so handlers reading r.Context() see the same
// values. Derive ctx from Req().Context(), never from c: a ctx with c as an
// ancestor would make every lookup loop back into c, so SetContext panics
// with ErrContextCycle instead.
func (c *Context) SetContext(ctx context.Context) {
	if derivesFrom(ctx, c) {
		panic(ErrContextCycle)
	}
	c.base = ctx
	c.req = c.req.WithContext(ctx)
}

func derivesFrom(ctx context.Context, c *Context) bool {
	v, _ := ctx.Value(selfKey{c}).(*Context)
	return v == c
}

// App returns the owning application.
func (c *Context) App() Application { return c.app }

// Req returns the transport request.
func (c *Context) Req() *http.Request { return c.req }

// Res returns the transport response writer.
func (c *Context) Res() *ResponseWriter { return c.res }

// Request returns the request view.
func (c *Context) Request() *Request { return c.request }

// Response returns the response view.
func (c *Context) Response() *Response { return c.response }

// State returns the request-scoped state bag.
func (c *Context) State() State { return c.state }

// Accept returns the content negotiator.
func (c *Context) Accept() *accepts.Negotiator { return c.accept }

// Cookies returns the cookie accessor.
func (c *Context) Cookies() *cookies.Jar { return c.cookies }

// OriginalURL returns the request target as received.
func (c *Context) OriginalURL() string { return c.originalURL }

// Local returns a named value, falling back to the application default.
func (c *Context) Local(name string) (any, bool) {
	if v, ok := c.locals[name]; ok {
		return v, true
	}
	v, ok := c.defaults.Values[name]
	return v, ok
}

// SetLocal shadows the application default for name on this request only.
func (c *Context) SetLocal(name string, v any) {
	c.locals[name] = v
}

// SetAutoRespond controls whether the dispatcher writes the response after
// the chain completes. Pass false when a unit writes to Res() itself.
func (c *Context) SetAutoRespond(on bool) { c.noRespond = !on }

// AutoRespond reports whether the dispatcher will write the response.
func (c *Context) AutoRespond() bool { return !c.noRespond }

// Writable reports whether the response can still be written: it has not
// ended and the client has not gone away.
func (c *Context) Writable() bool {
	if c.res.Ended() {
		return false
	}
	return c.transport.Err() == nil
}

// Report hands err to the application's error sink. Only the first report
// per request reaches the sink; later ones return false.
func (c *Context) Report(err error) bool {
	return c.ReportWith(c, err)
}

// ReportWith is Report with an explicit context for the sink. Goroutines
// other than the request's own must use it with a context they own, since
// the Context itself is not safe for concurrent use.
func (c *Context) ReportWith(ctx context.Context, err error) bool {
	if !c.reported.CompareAndSwap(false, true) {
		return false
	}
	if c.app != nil {
		c.app.HandleError(ctx, err)
	}
	return true
}

// Reported reports whether an error already went to the sink.
func (c *Context) Reported() bool { return c.reported.Load() }

// Throw returns an HTTP error for status. Units return it to fail the chain.
func (c *Context) Throw(status int, msg string) error {
	return domain.NewHTTPError(status, msg)
}

// Delegates to the request and response views.

// Method returns the request method.
func (c *Context) Method() string { return c.request.Method() }

// Path returns the request path.
func (c *Context) Path() string { return c.request.Path() }

// Header returns a request header value.
func (c *Context) Header(name string) string { return c.request.Get(name) }

// Status returns the response status.
func (c *Context) Status() int { return c.response.Status() }

// SetStatus sets the response status.
func (c *Context) SetStatus(code int) { c.response.SetStatus(code) }

// Body returns the response body.
func (c *Context) Body() any { return c.response.Body() }

// SetBody sets the response body.
func (c *Context) SetBody(v any) { c.response.SetBody(v) }

// Set sets a response header.
func (c *Context) Set(name, value string) { c.response.Set(name, value) }

// Redirect redirects to url.
func (c *Context) Redirect(url string) { c.response.Redirect(url) }

// MarshalJSON renders a diagnostic snapshot of the request.
func (c *Context) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"request":     c.request,
		"response":    c.response,
		"originalUrl": c.originalURL,
		"req":         "<original request>",
		"res":         "<original response>",
		"socket":      "<original socket>",
	}
	if m, ok := c.app.(json.Marshaler); ok {
		out["app"] = m
	}
	return json.Marshal(out)
}
