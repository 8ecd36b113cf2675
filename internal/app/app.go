// Package app is the dispatch core: it owns the middleware sequence and the
// defaults every request starts from, builds a Context per request, drives
// the composed chain, and turns the final Context state into a response.
//
//	a := app.New(app.WithProxy(true))
//	_ = a.Use(logRequests, router)
//	h, err := a.Callback()
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"reflect"
	"runtime"

	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
	"github.com/jsamuelsen11/cascade/internal/ports"
)

const (
	envVar     = "APP_ENV"
	defaultEnv = "development"
)

// Compile-time checks.
var (
	_ appctx.Application = (*App)(nil)
	_ ports.ErrorSink    = (*App)(nil)
	_ slog.LogValuer     = (*App)(nil)
)

// App is an HTTP application built from cascading middleware units.
// Configure it with options and Use before calling Callback; neither is safe
// to call once requests are being served.
type App struct {
	env             string
	proxy           bool
	proxyIPHeader   string
	maxIPsCount     int
	subdomainOffset int
	trustedProxies  []netip.Prefix
	keys            []string
	silent          bool
	headers         http.Header
	values          map[string]any

	sink        ports.ErrorSink
	diagnostics io.Writer
	logger      *slog.Logger

	units []appctx.Middleware
}

// New creates an App. The environment defaults to $APP_ENV, then
// "development". Without WithErrorSink, failures go to a DiagnosticSink on
// stderr.
func New(opts ...Option) *App {
	a := &App{
		env:             os.Getenv(envVar),
		subdomainOffset: 2,
	}
	if a.env == "" {
		a.env = defaultEnv
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	if a.diagnostics == nil {
		a.diagnostics = os.Stderr
	}
	if a.sink == nil {
		a.sink = NewDiagnosticSink(a.diagnostics, a.silent)
	}
	return a
}

// Env returns the environment name.
func (a *App) Env() string { return a.env }

// Proxy reports whether proxy headers are trusted.
func (a *App) Proxy() bool { return a.proxy }

// SubdomainOffset returns the number of host labels that form the domain.
func (a *App) SubdomainOffset() int { return a.subdomainOffset }

// Silent reports whether default diagnostics are suppressed.
func (a *App) Silent() bool { return a.silent }

// Use appends units to the middleware sequence. A nil unit fails the whole
// call with ErrNotMiddleware and leaves the sequence unchanged.
func (a *App) Use(units ...appctx.Middleware) error {
	for i, u := range units {
		if u == nil {
			return fmt.Errorf("%w: argument %d is nil", ErrNotMiddleware, i)
		}
	}
	for _, u := range units {
		a.logger.Debug("use middleware", slog.String("name", funcName(u)))
	}
	a.units = append(a.units, units...)
	return nil
}

// Len returns the number of registered units.
func (a *App) Len() int { return len(a.units) }

// HandleError forwards err to the configured sink.
func (a *App) HandleError(ctx context.Context, err error) {
	a.sink.HandleError(ctx, err)
}

// MarshalJSON renders the public settings only.
func (a *App) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SubdomainOffset int    `json:"subdomainOffset"`
		Proxy           bool   `json:"proxy"`
		Env             string `json:"env"`
	}{a.subdomainOffset, a.proxy, a.env})
}

// LogValue renders the same settings as MarshalJSON.
func (a *App) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("subdomain_offset", a.subdomainOffset),
		slog.Bool("proxy", a.proxy),
		slog.String("env", a.env),
	)
}

// defaults is the per-request starting state. The maps and slices are
// shared and treated as read-only by the context model.
func (a *App) defaults() appctx.Defaults {
	return appctx.Defaults{
		Context: appctx.ContextDefaults{Values: a.values},
		Request: appctx.RequestDefaults{
			Proxy:           a.proxy,
			ProxyIPHeader:   a.proxyIPHeader,
			MaxIPsCount:     a.maxIPsCount,
			SubdomainOffset: a.subdomainOffset,
			TrustedProxies:  a.trustedProxies,
		},
		Response: appctx.ResponseDefaults{Headers: a.headers},
		Keys:     a.keys,
	}
}

func funcName(fn any) string {
	if f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()); f != nil {
		return f.Name()
	}
	return "<anonymous>"
}
