package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/jsamuelsen11/cascade/internal/ports"
)

// Option configures an App.
type Option func(*App)

// WithEnv sets the environment name reported by Env.
func WithEnv(env string) Option {
	return func(a *App) { a.env = env }
}

// WithProxy trusts proxy headers (X-Forwarded-For, -Host, -Proto).
func WithProxy(on bool) Option {
	return func(a *App) { a.proxy = on }
}

// WithProxyIPHeader sets the header that carries the forwarded address chain.
func WithProxyIPHeader(name string) Option {
	return func(a *App) { a.proxyIPHeader = name }
}

// WithMaxIPsCount keeps only the right-most n forwarded addresses. Zero
// keeps all of them.
func WithMaxIPsCount(n int) Option {
	return func(a *App) { a.maxIPsCount = n }
}

// WithSubdomainOffset sets how many trailing host labels form the
// application's domain.
func WithSubdomainOffset(n int) Option {
	return func(a *App) { a.subdomainOffset = n }
}

// WithTrustedProxies restricts proxy trust to peers inside prefixes.
func WithTrustedProxies(prefixes ...netip.Prefix) Option {
	return func(a *App) { a.trustedProxies = append(a.trustedProxies, prefixes...) }
}

// WithKeys sets the cookie signing keys, newest first.
func WithKeys(keys ...string) Option {
	return func(a *App) { a.keys = append([]string(nil), keys...) }
}

// WithSilent suppresses the default diagnostic output.
func WithSilent(on bool) Option {
	return func(a *App) { a.silent = on }
}

// WithErrorSink replaces the default DiagnosticSink.
func WithErrorSink(sink ports.ErrorSink) Option {
	return func(a *App) { a.sink = sink }
}

// WithDiagnostics sets where the default DiagnosticSink writes.
func WithDiagnostics(w io.Writer) Option {
	return func(a *App) { a.diagnostics = w }
}

// WithLogger sets the logger used for registration and dispatcher events.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithDefaultHeader adds a header to every response.
func WithDefaultHeader(name, value string) Option {
	return func(a *App) {
		if a.headers == nil {
			a.headers = http.Header{}
		}
		a.headers.Add(name, value)
	}
}

// WithContextValue adds an application-wide value every context exposes
// through Local.
func WithContextValue(name string, v any) Option {
	return func(a *App) {
		if a.values == nil {
			a.values = map[string]any{}
		}
		a.values[name] = v
	}
}
