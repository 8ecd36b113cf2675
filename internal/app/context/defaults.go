package appctx

import (
	"net/http"
	"net/netip"
)

const defaultProxyIPHeader = "X-Forwarded-For"

// Defaults is the application-wide baseline every request starts from.
// Each request receives its own copy; per-request overrides live on the
// Context, Request and Response and shadow these values.
type Defaults struct {
	Context  ContextDefaults
	Request  RequestDefaults
	Response ResponseDefaults
	// Keys sign cookies. Keys[0] signs; every key verifies.
	Keys []string
}

// ContextDefaults holds named values visible through Context.Local on every
// request unless a request overrides them.
type ContextDefaults struct {
	Values map[string]any
}

// RequestDefaults controls how the request view interprets the transport.
type RequestDefaults struct {
	// Proxy enables trust in X-Forwarded-* headers.
	Proxy bool
	// ProxyIPHeader names the forwarded-address header. Defaults to
	// X-Forwarded-For.
	ProxyIPHeader string
	// MaxIPsCount keeps only the right-most N forwarded entries when > 0.
	MaxIPsCount int
	// SubdomainOffset is the number of trailing host labels ignored by
	// Subdomains. Defaults to 2 when zero.
	SubdomainOffset int
	// TrustedProxies, when non-empty, limits forwarded-header trust to
	// peers inside these prefixes.
	TrustedProxies []netip.Prefix
}

// ResponseDefaults seeds every response.
type ResponseDefaults struct {
	// Headers are copied onto every response before any unit runs.
	Headers http.Header
}

func (d RequestDefaults) ipHeader() string {
	if d.ProxyIPHeader == "" {
		return defaultProxyIPHeader
	}
	return d.ProxyIPHeader
}

func (d RequestDefaults) subdomainOffset() int {
	if d.SubdomainOffset <= 0 {
		return 2
	}
	return d.SubdomainOffset
}

// trusts reports whether forwarded headers from peer are honored.
func (d RequestDefaults) trusts(peer string) bool {
	if !d.Proxy {
		return false
	}
	if len(d.TrustedProxies) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range d.TrustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
