package appctx

import (
	"encoding/json"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jsamuelsen11/cascade/internal/platform/accepts"
)

// Request is the request-facing view of a Context.
type Request struct {
	ctx         *Context
	response    *Response
	defaults    RequestDefaults
	originalURL string
	accept      *accepts.Negotiator

	ip    string
	ipSet bool
}

// Context returns the owning Context.
func (r *Request) Context() *Context { return r.ctx }

// Response returns the sibling response view.
func (r *Request) Response() *Response { return r.response }

// Req returns the transport request.
func (r *Request) Req() *http.Request { return r.ctx.req }

// Res returns the transport response writer.
func (r *Request) Res() *ResponseWriter { return r.ctx.res }

// Defaults returns this request's copy of the application defaults.
func (r *Request) Defaults() RequestDefaults { return r.defaults }

// OriginalURL returns the request target as received.
func (r *Request) OriginalURL() string { return r.originalURL }

// Method returns the request method.
func (r *Request) Method() string { return r.ctx.req.Method }

// URL returns the parsed request URL.
func (r *Request) URL() *url.URL { return r.ctx.req.URL }

// Path returns the URL path.
func (r *Request) Path() string { return r.ctx.req.URL.Path }

// Query returns the parsed query string.
func (r *Request) Query() url.Values { return r.ctx.req.URL.Query() }

// QueryString returns the raw query string without the leading '?'.
func (r *Request) QueryString() string { return r.ctx.req.URL.RawQuery }

// Header returns the request header map.
func (r *Request) Header() http.Header { return r.ctx.req.Header }

// Get returns a request header. Referer and Referrer are interchangeable.
func (r *Request) Get(name string) string {
	h := r.ctx.req.Header
	switch strings.ToLower(name) {
	case "referer", "referrer":
		if v := h.Get("Referrer"); v != "" {
			return v
		}
		return h.Get("Referer")
	default:
		return h.Get(name)
	}
}

// Host returns the host with port, honoring X-Forwarded-Host when proxy
// headers are trusted.
func (r *Request) Host() string {
	if r.trusted() {
		if fwd := r.ctx.req.Header.Get("X-Forwarded-Host"); fwd != "" {
			host, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(host)
		}
	}
	return r.ctx.req.Host
}

// Hostname returns Host without the port.
func (r *Request) Hostname() string {
	host := r.Host()
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "[") {
		if end := strings.IndexByte(host, ']'); end > 0 {
			return host[1:end]
		}
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// Protocol returns "https" or "http". Behind a trusted proxy the
// X-Forwarded-Proto header decides.
func (r *Request) Protocol() string {
	if r.ctx.req.TLS != nil {
		return "https"
	}
	if !r.trusted() {
		return "http"
	}
	proto := r.ctx.req.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		return "http"
	}
	first, _, _ := strings.Cut(proto, ",")
	return strings.ToLower(strings.TrimSpace(first))
}

// Secure reports whether the request arrived over TLS.
func (r *Request) Secure() bool { return r.Protocol() == "https" }

// IPs returns the forwarded-address chain when proxy headers are trusted,
// client first. It is empty otherwise.
func (r *Request) IPs() []string {
	if !r.trusted() {
		return nil
	}
	raw := r.ctx.req.Header.Get(r.defaults.ipHeader())
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ips := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ips = append(ips, p)
		}
	}
	if n := r.defaults.MaxIPsCount; n > 0 && len(ips) > n {
		ips = ips[len(ips)-n:]
	}
	return ips
}

// IP returns the client address: the first trusted forwarded entry, else
// the transport peer, else "".
func (r *Request) IP() string {
	if r.ipSet {
		return r.ip
	}
	if ips := r.IPs(); len(ips) > 0 {
		return ips[0]
	}
	return r.peer()
}

// SetIP overrides the resolved client address for this request.
func (r *Request) SetIP(ip string) {
	r.ip = ip
	r.ipSet = true
}

// Subdomains returns the host labels left of the application's domain,
// right-most first. IP hosts have no subdomains.
func (r *Request) Subdomains() []string {
	host := r.Hostname()
	if host == "" || net.ParseIP(host) != nil {
		return nil
	}
	labels := strings.Split(host, ".")
	offset := r.defaults.subdomainOffset()
	if len(labels) <= offset {
		return nil
	}
	labels = labels[:len(labels)-offset]
	out := make([]string, len(labels))
	for i, l := range labels {
		out[len(labels)-1-i] = l
	}
	return out
}

// Accept returns the content negotiator.
func (r *Request) Accept() *accepts.Negotiator { return r.accept }

// Accepts returns the best of types for the Accept header.
func (r *Request) Accepts(types ...string) (string, bool) { return r.accept.Type(types...) }

// AcceptsLanguages returns the best of langs for Accept-Language.
func (r *Request) AcceptsLanguages(langs ...string) (string, bool) {
	return r.accept.Language(langs...)
}

// AcceptsEncodings returns the best of encodings for Accept-Encoding.
func (r *Request) AcceptsEncodings(encodings ...string) (string, bool) {
	return r.accept.Encoding(encodings...)
}

// AcceptsCharsets returns the best of charsets for Accept-Charset.
func (r *Request) AcceptsCharsets(charsets ...string) (string, bool) {
	return r.accept.Charset(charsets...)
}

// Type returns the request media type without parameters.
func (r *Request) Type() string {
	ct := r.ctx.req.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mt
}

// Length returns the declared request body length.
func (r *Request) Length() (int64, bool) {
	v := r.ctx.req.Header.Get("Content-Length")
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Is reports which of types the request body matches. ok is false when the
// request has no body or nothing matches. With no types, the request's own
// media type is returned.
func (r *Request) Is(types ...string) (string, bool) {
	if !r.hasBody() {
		return "", false
	}
	actual := r.Type()
	if actual == "" {
		return "", false
	}
	if len(types) == 0 {
		return actual, true
	}
	for _, t := range types {
		if mediaMatch(accepts.NormalizeType(t), actual) {
			return t, true
		}
	}
	return "", false
}

// MarshalJSON renders method, url and header.
func (r *Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"method": r.Method(),
		"url":    r.originalURL,
		"header": r.Header(),
	})
}

func (r *Request) hasBody() bool {
	req := r.ctx.req
	if req.Header.Get("Transfer-Encoding") != "" || len(req.TransferEncoding) > 0 {
		return true
	}
	n, ok := r.Length()
	if ok {
		return n > 0
	}
	return req.ContentLength > 0
}

// trusted reports whether forwarded headers are honored for this peer.
func (r *Request) trusted() bool {
	return r.defaults.trusts(r.peer())
}

func (r *Request) peer() string {
	addr := r.ctx.req.RemoteAddr
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// mediaMatch matches pattern (which may use "*" parts) against actual.
func mediaMatch(pattern, actual string) bool {
	if pattern == "" {
		return false
	}
	pt, ps, _ := strings.Cut(pattern, "/")
	at, as, _ := strings.Cut(actual, "/")
	if pt != "*" && pt != at {
		return false
	}
	if ps == "*" || ps == as {
		return true
	}
	// Structured syntax suffix, e.g. "application/*+json".
	if strings.HasPrefix(ps, "*+") {
		return strings.HasSuffix(as, ps[1:])
	}
	return false
}
