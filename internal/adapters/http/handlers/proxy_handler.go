package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
	"github.com/jsamuelsen11/cascade/internal/domain"
	"github.com/jsamuelsen11/cascade/internal/ports"
)

// forwardedRequestHeaders are copied from the inbound request upstream.
var forwardedRequestHeaders = []string{
	"Accept",
	"Accept-Language",
	"If-None-Match",
	"If-Modified-Since",
}

// forwardedResponseHeaders are copied from the upstream reply.
var forwardedResponseHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Language",
	"Cache-Control",
	"ETag",
	"Last-Modified",
}

// ProxyHandler relays GET requests under a wildcard route to the upstream
// service and streams the reply body back without buffering it.
type ProxyHandler struct {
	upstream ports.Upstream
}

// NewProxyHandler returns a handler relaying to upstream.
func NewProxyHandler(upstream ports.Upstream) *ProxyHandler {
	return &ProxyHandler{upstream: upstream}
}

// Relay handles GET /proxy/*. The wildcard and query string form the
// upstream path. Upstream failures surface as 502; the reply's own status,
// error statuses included, is passed through.
func (h *ProxyHandler) Relay(c *appctx.Context) error {
	path := "/" + strings.TrimLeft(chi.URLParam(c.Req(), "*"), "/")
	if q := c.Request().QueryString(); q != "" {
		path += "?" + q
	}

	header := make(http.Header, len(forwardedRequestHeaders))
	for _, k := range forwardedRequestHeaders {
		if v := c.Header(k); v != "" {
			header.Set(k, v)
		}
	}

	res, err := h.upstream.Fetch(c, path, header)
	if err != nil {
		return err
	}

	for _, k := range forwardedResponseHeaders {
		if v := res.Header.Get(k); v != "" {
			c.Set(k, v)
		}
	}
	c.SetStatus(res.Status)

	if domain.IsEmptyBodyStatus(res.Status) || c.Method() == http.MethodHead {
		_ = res.Body.Close()
		return nil
	}
	c.SetBody(res.Body)
	return nil
}
