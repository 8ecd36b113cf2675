package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jsamuelsen11/cascade/internal/domain"
	"github.com/jsamuelsen11/cascade/internal/ports"
)

// Compile-time check that Client implements ports.Upstream.
var _ ports.Upstream = (*Client)(nil)

// hopHeaders are never forwarded upstream.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Fetch GETs path relative to the base URL and hands back the unread body.
// Transport failures and breaker rejections wrap domain.ErrUnavailable.
// Context cancellation is returned as is.
func (c *Client) Fetch(ctx context.Context, path string, header http.Header) (*ports.UpstreamResponse, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	for k, vs := range header {
		req.Header[k] = append([]string(nil), vs...)
	}
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}

	resp, err := c.Do(ctx, req)
	if resp != nil {
		// A retryable status that outlived its retries is still a reply.
		return &ports.UpstreamResponse{Status: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s: %w", domain.ErrUnavailable, c.name, err)
}

// resolve joins path onto the base URL, keeping any query string.
func (c *Client) resolve(path string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing upstream base URL: %w", err)
	}
	ref, err := url.Parse("/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return "", fmt.Errorf("parsing upstream path %q: %w", path, err)
	}
	base.Path = strings.TrimRight(base.Path, "/") + ref.Path
	base.RawQuery = ref.RawQuery
	return base.String(), nil
}
