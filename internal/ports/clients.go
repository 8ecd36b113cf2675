package ports

import (
	"context"
	"io"
	"net/http"
)

// UpstreamResponse is a streamed upstream reply. The caller owns Body and
// must close it.
type UpstreamResponse struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// Upstream defines the client port for the service the proxy endpoint
// forwards to. Implemented by the outbound HTTP client adapter.
type Upstream interface {
	HealthChecker

	// Fetch issues a GET for path (relative to the upstream base URL) and
	// returns the reply without buffering the body. header carries request
	// headers to forward. Returns domain.ErrUnavailable when the upstream
	// cannot be reached or the circuit breaker is open.
	Fetch(ctx context.Context, path string, header http.Header) (*UpstreamResponse, error)
}
