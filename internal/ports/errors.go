package ports

import "context"

// ErrorSink receives every failure the dispatcher observes: errors returned
// from the middleware chain, recovered panics, response-writer failures and
// client aborts. Implementations must be safe for concurrent use and must
// not write to the HTTP response.
type ErrorSink interface {
	// HandleError reports err. ctx is the request context the failure
	// occurred in; it may already be canceled.
	HandleError(ctx context.Context, err error)
}

// ErrorSinkFunc adapts a function to ErrorSink.
type ErrorSinkFunc func(ctx context.Context, err error)

// HandleError calls f(ctx, err).
func (f ErrorSinkFunc) HandleError(ctx context.Context, err error) { f(ctx, err) }
