// Package middleware holds the built-in units of the cascade chain. Every
// constructor returns an appctx.Middleware for App.Use:
//
//	a.Use(
//	    middleware.Problem(),
//	    middleware.RequestID(),
//	    middleware.CorrelationID(),
//	    middleware.Logging(logger),
//	)
//
// Units registered first run first on the way in and last on the way out.
package middleware

import (
	"context"

	"github.com/google/uuid"

	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
	"github.com/jsamuelsen11/cascade/internal/platform/httpclient"
)

const (
	headerRequestID     = "X-Request-ID"
	headerCorrelationID = "X-Correlation-ID"

	// maxIDLength bounds caller-supplied IDs; longer ones are replaced.
	maxIDLength = 128
)

type (
	requestIDKey     struct{}
	correlationIDKey struct{}
)

// WithRequestID stores id in ctx, both for this package and for outbound
// calls made through httpclient.
func WithRequestID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey{}, id)
	return httpclient.WithRequestID(ctx, id)
}

// RequestIDFromContext returns the request ID in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithCorrelationID stores id in ctx, both for this package and for outbound
// calls made through httpclient.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, correlationIDKey{}, id)
	return httpclient.WithCorrelationID(ctx, id)
}

// CorrelationIDFromContext returns the correlation ID in ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// RequestID reuses the caller's X-Request-ID or generates a UUID v4, stores
// it in the request context and echoes it on the response.
func RequestID() appctx.Middleware {
	return func(c *appctx.Context, next appctx.Next) error {
		id := c.Header(headerRequestID)
		if !validID(id) {
			id = generateID()
		}

		c.SetContext(WithRequestID(c.Req().Context(), id))
		c.Set(headerRequestID, id)

		return next()
	}
}

// CorrelationID reuses the caller's X-Correlation-ID, falling back to the
// request ID. Register it after RequestID.
func CorrelationID() appctx.Middleware {
	return func(c *appctx.Context, next appctx.Next) error {
		id := c.Header(headerCorrelationID)
		if !validID(id) {
			id = RequestIDFromContext(c)
		}

		if id != "" {
			c.SetContext(WithCorrelationID(c.Req().Context(), id))
			c.Set(headerCorrelationID, id)
		}

		return next()
	}
}

// validID accepts non-empty printable ASCII up to maxIDLength.
func validID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for i := range len(id) {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// generateID returns a random UUID v4.
func generateID() string {
	return uuid.NewString()
}
