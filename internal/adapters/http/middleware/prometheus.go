package middleware

import (
	"time"

	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
	"github.com/jsamuelsen11/cascade/internal/platform/metrics"
)

// Prometheus tracks in-flight requests and records each request's method,
// settled status class and latency.
func Prometheus(m *metrics.Metrics) appctx.Middleware {
	return func(c *appctx.Context, next appctx.Next) error {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		err := next()

		m.ObserveRequest(c.Method(), settledStatus(c, err), time.Since(start))
		return err
	}
}
