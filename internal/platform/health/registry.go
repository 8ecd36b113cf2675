// Package health provides a thread-safe registry of dependency checks. The
// readiness endpoint uses it to decide whether the service can accept
// traffic.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/jsamuelsen11/cascade/internal/app/fanout"
	"github.com/jsamuelsen11/cascade/internal/ports"
)

// Compile-time interface check.
var _ ports.HealthRegistry = (*Registry)(nil)

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout bounds each individual check. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

// WithMaxConcurrency caps how many checks run at once. Zero runs them all
// together.
func WithMaxConcurrency(n int) Option {
	return func(r *Registry) { r.maxWorkers = n }
}

// Registry is a thread-safe implementation of [ports.HealthRegistry].
// Checkers are registered at startup and run on each readiness probe.
type Registry struct {
	mu       sync.RWMutex
	checkers []ports.HealthChecker

	timeout    time.Duration
	maxWorkers int
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a health checker to the registry. Safe for concurrent use.
func (r *Registry) Register(checker ports.HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, checker)
}

// CheckAll runs every registered check concurrently and returns results
// keyed by checker name. Nil values indicate healthy components. When two
// checkers share a name, the one registered last wins.
func (r *Registry) CheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	checkers := make([]ports.HealthChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	outcomes := fanout.Run(ctx, r.maxWorkers, checkers, func(ctx context.Context, c ports.HealthChecker) (struct{}, error) {
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		return struct{}{}, c.HealthCheck(ctx)
	})

	results := make(map[string]error, len(checkers))
	for i, c := range checkers {
		results[c.Name()] = outcomes[i].Err
	}
	return results
}
