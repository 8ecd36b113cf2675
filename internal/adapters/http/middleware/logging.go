package middleware

import (
	"log/slog"
	"time"

	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
	"github.com/jsamuelsen11/cascade/internal/domain"
	"github.com/jsamuelsen11/cascade/internal/platform/logging"
)

// Logging logs "request started" and "request completed" for every request
// and stores a child logger, tagged with the request and correlation IDs, in
// the request context for downstream units. Headers are logged redacted at
// debug level.
//
// The completion status is the one the chain settled on. When the chain
// fails it is the status the error maps to, and the error is logged too.
func Logging(logger *slog.Logger) appctx.Middleware {
	return func(c *appctx.Context, next appctx.Next) error {
		start := time.Now()

		child := logger.With(
			slog.String("request_id", RequestIDFromContext(c)),
			slog.String("correlation_id", CorrelationIDFromContext(c)),
		)
		c.SetContext(logging.WithLogger(c.Req().Context(), child))

		child.InfoContext(c, "request started",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
		)

		if child.Enabled(c, slog.LevelDebug) {
			attrs := RedactHeaders(c.Req().Header)
			args := make([]any, 0, len(attrs))
			for _, a := range attrs {
				args = append(args, a)
			}
			child.DebugContext(c, "request headers", args...)
		}

		err := next()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", settledStatus(c, err)),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}
		child.InfoContext(c, "request completed", attrs...)

		return err
	}
}

// settledStatus is the status the response will carry once the dispatcher
// finishes with it.
func settledStatus(c *appctx.Context, err error) int {
	if err != nil && !c.Res().HeadersSent() {
		return domain.StatusOf(err)
	}
	return c.Status()
}
