package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
	"github.com/jsamuelsen11/cascade/internal/domain"
)

// Deadline bounds the rest of the chain to d. Downstream units see the
// deadline on the Context and are expected to give up when it passes;
// nothing is interrupted. A chain that overruns without writing a response
// fails with 504. d <= 0 disables the unit.
//
// The request context is restored on the way out, so upstream units do not
// inherit the expired deadline. A streamed body keeps the deadline alive
// until the dispatcher closes it.
func Deadline(d time.Duration) appctx.Middleware {
	return func(c *appctx.Context, next appctx.Next) error {
		if d <= 0 {
			return next()
		}

		parent := c.Req().Context()
		ctx, cancel := context.WithTimeout(parent, d)
		c.SetContext(ctx)
		defer c.SetContext(parent)

		err := next()

		if src, ok := c.Body().(io.Reader); ok && err == nil && ctx.Err() == nil {
			c.Response().WrapBody(&cancelOnClose{Reader: src, cancel: cancel})
		} else {
			cancel()
		}

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) || c.Res().HeadersSent() {
			return err
		}
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return domain.WrapHTTPError(http.StatusGatewayTimeout, context.DeadlineExceeded)
		}
		return err
	}
}

// cancelOnClose releases a deadline once its stream is consumed.
type cancelOnClose struct {
	io.Reader
	cancel context.CancelFunc
}

func (r *cancelOnClose) Close() error {
	defer r.cancel()
	if c, ok := r.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
