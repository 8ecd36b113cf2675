package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jsamuelsen11/cascade/internal/app/compose"
	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
	"github.com/jsamuelsen11/cascade/internal/domain"
)

// Callback composes the registered units and returns the request handler.
// Units registered after Callback returns are not part of that handler.
func (a *App) Callback() (http.Handler, error) {
	chain, err := compose.Compose(a.units...)
	if err != nil {
		return nil, fmt.Errorf("composing middleware: %w", err)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.dispatch(a.CreateContext(w, r), chain)
	}), nil
}

// CreateContext builds the Context for one transport pair from the app's
// defaults.
func (a *App) CreateContext(w http.ResponseWriter, r *http.Request) *appctx.Context {
	return appctx.New(a, w, r, a.defaults())
}

// dispatch runs chain against c and finalizes the response. Respond runs
// exactly once on success; every failure goes through fail.
func (a *App) dispatch(c *appctx.Context, chain compose.Handler[*appctx.Context]) {
	c.Res().SetStatus(http.StatusNotFound)

	done := make(chan struct{})
	defer close(done)
	go a.watchAbort(c, c.Req().Context(), done)

	defer func() {
		if v := recover(); v != nil {
			perr := compose.Recovered(v)
			a.logger.ErrorContext(c.Req().Context(), "dispatcher recovered panic",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Any("error", perr),
			)
			a.fail(c, perr)
		}
	}()

	if err := chain(c); err != nil {
		a.fail(c, err)
		return
	}
	if err := Respond(c); err != nil {
		a.fail(c, fmt.Errorf("writing response: %w", err))
	}
}

// watchAbort reports ErrConnectionAborted when the transport request is
// canceled before dispatch finished. It only touches c through the
// de-duplicated report path.
func (a *App) watchAbort(c *appctx.Context, transport context.Context, done <-chan struct{}) {
	select {
	case <-done:
	case <-transport.Done():
		select {
		case <-done:
			return
		default:
		}
		err := fmt.Errorf("%w: %w", ErrConnectionAborted, context.Cause(transport))
		c.ReportWith(transport, err)
	}
}

// fail reports err, releases a body that was never streamed and, when
// nothing was sent yet, ends the response with the error's status and no
// body.
func (a *App) fail(c *appctx.Context, err error) {
	c.Report(err)

	rw := c.Res()
	if !rw.Ended() {
		closeBody(c.Body())
	}
	if rw.HeadersSent() || !c.Writable() {
		return
	}
	h := rw.Header()
	h.Del("Content-Type")
	h.Del("Content-Length")
	h.Del("Transfer-Encoding")
	rw.SetStatus(domain.StatusOf(err))
	_ = rw.End(nil)
}
