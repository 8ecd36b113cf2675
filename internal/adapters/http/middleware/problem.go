package middleware

import (
	"github.com/jsamuelsen11/cascade/internal/adapters/http/dto"
	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
)

// Problem turns a failed chain into an RFC 9457 problem+json response.
// The error is reported to the app's error sink first, then the chain is
// marked successful so the dispatcher writes the problem body.
//
// Once headers are sent the response cannot be changed, and the error is
// passed up untouched. Register Problem first so it sees every failure.
func Problem() appctx.Middleware {
	return func(c *appctx.Context, next appctx.Next) error {
		err := next()
		if err == nil || c.Res().HeadersSent() || !c.Writable() {
			return err
		}

		c.Report(err)

		res := c.Response()
		res.Remove("Content-Length")
		res.Remove("Content-Encoding")
		res.Remove("Transfer-Encoding")

		p := dto.NewProblem(err, c.OriginalURL())
		res.SetStatus(p.Status)
		res.SetBody(p)
		res.SetType(dto.ProblemContentType)
		return nil
	}
}
