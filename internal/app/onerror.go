package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/jsamuelsen11/cascade/internal/domain"
	"github.com/jsamuelsen11/cascade/internal/ports"
)

var _ ports.ErrorSink = (*DiagnosticSink)(nil)

// stacker is implemented by errors that carry a stack trace, such as
// *compose.PanicError.
type stacker interface {
	Stack() string
}

// DiagnosticSink is the default error sink. It writes server-side failures
// to W, indented by two spaces and framed by blank lines. Not-found and
// exposed (client-facing) errors are not written.
type DiagnosticSink struct {
	W      io.Writer
	Silent bool

	mu sync.Mutex
}

// NewDiagnosticSink returns a sink writing to w, or to stderr when w is nil.
func NewDiagnosticSink(w io.Writer, silent bool) *DiagnosticSink {
	return &DiagnosticSink{W: w, Silent: silent}
}

// HandleError writes err. A nil err is a programming error and panics.
func (s *DiagnosticSink) HandleError(_ context.Context, err error) {
	if err == nil {
		panic("non-error thrown: <nil>")
	}
	if s.Silent {
		return
	}
	if domain.StatusOf(err) == http.StatusNotFound || domain.IsExposed(err) {
		return
	}

	msg := err.Error()
	var st stacker
	if errors.As(err, &st) {
		if stack := strings.TrimSpace(st.Stack()); stack != "" {
			msg += "\n" + stack
		}
	}

	var b strings.Builder
	b.WriteString("\n")
	for _, line := range strings.Split(strings.TrimRight(msg, "\n"), "\n") {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	w := s.W
	if w == nil {
		w = os.Stderr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(w, b.String())
}
