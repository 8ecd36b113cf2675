package appctx

import (
	"errors"
	"io"
	"net/http"
)

// ResponseWriter wraps the transport http.ResponseWriter. The status code
// stays pending until the first write, so units can change it freely until
// headers go out. It records whether headers were sent, whether the response
// was ended, and how many bytes were written.
type ResponseWriter struct {
	http.ResponseWriter
	status        int
	headerWritten bool
	ended         bool
	written       int64
}

// NewResponseWriter wraps w. A w that is already a *ResponseWriter is
// returned as is.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}
	return &ResponseWriter{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

// Status returns the pending or committed status code.
func (rw *ResponseWriter) Status() int {
	return rw.status
}

// SetStatus changes the pending status. It has no effect once headers are sent.
func (rw *ResponseWriter) SetStatus(code int) {
	if rw.headerWritten {
		return
	}
	rw.status = code
}

// WriteHeader commits code and the current headers. Only the first call
// takes effect; subsequent calls are ignored.
func (rw *ResponseWriter) WriteHeader(code int) {
	if rw.headerWritten {
		return
	}
	rw.status = code
	rw.headerWritten = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write commits the pending status if needed and writes b.
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.WriteHeader(rw.status)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// End writes b as the last chunk of the response. Calls after the first
// are no-ops.
func (rw *ResponseWriter) End(b []byte) error {
	if rw.ended {
		return nil
	}
	rw.ended = true
	if !rw.headerWritten {
		rw.WriteHeader(rw.status)
	}
	if len(b) == 0 {
		return nil
	}
	_, err := rw.Write(b)
	return err
}

// Pipe copies src into the response and ends it. src is closed when it
// implements io.Closer.
func (rw *ResponseWriter) Pipe(src io.Reader) (int64, error) {
	if rw.ended {
		return 0, nil
	}
	rw.ended = true
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}
	if !rw.headerWritten {
		rw.WriteHeader(rw.status)
	}
	n, err := io.Copy(writerOnly{rw}, src)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}
	return n, nil
}

// HeadersSent reports whether the status line and headers were written.
func (rw *ResponseWriter) HeadersSent() bool {
	return rw.headerWritten
}

// Ended reports whether End or Pipe ran.
func (rw *ResponseWriter) Ended() bool {
	return rw.ended
}

// Written returns the number of body bytes written.
func (rw *ResponseWriter) Written() int64 {
	return rw.written
}

// Flush commits headers and flushes buffered data to the client.
func (rw *ResponseWriter) Flush() {
	if !rw.headerWritten {
		rw.WriteHeader(rw.status)
	}
	_ = http.NewResponseController(rw.ResponseWriter).Flush()
}

// Unwrap returns the underlying http.ResponseWriter so that
// http.ResponseController and type assertions (http.Flusher, http.Hijacker)
// work through the wrapper.
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// writerOnly hides ReadFrom so io.Copy counts bytes through Write.
type writerOnly struct {
	io.Writer
}
