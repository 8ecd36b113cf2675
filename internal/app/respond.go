package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
	"github.com/jsamuelsen11/cascade/internal/domain"
)

// Respond writes the Context's final state to the transport. It performs
// exactly one terminal action, chosen in this order:
//
//  1. auto-respond disabled: nothing
//  2. response not writable: nothing
//  3. status forbids a body: headers only
//  4. HEAD: headers only, with Content-Length for JSON bodies
//  5. no body: the status message as text
//  6. string or []byte: verbatim
//  7. io.Reader: streamed
//  8. anything else: JSON
//
// A body that is an io.Closer is closed on every branch from 2 on, whether
// it was streamed or not. With auto-respond disabled the unit owns it.
//
// Encoding and streaming failures are returned.
func Respond(c *appctx.Context) error {
	if !c.AutoRespond() {
		return nil
	}

	res := c.Response()
	rw := c.Res()
	body := res.Body()
	status := res.Status()

	if !c.Writable() {
		closeBody(body)
		return nil
	}

	if domain.IsEmptyBodyStatus(status) {
		closeBody(body)
		res.SetBody(nil)
		return rw.End(nil)
	}

	if c.Method() == http.MethodHead {
		defer closeBody(body)
		if !res.HeadersSent() && isJSONBody(body) {
			b, err := encodeJSON(body)
			if err != nil {
				return fmt.Errorf("encoding response body: %w", err)
			}
			res.SetLength(int64(len(b)))
		}
		return rw.End(nil)
	}

	if body == nil {
		text := res.Message()
		if text == "" {
			text = strconv.Itoa(status)
		}
		if !res.HeadersSent() {
			res.SetType("text")
			res.SetLength(int64(len(text)))
		}
		return rw.End([]byte(text))
	}

	switch b := body.(type) {
	case []byte:
		return rw.End(b)
	case string:
		return rw.End([]byte(b))
	case io.Reader:
		if _, err := rw.Pipe(b); err != nil {
			return fmt.Errorf("streaming response body: %w", err)
		}
		return nil
	}

	b, err := encodeJSON(body)
	if err != nil {
		return fmt.Errorf("encoding response body: %w", err)
	}
	if !res.HeadersSent() {
		res.SetLength(int64(len(b)))
	}
	return rw.End(b)
}

// closeBody closes body when it holds a resource.
func closeBody(body any) {
	if cl, ok := body.(io.Closer); ok {
		_ = cl.Close()
	}
}

func isJSONBody(body any) bool {
	switch body.(type) {
	case nil, string, []byte, io.Reader:
		return false
	default:
		return true
	}
}

// encodeJSON marshals v without HTML escaping or a trailing newline.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
