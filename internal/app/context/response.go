package appctx

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/jsamuelsen11/cascade/internal/domain"
)

// typeAliases are the short names SetType accepts.
var typeAliases = map[string]string{
	"text": "text/plain; charset=utf-8",
	"html": "text/html; charset=utf-8",
	"json": "application/json; charset=utf-8",
	"bin":  "application/octet-stream",
	"xml":  "application/xml; charset=utf-8",
	"form": "application/x-www-form-urlencoded; charset=utf-8",
}

var htmlPrefix = regexp.MustCompile(`^\s*<`)

// Response is the response-facing view of a Context.
type Response struct {
	ctx      *Context
	request  *Request
	defaults ResponseDefaults

	body           any
	message        string
	explicitStatus bool
}

// Context returns the owning Context.
func (r *Response) Context() *Context { return r.ctx }

// Request returns the sibling request view.
func (r *Response) Request() *Request { return r.request }

// Req returns the transport request.
func (r *Response) Req() *http.Request { return r.ctx.req }

// Res returns the transport response writer.
func (r *Response) Res() *ResponseWriter { return r.ctx.res }

// Defaults returns this response's copy of the application defaults.
func (r *Response) Defaults() ResponseDefaults { return r.defaults }

// Header returns the response header map.
func (r *Response) Header() http.Header { return r.ctx.res.Header() }

// HeadersSent reports whether headers were written to the transport.
func (r *Response) HeadersSent() bool { return r.ctx.res.HeadersSent() }

// Writable reports whether the response can still be written.
func (r *Response) Writable() bool { return r.ctx.Writable() }

// Status returns the response status.
func (r *Response) Status() int { return r.ctx.res.Status() }

// ExplicitStatus reports whether a unit set the status, directly or by
// setting a body.
func (r *Response) ExplicitStatus() bool { return r.explicitStatus }

// SetStatus sets the response status. It panics on codes outside 100..999
// and is a no-op once headers are sent. Statuses that forbid a body clear it,
// closing a body that is an io.Closer.
func (r *Response) SetStatus(code int) {
	if r.HeadersSent() {
		return
	}
	if !domain.IsValidStatus(code) {
		panic(fmt.Sprintf("appctx: invalid status code: %d", code))
	}
	r.explicitStatus = true
	r.ctx.res.SetStatus(code)
	if r.body != nil && domain.IsEmptyBodyStatus(code) {
		if cl, ok := r.body.(io.Closer); ok {
			_ = cl.Close()
		}
		r.SetBody(nil)
	}
}

// Message returns the status message: an explicit one if set, else the
// standard phrase for the status.
func (r *Response) Message() string {
	if r.message != "" {
		return r.message
	}
	return http.StatusText(r.Status())
}

// SetMessage overrides the status message.
func (r *Response) SetMessage(msg string) { r.message = msg }

// Body returns the response body.
func (r *Response) Body() any { return r.body }

// SetBody sets the response body and infers status, type and length from it.
//
//   - nil: status 204 unless the status already forbids a body; entity
//     headers are removed.
//   - string: text/html when it starts with '<', else text/plain.
//   - []byte: application/octet-stream.
//   - io.Reader: application/octet-stream, length left unset.
//   - anything else: application/json.
//
// A status not set explicitly becomes 200. Content-Type is only inferred
// when the header is not already set.
func (r *Response) SetBody(v any) {
	original := r.body
	r.body = v

	if v == nil {
		if !domain.IsEmptyBodyStatus(r.Status()) {
			r.SetStatus(http.StatusNoContent)
		}
		r.Remove("Content-Type")
		r.Remove("Content-Length")
		r.Remove("Transfer-Encoding")
		return
	}

	if !r.explicitStatus {
		r.SetStatus(http.StatusOK)
	}

	inferType := r.Get("Content-Type") == ""

	switch b := v.(type) {
	case string:
		if inferType {
			if htmlPrefix.MatchString(b) {
				r.SetType("html")
			} else {
				r.SetType("text")
			}
		}
		r.SetLength(int64(len(b)))
	case []byte:
		if inferType {
			r.SetType("bin")
		}
		r.SetLength(int64(len(b)))
	case io.Reader:
		if original != nil {
			r.Remove("Content-Length")
		}
		if inferType {
			r.SetType("bin")
		}
	default:
		r.Remove("Content-Length")
		r.SetType("json")
	}
}

// WrapBody replaces the body with v and leaves status and headers as they
// are. It is for decorating the current body, such as a stream wrapped to
// release a resource on Close, where SetBody's inference would drop a
// Content-Length that still holds.
func (r *Response) WrapBody(v any) { r.body = v }

// Type returns the media type without parameters.
func (r *Response) Type() string {
	ct := r.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mt
}

// SetType sets Content-Type from an alias ("json"), an extension ("png",
// ".css") or a full media type. Text types get a utf-8 charset when they
// carry none. An unknown value removes the header.
func (r *Response) SetType(t string) {
	if ct := contentType(t); ct != "" {
		r.Set("Content-Type", ct)
		return
	}
	r.Remove("Content-Type")
}

// Length returns the Content-Length, computing it for text and byte bodies
// when the header is unset.
func (r *Response) Length() (int64, bool) {
	if v := r.Get("Content-Length"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	switch b := r.body.(type) {
	case string:
		return int64(len(b)), true
	case []byte:
		return int64(len(b)), true
	default:
		return 0, false
	}
}

// SetLength sets Content-Length unless a transfer encoding is in effect.
func (r *Response) SetLength(n int64) {
	if r.Get("Transfer-Encoding") != "" {
		return
	}
	r.Set("Content-Length", strconv.FormatInt(n, 10))
}

// Get returns a response header value.
func (r *Response) Get(name string) string {
	return r.Header().Get(name)
}

// Set replaces a response header. No-op once headers are sent.
func (r *Response) Set(name, value string) {
	if r.HeadersSent() {
		return
	}
	r.Header().Set(name, value)
}

// Append adds a value to a response header. No-op once headers are sent.
func (r *Response) Append(name, value string) {
	if r.HeadersSent() {
		return
	}
	r.Header().Add(name, value)
}

// Remove deletes a response header. No-op once headers are sent.
func (r *Response) Remove(name string) {
	if r.HeadersSent() {
		return
	}
	r.Header().Del(name)
}

// Vary adds field to the Vary header unless it is already listed.
func (r *Response) Vary(field string) {
	for _, v := range r.Header().Values("Vary") {
		for _, f := range strings.Split(v, ",") {
			f = strings.TrimSpace(f)
			if f == "*" || strings.EqualFold(f, field) {
				return
			}
		}
	}
	r.Append("Vary", field)
}

// Redirect points the client at target. "back" uses the Referer, falling
// back to "/". The status becomes 302 unless a redirect status is already
// set, and a short body is produced for clients that render it.
func (r *Response) Redirect(target string) {
	if target == "back" {
		target = r.request.Get("Referrer")
		if target == "" {
			target = "/"
		}
	}
	r.Set("Location", target)

	if !domain.IsRedirectStatus(r.Status()) {
		r.SetStatus(http.StatusFound)
	}

	if _, ok := r.request.Accepts("html"); ok {
		esc := html.EscapeString(target)
		r.SetType("html")
		r.SetBody(fmt.Sprintf(`Redirecting to <a href="%s">%s</a>.`, esc, esc))
		return
	}
	r.SetType("text")
	r.SetBody("Redirecting to " + target + ".")
}

// MarshalJSON renders status, message and header.
func (r *Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"status":  r.Status(),
		"message": r.Message(),
		"header":  r.Header(),
	})
}

func contentType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	if alias, ok := typeAliases[strings.ToLower(t)]; ok {
		return alias
	}
	if !strings.Contains(t, "/") {
		if !strings.HasPrefix(t, ".") {
			t = "." + t
		}
		return mime.TypeByExtension(t)
	}
	mt, params, err := mime.ParseMediaType(t)
	if err != nil {
		return ""
	}
	if _, ok := params["charset"]; !ok && wantsCharset(mt) {
		params["charset"] = "utf-8"
	}
	return mime.FormatMediaType(mt, params)
}

func wantsCharset(mt string) bool {
	if strings.HasPrefix(mt, "text/") {
		return true
	}
	switch mt {
	case "application/json", "application/javascript", "application/xml":
		return true
	default:
		return false
	}
}
