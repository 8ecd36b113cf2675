// Package cookies reads and writes request cookies, optionally signed.
//
// A signed cookie travels with a companion "<name>.sig" cookie holding an
// HMAC-SHA1 of "<name>=<value>" under the first configured key, encoded as
// unpadded URL-safe base64. Verification accepts any key in the list; when
// an older key matched, the signature is rewritten with the current one so
// keys can be rotated without logging clients out.
package cookies

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // keygrip-compatible signatures are HMAC-SHA1
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrInsecureCookie is returned when a Secure cookie is set over plain HTTP.
var ErrInsecureCookie = errors.New("cookies: cannot send secure cookie over unencrypted connection")

// ErrNoKeys is returned when a signed cookie is requested without keys.
var ErrNoKeys = errors.New("cookies: keys required for signed cookies")

const sigSuffix = ".sig"

// Options configures a Jar.
type Options struct {
	// Keys signs and verifies cookies. Keys[0] signs; every key verifies.
	Keys []string
	// Secure reports whether the connection is encrypted.
	Secure bool
}

// GetOptions controls a single read.
type GetOptions struct {
	Signed bool
}

// SetOptions controls a single write.
type SetOptions struct {
	Path     string
	Domain   string
	Expires  time.Time
	MaxAge   int
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	Signed   bool
	// Overwrite drops Set-Cookie headers already queued for the same name.
	Overwrite bool
}

// Jar is the cookie accessor for one request/response pair.
type Jar struct {
	r      *http.Request
	w      http.ResponseWriter
	keys   [][]byte
	secure bool
}

// New returns a Jar bound to r and w.
func New(r *http.Request, w http.ResponseWriter, opts Options) *Jar {
	keys := make([][]byte, 0, len(opts.Keys))
	for _, k := range opts.Keys {
		keys = append(keys, []byte(k))
	}
	return &Jar{r: r, w: w, keys: keys, secure: opts.Secure}
}

// Get returns the value of the named request cookie. A signed read only
// succeeds when the companion signature verifies.
func (j *Jar) Get(name string, opts GetOptions) (string, bool) {
	c, err := j.r.Cookie(name)
	if err != nil {
		return "", false
	}
	if !opts.Signed || len(j.keys) == 0 {
		return c.Value, true
	}

	sigName := name + sigSuffix
	sig, err := j.r.Cookie(sigName)
	if err != nil {
		return "", false
	}

	data := name + "=" + c.Value
	idx := j.index(data, sig.Value)
	switch {
	case idx < 0:
		j.expire(sigName, "/")
		return "", false
	case idx > 0:
		j.write(&http.Cookie{Name: sigName, Value: j.sign(data), Path: "/", HttpOnly: true})
	}
	return c.Value, true
}

// Set queues a Set-Cookie header. An empty value expires the cookie.
func (j *Jar) Set(name, value string, opts SetOptions) error {
	if opts.Secure && !j.secure {
		return ErrInsecureCookie
	}
	if opts.Signed && len(j.keys) == 0 {
		return ErrNoKeys
	}
	if opts.Path == "" {
		opts.Path = "/"
	}

	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     opts.Path,
		Domain:   opts.Domain,
		Expires:  opts.Expires,
		MaxAge:   opts.MaxAge,
		Secure:   opts.Secure,
		HttpOnly: opts.HTTPOnly,
		SameSite: opts.SameSite,
	}
	if value == "" {
		c.Expires = time.Unix(0, 0)
		c.MaxAge = -1
	}

	if opts.Overwrite {
		j.drop(name)
	}
	j.write(c)

	if !opts.Signed {
		return nil
	}
	sig := *c
	sig.Name = name + sigSuffix
	sig.Value = j.sign(name + "=" + value)
	if opts.Overwrite {
		j.drop(sig.Name)
	}
	j.write(&sig)
	return nil
}

func (j *Jar) write(c *http.Cookie) {
	http.SetCookie(j.w, c)
}

func (j *Jar) expire(name, path string) {
	j.write(&http.Cookie{Name: name, Path: path, Expires: time.Unix(0, 0), MaxAge: -1})
}

// drop removes queued Set-Cookie headers for name.
func (j *Jar) drop(name string) {
	h := j.w.Header()
	kept := h.Values("Set-Cookie")[:0:0]
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, name+"=") {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
}

func (j *Jar) sign(data string) string {
	return signWith(j.keys[0], data)
}

// index returns which key produced digest, or -1.
func (j *Jar) index(data, digest string) int {
	for i, k := range j.keys {
		if subtle.ConstantTimeCompare([]byte(signWith(k, data)), []byte(digest)) == 1 {
			return i
		}
	}
	return -1
}

func signWith(key []byte, data string) string {
	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
