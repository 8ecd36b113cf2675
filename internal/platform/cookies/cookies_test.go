package cookies_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/cascade/internal/platform/cookies"
)

// signedPair sets a signed cookie with keys and returns the queued cookies.
func signedPair(t *testing.T, keys []string, name, value string) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	jar := cookies.New(httptest.NewRequest(http.MethodGet, "/", nil), w, cookies.Options{Keys: keys})
	require.NoError(t, jar.Set(name, value, cookies.SetOptions{Signed: true}))
	return (&http.Response{Header: w.Header()}).Cookies()
}

func TestSet_Plain(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	jar := cookies.New(httptest.NewRequest(http.MethodGet, "/", nil), w, cookies.Options{})

	require.NoError(t, jar.Set("theme", "dark", cookies.SetOptions{HTTPOnly: true}))

	got := w.Header().Values("Set-Cookie")
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "theme=dark")
	assert.Contains(t, got[0], "Path=/")
	assert.Contains(t, got[0], "HttpOnly")
}

func TestSet_SignedWritesCompanion(t *testing.T) {
	t.Parallel()

	got := signedPair(t, []string{"k1"}, "session", "abc")
	require.Len(t, got, 2)
	assert.Equal(t, "session", got[0].Name)
	assert.Equal(t, "session.sig", got[1].Name)
	assert.NotEmpty(t, got[1].Value)
	assert.NotContains(t, got[1].Value, "=", "signature must be unpadded")
}

func TestSet_SecureOverPlainHTTP(t *testing.T) {
	t.Parallel()

	jar := cookies.New(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder(), cookies.Options{})
	err := jar.Set("id", "1", cookies.SetOptions{Secure: true})
	assert.ErrorIs(t, err, cookies.ErrInsecureCookie)
}

func TestSet_SignedWithoutKeys(t *testing.T) {
	t.Parallel()

	jar := cookies.New(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder(), cookies.Options{})
	err := jar.Set("id", "1", cookies.SetOptions{Signed: true})
	assert.ErrorIs(t, err, cookies.ErrNoKeys)
}

func TestSet_EmptyValueExpires(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	jar := cookies.New(httptest.NewRequest(http.MethodGet, "/", nil), w, cookies.Options{})
	require.NoError(t, jar.Set("gone", "", cookies.SetOptions{}))

	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestSet_Overwrite(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	jar := cookies.New(httptest.NewRequest(http.MethodGet, "/", nil), w, cookies.Options{})
	require.NoError(t, jar.Set("a", "1", cookies.SetOptions{}))
	require.NoError(t, jar.Set("b", "2", cookies.SetOptions{}))
	require.NoError(t, jar.Set("a", "3", cookies.SetOptions{Overwrite: true}))

	got := strings.Join(w.Header().Values("Set-Cookie"), "\n")
	assert.NotContains(t, got, "a=1")
	assert.Contains(t, got, "a=3")
	assert.Contains(t, got, "b=2")
}

func TestGet_Unsigned(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "lang", Value: "en"})
	jar := cookies.New(r, httptest.NewRecorder(), cookies.Options{})

	v, ok := jar.Get("lang", cookies.GetOptions{})
	assert.True(t, ok)
	assert.Equal(t, "en", v)

	_, ok = jar.Get("missing", cookies.GetOptions{})
	assert.False(t, ok)
}

func TestGet_SignedRoundTrip(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range signedPair(t, []string{"k1"}, "session", "abc") {
		r.AddCookie(c)
	}

	w := httptest.NewRecorder()
	jar := cookies.New(r, w, cookies.Options{Keys: []string{"k1"}})
	v, ok := jar.Get("session", cookies.GetOptions{Signed: true})
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
	assert.Empty(t, w.Header().Values("Set-Cookie"), "current key must not trigger a re-sign")
}

func TestGet_SignedTampered(t *testing.T) {
	t.Parallel()

	pair := signedPair(t, []string{"k1"}, "session", "abc")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: "admin"})
	r.AddCookie(pair[1])

	w := httptest.NewRecorder()
	jar := cookies.New(r, w, cookies.Options{Keys: []string{"k1"}})
	_, ok := jar.Get("session", cookies.GetOptions{Signed: true})
	assert.False(t, ok)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "session.sig=")
}

func TestGet_SignedMissingSignature(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	jar := cookies.New(r, httptest.NewRecorder(), cookies.Options{Keys: []string{"k1"}})

	_, ok := jar.Get("session", cookies.GetOptions{Signed: true})
	assert.False(t, ok)
}

func TestGet_SignedRotatedKeyResigns(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range signedPair(t, []string{"old"}, "session", "abc") {
		r.AddCookie(c)
	}

	w := httptest.NewRecorder()
	jar := cookies.New(r, w, cookies.Options{Keys: []string{"new", "old"}})
	v, ok := jar.Get("session", cookies.GetOptions{Signed: true})
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	resigned := (&http.Response{Header: w.Header()}).Cookies()
	require.Len(t, resigned, 1)
	assert.Equal(t, "session.sig", resigned[0].Name)
	assert.Equal(t, signedPair(t, []string{"new"}, "session", "abc")[1].Value, resigned[0].Value)
}
