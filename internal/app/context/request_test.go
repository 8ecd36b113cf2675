package appctx

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequest_IP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		defaults RequestDefaults
		remote   string
		headers  map[string]string
		want     string
		wantIPs  []string
	}{
		{
			name:   "peer address without proxy",
			remote: "10.0.0.5:4321",
			headers: map[string]string{
				"X-Forwarded-For": "1.1.1.1",
			},
			want: "10.0.0.5",
		},
		{
			name:     "first forwarded entry with proxy",
			defaults: RequestDefaults{Proxy: true},
			remote:   "10.0.0.5:4321",
			headers:  map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"},
			want:     "1.1.1.1",
			wantIPs:  []string{"1.1.1.1", "2.2.2.2"},
		},
		{
			name:     "max ips count keeps right-most",
			defaults: RequestDefaults{Proxy: true, MaxIPsCount: 1},
			remote:   "10.0.0.5:4321",
			headers:  map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"},
			want:     "2.2.2.2",
			wantIPs:  []string{"2.2.2.2"},
		},
		{
			name:     "custom header",
			defaults: RequestDefaults{Proxy: true, ProxyIPHeader: "X-Client-IP"},
			remote:   "10.0.0.5:4321",
			headers:  map[string]string{"X-Client-IP": "3.3.3.3", "X-Forwarded-For": "1.1.1.1"},
			want:     "3.3.3.3",
			wantIPs:  []string{"3.3.3.3"},
		},
		{
			name: "trusted proxy prefix matches",
			defaults: RequestDefaults{
				Proxy:          true,
				TrustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
			},
			remote:  "10.1.2.3:80",
			headers: map[string]string{"X-Forwarded-For": "4.4.4.4"},
			want:    "4.4.4.4",
			wantIPs: []string{"4.4.4.4"},
		},
		{
			name: "untrusted peer ignores header",
			defaults: RequestDefaults{
				Proxy:          true,
				TrustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
			},
			remote:  "192.168.1.1:80",
			headers: map[string]string{"X-Forwarded-For": "4.4.4.4"},
			want:    "192.168.1.1",
		},
		{
			name:     "proxy without header falls back to peer",
			defaults: RequestDefaults{Proxy: true},
			remote:   "[::1]:8080",
			want:     "::1",
		},
		{
			name:   "no peer address",
			remote: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			c, _ := newTestContext(t, r, Defaults{Request: tt.defaults})

			assert.Equal(t, tt.want, c.Request().IP())
			assert.Equal(t, tt.wantIPs, c.Request().IPs())
		})
	}
}

func TestRequest_SetIP(t *testing.T) {
	t.Parallel()

	c, _ := newTestContext(t, nil, Defaults{})
	c.Request().SetIP("9.9.9.9")
	assert.Equal(t, "9.9.9.9", c.Request().IP())
}

func TestRequest_Protocol(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-Proto", "https, http")

	plain, _ := newTestContext(t, r, Defaults{})
	assert.Equal(t, "http", plain.Request().Protocol())
	assert.False(t, plain.Request().Secure())

	proxied, _ := newTestContext(t, r, Defaults{Request: RequestDefaults{Proxy: true}})
	assert.Equal(t, "https", proxied.Request().Protocol())
	assert.True(t, proxied.Request().Secure())

	tlsReq := httptest.NewRequest(http.MethodGet, "/", nil)
	tlsReq.TLS = &tls.ConnectionState{}
	secure, _ := newTestContext(t, tlsReq, Defaults{})
	assert.Equal(t, "https", secure.Request().Protocol())
}

func TestRequest_HostAndHostname(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "http://example.com:8080/", nil)
	r.Header.Set("X-Forwarded-Host", "public.example.org, internal")

	c, _ := newTestContext(t, r, Defaults{})
	assert.Equal(t, "example.com:8080", c.Request().Host())
	assert.Equal(t, "example.com", c.Request().Hostname())

	p, _ := newTestContext(t, r, Defaults{Request: RequestDefaults{Proxy: true}})
	assert.Equal(t, "public.example.org", p.Request().Host())

	v6 := httptest.NewRequest(http.MethodGet, "/", nil)
	v6.Host = "[::1]:3000"
	c6, _ := newTestContext(t, v6, Defaults{})
	assert.Equal(t, "::1", c6.Request().Hostname())
}

func TestRequest_Subdomains(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "http://tobi.ferrets.example.com/", nil)
	c, _ := newTestContext(t, r, Defaults{})
	assert.Equal(t, []string{"ferrets", "tobi"}, c.Request().Subdomains())

	c3, _ := newTestContext(t, r, Defaults{Request: RequestDefaults{SubdomainOffset: 3}})
	assert.Equal(t, []string{"tobi"}, c3.Request().Subdomains())

	ip := httptest.NewRequest(http.MethodGet, "http://127.0.0.1/", nil)
	cip, _ := newTestContext(t, ip, Defaults{})
	assert.Empty(t, cip.Request().Subdomains())
}

func TestRequest_Get_Referrer(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Referer", "http://a.example/")
	c, _ := newTestContext(t, r, Defaults{})

	assert.Equal(t, "http://a.example/", c.Request().Get("Referrer"))
	assert.Equal(t, "http://a.example/", c.Request().Get("referer"))
}

func TestRequest_QueryAndPath(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/users?page=2&sort=name", nil)
	c, _ := newTestContext(t, r, Defaults{})

	assert.Equal(t, "/users", c.Path())
	assert.Equal(t, "2", c.Request().Query().Get("page"))
	assert.Equal(t, "page=2&sort=name", c.Request().QueryString())
	assert.Equal(t, http.MethodGet, c.Method())
}

func TestRequest_Is(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	c, _ := newTestContext(t, r, Defaults{})

	got, ok := c.Request().Is("html", "json")
	assert.True(t, ok)
	assert.Equal(t, "json", got)

	got, ok = c.Request().Is()
	assert.True(t, ok)
	assert.Equal(t, "application/json", got)

	_, ok = c.Request().Is("application/*")
	assert.True(t, ok)

	_, ok = c.Request().Is("text/*")
	assert.False(t, ok)

	empty, _ := newTestContext(t, httptest.NewRequest(http.MethodGet, "/", nil), Defaults{})
	_, ok = empty.Request().Is("json")
	assert.False(t, ok, "bodiless request matches nothing")
}

func TestRequest_Accepts(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept", "application/json")
	c, _ := newTestContext(t, r, Defaults{})

	got, ok := c.Request().Accepts("html", "json")
	assert.True(t, ok)
	assert.Equal(t, "json", got)
}
