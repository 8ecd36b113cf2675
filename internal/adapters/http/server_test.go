package http_test

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"

	adapthttp "github.com/jsamuelsen11/cascade/internal/adapters/http"
	"github.com/jsamuelsen11/cascade/internal/platform/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// protoHandler answers with the protocol the request arrived on.
var protoHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, r.Proto)
})

// serveOn runs s on a loopback listener until the test ends and returns
// the base URL.
func serveOn(t *testing.T, s *adapthttp.Server) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, s.Shutdown(ctx), "Shutdown")
		assert.NoError(t, <-done, "Serve after shutdown")
	})
	return "http://" + ln.Addr().String()
}

func TestServer_Addr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		port int
		want string
	}{
		{host: "127.0.0.1", port: 9090, want: "127.0.0.1:9090"},
		{host: "", port: 8080, want: ":8080"},
		{host: "::1", port: 443, want: "[::1]:443"},
	}

	for _, tt := range tests {
		s := adapthttp.NewServer(config.ServerConfig{Host: tt.host, Port: tt.port}, http.NotFoundHandler(), nil)
		assert.Equal(t, tt.want, s.Addr())
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	t.Parallel()

	cfg := config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	s := adapthttp.NewServer(cfg, protoHandler, discardLogger())

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	time.Sleep(50 * time.Millisecond)

	// No deadline on ctx, so the configured shutdown timeout applies.
	require.NoError(t, s.Shutdown(context.Background()))
	assert.NoError(t, <-done, "Start returns nil after a graceful shutdown")
}

func TestServer_Serve(t *testing.T) {
	t.Parallel()

	base := serveOn(t, adapthttp.NewServer(config.ServerConfig{}, protoHandler, discardLogger()))

	resp, err := http.Get(base + "/")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "HTTP/1.1", string(body))
}

func TestServer_H2C(t *testing.T) {
	t.Parallel()

	priorKnowledge := &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}

	tests := []struct {
		name      string
		h2c       bool
		transport http.RoundTripper
		want      string
	}{
		{name: "prior knowledge on h2c server", h2c: true, transport: priorKnowledge, want: "HTTP/2.0"},
		{name: "http1 on h2c server", h2c: true, want: "HTTP/1.1"},
		{name: "http1 with h2c off", h2c: false, want: "HTTP/1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			base := serveOn(t, adapthttp.NewServer(config.ServerConfig{H2C: tt.h2c}, protoHandler, discardLogger()))

			client := &http.Client{Timeout: 5 * time.Second, Transport: tt.transport}
			resp, err := client.Get(base + "/")
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()

			assert.Equal(t, tt.want, string(body))
		})
	}
}
