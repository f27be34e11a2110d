package debughttp

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nudge-sh/nudge/internal/cache"
	"github.com/nudge-sh/nudge/internal/telemetry"
)

func startTestDebugServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	c := cache.New(8, 0.8)
	tel, shutdown, err := telemetry.New("nudge-debughttp-test")
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(ln.Addr().String(), "test-version", c, tel)
	go func() { _ = srv.httpServer.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = shutdown(context.Background())
	}
}

func TestDebugServer_Healthz(t *testing.T) {
	addr, stop := startTestDebugServer(t)
	defer stop()

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "test-version")
}

func TestDebugServer_Metrics(t *testing.T) {
	addr, stop := startTestDebugServer(t)
	defer stop()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "cache_entries")
}

func TestDebugServer_DocsSpec(t *testing.T) {
	addr, stop := startTestDebugServer(t)
	defer stop()

	resp, err := http.Get("http://" + addr + "/docs/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "nudge daemon debug API")
}
