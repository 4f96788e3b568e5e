package server

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/brettbedarf/sfm/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadRoot(t *testing.T) {
	t.Parallel()
	cfg := config.NewDefaultConfig()
	cfg.Root = filepath.Join(t.TempDir(), "missing")
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestServeAndShutdown(t *testing.T) {
	t.Parallel()
	cfg := config.NewDefaultConfig()
	cfg.Root = t.TempDir()
	s, err := New(cfg)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestUnmountWithoutMount(t *testing.T) {
	t.Parallel()
	cfg := config.NewDefaultConfig()
	cfg.Root = t.TempDir()
	s, err := New(cfg)
	require.NoError(t, err)
	assert.NoError(t, s.Unmount())
	assert.NoError(t, s.Shutdown(context.Background()))
}
