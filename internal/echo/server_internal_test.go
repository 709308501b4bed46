package echo

import (
	"context"
	"net"
	"testing"
	"time"

	"sockprobe/internal/config"
	"sockprobe/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeReturnsReadErrorWhenSocketCloses(t *testing.T) {
	t.Parallel()

	cfg := &config.Echo{BindIP: "127.0.0.1", BufferSize: config.DefaultBufferSize}
	srv := NewServer(cfg, logging.NewWithWriter("Echo", nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Listen(ctx))

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	srv.mu.Lock()
	srv.conn.Close()
	srv.mu.Unlock()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, net.ErrClosed)

		var netErr net.Error
		if assert.ErrorAs(t, err, &netErr) {
			assert.False(t, netErr.Timeout())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve kept running on a closed socket")
	}
}
