package echo_test

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"sockprobe/internal/config"
	"sockprobe/internal/echo"
	"sockprobe/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*echo.Server, <-chan error, context.CancelFunc) {
	t.Helper()

	cfg := &config.Echo{BindIP: "127.0.0.1", Port: 0, BufferSize: config.DefaultBufferSize}
	srv := echo.NewServer(cfg, logging.NewWithWriter("Echo", &bytes.Buffer{}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Listen(ctx))

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(cancel)
	return srv, done, cancel
}

func dial(t *testing.T, server *net.UDPAddr) *net.UDPConn {
	t.Helper()

	conn, err := net.DialUDP("udp", nil, server)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *net.UDPConn, msg []byte) []byte {
	t.Helper()

	_, err := conn.Write(msg)
	require.NoError(t, err)

	buffer := make([]byte, 2048)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(buffer)
	require.NoError(t, err)
	return buffer[:n]
}

func TestServerEchoesHelloWorld(t *testing.T) {
	t.Parallel()

	srv, _, _ := startServer(t)
	client := dial(t, srv.LocalAddr())

	got := roundTrip(t, client, []byte("Hello World"))

	assert.Equal(t, []byte("Hello World"), got)
	assert.Equal(t, client.LocalAddr().(*net.UDPAddr).Port, srv.Responder().Session().Port)
}

func TestServerFollowsNewClientPort(t *testing.T) {
	t.Parallel()

	srv, _, _ := startServer(t)
	first := dial(t, srv.LocalAddr())
	second := dial(t, srv.LocalAddr())

	assert.Equal(t, []byte("one"), roundTrip(t, first, []byte("one")))
	assert.Equal(t, []byte("two"), roundTrip(t, second, []byte("two")))

	assert.Equal(t, second.LocalAddr().(*net.UDPAddr).Port, srv.Responder().Session().Port)
	assert.Equal(t, int64(2), srv.Metrics().GetGlobalStats().TotalRebinds)
}

func TestServerTruncatesToBufferSize(t *testing.T) {
	t.Parallel()

	srv, _, _ := startServer(t)
	client := dial(t, srv.LocalAddr())

	got := roundTrip(t, client, bytes.Repeat([]byte("x"), config.DefaultBufferSize+100))

	assert.Len(t, got, config.DefaultBufferSize)
}

func TestServerStopsOnCancel(t *testing.T) {
	t.Parallel()

	_, done, cancel := startServer(t)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeBeforeListen(t *testing.T) {
	t.Parallel()

	srv := echo.NewServer(&config.Echo{BufferSize: 1024}, logging.NewWithWriter("Echo", nil), nil)

	assert.ErrorIs(t, srv.Serve(context.Background()), echo.ErrNotListening)
	assert.Nil(t, srv.LocalAddr())
	assert.Nil(t, srv.Responder())
}
