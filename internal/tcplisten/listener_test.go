package tcplisten

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"sockprobe/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func start(t *testing.T, bufferSize int) (*Listener, net.Addr, *syncBuffer, context.CancelFunc, <-chan error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	logs := &syncBuffer{}
	l := New(bufferSize, logging.NewWithWriter("TCPListener", logs))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx, ln) }()
	return l, ln.Addr(), logs, cancel, done
}

func TestLogsReceivedBytes(t *testing.T) {
	t.Parallel()

	l, addr, logs, _, _ := start(t, 1024)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)
	conn.Close()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "closed")
	}, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, logs.String(), "Connected by 127.0.0.1:")
	assert.Contains(t, logs.String(), `Received "hello"`)
	_, total := l.Totals()
	assert.Equal(t, int64(5), total)
}

func TestReadsInBufferSizedChunks(t *testing.T) {
	t.Parallel()

	l, addr, logs, _, _ := start(t, 4)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("0123456789"))
	require.NoError(t, err)
	conn.Close()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "closed")
	}, 2*time.Second, 10*time.Millisecond)

	chunks, total := l.Totals()
	assert.Equal(t, int64(10), total)
	assert.GreaterOrEqual(t, chunks, int64(3))
}

func TestAcceptsNextConnectionAfterEOF(t *testing.T) {
	t.Parallel()

	l, addr, _, _, _ := start(t, 1024)

	for _, msg := range []string{"first", "second"} {
		conn, err := net.Dial("tcp", addr.String())
		require.NoError(t, err)
		_, err = conn.Write([]byte(msg))
		require.NoError(t, err)
		conn.Close()
	}

	assert.Eventually(t, func() bool {
		_, total := l.Totals()
		return total == int64(len("first")+len("second"))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCancelClosesActiveConnection(t *testing.T) {
	t.Parallel()

	_, addr, logs, cancel, done := start(t, 1024)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "Connected by")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestConnectionAcceptedAfterCancelIsClosed(t *testing.T) {
	t.Parallel()

	l := New(1024, logging.NewWithWriter("TCPListener", nil))
	server, client := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- l.handle(ctx, server) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handle blocked after cancellation")
	}

	_, err := client.Write([]byte("late"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
