package main

import (
	"bytes"
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sockprobe/internal/echo"
	"sockprobe/internal/logging"
	"sockprobe/internal/metrics"
	"sockprobe/internal/monitor"

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

type nopSender struct{}

func (nopSender) WriteToUDP(b []byte, addr *net.UDPAddr) (int, error) {
	return len(b), nil
}

func TestWatchPrintsResponderEvents(t *testing.T) {
	log := logging.NewWithWriter("Monitor", nil)
	m := metrics.NewMetrics()
	hub := monitor.NewHub(log)
	ts := httptest.NewServer(monitor.NewServer("127.0.0.1:0", m, hub, log).Handler())
	defer ts.Close()
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	done := make(chan error, 1)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	go func() { done <- watch(ctx, url, out) }()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	r := echo.NewResponder(nopSender{}, log, m)
	r.SetPublisher(hub)
	require.NoError(t, r.HandleDatagram([]byte("Hello World"), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "echoed 11 bytes to 127.0.0.1:50000")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "peer <none> -> 127.0.0.1:50000")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return")
	}
}

func TestWatchDialFailure(t *testing.T) {
	err := watch(context.Background(), "ws://127.0.0.1:1/events", &bytes.Buffer{})
	assert.Error(t, err)
}
