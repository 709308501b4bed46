// Package tcplisten accepts TCP connections one at a time and logs what they send.
package tcplisten

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"sockprobe/internal/logging"
)

// Listener logs every chunk received on accepted connections. No reply is sent.
type Listener struct {
	bufferSize int
	log        *logging.Logger

	mu     sync.Mutex
	active net.Conn
	chunks int64
	bytes  int64
}

// New creates a listener reading in chunks of bufferSize bytes
func New(bufferSize int, log *logging.Logger) *Listener {
	if log == nil {
		log = logging.New("TCPListener")
	}
	return &Listener{bufferSize: bufferSize, log: log}
}

// Totals returns the number of chunks and bytes received so far
func (l *Listener) Totals() (chunks, bytes int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chunks, l.bytes
}

// Serve accepts connections sequentially until ctx is cancelled or
// Accept fails. Cancellation closes ln and the active connection.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		l.mu.Lock()
		if l.active != nil {
			l.active.Close()
		}
		l.mu.Unlock()
	})
	defer stop()

	l.log.Infof("Listening on port: %d", ln.Addr().(*net.TCPAddr).Port)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to accept: %w", err)
		}

		if err := l.handle(ctx, conn); err != nil {
			return err
		}
	}
}

func (l *Listener) handle(ctx context.Context, conn net.Conn) error {
	l.mu.Lock()
	if ctx.Err() != nil {
		// Cancelled between Accept and here; the close hook already ran.
		l.mu.Unlock()
		conn.Close()
		return nil
	}
	l.active = conn
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.active = nil
		l.mu.Unlock()
		conn.Close()
	}()

	l.log.Infof("Connected by %s", conn.RemoteAddr())

	buffer := make([]byte, l.bufferSize)
	for {
		n, err := conn.Read(buffer)
		if n > 0 {
			l.mu.Lock()
			l.chunks++
			l.bytes += int64(n)
			l.mu.Unlock()
			l.log.Infof("Received %q", buffer[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				l.log.Infof("Connection from %s closed", conn.RemoteAddr())
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			// A reset peer ends only its own connection
			l.log.Warnf("Error reading from %s: %v", conn.RemoteAddr(), err)
			return nil
		}
	}
}
