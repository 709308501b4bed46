// Package sockopt binds TCP and UDP sockets with optional address/port reuse.
package sockopt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrReuseUnsupported is returned when the platform cannot share a bound port
var ErrReuseUnsupported = errors.New("address/port reuse not supported on this platform")

// ListenConfig returns a net.ListenConfig that enables address/port reuse
// on the socket before bind when reuse is true.
func ListenConfig(reuse bool) *net.ListenConfig {
	lc := &net.ListenConfig{}
	if reuse {
		lc.Control = func(network, address string, c syscall.RawConn) error {
			var opErr error
			if err := c.Control(func(fd uintptr) {
				opErr = setReuse(fd)
			}); err != nil {
				return err
			}
			return opErr
		}
	}
	return lc
}

// ListenPacket binds a UDP socket on addr
func ListenPacket(ctx context.Context, network, addr string, reuse bool) (*net.UDPConn, error) {
	pc, err := ListenConfig(reuse).ListenPacket(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s %s: %w", network, addr, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("failed to bind %s %s: not a UDP socket", network, addr)
	}
	return conn, nil
}

// Listen binds a TCP listener on addr
func Listen(ctx context.Context, network, addr string, reuse bool) (net.Listener, error) {
	ln, err := ListenConfig(reuse).Listen(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s %s: %w", network, addr, err)
	}
	return ln, nil
}

// IsAddrInUse reports whether err is an address-in-use bind failure
func IsAddrInUse(err error) bool {
	return err != nil && errors.Is(err, errAddrInUse)
}
