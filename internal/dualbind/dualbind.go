// Package dualbind demonstrates two UDP sockets sharing one local port.
package dualbind

import (
	"context"
	"net"

	"sockprobe/internal/logging"
	"sockprobe/internal/sockopt"
)

// Attempt is the outcome of binding one socket
type Attempt struct {
	Reuse bool
	Addr  string // bound local address when Err is nil
	Err   error
}

// OK reports whether the bind succeeded
func (a Attempt) OK() bool {
	return a.Err == nil && a.Addr != ""
}

// AddrInUse reports whether the bind failed because the port was taken
func (a Attempt) AddrInUse() bool {
	return sockopt.IsAddrInUse(a.Err)
}

// Result holds both bind attempts
type Result struct {
	First  Attempt
	Second Attempt
}

// Shared reports whether both sockets held the port at the same time
func (r Result) Shared() bool {
	return r.First.OK() && r.Second.OK()
}

// Run binds the first socket on addr, then tries a second one on the same
// address while the first is still open. Only a failure of the first bind
// is returned as an error; the second outcome is reported in Result.
func Run(ctx context.Context, addr string, reuseFirst, reuseSecond bool, log *logging.Logger) (Result, error) {
	if log == nil {
		log = logging.New("DualBind")
	}

	var res Result

	first, err := bind(ctx, addr, reuseFirst)
	res.First = Attempt{Reuse: reuseFirst, Err: err}
	if err != nil {
		log.Errorf("First bind on %s failed: %v", addr, err)
		return res, err
	}
	defer first.Close()
	res.First.Addr = first.LocalAddr().String()
	log.Infof("First socket bound to %s (reuse=%t)", res.First.Addr, reuseFirst)

	// Port 0 would give the second socket its own port
	target := res.First.Addr

	second, err := bind(ctx, target, reuseSecond)
	res.Second = Attempt{Reuse: reuseSecond, Err: err}
	if err != nil {
		log.Warnf("Second bind on %s failed: %v", target, err)
		return res, nil
	}
	defer second.Close()
	res.Second.Addr = second.LocalAddr().String()
	log.Infof("Second socket bound to %s (reuse=%t)", res.Second.Addr, reuseSecond)

	return res, nil
}

func bind(ctx context.Context, addr string, reuse bool) (*net.UDPConn, error) {
	return sockopt.ListenPacket(ctx, "udp", addr, reuse)
}
