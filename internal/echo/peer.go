package echo

import (
	"fmt"
	"net"
	"sync"
	"time"

	"sockprobe/internal/logging"
	"sockprobe/internal/metrics"
)

// PeerSession is the single remote address replies are sent to.
// The zero value means no peer has been seen yet.
type PeerSession struct {
	Address string
	Port    int
	addr    *net.UDPAddr
}

// Bound reports whether a peer has been recorded
func (p PeerSession) Bound() bool {
	return p.addr != nil
}

// UDPAddr returns a copy of the peer address, or nil when unbound
func (p PeerSession) UDPAddr() *net.UDPAddr {
	if p.addr == nil {
		return nil
	}
	return copyAddr(p.addr)
}

func (p PeerSession) String() string {
	if p.addr == nil {
		return "<none>"
	}
	return p.addr.String()
}

// Sender writes a datagram to a peer; *net.UDPConn satisfies it.
type Sender interface {
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
}

// Publisher receives echo events for live observers.
type Publisher interface {
	Publish(v interface{})
}

// Event types published by the responder
const (
	EventRebind = "rebind"
	EventEcho   = "echo"
)

// Event describes one responder action
type Event struct {
	Type     string    `json:"type"`
	Peer     string    `json:"peer"`
	Previous string    `json:"previous,omitempty"`
	Bytes    int       `json:"bytes,omitempty"`
	Time     time.Time `json:"time"`
}

// Responder echoes each datagram back to the most recently seen peer port.
// A datagram from a new port repoints the single session, so replies meant
// for an earlier client go to the newest one instead.
type Responder struct {
	sender    Sender
	log       *logging.Logger
	metrics   *metrics.Metrics
	publisher Publisher

	mu      sync.RWMutex
	session PeerSession
}

// NewResponder creates a responder that replies through sender
func NewResponder(sender Sender, log *logging.Logger, m *metrics.Metrics) *Responder {
	if log == nil {
		log = logging.NewWithWriter("Responder", nil)
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &Responder{
		sender:  sender,
		log:     log,
		metrics: m,
	}
}

// SetPublisher attaches an event publisher
func (r *Responder) SetPublisher(p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publisher = p
}

// Session returns the current peer session
func (r *Responder) Session() PeerSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session
}

// HandleDatagram rebinds the session when peer's port differs from the
// recorded one, then sends payload unchanged to the session peer.
func (r *Responder) HandleDatagram(payload []byte, peer *net.UDPAddr) error {
	if peer == nil {
		return ErrNilPeer
	}

	dest, previous, rebound := r.observe(peer)
	if rebound {
		r.metrics.MarkRebind()
		r.log.Infof("Connected by %s (previous peer %s)", dest, previous)
		r.publish(Event{Type: EventRebind, Peer: dest.String(), Previous: previous.String(), Time: time.Now()})
	}

	r.log.Infof("Received %q from %s", payload, peer)

	n, err := r.sender.WriteToUDP(payload, dest)
	if err != nil {
		r.metrics.RecordError(dest.String())
		return fmt.Errorf("failed to echo to %s: %w", dest, err)
	}
	if n != len(payload) {
		r.metrics.RecordError(dest.String())
		return fmt.Errorf("echo to %s wrote %d of %d bytes: %w", dest, n, len(payload), ErrShortWrite)
	}

	r.metrics.RecordDatagram(dest.String(), n)
	r.log.Infof("Echoed %d bytes to %s", n, dest)
	r.publish(Event{Type: EventEcho, Peer: dest.String(), Bytes: n, Time: time.Now()})
	return nil
}

// observe applies the port-change rule and returns the destination
func (r *Responder) observe(peer *net.UDPAddr) (dest *net.UDPAddr, previous PeerSession, rebound bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous = r.session
	if !r.session.Bound() || r.session.Port != peer.Port {
		addr := copyAddr(peer)
		r.session = PeerSession{
			Address: addr.IP.String(),
			Port:    addr.Port,
			addr:    addr,
		}
		rebound = true
	}
	return r.session.addr, previous, rebound
}

func (r *Responder) publish(ev Event) {
	r.mu.RLock()
	p := r.publisher
	r.mu.RUnlock()

	if p != nil {
		p.Publish(ev)
	}
}

func copyAddr(a *net.UDPAddr) *net.UDPAddr {
	ip := make(net.IP, len(a.IP))
	copy(ip, a.IP)
	return &net.UDPAddr{IP: ip, Port: a.Port, Zone: a.Zone}
}
