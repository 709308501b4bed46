// Package udpclient sends periodic UDP messages to an echo server and reads the replies.
package udpclient

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"sockprobe/internal/config"
	"sockprobe/internal/logging"
	"sockprobe/internal/metrics"
	"sockprobe/internal/rtp"
)

// Result summarises one client run
type Result struct {
	LocalPort int
	Sent      int
	Received  int
	Lost      int
	Mismatch  int

	// Reordered and Gaps come from the RTP sequence tracker
	Reordered int
	Gaps      int
	// Expired counts sends whose reply never arrived within the match window
	Expired int

	Stats *metrics.GlobalStats
}

// Client sends Count messages, reading each reply one send behind
type Client struct {
	config  *config.Client
	log     *logging.Logger
	metrics *metrics.Metrics

	framer   *rtp.Framer
	latency  *rtp.LatencyTracker
	sequence *rtp.SequenceTracker

	// plain mode matches replies to sends in order
	pending []time.Time
	expired int
}

// reply is one datagram stamped with its arrival time
type reply struct {
	data []byte
	at   time.Time
	err  error
}

// NewClient creates a UDP echo client
func NewClient(cfg *config.Client, log *logging.Logger, m *metrics.Metrics) *Client {
	if log == nil {
		log = logging.New("UDPClient")
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	c := &Client{
		config:  cfg,
		log:     log,
		metrics: m,
	}
	if cfg.RTP {
		c.framer = rtp.NewFramer()
		c.latency = rtp.NewLatencyTracker(rtp.DefaultMaxAge + cfg.Timeout)
		c.sequence = rtp.NewSequenceTracker()
	}
	return c
}

// Run dials the server and performs the send/receive sequence
func (c *Client) Run(ctx context.Context) (*Result, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "udp", c.config.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", c.config.Addr(), err)
	}
	conn := nc.(*net.UDPConn)

	done := make(chan struct{})
	replies := make(chan reply, c.config.Count+1)
	go c.readLoop(conn, replies, done)
	defer func() {
		close(done)
		conn.Close()
	}()

	res := &Result{LocalPort: conn.LocalAddr().(*net.UDPAddr).Port}
	peer := conn.RemoteAddr().String()
	c.log.Infof("connected on port: %d", res.LocalPort)

	for i := 0; i < c.config.Count; i++ {
		if err := c.send(conn); err != nil {
			return nil, err
		}
		res.Sent++
		c.log.Infof("sent")

		if i != 0 {
			if err := c.recv(ctx, replies, peer, res); err != nil {
				return nil, err
			}
		}

		if err := sleepCtx(ctx, c.config.Interval); err != nil {
			return nil, err
		}
	}

	if err := c.recv(ctx, replies, peer, res); err != nil {
		return nil, err
	}

	res.Lost = res.Sent - res.Received
	if c.sequence != nil {
		_, _, gaps := c.sequence.GetStats()
		res.Reordered = int(c.sequence.Reordered())
		res.Gaps = int(gaps)
		res.Expired = int(c.latency.Expired())
	} else {
		res.Expired = c.expired
	}
	if res.Lost > 0 {
		c.metrics.RecordLost(peer, int64(res.Lost))
	}
	res.Stats = c.metrics.GetGlobalStats()
	return res, nil
}

// readLoop stamps each datagram as soon as it is read so the consumer's
// pacing does not leak into the measured round trip.
func (c *Client) readLoop(conn *net.UDPConn, replies chan<- reply, done <-chan struct{}) {
	buffer := make([]byte, c.config.BufferSize)
	for {
		n, err := conn.Read(buffer)
		r := reply{at: time.Now(), err: err}
		if err == nil {
			r.data = append([]byte(nil), buffer[:n]...)
		}
		select {
		case replies <- r:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) send(conn *net.UDPConn) error {
	data := []byte(c.config.Message)
	now := time.Now()

	if c.framer != nil {
		framed, seq, err := c.framer.Wrap(data)
		if err != nil {
			return err
		}
		data = framed
		c.latency.RecordSent(seq, now)
		c.sequence.TrackOutgoing(seq)
	} else {
		c.pending = append(c.pending, now)
	}

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// recv takes one reply from the reader. A timeout is logged and counted
// as loss, and in plain mode the oldest outstanding send is given up.
func (c *Client) recv(ctx context.Context, replies <-chan reply, peer string, res *Result) error {
	timer := time.NewTimer(c.config.Timeout)
	defer timer.Stop()

	var r reply
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		c.log.Warnf("no reply within %v", c.config.Timeout)
		if c.framer == nil && len(c.pending) > 0 {
			c.pending = c.pending[1:]
			c.expired++
		}
		return nil
	case r = <-replies:
	}

	if r.err != nil {
		c.metrics.RecordError(peer)
		return fmt.Errorf("failed to read reply: %w", r.err)
	}
	c.metrics.RecordDatagram(peer, len(r.data))

	if c.framer != nil {
		return c.matchFramed(r.data, r.at, peer, res)
	}

	res.Received++
	c.matchPlain(r.at, peer)
	if !bytes.Equal(r.data, []byte(c.config.Message)) {
		res.Mismatch++
		c.log.Warnf("reply %q does not match sent message", r.data)
	}
	c.log.Infof("Received %s", r.data)
	return nil
}

// matchPlain pairs a reply with the oldest send still inside the timeout.
// Older sends are given up as unanswered.
func (c *Client) matchPlain(at time.Time, peer string) {
	for len(c.pending) > 0 && at.Sub(c.pending[0]) > c.config.Timeout {
		c.pending = c.pending[1:]
		c.expired++
	}
	if len(c.pending) == 0 || at.Before(c.pending[0]) {
		c.log.Warnf("reply arrived with no outstanding send")
		return
	}
	latency := at.Sub(c.pending[0])
	c.pending = c.pending[1:]
	c.metrics.RecordLatency(peer, durationMs(latency))
}

func (c *Client) matchFramed(data []byte, at time.Time, peer string, res *Result) error {
	packet, err := c.framer.Unwrap(data)
	if err != nil {
		res.Mismatch++
		c.log.Warnf("discarding reply: %v", err)
		return nil
	}

	latency, found := c.latency.GetLatency(packet.SequenceNumber, at)
	if !found {
		c.log.Warnf("reply with sequence number %d not found in tracker", packet.SequenceNumber)
		return nil
	}

	res.Received++
	c.metrics.RecordLatency(peer, durationMs(latency))
	if dropped := c.sequence.TrackIncoming(packet.SequenceNumber); dropped > 0 {
		c.log.Warnf("detected %d missing replies before seq %d", dropped, packet.SequenceNumber)
	}
	if !bytes.Equal(packet.Payload, []byte(c.config.Message)) {
		res.Mismatch++
	}
	c.log.Infof("Received %s (seq=%d rtt=%v)", packet.Payload, packet.SequenceNumber, latency)
	return nil
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
