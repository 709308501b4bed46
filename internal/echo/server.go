package echo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"sockprobe/internal/config"
	"sockprobe/internal/logging"
	"sockprobe/internal/metrics"
	"sockprobe/internal/sockopt"
)

// readPollInterval bounds how long a read blocks before re-checking ctx
const readPollInterval = 100 * time.Millisecond

// Server runs a Responder over a bound UDP socket
type Server struct {
	config    *config.Echo
	log       *logging.Logger
	metrics   *metrics.Metrics
	publisher Publisher

	mu        sync.Mutex
	conn      *net.UDPConn
	responder *Responder
}

// NewServer creates a new echo server
func NewServer(cfg *config.Echo, log *logging.Logger, m *metrics.Metrics) *Server {
	if log == nil {
		log = logging.New("Echo")
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &Server{
		config:  cfg,
		log:     log,
		metrics: m,
	}
}

// SetPublisher forwards responder events to p
func (s *Server) SetPublisher(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
	if s.responder != nil {
		s.responder.SetPublisher(p)
	}
}

// Metrics returns the server's metrics
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Listen binds the UDP socket
func (s *Server) Listen(ctx context.Context) error {
	conn, err := sockopt.ListenPacket(ctx, "udp", s.config.Addr(), s.config.Reuse)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.responder = NewResponder(conn, s.log.With("Responder"), s.metrics)
	if s.publisher != nil {
		s.responder.SetPublisher(s.publisher)
	}
	s.mu.Unlock()

	s.log.Infof("Binding to %s (reuse=%t)", conn.LocalAddr(), s.config.Reuse)
	return nil
}

// LocalAddr returns the bound address, or nil before Listen
func (s *Server) LocalAddr() *net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Responder returns the responder, or nil before Listen
func (s *Server) Responder() *Responder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responder
}

// Start binds and serves until ctx is cancelled or a socket error occurs
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve reads one datagram at a time and hands it to the responder.
// Receive and send errors end the loop and are returned.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	conn, responder := s.conn, s.responder
	s.mu.Unlock()
	if conn == nil {
		return ErrNotListening
	}
	defer conn.Close()

	if s.config.MetricsIntervalSec > 0 {
		go s.startMetricsReporter(ctx, time.Duration(s.config.MetricsIntervalSec)*time.Second)
	}

	buffer := make([]byte, s.config.BufferSize)

	for {
		select {
		case <-ctx.Done():
			s.log.Infof("Echo server shutting down...")
			return nil
		default:
		}

		// Set read deadline for responsive handling
		if err := conn.SetReadDeadline(time.Now().Add(readPollInterval)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, clientAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("failed to read UDP datagram: %w", err)
		}

		if err := responder.HandleDatagram(buffer[:n], clientAddr); err != nil {
			return err
		}
	}
}

// startMetricsReporter periodically reports metrics
func (s *Server) startMetricsReporter(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reportMetrics()
		}
	}
}

// reportMetrics logs current metrics
func (s *Server) reportMetrics() {
	stats := s.metrics.GetGlobalStats()
	s.log.Infof("Echo Server Metrics: peers=%d rebinds=%d datagrams=%d bytes=%d errors=%d",
		stats.TotalPeers, stats.TotalRebinds, stats.Datagrams, stats.Bytes, stats.Errors)
}
