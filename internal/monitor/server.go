package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"sockprobe/internal/logging"
	"sockprobe/internal/metrics"

	"github.com/gorilla/websocket"
)

// Server exposes /health, /metrics and the /events websocket stream
type Server struct {
	addr     string
	metrics  *metrics.Metrics
	hub      *Hub
	log      *logging.Logger
	upgrader websocket.Upgrader
	server   *http.Server
}

// NewServer creates a monitor server on addr
func NewServer(addr string, m *metrics.Metrics, hub *Hub, log *logging.Logger) *Server {
	if log == nil {
		log = logging.New("Monitor")
	}
	s := &Server{
		addr:    addr,
		metrics: m,
		hub:     hub,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow connections from any origin
			},
		},
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the monitor routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.HandleFunc("/events", s.eventsHandler)
	return mux
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.log.Infof("Monitor listening on %s", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	s.log.Infof("Shutting down monitor...")
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         "healthy",
		"subscribers":    s.hub.Subscribers(),
		"dropped_events": s.hub.Dropped(),
	})
}

// metricsHandler handles metrics requests
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.metrics.GetGlobalStats())
}

// eventsHandler upgrades to a websocket and streams events
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	s.hub.attach(conn, r.RemoteAddr)
}
