package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"sockprobe/internal/config"
	"sockprobe/internal/echo"
	"sockprobe/internal/logging"
	"sockprobe/internal/metrics"
	"sockprobe/internal/monitor"
)

// ParseFlags parses command-line flags over environment defaults
func ParseFlags() *config.Echo {
	cfg := config.LoadEcho()

	flag.StringVar(&cfg.BindIP, "bind", cfg.BindIP, "Address to bind")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "UDP port to bind")
	flag.IntVar(&cfg.BufferSize, "buffer", cfg.BufferSize, "Receive buffer size in bytes")
	flag.BoolVar(&cfg.Reuse, "reuse", cfg.Reuse, "Enable SO_REUSEADDR/SO_REUSEPORT")
	flag.IntVar(&cfg.MonitorPort, "monitor-port", cfg.MonitorPort, "HTTP monitor port (0 disables)")
	flag.IntVar(&cfg.MetricsIntervalSec, "metrics-interval", cfg.MetricsIntervalSec, "Seconds between metrics log lines (0 disables)")

	flag.Parse()
	return cfg
}

func main() {
	cfg := ParseFlags()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.New("Echo")
	m := metrics.NewMetrics()
	server := echo.NewServer(cfg, logger, m)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.MonitorPort > 0 {
		hub := monitor.NewHub(logger.With("Monitor"))
		server.SetPublisher(hub)
		mon := monitor.NewServer(cfg.MonitorAddr(), m, hub, logger.With("Monitor"))
		go func() {
			if err := mon.Start(ctx); err != nil {
				logger.Errorf("Monitor failed: %v", err)
			}
		}()
	}

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Echo server failed: %v", err)
	}

	logger.Infof("Echo server stopped")
}
