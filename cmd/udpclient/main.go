package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"sockprobe/internal/config"
	"sockprobe/internal/logging"
	"sockprobe/internal/udpclient"
)

func main() {
	cfg := config.LoadClient()

	flag.StringVar(&cfg.Host, "host", cfg.Host, "Echo server host")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "Echo server port")
	flag.IntVar(&cfg.Count, "count", cfg.Count, "Number of messages to send")
	flag.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Delay between messages")
	flag.StringVar(&cfg.Message, "message", cfg.Message, "Message payload")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Reply read timeout")
	flag.IntVar(&cfg.BufferSize, "buffer", cfg.BufferSize, "Receive buffer size in bytes")
	flag.BoolVar(&cfg.RTP, "rtp", cfg.RTP, "Frame messages as RTP packets for per-reply RTT")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := udpclient.NewClient(cfg, logging.New("UDPClient"), nil).Run(ctx)
	if err != nil {
		log.Fatalf("Client run failed: %v", err)
	}

	s := res.Stats
	fmt.Printf("\n=== Echo Client Results (%s) ===\n", cfg.Addr())
	fmt.Printf("Local port: %d\n", res.LocalPort)
	fmt.Printf("Sent: %d  Received: %d  Lost: %d  Mismatched: %d\n", res.Sent, res.Received, res.Lost, res.Mismatch)
	fmt.Printf("Loss ratio: %.2f%%  Expired: %d\n", s.LossRatio*100, res.Expired)
	if cfg.RTP {
		fmt.Printf("Reordered: %d  Sequence gaps: %d\n", res.Reordered, res.Gaps)
	}
	if s.TotalLatencies > 0 {
		fmt.Printf("RTT ms: min=%.3f avg=%.3f p50=%.3f p95=%.3f max=%.3f\n",
			s.MinLatency, s.AvgLatency, s.P50Latency, s.P95Latency, s.MaxLatency)
	}
}
