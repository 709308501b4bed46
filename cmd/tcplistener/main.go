package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"sockprobe/internal/config"
	"sockprobe/internal/logging"
	"sockprobe/internal/sockopt"
	"sockprobe/internal/tcplisten"
)

func main() {
	cfg := config.LoadTCP()

	flag.StringVar(&cfg.BindIP, "bind", cfg.BindIP, "Address to bind")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "TCP port to listen on")
	flag.IntVar(&cfg.BufferSize, "buffer", cfg.BufferSize, "Read chunk size in bytes")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ln, err := sockopt.Listen(ctx, "tcp", cfg.Addr(), false)
	if err != nil {
		log.Fatal(err)
	}

	l := tcplisten.New(cfg.BufferSize, logging.New("TCPListener"))
	if err := l.Serve(ctx, ln); err != nil {
		log.Fatal(err)
	}
}
