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
	flag.StringVar(&cfg.Message, "message", cfg.Message, "Message payload")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Reply wait per socket")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := udpclient.PortSwitch(ctx, cfg.Addr(), []byte(cfg.Message), cfg.Timeout, logging.New("PortSwitch"))
	if err != nil {
		log.Fatalf("Port switch failed: %v", err)
	}

	fmt.Printf("\n=== Client Port Switch (%s) ===\n", cfg.Addr())
	for i, hop := range res.Hops {
		switch hop.RepliedTo {
		case 0:
			fmt.Printf("%d. sent from %d: no reply\n", i+1, hop.From)
		case hop.From:
			fmt.Printf("%d. sent from %d: reply on %d ✓\n", i+1, hop.From, hop.RepliedTo)
		default:
			fmt.Printf("%d. sent from %d: reply on %d ⚠ misdelivered\n", i+1, hop.From, hop.RepliedTo)
		}
	}
}
