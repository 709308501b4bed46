package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"sockprobe/internal/config"
	"sockprobe/internal/dualbind"
	"sockprobe/internal/logging"
)

func main() {
	cfg := config.LoadReuse()

	flag.StringVar(&cfg.Host, "host", cfg.Host, "Address to bind both sockets")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "UDP port to bind both sockets")
	reuseFirst := flag.Bool("reuse-first", true, "Enable reuse on the first socket")
	reuseSecond := flag.Bool("reuse-second", true, "Enable reuse on the second socket")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	res, err := dualbind.Run(context.Background(), cfg.Addr(), *reuseFirst, *reuseSecond, logging.New("DualBind"))
	if err != nil {
		log.Fatalf("First bind failed: %v", err)
	}

	switch {
	case res.Shared():
		fmt.Printf("✓ Both sockets bound to %s\n", res.First.Addr)
	case res.Second.AddrInUse():
		fmt.Printf("⚠ Second bind refused, address in use: %v\n", res.Second.Err)
	default:
		fmt.Printf("⚠ Second bind failed: %v\n", res.Second.Err)
	}
}
