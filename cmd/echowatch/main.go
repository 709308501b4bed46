package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sockprobe/internal/config"
	"sockprobe/internal/echo"

	"github.com/gorilla/websocket"
)

// watch prints each echo event from the monitor stream until ctx ends
// or the stream closes.
func watch(ctx context.Context, url string, out io.Writer) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream closed: %w", err)
		}

		var ev echo.Event
		if err := json.Unmarshal(message, &ev); err != nil {
			fmt.Fprintf(out, "? %s\n", message)
			continue
		}

		switch ev.Type {
		case echo.EventRebind:
			fmt.Fprintf(out, "[%s] peer %s -> %s\n", ev.Time.Format("15:04:05"), ev.Previous, ev.Peer)
		case echo.EventEcho:
			fmt.Fprintf(out, "[%s] echoed %d bytes to %s\n", ev.Time.Format("15:04:05"), ev.Bytes, ev.Peer)
		default:
			fmt.Fprintf(out, "[%s] %s %s\n", ev.Time.Format("15:04:05"), ev.Type, ev.Peer)
		}
	}
}

func main() {
	cfg := config.LoadWatch()
	flag.StringVar(&cfg.URL, "url", cfg.URL, "Echo monitor events URL")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Println("=== Echo Peer Watch ===")
	fmt.Printf("Streaming events from %s\n", cfg.URL)
	fmt.Println("Press Ctrl+C to stop")

	for {
		err := watch(ctx, cfg.URL, os.Stdout)
		if ctx.Err() != nil {
			return
		}
		log.Printf("%v, retrying in 5s", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}
