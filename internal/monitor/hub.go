package monitor

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sockprobe/internal/logging"

	"github.com/gorilla/websocket"
)

const (
	clientQueue  = 64
	writeTimeout = 2 * time.Second
)

// Hub fans published events out to websocket subscribers
type Hub struct {
	log     *logging.Logger
	clients sync.Map // clientID -> *client
	nextID  int64
	dropped int64
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewHub creates an empty hub
func NewHub(log *logging.Logger) *Hub {
	if log == nil {
		log = logging.New("Monitor")
	}
	return &Hub{log: log}
}

// Publish encodes v as JSON and queues it for every subscriber.
// Slow subscribers lose messages rather than blocking the publisher.
func (h *Hub) Publish(v interface{}) {
	message, err := json.Marshal(v)
	if err != nil {
		h.log.Errorf("Failed to encode event: %v", err)
		return
	}

	h.clients.Range(func(key, value interface{}) bool {
		c := value.(*client)
		select {
		case c.send <- message:
		default:
			atomic.AddInt64(&h.dropped, 1)
		}
		return true
	})
}

// Subscribers returns the number of attached websocket clients
func (h *Hub) Subscribers() int {
	count := 0
	h.clients.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}

// Dropped returns the number of events dropped for slow subscribers
func (h *Hub) Dropped() int64 {
	return atomic.LoadInt64(&h.dropped)
}

// attach registers conn and runs its writer until the client goes away
func (h *Hub) attach(conn *websocket.Conn, remote string) {
	c := &client{
		id:   fmt.Sprintf("%s-%d", remote, atomic.AddInt64(&h.nextID, 1)),
		conn: conn,
		send: make(chan []byte, clientQueue),
		done: make(chan struct{}),
	}
	h.clients.Store(c.id, c)
	h.log.Infof("New WebSocket subscriber %s", c.id)

	go h.readLoop(c)
	h.writeLoop(c)
}

// readLoop discards inbound frames and notices disconnects
func (h *Hub) readLoop(c *client) {
	defer h.detach(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer h.detach(c)
	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.log.Warnf("Error writing to subscriber %s: %v", c.id, err)
				return
			}
		}
	}
}

func (h *Hub) detach(c *client) {
	c.once.Do(func() {
		h.clients.Delete(c.id)
		close(c.done)
		c.conn.Close()
		h.log.Infof("WebSocket subscriber closed (ID: %s)", c.id)
	})
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.clients.Range(func(key, value interface{}) bool {
		h.detach(value.(*client))
		return true
	})
}
