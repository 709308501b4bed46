package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultEchoPort is the port the echo responder binds by default
	DefaultEchoPort = 31337
	// DefaultTCPPort is the port the TCP listener binds by default
	DefaultTCPPort = 31339
	// DefaultBufferSize is the receive buffer size for a single datagram or read
	DefaultBufferSize = 1024
)

var (
	// ErrPortRange is returned for ports outside 0-65535
	ErrPortRange = errors.New("port out of range")
	// ErrBufferSize is returned for a non-positive buffer size
	ErrBufferSize = errors.New("buffer size must be positive")
	// ErrCount is returned for a non-positive message count
	ErrCount = errors.New("message count must be positive")
)

// Echo holds echo responder configuration
type Echo struct {
	BindIP             string
	Port               int
	BufferSize         int
	Reuse              bool
	MonitorPort        int // 0 disables the monitor
	MetricsIntervalSec int
}

// TCP holds TCP listener configuration
type TCP struct {
	BindIP     string
	Port       int
	BufferSize int
}

// Client holds UDP client configuration
type Client struct {
	Host       string
	Port       int
	Count      int
	Interval   time.Duration
	Message    string
	Timeout    time.Duration
	BufferSize int
	RTP        bool
}

// Reuse holds dual-bind demo configuration
type Reuse struct {
	Host string
	Port int
}

// Watch holds echo monitor watcher configuration
type Watch struct {
	URL string
}

// loadDotEnv loads .env file if it exists
func loadDotEnv() {
	_ = godotenv.Load()
}

// LoadEcho loads echo responder configuration from environment variables
func LoadEcho() *Echo {
	loadDotEnv()

	return &Echo{
		BindIP:             getEnv("ECHO_BIND_IP", "0.0.0.0"),
		Port:               getEnvAsInt("ECHO_PORT", DefaultEchoPort),
		BufferSize:         getEnvAsInt("BUFFER_SIZE", DefaultBufferSize),
		Reuse:              getEnvAsBool("ECHO_REUSE", false),
		MonitorPort:        getEnvAsInt("MONITOR_PORT", 0),
		MetricsIntervalSec: getEnvAsInt("METRICS_INTERVAL_SEC", 10),
	}
}

// Validate checks the echo configuration
func (c *Echo) Validate() error {
	if err := checkPort(c.Port); err != nil {
		return fmt.Errorf("echo port: %w", err)
	}
	if err := checkPort(c.MonitorPort); err != nil {
		return fmt.Errorf("monitor port: %w", err)
	}
	if c.BufferSize <= 0 {
		return ErrBufferSize
	}
	return nil
}

// Addr returns the bind address in host:port form
func (c *Echo) Addr() string {
	return joinHostPort(c.BindIP, c.Port)
}

// MonitorAddr returns the monitor HTTP address on the responder's bind IP
func (c *Echo) MonitorAddr() string {
	return joinHostPort(c.BindIP, c.MonitorPort)
}

// LoadTCP loads TCP listener configuration from environment variables
func LoadTCP() *TCP {
	loadDotEnv()

	return &TCP{
		BindIP:     getEnv("TCP_BIND_IP", "0.0.0.0"),
		Port:       getEnvAsInt("TCP_PORT", DefaultTCPPort),
		BufferSize: getEnvAsInt("BUFFER_SIZE", DefaultBufferSize),
	}
}

// Validate checks the TCP listener configuration
func (c *TCP) Validate() error {
	if err := checkPort(c.Port); err != nil {
		return fmt.Errorf("tcp port: %w", err)
	}
	if c.BufferSize <= 0 {
		return ErrBufferSize
	}
	return nil
}

// Addr returns the bind address in host:port form
func (c *TCP) Addr() string {
	return joinHostPort(c.BindIP, c.Port)
}

// LoadClient loads UDP client configuration from environment variables
func LoadClient() *Client {
	loadDotEnv()

	return &Client{
		Host:       getEnv("CLIENT_HOST", "127.0.0.1"),
		Port:       getEnvAsInt("CLIENT_PORT", DefaultEchoPort),
		Count:      getEnvAsInt("CLIENT_COUNT", 10),
		Interval:   getEnvAsDuration("CLIENT_INTERVAL", time.Second),
		Message:    getEnv("CLIENT_MESSAGE", "Hello World"),
		Timeout:    getEnvAsDuration("CLIENT_TIMEOUT", 2*time.Second),
		BufferSize: getEnvAsInt("BUFFER_SIZE", DefaultBufferSize),
		RTP:        getEnvAsBool("CLIENT_RTP", false),
	}
}

// Validate checks the client configuration
func (c *Client) Validate() error {
	if err := checkPort(c.Port); err != nil {
		return fmt.Errorf("client port: %w", err)
	}
	if c.Count <= 0 {
		return ErrCount
	}
	if c.BufferSize <= 0 {
		return ErrBufferSize
	}
	return nil
}

// Addr returns the server address in host:port form
func (c *Client) Addr() string {
	return joinHostPort(c.Host, c.Port)
}

// LoadReuse loads dual-bind demo configuration from environment variables
func LoadReuse() *Reuse {
	loadDotEnv()

	return &Reuse{
		Host: getEnv("REUSE_HOST", "127.0.0.1"),
		Port: getEnvAsInt("REUSE_PORT", DefaultEchoPort),
	}
}

// Validate checks the dual-bind configuration
func (c *Reuse) Validate() error {
	if err := checkPort(c.Port); err != nil {
		return fmt.Errorf("reuse port: %w", err)
	}
	return nil
}

// Addr returns the bind address in host:port form
func (c *Reuse) Addr() string {
	return joinHostPort(c.Host, c.Port)
}

// LoadWatch loads watcher configuration from environment variables
func LoadWatch() *Watch {
	loadDotEnv()

	return &Watch{
		URL: getEnv("WATCH_URL", "ws://127.0.0.1:9090/events"),
	}
}

func checkPort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%w: %d", ErrPortRange, port)
	}
	return nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("1500ms") or plain seconds ("2")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
