package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// maxLatencies bounds the per-peer latency buffer
const maxLatencies = 10000

// Metrics provides datagram and latency statistics keyed by peer
type Metrics struct {
	// Peer metrics
	peerMetrics sync.Map // peer "host:port" -> *PeerMetrics

	// Global counters
	totalPeers   int64
	totalRebinds int64
	mu           sync.RWMutex // Mutex for global counters
}

// PeerMetrics stores metrics for a single peer
type PeerMetrics struct {
	Peer      string    `json:"peer"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Datagrams int64     `json:"datagrams"`
	Bytes     int64     `json:"bytes"`
	Errors    int64     `json:"errors"`
	Lost      int64     `json:"lost"`
	Latencies []float64 `json:"-"`

	mu sync.Mutex
}

// PeerStats is a point-in-time copy of one peer's counters
type PeerStats struct {
	Peer      string    `json:"peer"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Datagrams int64     `json:"datagrams"`
	Bytes     int64     `json:"bytes"`
	Errors    int64     `json:"errors"`
	Lost      int64     `json:"lost"`
}

// GlobalStats provides aggregated statistics
type GlobalStats struct {
	TotalPeers     int         `json:"total_peers"`
	TotalRebinds   int64       `json:"total_rebinds"`
	Datagrams      int64       `json:"datagrams"`
	Bytes          int64       `json:"bytes"`
	Errors         int64       `json:"errors"`
	Lost           int64       `json:"lost"`
	TotalLatencies int64       `json:"total_latencies"`
	P50Latency     float64     `json:"p50_latency"`
	P95Latency     float64     `json:"p95_latency"`
	P99Latency     float64     `json:"p99_latency"`
	MinLatency     float64     `json:"min_latency"`
	MaxLatency     float64     `json:"max_latency"`
	AvgLatency     float64     `json:"avg_latency"`
	LossRatio      float64     `json:"loss_ratio"`
	Peers          []PeerStats `json:"peers"`
	Timestamp      time.Time   `json:"timestamp"`
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// peer returns the metrics entry for a peer, creating it on first sight
func (m *Metrics) peer(peer string) *PeerMetrics {
	if v, ok := m.peerMetrics.Load(peer); ok {
		return v.(*PeerMetrics)
	}

	now := time.Now()
	v, loaded := m.peerMetrics.LoadOrStore(peer, &PeerMetrics{
		Peer:      peer,
		FirstSeen: now,
		LastSeen:  now,
	})
	if !loaded {
		m.mu.Lock()
		m.totalPeers++
		m.mu.Unlock()
	}
	return v.(*PeerMetrics)
}

// RecordDatagram records one datagram of n bytes exchanged with a peer
func (m *Metrics) RecordDatagram(peer string, n int) {
	pm := m.peer(peer)
	pm.mu.Lock()
	pm.Datagrams++
	pm.Bytes += int64(n)
	pm.LastSeen = time.Now()
	pm.mu.Unlock()
}

// RecordError records a failed send or receive for a peer
func (m *Metrics) RecordError(peer string) {
	pm := m.peer(peer)
	pm.mu.Lock()
	pm.Errors++
	pm.mu.Unlock()
}

// RecordLost records datagrams that never came back from a peer
func (m *Metrics) RecordLost(peer string, count int64) {
	pm := m.peer(peer)
	pm.mu.Lock()
	pm.Lost += count
	pm.mu.Unlock()
}

// RecordLatency records a round-trip measurement for a peer
func (m *Metrics) RecordLatency(peer string, latencyMs float64) {
	pm := m.peer(peer)
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.Latencies = append(pm.Latencies, latencyMs)

	// Limit buffer size
	if len(pm.Latencies) > maxLatencies {
		// Create a new slice to allow old memory to be garbage collected
		pm.Latencies = append([]float64(nil), pm.Latencies[1000:]...)
	}
}

// MarkRebind records a switch of the active peer
func (m *Metrics) MarkRebind() {
	m.mu.Lock()
	m.totalRebinds++
	m.mu.Unlock()
}

// GetGlobalStats calculates global statistics
func (m *Metrics) GetGlobalStats() *GlobalStats {
	allLatencies := make([]float64, 0)
	stats := &GlobalStats{
		Peers:     make([]PeerStats, 0),
		Timestamp: time.Now(),
	}

	// Collect data from all peers
	m.peerMetrics.Range(func(key, value interface{}) bool {
		pm, ok := value.(*PeerMetrics)
		if !ok {
			return true
		}
		pm.mu.Lock()
		allLatencies = append(allLatencies, pm.Latencies...)
		stats.Datagrams += pm.Datagrams
		stats.Bytes += pm.Bytes
		stats.Errors += pm.Errors
		stats.Lost += pm.Lost
		stats.Peers = append(stats.Peers, PeerStats{
			Peer:      pm.Peer,
			FirstSeen: pm.FirstSeen,
			LastSeen:  pm.LastSeen,
			Datagrams: pm.Datagrams,
			Bytes:     pm.Bytes,
			Errors:    pm.Errors,
			Lost:      pm.Lost,
		})
		pm.mu.Unlock()
		return true
	})

	sort.Slice(stats.Peers, func(i, j int) bool {
		return stats.Peers[i].Peer < stats.Peers[j].Peer
	})

	m.mu.RLock()
	stats.TotalPeers = int(m.totalPeers)
	stats.TotalRebinds = m.totalRebinds
	m.mu.RUnlock()

	stats.TotalLatencies = int64(len(allLatencies))

	// Calculate percentiles and statistics
	if n := len(allLatencies); n > 0 {
		sort.Float64s(allLatencies)

		stats.P50Latency = allLatencies[int(float64(n)*0.5)]
		stats.P95Latency = allLatencies[int(math.Min(float64(n)*0.95, float64(n-1)))]
		stats.P99Latency = allLatencies[int(math.Min(float64(n)*0.99, float64(n-1)))]
		stats.MinLatency = allLatencies[0]
		stats.MaxLatency = allLatencies[n-1]

		sum := 0.0
		for _, lat := range allLatencies {
			sum += lat
		}
		stats.AvgLatency = sum / float64(n)
	}

	if expected := stats.TotalLatencies + stats.Lost; expected > 0 {
		stats.LossRatio = float64(stats.Lost) / float64(expected)
	}

	return stats
}
