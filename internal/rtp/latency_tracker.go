package rtp

import (
	"sync"
	"time"
)

// DefaultMaxAge is how long a sent sequence number waits for its echo
const DefaultMaxAge = 3 * time.Second

// LatencyTracker tracks round-trip latency for sent packets using sequence numbers
type LatencyTracker struct {
	sentTimes map[uint16]time.Time // seq -> send_time
	maxAge    time.Duration
	expired   int64
	mu        sync.Mutex
}

// NewLatencyTracker creates a new LatencyTracker
func NewLatencyTracker(maxAge time.Duration) *LatencyTracker {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &LatencyTracker{
		sentTimes: make(map[uint16]time.Time),
		maxAge:    maxAge,
	}
}

// RecordSent records the time when a packet is sent
func (t *LatencyTracker) RecordSent(seq uint16, sendTime time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sentTimes[seq] = sendTime
	t.expireLocked(sendTime)
}

// GetLatency returns the latency for a received sequence number and
// forgets it, so a duplicate echo is reported as not found.
func (t *LatencyTracker) GetLatency(seq uint16, recvTime time.Time) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sendTime, exists := t.sentTimes[seq]
	if !exists {
		return 0, false
	}
	delete(t.sentTimes, seq)
	return recvTime.Sub(sendTime), true
}

// Expired returns how many sent packets were dropped for exceeding maxAge
func (t *LatencyTracker) Expired() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

func (t *LatencyTracker) expireLocked(now time.Time) {
	cutoff := now.Add(-t.maxAge)
	for seq, sentTime := range t.sentTimes {
		if sentTime.Before(cutoff) {
			delete(t.sentTimes, seq)
			t.expired++
		}
	}
}
