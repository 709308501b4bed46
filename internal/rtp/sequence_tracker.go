package rtp

import (
	"sync"
)

// SequenceTracker tracks sequence numbers for packet loss detection
type SequenceTracker struct {
	lastIncomingSeq uint16
	seenIncoming    bool
	outgoingCount   uint32
	incomingCount   uint32
	droppedCount    uint32
	reorderedCount  uint32
	mu              sync.RWMutex
}

// NewSequenceTracker creates a new SequenceTracker
func NewSequenceTracker() *SequenceTracker {
	return &SequenceTracker{}
}

// TrackOutgoing tracks outgoing packet sequence numbers
func (s *SequenceTracker) TrackOutgoing(seq uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outgoingCount++
}

// TrackIncoming tracks incoming packet sequence numbers and returns
// the number of newly detected gaps. Packets at or behind the last seen
// number are counted as reordered and report no drops.
func (s *SequenceTracker) TrackIncoming(seq uint16) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.incomingCount++

	if !s.seenIncoming {
		s.seenIncoming = true
		s.lastIncomingSeq = seq
		return 0
	}

	// Serial number arithmetic handles wraparound
	delta := seq - s.lastIncomingSeq
	if delta == 0 || delta >= 0x8000 {
		s.reorderedCount++
		return 0
	}

	s.lastIncomingSeq = seq
	dropped := uint32(delta) - 1
	s.droppedCount += dropped
	return dropped
}

// GetStats returns tracking statistics
func (s *SequenceTracker) GetStats() (outgoing, incoming, dropped uint32) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.outgoingCount, s.incomingCount, s.droppedCount
}

// Reordered returns how many packets arrived at or behind the last seen number
func (s *SequenceTracker) Reordered() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reorderedCount
}
