package rtp

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/pion/rtp"
)

const (
	// PayloadTypeDynamic marks client payloads as application data
	PayloadTypeDynamic = 96
	// TimestampStep advances the RTP timestamp per message (20ms at 8kHz)
	TimestampStep = 160
)

// ErrForeignSSRC is returned when an echoed datagram does not carry our SSRC
var ErrForeignSSRC = errors.New("datagram was not sent by this session")

// Framer wraps message payloads in RTP packets with increasing sequence numbers
type Framer struct {
	ssrc      uint32
	seq       uint16
	timestamp uint32
	mu        sync.Mutex
}

// NewFramer creates a framer with a random SSRC and starting sequence
func NewFramer() *Framer {
	return NewFramerWith(rand.Uint32(), uint16(rand.Intn(1<<16)))
}

// NewFramerWith creates a framer with a fixed SSRC and first sequence number
func NewFramerWith(ssrc uint32, firstSeq uint16) *Framer {
	return &Framer{ssrc: ssrc, seq: firstSeq}
}

// SSRC returns the synchronization source of this framer
func (f *Framer) SSRC() uint32 {
	return f.ssrc
}

// Wrap marshals payload into the next RTP packet
func (f *Framer) Wrap(payload []byte) ([]byte, uint16, error) {
	f.mu.Lock()
	seq, ts := f.seq, f.timestamp
	f.seq++
	f.timestamp += TimestampStep
	f.mu.Unlock()

	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    PayloadTypeDynamic,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           f.ssrc,
		},
		Payload: payload,
	}

	data, err := packet.Marshal()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal packet %d: %w", seq, err)
	}
	return data, seq, nil
}

// Unwrap parses an echoed datagram and checks it belongs to this framer
func (f *Framer) Unwrap(data []byte) (*rtp.Packet, error) {
	packet := &rtp.Packet{}
	if err := packet.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("failed to parse packet: %w", err)
	}
	if packet.SSRC != f.ssrc {
		return nil, ErrForeignSSRC
	}
	return packet, nil
}
