package rtp

import (
	"testing"
	"time"

	pionrtp "github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramerWrapUnwrap(t *testing.T) {
	t.Parallel()

	f := NewFramerWith(0x87654321, 65535)

	first, seq1, err := f.Wrap([]byte("Hello World"))
	require.NoError(t, err)
	second, seq2, err := f.Wrap([]byte("Hello World"))
	require.NoError(t, err)

	assert.Equal(t, uint16(65535), seq1)
	assert.Equal(t, uint16(0), seq2)

	p, err := f.Unwrap(first)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), p.Version)
	assert.Equal(t, uint8(PayloadTypeDynamic), p.PayloadType)
	assert.Equal(t, uint32(0), p.Timestamp)
	assert.Equal(t, []byte("Hello World"), p.Payload)

	p, err = f.Unwrap(second)
	require.NoError(t, err)
	assert.Equal(t, uint32(TimestampStep), p.Timestamp)
}

func TestFramerRejectsForeignSSRC(t *testing.T) {
	t.Parallel()

	other := &pionrtp.Packet{Header: pionrtp.Header{Version: 2, SSRC: 1}, Payload: []byte("x")}
	data, err := other.Marshal()
	require.NoError(t, err)

	_, err = NewFramerWith(2, 0).Unwrap(data)
	assert.ErrorIs(t, err, ErrForeignSSRC)
}

func TestFramerRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := NewFramerWith(2, 0).Unwrap([]byte{0x80})
	assert.Error(t, err)
}

func TestLatencyTracker(t *testing.T) {
	t.Parallel()

	tr := NewLatencyTracker(time.Second)
	t0 := time.Now()
	tr.RecordSent(10, t0)

	latency, ok := tr.GetLatency(10, t0.Add(15*time.Millisecond))
	assert.True(t, ok)
	assert.Equal(t, 15*time.Millisecond, latency)

	_, ok = tr.GetLatency(10, t0.Add(20*time.Millisecond))
	assert.False(t, ok, "duplicate echo must not match twice")
	assert.Equal(t, int64(0), tr.Expired())
}

func TestLatencyTrackerExpiresOldSends(t *testing.T) {
	t.Parallel()

	tr := NewLatencyTracker(time.Second)
	t0 := time.Now()
	tr.RecordSent(1, t0)
	tr.RecordSent(2, t0.Add(2*time.Second))

	assert.Equal(t, int64(1), tr.Expired())

	_, ok := tr.GetLatency(1, t0.Add(2*time.Second))
	assert.False(t, ok)
}

func TestSequenceTracker(t *testing.T) {
	t.Parallel()

	s := NewSequenceTracker()
	s.TrackOutgoing(100)
	s.TrackOutgoing(101)

	assert.Equal(t, uint32(0), s.TrackIncoming(100))
	assert.Equal(t, uint32(0), s.TrackIncoming(101))
	assert.Equal(t, uint32(2), s.TrackIncoming(104))
	assert.Equal(t, uint32(0), s.TrackIncoming(103), "late packet is not a new gap")

	out, in, dropped := s.GetStats()
	assert.Equal(t, uint32(2), out)
	assert.Equal(t, uint32(4), in)
	assert.Equal(t, uint32(2), dropped)
	assert.Equal(t, uint32(1), s.Reordered())
}

func TestSequenceTrackerWraparound(t *testing.T) {
	t.Parallel()

	s := NewSequenceTracker()

	assert.Equal(t, uint32(0), s.TrackIncoming(65534))
	assert.Equal(t, uint32(1), s.TrackIncoming(0))
	assert.Equal(t, uint32(0), s.TrackIncoming(1))
}
