package echo

import "errors"

var (
	// ErrNilPeer is returned when a datagram has no source address.
	ErrNilPeer = errors.New("datagram has no peer address")

	// ErrNotListening is returned when Serve is called before Listen.
	ErrNotListening = errors.New("echo server is not listening")

	// ErrShortWrite is returned when the reply was not written in full.
	ErrShortWrite = errors.New("short write on echo reply")
)
