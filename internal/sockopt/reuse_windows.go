//go:build windows

package sockopt

import (
	"golang.org/x/sys/windows"
)

var errAddrInUse error = windows.WSAEADDRINUSE

// Windows has no SO_REUSEPORT; SO_REUSEADDR there allows port stealing,
// so sharing is refused instead.
func setReuse(fd uintptr) error {
	return ErrReuseUnsupported
}
