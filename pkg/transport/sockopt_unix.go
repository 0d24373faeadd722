//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package transport

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// setReuseAddr sets SO_REUSEADDR and SO_REUSEPORT on the socket.
func setReuseAddr(fd uintptr) error {
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("setsockopt(SO_REUSEADDR): %w", err)
	}
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		return fmt.Errorf("setsockopt(SO_REUSEPORT): %w", err)
	}
	return nil
}
