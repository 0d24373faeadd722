//go:build windows

package transport

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// setReuseAddr sets SO_REUSEADDR on the socket. Windows has no SO_REUSEPORT.
func setReuseAddr(fd uintptr) error {
	if err := windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("setsockopt(SO_REUSEADDR): %w", err)
	}
	return nil
}
