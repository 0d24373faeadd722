//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd && !windows

package transport

import (
	"fmt"
	"runtime"
)

func setReuseAddr(uintptr) error {
	return fmt.Errorf("address reuse is not supported on %s", runtime.GOOS)
}
