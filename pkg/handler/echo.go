package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// Echo writes back everything it reads until the peer closes its side.
func Echo(_ context.Context, conn net.Conn) error {
	if _, err := io.Copy(conn, conn); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("echo: %w", err)
	}
	return nil
}
