package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"dominicbreuker/flexserve/pkg/config"
)

func listenTCP(ctx context.Context, addr string, opts ListenOptions, deps *config.Dependencies) (net.Listener, error) {
	lc := net.ListenConfig{}
	if opts.ReuseAddr {
		lc.Control = func(_, _ string, c syscall.RawConn) error {
			var serr error
			if err := c.Control(func(fd uintptr) { serr = setReuseAddr(fd) }); err != nil {
				return err
			}
			return serr
		}
	}

	listen := deps.Listen(lc.Listen)
	l, err := listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen(tcp, %s): %w", addr, err)
	}
	return l, nil
}

func dialTCP(ctx context.Context, addr string, deps *config.Dependencies) (net.Conn, error) {
	dial := deps.Dial()
	conn, err := dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial(tcp, %s): %w", addr, err)
	}
	return conn, nil
}
