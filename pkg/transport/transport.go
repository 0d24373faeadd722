// Package transport binds and dials the sockets flexserve runs over. Each
// protocol provides a net.Listener and a net.Conn, so the acceptor and
// the TLS layer on top work the same for all of them:
//
//   - tcp: a TCP listener, optionally with SO_REUSEADDR/SO_REUSEPORT
//   - kcp: reliable streams over UDP using KCP
//
// Dependencies can be injected through config.Dependencies for testing.
package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"dominicbreuker/flexserve/pkg/config"
)

// ListenOptions tune the listening socket.
type ListenOptions struct {
	// ReuseAddr sets SO_REUSEADDR, and SO_REUSEPORT where available, on
	// TCP sockets so a restarted server can bind while old connections
	// linger in TIME_WAIT.
	ReuseAddr bool
}

// Listen binds a listener for t.
func Listen(ctx context.Context, t config.Transport, opts ListenOptions, deps *config.Dependencies) (net.Listener, error) {
	switch t.Protocol {
	case config.ProtoTCP:
		return listenTCP(ctx, t.Addr(), opts, deps)
	case config.ProtoKCP:
		return listenKCP(t.Addr(), deps)
	default:
		return nil, fmt.Errorf("listen %s: unsupported protocol", t)
	}
}

// Dial connects to t. timeout bounds connection setup; zero means no limit.
func Dial(ctx context.Context, t config.Transport, timeout time.Duration, deps *config.Dependencies) (net.Conn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	switch t.Protocol {
	case config.ProtoTCP:
		return dialTCP(ctx, t.Addr(), deps)
	case config.ProtoKCP:
		return dialKCP(ctx, t.Addr(), deps)
	default:
		return nil, fmt.Errorf("dial %s: unsupported protocol", t)
	}
}
