// Package handler contains the application protocols flexserve can run
// over an accepted connection. They only see a net.Conn; the stream it
// came from, with its TLS state, is available through stream.FromContext.
package handler

import (
	"context"
	"fmt"
	"net"

	"dominicbreuker/flexserve/pkg/acceptor"
	"dominicbreuker/flexserve/pkg/config"
	"dominicbreuker/flexserve/pkg/log"
	"dominicbreuker/flexserve/pkg/stream"
)

// Func serves one connection.
type Func func(ctx context.Context, conn net.Conn) error

// Adapt turns f into an acceptor.Handler.
func Adapt(f Func) acceptor.Handler {
	return func(ctx context.Context, s *stream.Stream) error {
		return f(stream.NewContext(ctx, s), s)
	}
}

// New returns the handler registered under name.
func New(name string, logger *log.Logger) (Func, error) {
	switch name {
	case config.HandlerEcho:
		return Echo, nil
	case config.HandlerHTTP:
		return HTTP(logger), nil
	case config.HandlerMux:
		return Mux(logger), nil
	default:
		return nil, fmt.Errorf("unknown handler %q", name)
	}
}

// WithTranscript records all traffic f sees into t, tagged with the
// connection id.
func WithTranscript(t *log.Transcript, f Func) Func {
	return func(ctx context.Context, conn net.Conn) error {
		id := acceptor.ConnID(ctx)
		if id == "" {
			id = conn.RemoteAddr().String()
		}
		return f(ctx, t.Wrap(conn, id))
	}
}
