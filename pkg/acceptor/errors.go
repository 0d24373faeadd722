package acceptor

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrTransportAccept classifies a failed raw accept on the listening
	// socket. The accept loop keeps going.
	ErrTransportAccept = errors.New("accept failed")

	// ErrHandshake classifies a failed TLS negotiation. Only that
	// connection is dropped.
	ErrHandshake = errors.New("tls handshake failed")

	// ErrHandshakeTimeout classifies a handshake that ran past its
	// deadline. Reported only when Config.ReportHandshakeTimeouts is set.
	ErrHandshakeTimeout = errors.New("tls handshake timed out")

	// ErrProtocol classifies an error returned by the protocol handler.
	ErrProtocol = errors.New("connection handler failed")

	// ErrClosed is returned by Accept once the acceptor or its listener is closed.
	ErrClosed = errors.New("acceptor closed")

	// ErrShutdownTimeout is returned when live connections did not finish
	// within the shutdown timeout and had to be closed.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
)

// Error is a per-connection failure. Kind is one of ErrTransportAccept,
// ErrHandshake, ErrHandshakeTimeout or ErrProtocol, so callers can match
// with errors.Is. Err is the cause, unchanged.
type Error struct {
	Kind   error
	Addr   net.Addr
	ConnID string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Addr != nil {
		msg = fmt.Sprintf("%s (%s)", msg, e.Addr)
	}
	if e.ConnID != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.ConnID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// kindLabel names the class of err for metrics.
func kindLabel(err error) string {
	switch {
	case errors.Is(err, ErrTransportAccept):
		return "transport_accept"
	case errors.Is(err, ErrHandshakeTimeout):
		return "handshake_timeout"
	case errors.Is(err, ErrHandshake):
		return "handshake"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	default:
		return "other"
	}
}
