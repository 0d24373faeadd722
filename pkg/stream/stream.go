// Package stream provides Stream, a connection that is either a raw
// transport connection or a TLS session over one. Protocol handlers use it
// without knowing which variant was accepted.
package stream

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"
)

// Kind tells which transport variant a Stream carries. It never changes
// after construction.
type Kind int

const (
	// Plain is an unencrypted transport connection.
	Plain Kind = iota
	// Secure is a TLS session whose handshake already completed.
	Secure
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Secure:
		return "secure"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// closeWriter is implemented by *net.TCPConn, *net.UnixConn and *tls.Conn.
type closeWriter interface {
	CloseWrite() error
}

// Stream owns exactly one connection and closes it on Close. Reads and
// writes go straight to the owned connection: no buffering, no error
// translation.
type Stream struct {
	kind Kind
	raw  net.Conn
	tls  *tls.Conn

	closeOnce sync.Once
	closeErr  error
}

var _ net.Conn = (*Stream)(nil)

// NewPlain wraps a raw connection.
func NewPlain(conn net.Conn) *Stream {
	return &Stream{kind: Plain, raw: conn}
}

// NewSecure wraps a TLS connection whose handshake has completed.
func NewSecure(conn *tls.Conn) *Stream {
	return &Stream{kind: Secure, tls: conn}
}

// Kind returns the variant tag.
func (s *Stream) Kind() Kind {
	return s.kind
}

func (s *Stream) conn() net.Conn {
	switch s.kind {
	case Secure:
		return s.tls
	default:
		return s.raw
	}
}

// Read reads from the underlying connection.
func (s *Stream) Read(b []byte) (int, error) {
	switch s.kind {
	case Secure:
		return s.tls.Read(b)
	default:
		return s.raw.Read(b)
	}
}

// Write writes to the underlying connection.
func (s *Stream) Write(b []byte) (int, error) {
	switch s.kind {
	case Secure:
		return s.tls.Write(b)
	default:
		return s.raw.Write(b)
	}
}

// Flush exists so handlers can treat both variants as buffered writers.
// Neither net.Conn nor *tls.Conn holds back written data, so there is
// nothing to push.
func (s *Stream) Flush() error {
	return nil
}

// Shutdown closes the write side. For TLS a close_notify alert is sent
// first. Reads keep working until the peer closes its side.
func (s *Stream) Shutdown() error {
	cw, ok := s.conn().(closeWriter)
	if !ok {
		return fmt.Errorf("shutdown: %T does not support half close", s.conn())
	}
	return cw.CloseWrite()
}

// Close closes the underlying connection. Only the first call reaches the
// connection; later calls return net.ErrClosed.
func (s *Stream) Close() error {
	err := net.ErrClosed
	s.closeOnce.Do(func() {
		s.closeErr = s.conn().Close()
		err = s.closeErr
	})
	return err
}

// ConnectionState returns the negotiated TLS parameters. ok is false for
// plain streams.
func (s *Stream) ConnectionState() (state tls.ConnectionState, ok bool) {
	if s.kind != Secure {
		return state, false
	}
	return s.tls.ConnectionState(), true
}

// NetConn returns the transport connection under any TLS layer.
func (s *Stream) NetConn() net.Conn {
	if s.kind == Secure {
		return s.tls.NetConn()
	}
	return s.raw
}

func (s *Stream) LocalAddr() net.Addr {
	return s.conn().LocalAddr()
}

func (s *Stream) RemoteAddr() net.Addr {
	return s.conn().RemoteAddr()
}

func (s *Stream) SetDeadline(t time.Time) error {
	return s.conn().SetDeadline(t)
}

func (s *Stream) SetReadDeadline(t time.Time) error {
	return s.conn().SetReadDeadline(t)
}

func (s *Stream) SetWriteDeadline(t time.Time) error {
	return s.conn().SetWriteDeadline(t)
}
