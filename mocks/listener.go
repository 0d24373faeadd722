// Package mocks provides mock implementations for testing.
package mocks

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// MockListener is an in-memory net.Listener. Connections are net.Pipe
// pairs created by Dial, and accept errors can be injected to simulate a
// failing socket.
type MockListener struct {
	addr       *net.TCPAddr
	connCh     chan net.Conn
	errCh      chan error
	acceptedCh chan net.Conn
	closeCh    chan struct{}

	mu       sync.Mutex
	closed   bool
	nextPort int
	accepted int
}

// NewMockListener creates a listener that pretends to be bound to addr.
func NewMockListener(addr string) (*MockListener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}

	return &MockListener{
		addr:       tcpAddr,
		connCh:     make(chan net.Conn, 128),
		errCh:      make(chan error, 16),
		acceptedCh: make(chan net.Conn, 128),
		closeCh:    make(chan struct{}),
		nextPort:   40000,
	}, nil
}

// Accept returns the next dialed connection or injected error.
func (l *MockListener) Accept() (net.Conn, error) {
	// errors take precedence so tests can order them before connections
	select {
	case err := <-l.errCh:
		return nil, err
	default:
	}

	select {
	case err := <-l.errCh:
		return nil, err
	case conn := <-l.connCh:
		l.mu.Lock()
		l.accepted++
		l.mu.Unlock()

		select {
		case l.acceptedCh <- conn:
		default:
		}
		return conn, nil
	case <-l.closeCh:
		return nil, fmt.Errorf("accept %s: %w", l.addr, net.ErrClosed)
	}
}

// Close closes the listener. Connections already accepted stay open.
func (l *MockListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	close(l.closeCh)
	return nil
}

// Addr returns the listener's network address.
func (l *MockListener) Addr() net.Addr {
	return l.addr
}

var _ net.Listener = (*MockListener)(nil)

// Dial queues a new connection for Accept and returns the client end.
func (l *MockListener) Dial() (net.Conn, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	l.nextPort++
	client := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 2), Port: l.nextPort}
	l.mu.Unlock()

	c, s := net.Pipe()
	server := &MockConn{Conn: s, local: l.addr, remote: client}
	select {
	case l.connCh <- server:
	case <-l.closeCh:
		_ = c.Close()
		_ = s.Close()
		return nil, errors.New("connection refused")
	}

	return &MockConn{Conn: c, local: client, remote: l.addr}, nil
}

// InjectError makes a pending or future Accept call return err.
func (l *MockListener) InjectError(err error) {
	l.errCh <- err
}

// Accepted returns how many connections Accept has handed out.
func (l *MockListener) Accepted() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accepted
}

// WaitForNewConnection blocks until Accept hands out a connection, the
// listener is closed, or timeout elapses.
func (l *MockListener) WaitForNewConnection(timeout time.Duration) (net.Conn, error) {
	select {
	case conn := <-l.acceptedCh:
		return conn, nil
	case <-l.closeCh:
		return nil, fmt.Errorf("listener closed")
	case <-time.After(timeout):
		return nil, fmt.Errorf("timeout waiting for new connection on %s", l.addr)
	}
}

// MockConn is a net.Pipe end with TCP addresses.
type MockConn struct {
	net.Conn
	local  net.Addr
	remote net.Addr
}

// LocalAddr returns the local network address.
func (c *MockConn) LocalAddr() net.Addr {
	return c.local
}

// RemoteAddr returns the remote network address.
func (c *MockConn) RemoteAddr() net.Addr {
	return c.remote
}

var _ net.Conn = (*MockConn)(nil)
