// Package helpers provides loopback sockets and TLS fixtures shared by the
// package tests.
package helpers

import (
	"crypto/tls"
	"errors"
	"net"
	"testing"
	"time"

	"dominicbreuker/flexserve/pkg/crypto"
	"dominicbreuker/flexserve/pkg/tlsconfig"
)

// Loopback returns the accepted and the dialing end of a fresh loopback
// TCP connection. Both are closed when the test ends.
func Loopback(tb testing.TB) (server net.Conn, client net.Conn) {
	tb.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("net.Listen() error = %v", err)
	}
	defer l.Close()

	type result struct {
		conn net.Conn
		err  error
	}
	accepted := make(chan result, 1)
	go func() {
		c, err := l.Accept()
		accepted <- result{c, err}
	}()

	client, err = net.Dial("tcp", l.Addr().String())
	if err != nil {
		tb.Fatalf("net.Dial() error = %v", err)
	}
	r := <-accepted
	if r.err != nil {
		tb.Fatalf("Accept() error = %v", r.err)
	}

	tb.Cleanup(func() {
		client.Close()
		r.conn.Close()
	})
	return r.conn, client
}

// TLSFixture is a server config with a matching client config that trusts it.
type TLSFixture struct {
	Server *tls.Config
	Client *tls.Config
	Bundle *crypto.Bundle
}

// NewTLSFixture generates a self-signed certificate for localhost.
func NewTLSFixture(tb testing.TB) *TLSFixture {
	tb.Helper()

	serverCfg, b, err := tlsconfig.SelfSigned("", crypto.DefaultHosts)
	if err != nil {
		tb.Fatalf("tlsconfig.SelfSigned() error = %v", err)
	}

	return &TLSFixture{
		Server: serverCfg,
		Client: &tls.Config{RootCAs: b.Pool, ServerName: "localhost"},
		Bundle: b,
	}
}

// Handshake runs the client side of a TLS handshake over conn.
func (f *TLSFixture) Handshake(conn net.Conn, timeout time.Duration) (*tls.Conn, error) {
	c := tls.Client(conn, f.Client)
	_ = c.SetDeadline(time.Now().Add(timeout))
	if err := c.Handshake(); err != nil {
		return nil, err
	}
	_ = c.SetDeadline(time.Time{})
	return c, nil
}

// DialTLS connects to addr and completes a TLS handshake.
func (f *TLSFixture) DialTLS(addr string, timeout time.Duration) (*tls.Conn, error) {
	d := &net.Dialer{Timeout: timeout}
	return tls.DialWithDialer(d, "tcp", addr, f.Client)
}

// WaitClosed reads from conn until the peer closes it or timeout passes.
// It reports whether the peer closed the connection.
func WaitClosed(conn net.Conn, timeout time.Duration) bool {
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 512)
	for {
		if _, err := conn.Read(buf); err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return false
			}
			return true
		}
	}
}
