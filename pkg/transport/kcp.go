package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"dominicbreuker/flexserve/pkg/config"

	kcp "github.com/xtaci/kcp-go/v5"
)

// tune applies the session settings both ends use.
func tune(s *kcp.UDPSession) {
	// SetNoDelay(nodelay, interval, resend, nc): no delay, 10ms updates,
	// fast resend after 2 ACK crosses, no congestion control
	s.SetNoDelay(1, 10, 2, 1)
	s.SetStreamMode(true)
	s.SetWindowSize(1024, 1024)
}

// kcpListener adapts a kcp.Listener to net.Listener semantics: sessions
// come out tuned, and a closed listener reports net.ErrClosed.
type kcpListener struct {
	*kcp.Listener
	pc net.PacketConn
}

func listenKCP(addr string, deps *config.Dependencies) (net.Listener, error) {
	if _, err := net.ResolveUDPAddr("udp", addr); err != nil {
		return nil, fmt.Errorf("net.ResolveUDPAddr(udp, %s): %w", addr, err)
	}

	pc, err := deps.ListenPacket()("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen(udp, %s): %w", addr, err)
	}

	// no block cipher, no FEC shards
	l, err := kcp.ServeConn(nil, 0, 0, pc)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("kcp.ServeConn(): %w", err)
	}

	return &kcpListener{Listener: l, pc: pc}, nil
}

func (l *kcpListener) Accept() (net.Conn, error) {
	s, err := l.Listener.AcceptKCP()
	if err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return nil, fmt.Errorf("AcceptKCP(): %w", net.ErrClosed)
		}
		return nil, fmt.Errorf("AcceptKCP(): %w", err)
	}
	tune(s)
	return s, nil
}

func (l *kcpListener) Close() error {
	err := l.Listener.Close()
	if perr := l.pc.Close(); err == nil && !errors.Is(perr, net.ErrClosed) {
		err = perr
	}
	return err
}

// kcpConn closes the packet socket it owns along with the session.
type kcpConn struct {
	*kcp.UDPSession
	pc net.PacketConn
}

func (c *kcpConn) Close() error {
	err := c.UDPSession.Close()
	_ = c.pc.Close()
	return err
}

func dialKCP(ctx context.Context, addr string, deps *config.Dependencies) (net.Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveUDPAddr(udp, %s): %w", addr, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// let the OS pick an ephemeral port
	pc, err := deps.ListenPacket()("udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("listen(udp, :0): %w", err)
	}

	s, err := kcp.NewConn(raddr.String(), nil, 0, 0, pc)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("kcp.NewConn(%s): %w", raddr, err)
	}
	tune(s)

	return &kcpConn{UDPSession: s, pc: pc}, nil
}
