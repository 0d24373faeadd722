package config

import (
	"context"
	"io"
	"net"
	"os"
)

// Dependencies swaps the sockets and stdio flexserve touches for test
// doubles. A nil *Dependencies, like any nil field, means the real thing.
type Dependencies struct {
	TCPListener    ListenFunc
	TCPDialer      DialFunc
	PacketListener PacketListenFunc
	Stdin          func() io.Reader
	Stdout         func() io.Writer
}

// ListenFunc binds a stream listener.
type ListenFunc func(ctx context.Context, network, address string) (net.Listener, error)

// DialFunc connects a stream.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// PacketListenFunc binds a packet socket.
type PacketListenFunc func(network, address string) (net.PacketConn, error)

// Listen returns the injected listener, or fallback.
func (d *Dependencies) Listen(fallback ListenFunc) ListenFunc {
	if d != nil && d.TCPListener != nil {
		return d.TCPListener
	}
	return fallback
}

// Dial returns the injected dialer, or a plain net.Dialer.
func (d *Dependencies) Dial() DialFunc {
	if d != nil && d.TCPDialer != nil {
		return d.TCPDialer
	}
	return (&net.Dialer{}).DialContext
}

// ListenPacket returns the injected packet listener, or net.ListenPacket.
func (d *Dependencies) ListenPacket() PacketListenFunc {
	if d != nil && d.PacketListener != nil {
		return d.PacketListener
	}
	return net.ListenPacket
}

// Stdio returns the injected stdin and stdout, defaulting to the process's own.
func (d *Dependencies) Stdio() (io.Reader, io.Writer) {
	var in io.Reader = os.Stdin
	var out io.Writer = os.Stdout
	if d != nil && d.Stdin != nil {
		in = d.Stdin()
	}
	if d != nil && d.Stdout != nil {
		out = d.Stdout()
	}
	return in, out
}
