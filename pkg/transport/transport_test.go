package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime"
	"strconv"
	"testing"
	"time"

	"dominicbreuker/flexserve/mocks"
	"dominicbreuker/flexserve/pkg/config"
)

func tcpTransport(addr string) config.Transport {
	host, port, _ := net.SplitHostPort(addr)
	p, _ := strconv.Atoi(port)
	return config.Transport{Protocol: config.ProtoTCP, Host: host, Port: p}
}

func echoOnce(t *testing.T, l net.Listener) {
	t.Helper()
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		_, _ = conn.Write(buf)
	}()
}

func ping(t *testing.T, conn net.Conn) {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if string(buf) != "ping" {
		t.Errorf("got %q, want %q", buf, "ping")
	}
}

func TestListenDial_TCP(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, err := Listen(ctx, config.Transport{Protocol: config.ProtoTCP, Host: "127.0.0.1", Port: 0}, ListenOptions{}, nil)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer l.Close()
	echoOnce(t, l)

	conn, err := Dial(ctx, tcpTransport(l.Addr().String()), time.Second, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	ping(t, conn)
}

func TestListen_ReuseAddr(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" {
		t.Skip("SO_REUSEPORT semantics are only checked on linux")
	}

	ctx := context.Background()
	opts := ListenOptions{ReuseAddr: true}

	l1, err := Listen(ctx, config.Transport{Protocol: config.ProtoTCP, Host: "127.0.0.1", Port: 0}, opts, nil)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer l1.Close()

	l2, err := Listen(ctx, tcpTransport(l1.Addr().String()), opts, nil)
	if err != nil {
		t.Fatalf("second Listen() with reuse error = %v", err)
	}
	l2.Close()

	if _, err := Listen(ctx, tcpTransport(l1.Addr().String()), ListenOptions{}, nil); err == nil {
		t.Error("Listen() without reuse on a bound port should fail")
	}
}

func TestListen_InjectedListener(t *testing.T) {
	t.Parallel()

	ml, err := mocks.NewMockListener("127.0.0.1:9000")
	if err != nil {
		t.Fatalf("NewMockListener() error = %v", err)
	}
	deps := &config.Dependencies{
		TCPListener: func(context.Context, string, string) (net.Listener, error) { return ml, nil },
	}

	l, err := Listen(context.Background(), tcpTransport("127.0.0.1:9000"), ListenOptions{}, deps)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if l != ml {
		t.Error("Listen() did not use the injected listener")
	}
}

func TestListenDial_Errors(t *testing.T) {
	t.Parallel()

	errRefused := errors.New("refused")
	deps := &config.Dependencies{
		TCPListener: func(context.Context, string, string) (net.Listener, error) { return nil, errRefused },
		TCPDialer:   func(context.Context, string, string) (net.Conn, error) { return nil, errRefused },
	}
	ctx := context.Background()
	tr := tcpTransport("127.0.0.1:9000")

	if _, err := Listen(ctx, tr, ListenOptions{}, deps); !errors.Is(err, errRefused) {
		t.Errorf("Listen() error = %v, want %v", err, errRefused)
	}
	if _, err := Dial(ctx, tr, time.Second, deps); !errors.Is(err, errRefused) {
		t.Errorf("Dial() error = %v, want %v", err, errRefused)
	}

	bad := config.Transport{Protocol: config.Protocol(42), Host: "127.0.0.1", Port: 1}
	if _, err := Listen(ctx, bad, ListenOptions{}, nil); err == nil {
		t.Error("Listen() with unknown protocol should fail")
	}
	if _, err := Dial(ctx, bad, time.Second, nil); err == nil {
		t.Error("Dial() with unknown protocol should fail")
	}
}

func TestListenDial_KCP(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	t.Parallel()

	ctx := context.Background()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error = %v", err)
	}
	addr := pc.LocalAddr().(*net.UDPAddr)
	pc.Close()

	tr := config.Transport{Protocol: config.ProtoKCP, Host: "127.0.0.1", Port: addr.Port}
	l, err := Listen(ctx, tr, ListenOptions{}, nil)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	echoOnce(t, l)

	conn, err := Dial(ctx, tr, time.Second, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	ping(t, conn)

	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := l.Accept(); !errors.Is(err, net.ErrClosed) {
		t.Errorf("Accept() after Close() error = %v, want net.ErrClosed", err)
	}
}
