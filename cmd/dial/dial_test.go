package dial

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"dominicbreuker/flexserve/pkg/config"
	"dominicbreuker/flexserve/pkg/log"
	"dominicbreuker/flexserve/pkg/server"

	"github.com/urfave/cli/v3"
)

func TestGetCommand(t *testing.T) {
	t.Parallel()

	cmd := GetCommand()
	if cmd == nil {
		t.Fatal("GetCommand() returned nil")
	}
	if cmd.Name != "dial" {
		t.Errorf("command name = %q; want %q", cmd.Name, "dial")
	}
	if cmd.Action == nil {
		t.Fatal("command action should not be nil")
	}
}

func parse(t *testing.T, args ...string) (*config.Client, error) {
	t.Helper()

	var cfg *config.Client
	var perr error
	cmd := GetCommand()
	cmd.Action = func(_ context.Context, c *cli.Command) error {
		cfg, perr = parseConfig(c)
		return nil
	}
	if err := cmd.Run(context.Background(), append([]string{"dial"}, args...)); err != nil {
		return nil, err
	}
	return cfg, perr
}

func TestParseConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    *config.Client
		wantErr bool
	}{
		{
			name: "defaults",
			args: []string{"tcp://example.com:80"},
			want: &config.Client{
				Shared:  config.Shared{Transport: config.Transport{Protocol: config.ProtoTCP, Host: "example.com", Port: 80}},
				Timeout: 10 * time.Second,
			},
		},
		{
			name: "tls with ca and mux",
			args: []string{"--ssl", "--ca", "ca.pem", "--mux", "-t", "500", "-v", "kcp://10.0.0.1:4433"},
			want: &config.Client{
				Shared:  config.Shared{Transport: config.Transport{Protocol: config.ProtoKCP, Host: "10.0.0.1", Port: 4433}, SSL: true, Verbose: true},
				CAFile:  "ca.pem",
				Mux:     true,
				Timeout: 500 * time.Millisecond,
			},
		},
		{
			name: "insecure",
			args: []string{"-s", "-i", "tcp://localhost:443"},
			want: &config.Client{
				Shared:   config.Shared{Transport: config.Transport{Protocol: config.ProtoTCP, Host: "localhost", Port: 443}, SSL: true},
				Insecure: true,
				Timeout:  10 * time.Second,
			},
		},
		{name: "missing host", args: []string{"tcp://:80"}, wantErr: true},
		{name: "no transport", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := parse(t, tc.args...)
			if (err != nil) != tc.wantErr {
				t.Fatalf("parseConfig() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if *got != *tc.want {
				t.Errorf("parseConfig() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startServer(t *testing.T, ssl bool, handler string) config.Transport {
	t.Helper()

	cfg := &config.Server{
		Shared:           config.Shared{Transport: config.Transport{Protocol: config.ProtoTCP, Host: "127.0.0.1"}, SSL: ssl},
		HandshakeTimeout: time.Second,
		ShutdownTimeout:  200 * time.Millisecond,
		Handler:          handler,
	}
	s, err := server.New(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	_, port, _ := net.SplitHostPort(s.Addr().String())
	p, _ := strconv.Atoi(port)
	return config.Transport{Protocol: config.ProtoTCP, Host: "127.0.0.1", Port: p}
}

func TestRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ssl     bool
		handler string
		mux     bool
	}{
		{name: "plain echo", handler: config.HandlerEcho},
		{name: "tls echo", ssl: true, handler: config.HandlerEcho},
		{name: "mux", handler: config.HandlerMux, mux: true},
		{name: "tls mux", ssl: true, handler: config.HandlerMux, mux: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := &config.Client{
				Shared:   config.Shared{Transport: startServer(t, tc.ssl, tc.handler), SSL: tc.ssl},
				Insecure: tc.ssl,
				Mux:      tc.mux,
				Timeout:  2 * time.Second,
			}

			stdinR, stdinW := io.Pipe()
			stdout := &syncBuffer{}
			deps := &config.Dependencies{
				Stdin:  func() io.Reader { return stdinR },
				Stdout: func() io.Writer { return stdout },
			}

			done := make(chan error, 1)
			go func() {
				done <- run(context.Background(), cfg, log.NewLoggerTo(io.Discard, false), deps)
			}()

			go func() { _, _ = stdinW.Write([]byte("hello\n")) }()

			deadline := time.Now().Add(2 * time.Second)
			for !strings.Contains(stdout.String(), "hello") {
				if time.Now().After(deadline) {
					t.Fatalf("no echo, stdout = %q", stdout.String())
				}
				time.Sleep(5 * time.Millisecond)
			}

			stdinW.Close()
			select {
			case err := <-done:
				if err != nil {
					t.Errorf("run() error = %v", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("run() did not return after stdin closed")
			}
		})
	}
}

func TestRun_ConnectFails(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	cfg := &config.Client{
		Shared:  config.Shared{Transport: config.Transport{Protocol: config.ProtoTCP, Host: "127.0.0.1", Port: port}},
		Timeout: time.Second,
	}
	if err := run(context.Background(), cfg, nil, nil); err == nil {
		t.Error("run() against a closed port should fail")
	}
}
