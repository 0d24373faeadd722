package acceptor

import (
	"crypto/tls"
	"errors"
	"net"
	"testing"
	"time"

	"dominicbreuker/flexserve/test/helpers"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	f := helpers.NewTLSFixture(t)

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr int
	}{
		{name: "default", mutate: func(c *Config) {}, wantErr: 0},
		{
			name:    "plain with tls config",
			mutate:  func(c *Config) { c.TLSConfig = f.Server },
			wantErr: 1,
		},
		{
			name:    "secure",
			mutate:  func(c *Config) { c.Mode = Secure; c.TLSConfig = f.Server },
			wantErr: 0,
		},
		{
			name:    "secure without tls config",
			mutate:  func(c *Config) { c.Mode = Secure },
			wantErr: 1,
		},
		{
			name:    "secure without certificate",
			mutate:  func(c *Config) { c.Mode = Secure; c.TLSConfig = &tls.Config{} },
			wantErr: 1,
		},
		{
			name:    "secure with zero timeout",
			mutate:  func(c *Config) { c.Mode = Secure; c.TLSConfig = f.Server; c.HandshakeTimeout = 0 },
			wantErr: 0,
		},
		{
			name:    "negative values",
			mutate:  func(c *Config) { c.Mode = Secure; c.TLSConfig = f.Server; c.HandshakeTimeout = -time.Second; c.MaxHandshakes = -1; c.ShutdownTimeout = -1 },
			wantErr: 3,
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Mode = Mode(7) },
			wantErr: 1,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tc.mutate(&cfg)

			if errs := cfg.Validate(); len(errs) != tc.wantErr {
				t.Errorf("Validate() = %v, want %d errors", errs, tc.wantErr)
			}
		})
	}
}

func TestMode_String(t *testing.T) {
	t.Parallel()

	if Plain.String() != "plain" || Secure.String() != "secure" {
		t.Errorf("unexpected mode names %q, %q", Plain, Secure)
	}
	if got := Mode(7).String(); got != "Mode(7)" {
		t.Errorf("Mode(7).String() = %q", got)
	}
}

func TestError(t *testing.T) {
	t.Parallel()

	cause := errors.New("remote error: tls: bad certificate")
	addr := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4242}

	tests := []struct {
		name  string
		err   *Error
		want  string
		label string
	}{
		{
			name:  "full",
			err:   &Error{Kind: ErrHandshake, Addr: addr, ConnID: "abc", Err: cause},
			want:  "tls handshake failed (10.0.0.1:4242) [abc]: remote error: tls: bad certificate",
			label: "handshake",
		},
		{
			name:  "kind only",
			err:   &Error{Kind: ErrHandshakeTimeout},
			want:  "tls handshake timed out",
			label: "handshake_timeout",
		},
		{
			name:  "transport",
			err:   &Error{Kind: ErrTransportAccept, Err: cause},
			want:  "accept failed: remote error: tls: bad certificate",
			label: "transport_accept",
		},
		{
			name:  "protocol",
			err:   &Error{Kind: ErrProtocol, ConnID: "x", Err: cause},
			want:  "connection handler failed [x]: remote error: tls: bad certificate",
			label: "protocol",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := tc.err.Error(); got != tc.want {
				t.Errorf("Error() = %q, want %q", got, tc.want)
			}
			if !errors.Is(tc.err, tc.err.Kind) {
				t.Error("error does not match its kind")
			}
			if tc.err.Err != nil && !errors.Is(tc.err, cause) {
				t.Error("error does not match its cause")
			}
			if got := kindLabel(tc.err); got != tc.label {
				t.Errorf("kindLabel() = %q, want %q", got, tc.label)
			}
		})
	}

	if got := kindLabel(errors.New("x")); got != "other" {
		t.Errorf("kindLabel(other) = %q", got)
	}
}

func TestLogSink(t *testing.T) {
	t.Parallel()

	// nil logger must not panic
	sink := LogSink(nil)
	sink(&Error{Kind: ErrHandshakeTimeout})
	sink(&Error{Kind: ErrProtocol, Err: errors.New("x")})
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	var b backoff
	if d := b.next(); d != 5*time.Millisecond {
		t.Errorf("first next() = %s, want 5ms", d)
	}
	if d := b.next(); d != 10*time.Millisecond {
		t.Errorf("second next() = %s, want 10ms", d)
	}
	for i := 0; i < 20; i++ {
		b.next()
	}
	if d := b.next(); d != time.Second {
		t.Errorf("capped next() = %s, want 1s", d)
	}
	b.reset()
	if d := b.next(); d != 5*time.Millisecond {
		t.Errorf("next() after reset = %s, want 5ms", d)
	}
}
