package shared

import (
	"testing"

	"dominicbreuker/flexserve/pkg/config"
)

func TestParseTransport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		protocol config.Protocol
		host     string
		port     int
		err      bool
	}{
		{input: "tcp://localhost:123", protocol: config.ProtoTCP, host: "localhost", port: 123},
		{input: "kcp://localhost:123", protocol: config.ProtoKCP, host: "localhost", port: 123},
		{input: "tcp://:123", protocol: config.ProtoTCP, host: "", port: 123},  // bind all interfaces
		{input: "tcp://*:123", protocol: config.ProtoTCP, host: "", port: 123}, // also bind to all interfaces if * is provided
		{input: "kcp://192.168.1.100:12345", protocol: config.ProtoKCP, host: "192.168.1.100", port: 12345},
		{input: "tcp://[::1]:8443", protocol: config.ProtoTCP, host: "::1", port: 8443},

		// error cases, bad protocols
		{input: "foobar://localhost:123", err: true},
		{input: "udp://localhost:123", err: true},
		{input: "ws://localhost:123", err: true},

		// error cases, bad ports
		{input: "tcp://localhost:0", err: true},
		{input: "tcp://localhost:-1", err: true},
		{input: "tcp://localhost:65536", err: true},
		{input: "tcp://localhost:999999999999999999", err: true},
		{input: "tcp://localhost:eighty", err: true},

		// error cases, bad format
		{input: "tcp://localhost:123:foobar", err: true},
		{input: "tcp://::1:123", err: true},
		{input: "://localhost:123", err: true},
		{input: "localhost:123", err: true},
		{input: "tcp://localhost:", err: true},

		// error cases, stupid strings
		{input: "foobar", err: true},
		{input: "", err: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTransport(tt.input)
			if (err != nil) != tt.err {
				t.Fatalf("ParseTransport(%s) expected err=%t but was %v", tt.input, tt.err, err)
			}
			if tt.err {
				return
			}

			want := config.Transport{Protocol: tt.protocol, Host: tt.host, Port: tt.port}
			if got != want {
				t.Errorf("ParseTransport(%s) = %+v but want %+v", tt.input, got, want)
			}
		})
	}
}
