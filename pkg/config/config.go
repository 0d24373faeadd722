// Package config holds the validated settings of the flexserve commands.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Protocol is the transport a socket is bound with.
type Protocol int

const (
	// ProtoTCP is plain TCP.
	ProtoTCP Protocol = iota + 1
	// ProtoKCP is KCP, a reliable stream protocol over UDP.
	ProtoKCP
)

func (p Protocol) String() string {
	switch p {
	case ProtoTCP:
		return "tcp"
	case ProtoKCP:
		return "kcp"
	default:
		return ""
	}
}

// Transport is where a socket listens or connects to.
type Transport struct {
	Protocol Protocol
	Host     string
	Port     int
}

// Addr returns host:port, with brackets for IPv6 hosts.
func (t Transport) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Transport) String() string {
	return fmt.Sprintf("%s://%s", t.Protocol, t.Addr())
}

func (t Transport) Validate() []error {
	var errors []error

	if t.Protocol.String() == "" {
		errors = append(errors, fmt.Errorf("unknown protocol %d", int(t.Protocol)))
	}
	if err := validatePort(t.Port); err != nil {
		errors = append(errors, fmt.Errorf("port: %w", err))
	}

	return errors
}

// Shared contains the settings of every command.
type Shared struct {
	Transport Transport
	SSL       bool
	Verbose   bool
}

func (c *Shared) Validate() []error {
	return c.Transport.Validate()
}

// Handler names accepted by Server.Handler.
const (
	HandlerEcho = "echo"
	HandlerHTTP = "http"
	HandlerMux  = "mux"
)

// DefaultMaxHandshakes bounds concurrent TLS handshakes unless configured.
const DefaultMaxHandshakes = 64

// Server configures the serve command.
type Server struct {
	Shared

	// CertFile and KeyFile point to PEM files. Without them an
	// ephemeral self-signed certificate is generated.
	CertFile string
	KeyFile  string

	HandshakeTimeout time.Duration
	MaxHandshakes    int
	ReportTimeouts   bool
	ShutdownTimeout  time.Duration

	Handler     string
	LogFile     string
	MetricsAddr string
	ReuseAddr   bool
}

func (c *Server) Validate() []error {
	errors := c.Shared.Validate()

	if !c.SSL && (c.CertFile != "" || c.KeyFile != "") {
		errors = append(errors, fmt.Errorf("You must use '--ssl' to use '--cert' or '--key'"))
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		errors = append(errors, fmt.Errorf("'--cert' and '--key' must be used together"))
	}
	if c.HandshakeTimeout < 0 {
		errors = append(errors, fmt.Errorf("handshake timeout must not be negative"))
	}
	if c.MaxHandshakes < 0 {
		errors = append(errors, fmt.Errorf("max handshakes must not be negative"))
	}
	if c.ShutdownTimeout < 0 {
		errors = append(errors, fmt.Errorf("shutdown timeout must not be negative"))
	}

	switch c.Handler {
	case HandlerEcho, HandlerHTTP, HandlerMux:
	default:
		errors = append(errors, fmt.Errorf("unknown handler %q, must be one of echo|http|mux", c.Handler))
	}

	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errors = append(errors, fmt.Errorf("metrics address: %w", err))
		}
	}

	return errors
}

// Client configures the dial command.
type Client struct {
	Shared

	Insecure bool
	CAFile   string
	Mux      bool
	Timeout  time.Duration
}

func (c *Client) Validate() []error {
	errors := c.Shared.Validate()

	if !c.SSL && (c.Insecure || c.CAFile != "") {
		errors = append(errors, fmt.Errorf("You must use '--ssl' to use '--insecure' or '--ca'"))
	}
	if c.Insecure && c.CAFile != "" {
		errors = append(errors, fmt.Errorf("'--insecure' and '--ca' are mutually exclusive"))
	}
	if c.Timeout < 0 {
		errors = append(errors, fmt.Errorf("timeout must not be negative"))
	}

	return errors
}
