package acceptor

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"dominicbreuker/flexserve/pkg/handshake"
	"dominicbreuker/flexserve/pkg/log"
	"dominicbreuker/flexserve/pkg/metrics"
)

// Mode selects the transport of an Acceptor. It is fixed at construction;
// serving plain and TLS clients needs two acceptors on two sockets.
type Mode int

const (
	// Plain hands raw connections to the handler.
	Plain Mode = iota
	// Secure completes a TLS handshake before handing over a connection.
	Secure
)

func (m Mode) String() string {
	switch m {
	case Plain:
		return "plain"
	case Secure:
		return "secure"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// DefaultShutdownTimeout bounds how long Serve waits for live connections.
const DefaultShutdownTimeout = 30 * time.Second

// Config is the immutable configuration of an Acceptor.
type Config struct {
	Mode Mode

	// TLSConfig is the shared server security context. Required in Secure
	// mode, must be nil in Plain mode.
	TLSConfig *tls.Config

	// HandshakeTimeout bounds each TLS handshake. A zero value is kept as
	// is and expires every handshake; start from DefaultConfig to get 10s.
	HandshakeTimeout time.Duration

	// MaxHandshakes bounds concurrent handshakes. When reached, the
	// acceptor stops taking raw connections off the socket until a
	// handshake finishes, so waiting clients queue in the kernel backlog.
	// Zero means unbounded: the in-flight set grows with the number of
	// clients that connect but do not finish their handshake.
	MaxHandshakes int

	// ReportHandshakeTimeouts makes Accept return expired handshakes as
	// ErrHandshakeTimeout errors instead of dropping them. They are always
	// counted in metrics and Stats.
	ReportHandshakeTimeouts bool

	// IgnoreHandshakeErrors makes Accept drop failed handshakes instead of
	// returning them. They are still logged at verbose level.
	IgnoreHandshakeErrors bool

	// ShutdownTimeout bounds how long Shutdown waits for live connections.
	// Zero means DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// ErrorSink receives per-connection errors of connections spawned by
	// Accept. Nil means LogSink(Logger).
	ErrorSink ErrorSink

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// DefaultConfig returns a plain mode config with the default handshake
// timeout already filled in for a later switch to Secure.
func DefaultConfig() Config {
	return Config{
		Mode:             Plain,
		HandshakeTimeout: handshake.DefaultTimeout,
		ShutdownTimeout:  DefaultShutdownTimeout,
	}
}

// Validate checks the config and returns all problems found.
func (c Config) Validate() []error {
	var errs []error

	switch c.Mode {
	case Plain:
		if c.TLSConfig != nil {
			errs = append(errs, errors.New("plain mode does not take a TLS config"))
		}
	case Secure:
		if c.TLSConfig == nil {
			errs = append(errs, errors.New("secure mode requires a TLS config"))
		} else if len(c.TLSConfig.Certificates) == 0 && c.TLSConfig.GetCertificate == nil && c.TLSConfig.GetConfigForClient == nil {
			errs = append(errs, errors.New("TLS config has no certificate"))
		}
		if c.HandshakeTimeout < 0 {
			errs = append(errs, fmt.Errorf("handshake timeout %s is negative", c.HandshakeTimeout))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mode %s", c.Mode))
	}

	if c.MaxHandshakes < 0 {
		errs = append(errs, fmt.Errorf("max handshakes %d is negative", c.MaxHandshakes))
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout %s is negative", c.ShutdownTimeout))
	}

	return errs
}
