// Package client connects to a flexserve server, optionally over TLS.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"

	"dominicbreuker/flexserve/pkg/config"
	"dominicbreuker/flexserve/pkg/log"
	"dominicbreuker/flexserve/pkg/transport"
)

// Client ...
type Client struct {
	cfg    *config.Client
	logger *log.Logger
	deps   *config.Dependencies

	conn net.Conn
}

// New ...
func New(cfg *config.Client, logger *log.Logger, deps *config.Dependencies) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger,
		deps:   deps,
	}
}

// Close ...
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	c.logger.InfoMsg("Connection to %s closed", c.conn.RemoteAddr())

	return c.conn.Close()
}

// GetConnection returns the established connection.
func (c *Client) GetConnection() net.Conn {
	return c.conn
}

// Connect dials the server and completes the TLS handshake if enabled.
func (c *Client) Connect(ctx context.Context) error {
	c.logger.InfoMsg("Connecting to %s", c.cfg.Transport)

	conn, err := transport.Dial(ctx, c.cfg.Transport, c.cfg.Timeout, c.deps)
	if err != nil {
		return fmt.Errorf("transport.Dial(): %w", err)
	}

	if c.cfg.SSL {
		conn, err = c.upgradeToTLS(ctx, conn)
		if err != nil {
			return fmt.Errorf("upgradeToTLS: %w", err)
		}
	}

	c.conn = conn
	return nil
}

func (c *Client) upgradeToTLS(ctx context.Context, conn net.Conn) (net.Conn, error) {
	cfg, err := c.tlsConfig()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	cs := tlsConn.ConnectionState()
	c.logger.VerboseMsg("TLS %s established, ALPN %q", tls.VersionName(cs.Version), cs.NegotiatedProtocol)
	return tlsConn, nil
}

func (c *Client) tlsConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName: c.cfg.Transport.Host,
		NextProtos: []string{"http/1.1"},
	}

	switch {
	case c.cfg.Insecure:
		c.logger.WarnMsg("Skipping server certificate verification")
		cfg.InsecureSkipVerify = true

	case c.cfg.CAFile != "":
		data, err := os.ReadFile(c.cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA %s: %w", c.cfg.CAFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("no certificates in %s", c.cfg.CAFile)
		}

		// the CA decides, whatever name the server was dialed by
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return customVerifier(pool, rawCerts)
		}
	}

	return cfg, nil
}

// customVerifier verifies the certificate but cares only about the root certificate, not SANs
func customVerifier(roots *x509.CertPool, rawCerts [][]byte) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("server sent no certificate")
	}

	certs := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return fmt.Errorf("x509.ParseCertificate(rawCert): %w", err)
		}
		certs = append(certs, cert)
	}

	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}

	if _, err := certs[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
	}); err != nil {
		return fmt.Errorf("cert.Verify(caCert): %w", err)
	}

	return nil
}
