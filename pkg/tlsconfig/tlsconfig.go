// Package tlsconfig turns PEM certificate and key material into a server
// *tls.Config. The result is immutable after construction and is shared
// read-only by all handshakes.
package tlsconfig

import (
	"crypto/tls"
	"encoding/pem"
	"fmt"
	"os"

	"dominicbreuker/flexserve/pkg/crypto"
)

// DefaultALPN is advertised to clients unless overridden.
var DefaultALPN = []string{"http/1.1", "http/1.0"}

// Option adjusts the config before it is returned.
type Option func(*tls.Config)

// WithALPN replaces the advertised application protocols.
func WithALPN(protos ...string) Option {
	return func(c *tls.Config) {
		c.NextProtos = protos
	}
}

// WithMinVersion sets the minimum accepted TLS version.
func WithMinVersion(v uint16) Option {
	return func(c *tls.Config) {
		c.MinVersion = v
	}
}

// FromPEM builds a server config from PEM encoded certificate chain and key.
func FromPEM(certPEM, keyPEM []byte, opts ...Option) (*tls.Config, error) {
	if err := checkCerts(certPEM); err != nil {
		return nil, err
	}
	if err := checkKey(keyPEM); err != nil {
		return nil, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, &Error{Kind: ErrConfig, Err: err}
	}

	return newConfig(cert, opts), nil
}

// FromFiles builds a server config from PEM files on disk.
func FromFiles(certPath, keyPath string, opts ...Option) (*tls.Config, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, &Error{Kind: ErrFileOpen, Path: certPath, Err: err}
	}

	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, &Error{Kind: ErrFileOpen, Path: keyPath, Err: err}
	}

	return FromPEM(certPEM, keyPEM, opts...)
}

// SelfSigned builds a server config around a freshly generated certificate
// for hosts. The returned bundle carries the CA clients need to verify it.
func SelfSigned(seed string, hosts []string, opts ...Option) (*tls.Config, *crypto.Bundle, error) {
	b, err := crypto.GenerateCertificates(seed, hosts...)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto.GenerateCertificates(): %w", err)
	}

	cfg, err := FromPEM(b.CertPEM, b.KeyPEM, opts...)
	if err != nil {
		return nil, nil, err
	}

	return cfg, b, nil
}

func newConfig(cert tls.Certificate, opts []Option) *tls.Config {
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   append([]string(nil), DefaultALPN...),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func checkCerts(data []byte) error {
	for rest := data; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return &Error{Kind: ErrNoValidPEM, Err: fmt.Errorf("no CERTIFICATE block")}
		}
		if block.Type == "CERTIFICATE" {
			return nil
		}
	}
}

// checkKey accepts key data holding at least one PKCS#1, PKCS#8 or SEC1
// private key block. Other blocks, like EC PARAMETERS, are skipped.
func checkKey(data []byte) error {
	var seen []string
	for rest := data; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}

		switch block.Type {
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			return nil
		}
		seen = append(seen, block.Type)
	}

	if len(seen) == 0 {
		return &Error{Kind: ErrNoValidPEM}
	}
	return &Error{Kind: ErrNoValidKey, Err: fmt.Errorf("unexpected blocks %q", seen)}
}
