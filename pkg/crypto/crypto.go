// Package crypto generates throwaway certificate material: a private CA and
// a server certificate it signs. It backs self-signed serving and tests.
package crypto

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// DefaultHosts are the names a generated server certificate is valid for
// when the caller gives none.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// Bundle is PEM encoded CA and server certificate material.
type Bundle struct {
	CACertPEM []byte
	CertPEM   []byte
	KeyPEM    []byte

	// Pool contains only the CA, for clients that want to verify the server.
	Pool *x509.CertPool
}

// GenerateCertificates creates a CA and a server certificate for hosts.
// A non-empty seed makes the CA subject names reproducible.
func GenerateCertificates(seed string, hosts ...string) (*Bundle, error) {
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}

	caKey, ca, err := generateCA(getRandReader(seed))
	if err != nil {
		return nil, fmt.Errorf("generateCA(): %w", err)
	}

	key, der, err := generateLeaf(caKey, ca, hosts)
	if err != nil {
		return nil, fmt.Errorf("generateLeaf(%v): %w", hosts, err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("x509.MarshalPKCS8PrivateKey(): %w", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(ca)

	return &Bundle{
		CACertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ca.Raw}),
		CertPEM:   pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:    pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
		Pool:      pool,
	}, nil
}
