package crypto

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"testing"
)

func TestGenerateCertificates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		seed    string
		hosts   []string
		wantDNS []string
		wantIPs int
	}{
		{"defaults", "", nil, []string{"localhost"}, 2},
		{"seeded", "test-seed-123", nil, []string{"localhost"}, 2},
		{"custom hosts", "", []string{"example.com", "10.0.0.1"}, []string{"example.com"}, 1},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b, err := GenerateCertificates(tc.seed, tc.hosts...)
			if err != nil {
				t.Fatalf("GenerateCertificates() error = %v", err)
			}

			if _, err := tls.X509KeyPair(b.CertPEM, b.KeyPEM); err != nil {
				t.Fatalf("tls.X509KeyPair() error = %v", err)
			}

			block, _ := pem.Decode(b.CertPEM)
			if block == nil {
				t.Fatal("CertPEM is not PEM")
			}
			leaf, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				t.Fatalf("ParseCertificate() error = %v", err)
			}

			if len(leaf.DNSNames) != len(tc.wantDNS) || leaf.DNSNames[0] != tc.wantDNS[0] {
				t.Errorf("DNSNames = %v; want %v", leaf.DNSNames, tc.wantDNS)
			}
			if len(leaf.IPAddresses) != tc.wantIPs {
				t.Errorf("len(IPAddresses) = %d; want %d", len(leaf.IPAddresses), tc.wantIPs)
			}

			opts := x509.VerifyOptions{Roots: b.Pool, DNSName: tc.wantDNS[0]}
			if _, err := leaf.Verify(opts); err != nil {
				t.Errorf("leaf does not verify against generated CA: %v", err)
			}
		})
	}
}

func TestGenerateCertificates_SeededSubject(t *testing.T) {
	t.Parallel()

	subject := func(seed string) string {
		b, err := GenerateCertificates(seed)
		if err != nil {
			t.Fatalf("GenerateCertificates(%q) error = %v", seed, err)
		}
		block, _ := pem.Decode(b.CACertPEM)
		ca, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			t.Fatalf("ParseCertificate() error = %v", err)
		}
		return ca.Subject.String()
	}

	if a, b := subject("same"), subject("same"); a != b {
		t.Errorf("same seed produced subjects %q and %q", a, b)
	}
	if a, b := subject("one"), subject("two"); a == b {
		t.Errorf("different seeds produced the same subject %q", a)
	}
}
