package tlsconfig

import (
	"errors"
	"fmt"
)

var (
	// ErrNoValidPEM is returned when no certificate or key PEM block could be decoded.
	ErrNoValidPEM = errors.New("no valid pem data")

	// ErrNoValidKey is returned when the key data holds PEM blocks but none is
	// a PKCS#1, PKCS#8 or SEC1 private key.
	ErrNoValidKey = errors.New("no valid private keys in pem data")

	// ErrConfig is returned when crypto/tls rejects the certificate and key.
	ErrConfig = errors.New("failed to create server config")

	// ErrFileOpen is returned when a PEM file cannot be read.
	ErrFileOpen = errors.New("failed to open pem file")
)

// Error is a classified failure to build a server security context. All of
// them are fatal at startup.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
