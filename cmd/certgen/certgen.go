// Package certgen implements the certgen command, which writes a CA and
// a server certificate it signs for use with serve --cert/--key and
// dial --ca.
package certgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dominicbreuker/flexserve/pkg/crypto"
	"dominicbreuker/flexserve/pkg/log"

	"github.com/urfave/cli/v3"
)

const (
	outFlag  = "out"
	hostFlag = "host"
	seedFlag = "seed"
)

// Names of the files written to the output directory.
const (
	CAFile   = "ca.pem"
	CertFile = "cert.pem"
	KeyFile  = "key.pem"
)

// GetCommand returns the CLI command for certificate generation.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "certgen",
		Usage: "Generate a CA and a server certificate",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := log.NewLogger(false)

			dir := cmd.String(outFlag)
			if err := write(dir, cmd.String(seedFlag), cmd.StringSlice(hostFlag)); err != nil {
				return err
			}

			logger.InfoMsg("Wrote %s, %s and %s to %s", CAFile, CertFile, KeyFile, dir)
			return nil
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    outFlag,
				Aliases: []string{"o"},
				Usage:   "Output directory",
				Value:   ".",
			},
			&cli.StringSliceFlag{
				Name:  hostFlag,
				Usage: "Host name or IP the certificate is valid for, repeatable (default localhost, 127.0.0.1, ::1)",
			},
			&cli.StringFlag{
				Name:  seedFlag,
				Usage: "Seed for reproducible CA names",
			},
		},
	}
}

func write(dir, seed string, hosts []string) error {
	b, err := crypto.GenerateCertificates(seed, hosts...)
	if err != nil {
		return fmt.Errorf("crypto.GenerateCertificates(): %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	files := []struct {
		name string
		data []byte
		perm os.FileMode
	}{
		{CAFile, b.CACertPEM, 0644},
		{CertFile, b.CertPEM, 0644},
		{KeyFile, b.KeyPEM, 0600},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, f.data, f.perm); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	return nil
}
