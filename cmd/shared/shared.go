// Package shared provides common CLI flag definitions and utility functions
// used across flexserve's command-line interface.
package shared

import (
	"fmt"
	"strings"
	"time"

	"dominicbreuker/flexserve/pkg/config"
	"dominicbreuker/flexserve/pkg/log"

	"github.com/urfave/cli/v3"
)

const categoryCommon = "common"

// SSLFlag is the name of the flag to enable TLS encryption.
const SSLFlag = "ssl"

// VerboseFlag is the name of the flag to enable verbose error logging.
const VerboseFlag = "verbose"

// GetBaseDescription returns the base description text for transport
// specifications used in CLI commands.
func GetBaseDescription() string {
	return strings.Join([]string{
		"Specify transport like this: tcp://127.0.0.1:123 (supports tcp|kcp)",
		"You can omit the host when serving to bind to all interfaces.",
	}, "\n")
}

// GetArgsUsage returns the arguments usage string for CLI commands.
func GetArgsUsage() string {
	return "transport"
}

// GetCommonFlags returns the CLI flags of both serve and dial.
func GetCommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:     SSLFlag,
			Aliases:  []string{"s"},
			Usage:    "Use TLS encryption",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Verbose error logging",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
	}
}

const categoryServe = "serve"

// CertFlag is the name of the flag to specify a PEM certificate file.
const CertFlag = "cert"

// KeyFlag is the name of the flag to specify a PEM private key file.
const KeyFlag = "key"

// HandshakeTimeoutFlag is the name of the flag to bound each TLS handshake, in milliseconds.
const HandshakeTimeoutFlag = "handshake-timeout"

// MaxHandshakesFlag is the name of the flag to bound concurrent TLS handshakes.
const MaxHandshakesFlag = "max-handshakes"

// ReportTimeoutsFlag is the name of the flag to log handshake timeouts as errors.
const ReportTimeoutsFlag = "report-timeouts"

// ShutdownTimeoutFlag is the name of the flag to bound connection draining on exit, in milliseconds.
const ShutdownTimeoutFlag = "shutdown-timeout"

// HandlerFlag is the name of the flag to select the protocol handler.
const HandlerFlag = "handler"

// LogFileFlag is the name of the flag to specify a transcript file.
const LogFileFlag = "log"

// MetricsFlag is the name of the flag to specify the metrics endpoint address.
const MetricsFlag = "metrics"

// ReuseAddrFlag is the name of the flag to set SO_REUSEADDR on the listening socket.
const ReuseAddrFlag = "reuse"

// GetServeFlags returns the CLI flags specific to serve mode.
func GetServeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     CertFlag,
			Usage:    "PEM certificate chain, leave empty for an ephemeral self-signed certificate",
			Category: categoryServe,
		},
		&cli.StringFlag{
			Name:     KeyFlag,
			Aliases:  []string{"k"},
			Usage:    "PEM private key matching --cert",
			Category: categoryServe,
		},
		&cli.IntFlag{
			Name:     HandshakeTimeoutFlag,
			Usage:    "TLS handshake timeout in milliseconds",
			Category: categoryServe,
			Value:    10000,
		},
		&cli.IntFlag{
			Name:     MaxHandshakesFlag,
			Usage:    "Maximum number of concurrent TLS handshakes, 0 for unbounded",
			Category: categoryServe,
			Value:    config.DefaultMaxHandshakes,
		},
		&cli.BoolFlag{
			Name:     ReportTimeoutsFlag,
			Usage:    "Log TLS handshake timeouts as errors",
			Category: categoryServe,
		},
		&cli.IntFlag{
			Name:     ShutdownTimeoutFlag,
			Usage:    "Time in milliseconds to let live connections finish on exit",
			Category: categoryServe,
			Value:    5000,
		},
		&cli.StringFlag{
			Name:     HandlerFlag,
			Usage:    "Protocol handler: echo|http|mux",
			Category: categoryServe,
			Value:    config.HandlerEcho,
		},
		&cli.StringFlag{
			Name:     LogFileFlag,
			Aliases:  []string{"l"},
			Usage:    "Transcript file recording all connection traffic",
			Category: categoryServe,
		},
		&cli.StringFlag{
			Name:     MetricsFlag,
			Aliases:  []string{"m"},
			Usage:    "Serve Prometheus metrics on this address, like 127.0.0.1:9100",
			Category: categoryServe,
		},
		&cli.BoolFlag{
			Name:     ReuseAddrFlag,
			Usage:    "Set SO_REUSEADDR on the listening socket",
			Category: categoryServe,
		},
	}
}

const categoryDial = "dial"

// InsecureFlag is the name of the flag to skip server certificate verification.
const InsecureFlag = "insecure"

// CAFlag is the name of the flag to specify the CA that signed the server certificate.
const CAFlag = "ca"

// MuxFlag is the name of the flag to talk to a mux handler.
const MuxFlag = "mux"

// TimeoutFlag is the name of the flag to specify operation timeout in milliseconds.
const TimeoutFlag = "timeout"

// GetDialFlags returns the CLI flags specific to dial mode.
func GetDialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:     InsecureFlag,
			Aliases:  []string{"i"},
			Usage:    "Do not verify the server certificate",
			Category: categoryDial,
		},
		&cli.StringFlag{
			Name:     CAFlag,
			Usage:    "PEM CA certificate the server certificate must be signed by",
			Category: categoryDial,
		},
		&cli.BoolFlag{
			Name:     MuxFlag,
			Usage:    "Open a yamux stream, for servers running the mux handler",
			Category: categoryDial,
		},
		&cli.IntFlag{
			Name:     TimeoutFlag,
			Aliases:  []string{"t"},
			Usage:    "Connect and TLS handshake timeout in milliseconds",
			Category: categoryDial,
			Value:    10000,
		},
	}
}

// Milliseconds converts an integer flag value to a duration.
func Milliseconds(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Validate logs every validation error of cfgs and returns an error if
// there were any.
func Validate(logger *log.Logger, cfgs ...config.ValidatableConfig) error {
	errors := config.Validate(cfgs...)
	if len(errors) == 0 {
		return nil
	}

	logger.ErrorMsg("Argument validation errors:")
	for _, err := range errors {
		logger.ErrorMsg(" - %s", err)
	}
	return fmt.Errorf("exiting")
}
