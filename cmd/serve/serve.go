// Package serve implements the serve command, which accepts plain or
// TLS connections and hands them to a protocol handler.
package serve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dominicbreuker/flexserve/cmd/shared"
	"dominicbreuker/flexserve/pkg/config"
	"dominicbreuker/flexserve/pkg/log"
	"dominicbreuker/flexserve/pkg/server"

	"github.com/urfave/cli/v3"
)

// shutdownSlack is added to the drain timeout before a pending signal
// forces the process to exit.
const shutdownSlack = 2 * time.Second

// GetCommand returns the CLI command for serve mode.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Accept connections and serve them",
		Description: shared.GetBaseDescription(),
		ArgsUsage:   shared.GetArgsUsage(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := parseConfig(cmd)
			if err != nil {
				return err
			}

			logger := log.NewLogger(cfg.Verbose)
			if err := shared.Validate(logger, cfg); err != nil {
				return err
			}

			ctx, cancel := shared.SetupSignalHandling(ctx, cfg.ShutdownTimeout+shutdownSlack)
			defer cancel()

			return run(ctx, cfg, logger, nil)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	return append(shared.GetCommonFlags(), shared.GetServeFlags()...)
}

func parseConfig(cmd *cli.Command) (*config.Server, error) {
	args := cmd.Args()
	if args.Len() != 1 {
		return nil, fmt.Errorf("must provide exactly one argument, got %d (%s)", args.Len(), strings.Join(args.Slice(), ", "))
	}

	t, err := shared.ParseTransport(args.Get(0))
	if err != nil {
		return nil, fmt.Errorf("parsing transport: %s", err)
	}

	return &config.Server{
		Shared: config.Shared{
			Transport: t,
			SSL:       cmd.Bool(shared.SSLFlag),
			Verbose:   cmd.Bool(shared.VerboseFlag),
		},
		CertFile:         cmd.String(shared.CertFlag),
		KeyFile:          cmd.String(shared.KeyFlag),
		HandshakeTimeout: shared.Milliseconds(cmd.Int(shared.HandshakeTimeoutFlag)),
		MaxHandshakes:    int(cmd.Int(shared.MaxHandshakesFlag)),
		ReportTimeouts:   cmd.Bool(shared.ReportTimeoutsFlag),
		ShutdownTimeout:  shared.Milliseconds(cmd.Int(shared.ShutdownTimeoutFlag)),
		Handler:          cmd.String(shared.HandlerFlag),
		LogFile:          cmd.String(shared.LogFileFlag),
		MetricsAddr:      cmd.String(shared.MetricsFlag),
		ReuseAddr:        cmd.Bool(shared.ReuseAddrFlag),
	}, nil
}

func run(ctx context.Context, cfg *config.Server, logger *log.Logger, deps *config.Dependencies) error {
	s, err := server.New(ctx, cfg, logger, deps)
	if err != nil {
		return fmt.Errorf("server.New(): %w", err)
	}

	if err := s.Serve(ctx); err != nil {
		return err
	}

	logger.InfoMsg("Server stopped")
	return nil
}
