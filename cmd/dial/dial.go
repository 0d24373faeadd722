// Package dial implements the dial command, which connects to a flexserve
// server and pipes the connection to stdin and stdout.
package dial

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"dominicbreuker/flexserve/cmd/shared"
	"dominicbreuker/flexserve/pkg/client"
	"dominicbreuker/flexserve/pkg/config"
	"dominicbreuker/flexserve/pkg/log"
	"dominicbreuker/flexserve/pkg/mux"
	"dominicbreuker/flexserve/pkg/pipeio"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// GetCommand returns the CLI command for dial mode.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "dial",
		Usage:       "Connect to a server and pipe the connection to stdio",
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

			ctx, cancel := shared.SetupSignalHandling(ctx, 5*time.Second)
			defer cancel()

			if term.IsTerminal(int(os.Stdin.Fd())) {
				logger.InfoMsg("Reading from the terminal, press Ctrl-D to close")
			}

			return run(ctx, cfg, logger, nil)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	return append(shared.GetCommonFlags(), shared.GetDialFlags()...)
}

func parseConfig(cmd *cli.Command) (*config.Client, error) {
	args := cmd.Args()
	if args.Len() != 1 {
		return nil, fmt.Errorf("must provide exactly one argument, got %d (%s)", args.Len(), strings.Join(args.Slice(), ", "))
	}

	t, err := shared.ParseTransport(args.Get(0))
	if err != nil {
		return nil, fmt.Errorf("parsing transport: %s", err)
	}
	if t.Host == "" {
		return nil, fmt.Errorf("parsing transport: %s: specify a host", args.Get(0))
	}

	return &config.Client{
		Shared: config.Shared{
			Transport: t,
			SSL:       cmd.Bool(shared.SSLFlag),
			Verbose:   cmd.Bool(shared.VerboseFlag),
		},
		Insecure: cmd.Bool(shared.InsecureFlag),
		CAFile:   cmd.String(shared.CAFlag),
		Mux:      cmd.Bool(shared.MuxFlag),
		Timeout:  shared.Milliseconds(cmd.Int(shared.TimeoutFlag)),
	}, nil
}

func run(ctx context.Context, cfg *config.Client, logger *log.Logger, deps *config.Dependencies) error {
	c := client.New(cfg, logger, deps)
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer c.Close()

	var conn io.ReadWriteCloser = c.GetConnection()
	if cfg.Mux {
		sess, err := mux.Client(conn)
		if err != nil {
			return err
		}
		defer sess.Close()

		stream, err := sess.OpenStream()
		if err != nil {
			return fmt.Errorf("opening stream: %w", err)
		}
		logger.VerboseMsg("Opened stream %d", stream.StreamID())
		conn = stream
	}

	stdio := pipeio.NewStdio(deps.Stdio())
	pipeio.Pipe(ctx, stdio, conn, func(err error) {
		logger.VerboseMsg("Pipe: %s", err)
	})

	return nil
}
