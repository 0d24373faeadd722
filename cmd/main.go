package main

import (
	"context"
	"os"

	"dominicbreuker/flexserve/cmd/certgen"
	"dominicbreuker/flexserve/cmd/dial"
	"dominicbreuker/flexserve/cmd/serve"
	"dominicbreuker/flexserve/cmd/version"
	"dominicbreuker/flexserve/pkg/log"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.NewLogger(false).ErrorMsg("Error: %s", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "flexserve",
		Usage: "server accepting plain and TLS connections side by side",
		Commands: []*cli.Command{
			serve.GetCommand(),
			dial.GetCommand(),
			certgen.GetCommand(),
			version.GetCommand(),
		},
	}
}
