// Package version prints the build version of flexserve.
package version

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/urfave/cli/v3"
)

// Version is set at build time with -ldflags "-X dominicbreuker/flexserve/cmd/version.Version=v1.2.3".
var Version = "unknown"

// GetCommand returns the CLI command printing the version.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Program version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			write(os.Stdout, Version, readBuildInfo())
			return nil
		},
		Flags: []cli.Flag{},
	}
}

func readBuildInfo() *debug.BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return info
}

// write prints version, falling back to the module version go install
// records, and the VCS revision when the binary was built from a checkout.
func write(w io.Writer, version string, info *debug.BuildInfo) {
	if version == "unknown" && info != nil && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	fmt.Fprintf(w, "flexserve %s (%s)\n", version, runtime.Version())

	if info == nil {
		return
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			fmt.Fprintf(w, "revision %s\n", s.Value)
		}
	}
}
