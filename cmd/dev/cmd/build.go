package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

// boards maps the supported single board computers to their GOARCH.
var boards = map[string]string{
	"nanopi": "arm",
	"raspi":  "arm64",
}

func BuildCmd() *cobra.Command {
	var (
		version string
		board   string
		goos    string
		goarch  string
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the sensors cli, natively or for a board",
		RunE: func(cmd *cobra.Command, args []string) error {
			if board == "" {
				return build.GoBuild("dist/sensors", "./cmd/sensors", build.GoBuildOpts{
					Version:       version,
					InjectVersion: true,
					ConfigPackage: "github.com/maxpromer/sensors/config",
					EnableCgo:     true,
					Arch:          goarch,
					OS:            goos,
				})
			}
			arch, ok := boards[board]
			if !ok {
				return fmt.Errorf("unknown board %q", board)
			}
			slog.Info("cross compiling in docker", "board", board, "arch", arch)
			// cgo is required by the hid adapter, hence the docker toolchain
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-linux-%s", arch), []string{"build", "--version", version, "--os", "linux", "--arch", arch}, build.DockerBuildOpts{
				NoCache: noCache,
				Image:   "gophertribe/gobuild:1.25-bookworm",
			})
		},
	}
	cmd.Flags().StringVar(&version, "version", "latest", "version of the cli")
	cmd.Flags().StringVar(&board, "board", "", "target board (nanopi, raspi)")
	cmd.Flags().StringVar(&goos, "os", runtime.GOOS, "os to build for")
	cmd.Flags().StringVar(&goarch, "arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not use cache when building in docker")
	return cmd
}
