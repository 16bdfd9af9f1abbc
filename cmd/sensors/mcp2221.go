package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/maxpromer/sensors/adapter"
	"github.com/maxpromer/sensors/cmd/sensors/console"
)

var mcp2221Flags = []cli.Flag{
	&cli.IntFlag{Name: "device", Usage: "device index when several bridges are connected", Value: -1},
}

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "MCP2221 USB to I2C bridge",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
		&mcp2221SpeedCmd,
	},
}

func newMCP2221(c *cli.Context) *adapter.MCP2221 {
	if id := c.Int("device"); id >= 0 {
		return adapter.NewMCP2221(adapter.WithDeviceID(id))
	}
	return adapter.NewMCP2221()
}

func printStatus(status *adapter.MCP2221Status) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(status); err != nil {
		return console.Fail("encoding error", err)
	}
	return nil
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Flags: mcp2221Flags,
	Action: func(c *cli.Context) error {
		status, err := newMCP2221(c).Status(commandContext(c))
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		console.Infof("i2c speed %s Hz", console.White(status.Speed()))
		return printStatus(status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current I2C transfer and free the bus",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	}, mcp2221Flags...),
	Action: func(c *cli.Context) error {
		if !c.Bool("yes") {
			answer, err := console.YesOrNo("cancel the transfer in progress?")
			if err != nil {
				return console.Fail("prompt error", err)
			}
			if answer != console.Yes {
				return nil
			}
		}
		status, err := newMCP2221(c).ReleaseBus(commandContext(c))
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return printStatus(status)
	},
}

var mcp2221SpeedCmd = cli.Command{
	Name:      "speed",
	Usage:     "set the I2C clock",
	ArgsUsage: "<hz>",
	Flags:     mcp2221Flags,
	Action: func(c *cli.Context) error {
		hz := c.Args().First()
		if hz == "" {
			return console.Exit(console.ExitFailure, "missing speed argument")
		}
		speed, err := strconv.Atoi(hz)
		if err != nil {
			return console.Fail(fmt.Sprintf("invalid speed %q", hz), err)
		}
		status, err := newMCP2221(c).SetSpeed(commandContext(c), speed)
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return printStatus(status)
	},
}
