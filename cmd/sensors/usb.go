package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"

	"github.com/maxpromer/sensors"
	"github.com/maxpromer/sensors/adapter"
	"github.com/maxpromer/sensors/bmp280"
	"github.com/maxpromer/sensors/cmd/sensors/console"
	"github.com/maxpromer/sensors/i2c"
)

var usbCmd = cli.Command{
	Name:  "usb",
	Usage: "inspect USB HID devices and MCP2221 bridges",
	Subcommands: cli.Commands{
		&usbLsCmd,
		&usbDetectCmd,
	},
}

var usbLsCmd = cli.Command{
	Name:  "ls",
	Usage: "list HID devices, marking MCP2221 bridges",
	Action: func(c *cli.Context) error {
		w := tabwriter.NewWriter(os.Stdout, 12, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "PATH\tVENDOR\tPRODUCT ID\tSERIAL\tPRODUCT\tBRIDGE\n")
		for _, dev := range hid.Enumerate(0, 0) {
			bridge := "-"
			if dev.VendorID == adapter.VendorID && dev.ProductID == adapter.ProductID {
				bridge = console.Green("mcp2221")
			}
			_, _ = fmt.Fprintf(w, "%s\t%#04x\t%#04x\t%s\t%s\t%s\n",
				dev.Path, dev.VendorID, dev.ProductID, dev.Serial, dev.Product, bridge)
		}
		return w.Flush()
	},
}

var usbDetectCmd = cli.Command{
	Name:  "detect",
	Usage: "probe for a BMP280 behind every connected MCP2221",
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		bridges := adapter.Enumerate()
		if len(bridges) == 0 {
			return console.Fail("usb detect", adapter.ErrDeviceNotFound)
		}
		return probeBridges(ctx, os.Stdout, bridges, openBridge)
	},
}

type bridgeOpener func(ctx context.Context, bridge adapter.Bridge) (sensors.Transport, error)

func openBridge(ctx context.Context, bridge adapter.Bridge) (sensors.Transport, error) {
	dev := adapter.NewMCP2221(adapter.WithDeviceID(bridge.ID))
	if err := dev.Init(ctx); err != nil {
		return nil, err
	}
	return i2c.NewAddressable(dev), nil
}

// probeBridges writes one row per bridge and BMP280 address.
func probeBridges(ctx context.Context, out io.Writer, bridges []adapter.Bridge, open bridgeOpener) error {
	w := tabwriter.NewWriter(out, 12, 0, 1, ' ', 0)
	_, _ = fmt.Fprintf(w, "BRIDGE\tSERIAL\tADDRESS\tCHIP ID\tSTATUS\n")
	for _, bridge := range bridges {
		transport, err := open(ctx, bridge)
		if err != nil {
			console.Debugf("bridge %d: %s", bridge.ID, err)
			_, _ = fmt.Fprintf(w, "%d\t%s\t-\t-\t%s\n", bridge.ID, bridge.Serial, console.Red("unavailable"))
			continue
		}
		for _, addr := range []byte{bmp280.AddrLow, bmp280.AddrHigh} {
			id, status := probe(ctx, transport, 0, addr)
			_, _ = fmt.Fprintf(w, "%d\t%s\t%#x\t%s\t%s\n", bridge.ID, bridge.Serial, addr, id, status)
		}
	}
	return w.Flush()
}
