package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/maxpromer/sensors"
	"github.com/maxpromer/sensors/bmp280"
	"github.com/maxpromer/sensors/cmd/sensors/console"
	"github.com/maxpromer/sensors/config"
	"github.com/maxpromer/sensors/environment"
	"github.com/maxpromer/sensors/scheduler"
	"github.com/maxpromer/sensors/sink"
	"github.com/maxpromer/sensors/snsctx"
)

var configFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the YAML configuration",
		EnvVars: []string{"SENSORS_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "adapter",
		Aliases: []string{"a"},
		Usage:   fmt.Sprintf("bus adapter (%v)", config.Adapters),
	},
	&cli.StringSliceFlag{
		Name:    "bus",
		Aliases: []string{"b"},
		Usage:   "bus per channel: periph bus name or gobot bus number",
	},
	&cli.UintFlag{
		Name:  "address",
		Usage: "sensor address on channel 0 (0x76 or 0x77)",
	},
}

var bmp280Cmd = cli.Command{
	Name:  "bmp280",
	Usage: "BMP280 temperature and pressure sensors",
	Subcommands: cli.Commands{
		&bmp280ReadCmd,
		&bmp280WatchCmd,
		&bmp280DetectCmd,
	},
}

var bmp280ReadCmd = cli.Command{
	Name:  "read",
	Usage: "take one reading from every configured sensor",
	Flags: append([]cli.Flag{
		&cli.DurationFlag{Name: "timeout", Value: 2 * time.Second},
	}, configFlags...),
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Fail("configuration error", err)
		}
		transport, release, err := openTransport(ctx, cfg)
		if err != nil {
			return console.Fail("transport error", err)
		}
		defer func() { _ = release() }()

		sched, drivers, err := newScheduler(ctx, cfg, transport)
		if err != nil {
			return console.Fail("scheduler error", err)
		}
		ctx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
		defer cancel()
		waitForReadings(ctx, sched, drivers, cfg.Period)

		failed := 0
		for _, d := range drivers {
			console.Print(formatReading(d))
			if !environment.HasReading(d) {
				failed++
				if d.LastError() != nil {
					console.Warnf("%s: %s", d.Name(), d.LastError())
				}
			}
		}
		if failed > 0 {
			return console.Exit(console.ExitNoReading, "%d of %d sensors without a reading", failed, len(drivers))
		}
		return nil
	},
}

var bmp280WatchCmd = cli.Command{
	Name:  "watch",
	Usage: "poll sensors until interrupted, reporting to the log and InfluxDB",
	Flags: append([]cli.Flag{
		&cli.DurationFlag{Name: "flush", Usage: "reporting interval"},
	}, configFlags...),
	Action: func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(commandContext(c), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Fail("configuration error", err)
		}
		if c.IsSet("flush") {
			cfg.FlushInterval = c.Duration("flush")
		}
		transport, release, err := openTransport(ctx, cfg)
		if err != nil {
			return console.Fail("transport error", err)
		}
		defer func() { _ = release() }()

		opts := []scheduler.ConfigOption{scheduler.WithSink(sink.NewLog(snsctx.Logger(ctx)))}
		if cfg.Influx != nil {
			influx := newInfluxSink(cfg.Influx)
			defer influx.Close()
			opts = append(opts, scheduler.WithSink(influx))
		}
		sched, _, err := newScheduler(ctx, cfg, transport, opts...)
		if err != nil {
			return console.Fail("scheduler error", err)
		}
		console.Infof("watching %d sensors, %s to stop", len(sched.Drivers()), console.Bold("ctrl+c"))
		err = sched.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

var bmp280DetectCmd = cli.Command{
	Name:  "detect",
	Usage: "probe both BMP280 addresses on every channel",
	Flags: configFlags,
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Fail("configuration error", err)
		}
		transport, release, err := openTransport(ctx, cfg)
		if err != nil {
			return console.Fail("transport error", err)
		}
		defer func() { _ = release() }()

		w := tabwriter.NewWriter(os.Stdout, 12, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "CHANNEL\tADDRESS\tCHIP ID\tSTATUS\n")
		for channel := 0; channel < cfg.Channels(); channel++ {
			for _, addr := range []byte{bmp280.AddrLow, bmp280.AddrHigh} {
				id, status := probe(ctx, transport, channel, addr)
				_, _ = fmt.Fprintf(w, "%d\t%#x\t%s\t%s\n", channel, addr, id, status)
			}
		}
		_ = w.Flush()
		return nil
	},
}

func probe(ctx context.Context, transport sensors.Transport, channel int, addr byte) (string, string) {
	if err := transport.Detect(ctx, channel, addr); err != nil {
		console.Debugf("%d:%#x: %s", channel, addr, err)
		return "-", "absent"
	}
	id := make([]byte, 1)
	if err := transport.Read(ctx, channel, addr, []byte{bmp280.RegChipID}, id); err != nil {
		return "-", console.Red("read error")
	}
	switch id[0] {
	case bmp280.ChipID:
		return fmt.Sprintf("%#x", id[0]), console.Green("bmp280")
	case bmp280.ChipIDSample1, bmp280.ChipIDSample2:
		return fmt.Sprintf("%#x", id[0]), console.Yellow("bmp280 sample")
	}
	return fmt.Sprintf("%#x", id[0]), console.Yellow("unknown device")
}

func commandContext(c *cli.Context) context.Context {
	ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
	return snsctx.WithLogger(ctx, slog.Default().With("cmd", c.Command.FullName()))
}

// loadConfig reads the configuration file if given and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}
	if c.IsSet("adapter") {
		cfg.Adapter = c.String("adapter")
	}
	if c.IsSet("bus") {
		cfg.Buses = c.StringSlice("bus")
	}
	if c.IsSet("address") {
		addr, err := config.Address(c.Uint("address"))
		if err != nil {
			return nil, err
		}
		cfg.Sensors = []config.Sensor{{Channel: 0, Address: addr}}
	}
	return cfg, cfg.Validate()
}

func newScheduler(ctx context.Context, cfg *config.Config, transport sensors.Transport, opts ...scheduler.ConfigOption) (*scheduler.Scheduler, []*environment.BMP280, error) {
	logger := snsctx.Logger(ctx)
	opts = append(opts,
		scheduler.WithPeriod(cfg.Period),
		scheduler.WithFlushInterval(cfg.FlushInterval),
		scheduler.WithLogger(logger))
	sched := scheduler.New(opts...)
	drivers := make([]*environment.BMP280, 0, len(cfg.Sensors))
	for _, s := range cfg.Sensors {
		d := environment.NewBMP280(s.Channel, s.Address, environment.WithLogger(logger))
		if err := sched.Register(d, transport); err != nil {
			return nil, nil, err
		}
		drivers = append(drivers, d)
	}
	return sched, drivers, nil
}

func newInfluxSink(cfg *config.Influx) *sink.Influx {
	opts := []sink.InfluxConfigOption{}
	if cfg.Measurement != "" {
		opts = append(opts, sink.WithMeasurement(cfg.Measurement))
	}
	for k, v := range cfg.Tags {
		opts = append(opts, sink.WithTag(k, v))
	}
	return sink.NewInflux(cfg.URL, cfg.Token, cfg.Org, cfg.Bucket, opts...)
}

// waitForReadings steps the scheduler until every driver has a reading or
// ctx is done. Failing drivers keep retrying meanwhile.
func waitForReadings(ctx context.Context, sched *scheduler.Scheduler, drivers []*environment.BMP280, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		sched.Step(ctx)
		done := true
		for _, d := range drivers {
			done = done && environment.HasReading(d)
		}
		if done {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
