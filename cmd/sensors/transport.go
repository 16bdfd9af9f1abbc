package main

import (
	"context"
	"errors"
	"fmt"

	gobotI2C "gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/maxpromer/sensors"
	"github.com/maxpromer/sensors/adapter"
	"github.com/maxpromer/sensors/bmp280/bmp280test"
	"github.com/maxpromer/sensors/config"
	"github.com/maxpromer/sensors/i2c"
	"github.com/maxpromer/sensors/snsctx"
)

// gobotPlatform is a gobot board adaptor exposing its I2C buses.
type gobotPlatform interface {
	gobotI2C.Connector
	Connect() error
	Finalize() error
}

// openTransport returns the transport selected by cfg and a function
// releasing it.
func openTransport(ctx context.Context, cfg *config.Config) (sensors.Transport, func() error, error) {
	logger := snsctx.Logger(ctx).With("adapter", cfg.Adapter)
	switch cfg.Adapter {
	case config.AdapterPeriph:
		bus, err := i2c.OpenBus(cfg.Buses...)
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	case config.AdapterNanoPi:
		a := nanopi.NewNeoAdaptor()
		return openGobot(a, cfg)
	case config.AdapterRaspi:
		a := raspi.NewAdaptor()
		return openGobot(a, cfg)
	case config.AdapterMCP2221:
		var opts []adapter.MCP2221ConfigOption
		if cfg.MCP2221.DeviceID != nil {
			opts = append(opts, adapter.WithDeviceID(*cfg.MCP2221.DeviceID))
		}
		bridge := adapter.NewMCP2221(opts...)
		if err := bridge.Init(ctx); err != nil {
			return nil, nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		if cfg.MCP2221.Speed > 0 {
			if _, err := bridge.SetSpeed(ctx, cfg.MCP2221.Speed); err != nil {
				return nil, nil, err
			}
			logger.Debug("i2c speed set", "hz", cfg.MCP2221.Speed)
		}
		return i2c.NewAddressable(bridge), func() error { return nil }, nil
	case config.AdapterSim:
		addrs := make([]byte, 0, len(cfg.Sensors))
		for _, s := range cfg.Sensors {
			addrs = append(addrs, s.Address)
		}
		logger.Warn("using simulated sensors", "count", len(addrs))
		return bmp280test.NewBus(0, addrs...), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown adapter %q", config.ErrInvalid, cfg.Adapter)
}

func openGobot(a gobotPlatform, cfg *config.Config) (sensors.Transport, func() error, error) {
	buses, err := cfg.BusNumbers()
	if err != nil {
		return nil, nil, err
	}
	if err := a.Connect(); err != nil {
		return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
	}
	transport := i2c.NewGobot(a, buses...)
	return transport, func() error {
		return errors.Join(transport.Close(), a.Finalize())
	}, nil
}
