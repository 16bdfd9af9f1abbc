package i2c

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gobotI2C "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/maxpromer/sensors"
)

var _ sensors.Transport = &Gobot{}

type connKey struct {
	bus  int
	addr byte
}

// Gobot is a transport over a gobot platform adaptor (nanopi, raspi, ...).
// Channels map to the adaptor's bus numbers in the order given.
type Gobot struct {
	mx        sync.Mutex
	connector gobotI2C.Connector
	buses     []int
	conns     map[connKey]gobotI2C.Connection
}

// NewGobot maps channel i to buses[i]. Without buses the only channel is
// the adaptor's default bus.
func NewGobot(connector gobotI2C.Connector, buses ...int) *Gobot {
	if len(buses) == 0 {
		buses = []int{connector.DefaultI2cBus()}
	}
	return &Gobot{
		connector: connector,
		buses:     buses,
		conns:     make(map[connKey]gobotI2C.Connection),
	}
}

func (g *Gobot) conn(channel int, address byte) (gobotI2C.Connection, error) {
	if channel < 0 || channel >= len(g.buses) {
		return nil, fmt.Errorf("gobot: channel %d: %w", channel, sensors.ErrNoChannel)
	}
	key := connKey{bus: g.buses[channel], addr: address}
	if c, ok := g.conns[key]; ok {
		return c, nil
	}
	c, err := g.connector.GetI2cConnection(int(address), key.bus)
	if err != nil {
		return nil, fmt.Errorf("gobot: connect %#x on bus %d: %w", address, key.bus, err)
	}
	g.conns[key] = c
	return c, nil
}

func (g *Gobot) Detect(ctx context.Context, channel int, address byte) error {
	g.mx.Lock()
	defer g.mx.Unlock()
	c, err := g.conn(channel, address)
	if err != nil {
		return err
	}
	probe := make([]byte, 1)
	if _, err := c.Read(probe); err != nil {
		return fmt.Errorf("gobot: %#x on channel %d: %w: %w", address, channel, sensors.ErrNoDevice, err)
	}
	return nil
}

// Read writes reg and reads out in two transfers.
func (g *Gobot) Read(ctx context.Context, channel int, address byte, reg []byte, out []byte) error {
	g.mx.Lock()
	defer g.mx.Unlock()
	c, err := g.conn(channel, address)
	if err != nil {
		return err
	}
	if len(reg) > 0 {
		if _, err := c.Write(reg); err != nil {
			return fmt.Errorf("gobot: write register %#x: %w", reg, err)
		}
	}
	n, err := c.Read(out)
	if err != nil {
		return fmt.Errorf("gobot: read from %#x: %w", address, err)
	}
	if n != len(out) {
		return fmt.Errorf("gobot: short read from %#x: %d of %d bytes", address, n, len(out))
	}
	return nil
}

func (g *Gobot) Write(ctx context.Context, channel int, address byte, buf []byte) error {
	g.mx.Lock()
	defer g.mx.Unlock()
	c, err := g.conn(channel, address)
	if err != nil {
		return err
	}
	if _, err := c.Write(buf); err != nil {
		return fmt.Errorf("gobot: write to %#x: %w", address, err)
	}
	return nil
}

// Close closes the connections opened so far. The adaptor itself is
// finalized by its owner.
func (g *Gobot) Close() error {
	g.mx.Lock()
	defer g.mx.Unlock()
	var errs []error
	for key, c := range g.conns {
		errs = append(errs, c.Close())
		delete(g.conns, key)
	}
	return errors.Join(errs...)
}
