package i2c

import (
	"context"
	"fmt"
	"sync"

	"github.com/maxpromer/sensors"
)

var _ sensors.Transport = &Addressable{}

// Addressable turns single-bus adapters such as the MCP2221 into a
// transport. Channel i is buses[i].
type Addressable struct {
	mx    sync.Mutex
	buses []sensors.I2CBus
}

func NewAddressable(buses ...sensors.I2CBus) *Addressable {
	return &Addressable{buses: buses}
}

func (a *Addressable) bus(channel int) (sensors.I2CBus, error) {
	if channel < 0 || channel >= len(a.buses) {
		return nil, fmt.Errorf("i2c: channel %d: %w", channel, sensors.ErrNoChannel)
	}
	return a.buses[channel], nil
}

// Detect reads one byte from address. A failed probe leaves some adapters
// holding the bus, so it is released before returning.
func (a *Addressable) Detect(ctx context.Context, channel int, address byte) error {
	a.mx.Lock()
	defer a.mx.Unlock()
	bus, err := a.bus(channel)
	if err != nil {
		return err
	}
	probe := make([]byte, 1)
	if err := bus.ReadFromAddr(ctx, address, probe); err != nil {
		_ = bus.Release(ctx)
		return fmt.Errorf("i2c: %#x on channel %d: %w: %w", address, channel, sensors.ErrNoDevice, err)
	}
	return nil
}

func (a *Addressable) Read(ctx context.Context, channel int, address byte, reg []byte, out []byte) error {
	a.mx.Lock()
	defer a.mx.Unlock()
	bus, err := a.bus(channel)
	if err != nil {
		return err
	}
	if len(reg) > 0 {
		if err := bus.WriteToAddr(ctx, address, reg); err != nil {
			return fmt.Errorf("i2c: select register %#x: %w", reg, err)
		}
	}
	if err := bus.ReadFromAddr(ctx, address, out); err != nil {
		return fmt.Errorf("i2c: read from %#x: %w", address, err)
	}
	return nil
}

func (a *Addressable) Write(ctx context.Context, channel int, address byte, buf []byte) error {
	a.mx.Lock()
	defer a.mx.Unlock()
	bus, err := a.bus(channel)
	if err != nil {
		return err
	}
	if err := bus.WriteToAddr(ctx, address, buf); err != nil {
		return fmt.Errorf("i2c: write to %#x: %w", address, err)
	}
	return nil
}
