package i2c

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/maxpromer/sensors"
)

var _ sensors.Transport = &Bus{}

// Bus is a transport over periph.io buses. The channel is the position of
// the bus in the list given to NewBus or OpenBus.
type Bus struct {
	mx    sync.Mutex
	buses []i2c.Bus
}

func NewBus(buses ...i2c.Bus) *Bus {
	return &Bus{buses: buses}
}

// OpenBus initializes the host drivers and opens the named buses
// ("" opens the first available one).
func OpenBus(names ...string) (*Bus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	if len(names) == 0 {
		names = []string{""}
	}
	b := &Bus{}
	for _, name := range names {
		bus, err := i2creg.Open(name)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("could not open i2c bus %q: %w", name, err)
		}
		b.buses = append(b.buses, bus)
	}
	return b, nil
}

func (b *Bus) bus(channel int) (i2c.Bus, error) {
	if channel < 0 || channel >= len(b.buses) {
		return nil, fmt.Errorf("i2c: channel %d: %w", channel, sensors.ErrNoChannel)
	}
	return b.buses[channel], nil
}

// Detect reads a single byte; a device that does not acknowledge its
// address fails the transaction.
func (b *Bus) Detect(ctx context.Context, channel int, address byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	bus, err := b.bus(channel)
	if err != nil {
		return err
	}
	probe := make([]byte, 1)
	if err := bus.Tx(uint16(address), nil, probe); err != nil {
		return fmt.Errorf("i2c: %#x on channel %d: %w: %w", address, channel, sensors.ErrNoDevice, err)
	}
	return nil
}

func (b *Bus) Read(ctx context.Context, channel int, address byte, reg []byte, out []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	bus, err := b.bus(channel)
	if err != nil {
		return err
	}
	if err := bus.Tx(uint16(address), reg, out); err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *Bus) Write(ctx context.Context, channel int, address byte, buf []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	bus, err := b.bus(channel)
	if err != nil {
		return err
	}
	if err := bus.Tx(uint16(address), buf, nil); err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

// Close closes the buses that can be closed.
func (b *Bus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var errs []error
	for _, bus := range b.buses {
		if closer, ok := bus.(i2c.BusCloser); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}
