package bmp280test

import (
	"context"
	"fmt"

	"github.com/maxpromer/sensors"
)

var _ sensors.Transport = &Bus{}

// Bus puts one simulated chip at each given address of a channel.
type Bus struct {
	channel int
	sims    map[byte]*Sim
}

func NewBus(channel int, addrs ...byte) *Bus {
	b := &Bus{channel: channel, sims: make(map[byte]*Sim, len(addrs))}
	for _, addr := range addrs {
		b.sims[addr] = New(channel, addr)
	}
	return b
}

// Sim returns the chip at addr, or nil.
func (b *Bus) Sim(addr byte) *Sim {
	return b.sims[addr]
}

func (b *Bus) sim(channel int, address byte) (*Sim, error) {
	if channel != b.channel {
		return nil, fmt.Errorf("bmp280test: channel %d: %w", channel, sensors.ErrNoChannel)
	}
	s, ok := b.sims[address]
	if !ok {
		return nil, fmt.Errorf("bmp280test: %#x: %w", address, sensors.ErrNoDevice)
	}
	return s, nil
}

func (b *Bus) Detect(ctx context.Context, channel int, address byte) error {
	s, err := b.sim(channel, address)
	if err != nil {
		return err
	}
	return s.Detect(ctx, channel, address)
}

func (b *Bus) Read(ctx context.Context, channel int, address byte, reg []byte, out []byte) error {
	s, err := b.sim(channel, address)
	if err != nil {
		return err
	}
	return s.Read(ctx, channel, address, reg, out)
}

func (b *Bus) Write(ctx context.Context, channel int, address byte, buf []byte) error {
	s, err := b.sim(channel, address)
	if err != nil {
		return err
	}
	return s.Write(ctx, channel, address, buf)
}
