package sensors

import (
	"context"
	"errors"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// ErrNoDevice is returned by Transport.Detect when nothing acknowledges the address.
var ErrNoDevice = errors.New("no device at address")

// ErrNoChannel is returned when a transport has no bus for the requested channel.
var ErrNoChannel = errors.New("no such bus channel")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus is a single physical bus addressed by 7-bit device address.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// Transport is the bus capability handed to drivers on every Process call.
// A transport may serve several buses, selected by channel. Serializing
// access to a shared physical bus is the transport's job.
type Transport interface {
	// Detect probes address on channel and returns nil if a device acknowledges it.
	Detect(ctx context.Context, channel int, address byte) error
	// Read writes reg and then reads len(out) bytes into out.
	Read(ctx context.Context, channel int, address byte, reg []byte, out []byte) error
	// Write sends buf to the device.
	Write(ctx context.Context, channel int, address byte, buf []byte) error
}

// Driver is implemented by every polled sensor driver. The host calls Init
// once and then Process repeatedly; Process must never block waiting for
// the device.
type Driver interface {
	Name() string
	Init()
	Process(ctx context.Context, transport Transport)
	Properties() PropertySet
}
