package i2c

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/maxpromer/sensors"
	"github.com/maxpromer/sensors/environment"
	"github.com/maxpromer/sensors/tick"
)

func TestBus_Transfers(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x76, R: []byte{0x00}},
			{Addr: 0x76, W: []byte{0xD0}, R: []byte{0x58}},
			{Addr: 0x76, W: []byte{0xF4, 0x63, 0xF5, 0x24}},
		},
		DontPanic: true,
	}
	bus := NewBus(playback)
	ctx := context.Background()

	require.NoError(t, bus.Detect(ctx, 0, 0x76))
	id := make([]byte, 1)
	require.NoError(t, bus.Read(ctx, 0, 0x76, []byte{0xD0}, id))
	assert.Equal(t, byte(0x58), id[0])
	require.NoError(t, bus.Write(ctx, 0, 0x76, []byte{0xF4, 0x63, 0xF5, 0x24}))
	assert.NoError(t, bus.Close())
}

func TestBus_DetectAbsent(t *testing.T) {
	playback := &i2ctest.Playback{DontPanic: true}
	bus := NewBus(playback)

	err := bus.Detect(context.Background(), 0, 0x77)
	assert.ErrorIs(t, err, sensors.ErrNoDevice)
}

func TestBus_UnknownChannel(t *testing.T) {
	bus := NewBus(&i2ctest.Playback{DontPanic: true})
	ctx := context.Background()

	assert.ErrorIs(t, bus.Detect(ctx, 1, 0x76), sensors.ErrNoChannel)
	assert.ErrorIs(t, bus.Read(ctx, -1, 0x76, []byte{0xD0}, make([]byte, 1)), sensors.ErrNoChannel)
	assert.ErrorIs(t, bus.Write(ctx, 2, 0x76, []byte{0xE0, 0xB6}), sensors.ErrNoChannel)
}

func TestBus_ChannelsAreIndependent(t *testing.T) {
	first := &i2ctest.Playback{DontPanic: true}
	second := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: 0x77, R: []byte{0x00}}},
		DontPanic: true,
	}
	bus := NewBus(first, second)
	ctx := context.Background()

	assert.Error(t, bus.Detect(ctx, 0, 0x77))
	assert.NoError(t, bus.Detect(ctx, 1, 0x77))
}

// The detection step of the driver over a recorded bus.
func TestBus_BMP280Detection(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x77, R: []byte{0x00}},
			{Addr: 0x77, W: []byte{0xD0}, R: []byte{0x58}},
		},
		DontPanic: true,
	}
	sensor := environment.NewBMP280(0, environment.BMP280AddrHigh, environment.WithClock(tick.NewManual(0)))
	sensor.Init()
	sensor.Process(context.Background(), NewBus(playback))

	assert.Equal(t, environment.BMP280Initializing, sensor.State())
	assert.NoError(t, playback.Close())
}
