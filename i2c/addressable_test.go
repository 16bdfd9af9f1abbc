package i2c

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maxpromer/sensors"
)

// MockI2CBus is a mock implementation of sensors.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return m.Called(ctx, address, buffer).Error(0)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestAddressable_Read(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, byte(0x76), []byte{0xD0}).Return(nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(0x76), mock.Anything).Return([]byte{0x58}, nil).Once()

	transport := NewAddressable(bus)
	id := make([]byte, 1)
	require.NoError(t, transport.Read(context.Background(), 0, 0x76, []byte{0xD0}, id))
	assert.Equal(t, byte(0x58), id[0])
	bus.AssertExpectations(t)
}

func TestAddressable_DetectReleasesBus(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("ReadFromAddr", mock.Anything, byte(0x77), mock.Anything).Return(nil, sensors.ErrBusBusy).Once()
	bus.On("Release", mock.Anything).Return(nil).Once()

	transport := NewAddressable(bus)
	err := transport.Detect(context.Background(), 0, 0x77)
	assert.ErrorIs(t, err, sensors.ErrNoDevice)
	assert.ErrorIs(t, err, sensors.ErrBusBusy)
	bus.AssertExpectations(t)
}

func TestAddressable_Write(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, byte(0x76), []byte{0xE0, 0xB6}).Return(nil).Once()

	transport := NewAddressable(bus)
	require.NoError(t, transport.Write(context.Background(), 0, 0x76, []byte{0xE0, 0xB6}))
	assert.ErrorIs(t, transport.Write(context.Background(), 1, 0x76, []byte{0xE0, 0xB6}), sensors.ErrNoChannel)
	bus.AssertExpectations(t)
}
