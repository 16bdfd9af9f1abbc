package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maxpromer/sensors"
	"github.com/maxpromer/sensors/bmp280/bmp280test"
	"github.com/maxpromer/sensors/environment"
	"github.com/maxpromer/sensors/tick"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Consume(ctx context.Context, driver sensors.Driver) error {
	return m.Called(ctx, driver).Error(0)
}

// recorder logs the order of Init and Process calls.
type recorder struct {
	name  string
	log   *[]string
	inits int
}

func (r *recorder) Name() string { return r.name }
func (r *recorder) Init()        { r.inits++ }
func (r *recorder) Process(ctx context.Context, _ sensors.Transport) {
	*r.log = append(*r.log, r.name)
}
func (r *recorder) Properties() sensors.PropertySet { return nil }

func TestStep_RoundRobin(t *testing.T) {
	var calls []string
	a := &recorder{name: "a", log: &calls}
	b := &recorder{name: "b", log: &calls}

	s := New()
	require.NoError(t, s.Register(a, nil))
	require.NoError(t, s.Register(b, nil))

	ctx := context.Background()
	s.Step(ctx)
	s.Step(ctx)

	assert.Equal(t, []string{"a", "b", "a", "b"}, calls)
	assert.Equal(t, 1, a.inits)
	assert.Equal(t, 1, b.inits)
	assert.ErrorIs(t, s.Register(&recorder{name: "c", log: &calls}, nil), ErrStarted)
}

func TestRegister_Duplicate(t *testing.T) {
	s := New()
	require.NoError(t, s.Register(environment.NewBMP280(0, environment.BMP280AddrLow), nil))
	require.NoError(t, s.Register(environment.NewBMP280(0, environment.BMP280AddrHigh), nil))
	require.NoError(t, s.Register(environment.NewBMP280(1, environment.BMP280AddrLow), nil))

	err := s.Register(environment.NewBMP280(0, environment.BMP280AddrHigh), nil)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Len(t, s.Drivers(), 3)

	d, ok := s.Lookup(0, environment.BMP280AddrHigh)
	require.True(t, ok)
	assert.Equal(t, "bmp280@0:0x77", d.Name())
	_, ok = s.Lookup(2, environment.BMP280AddrLow)
	assert.False(t, ok)
}

func TestStep_DrivesBMP280(t *testing.T) {
	clock := tick.NewManual(0)
	low := environment.NewBMP280(0, environment.BMP280AddrLow, environment.WithClock(clock))
	high := environment.NewBMP280(0, environment.BMP280AddrHigh, environment.WithClock(clock))
	sim := bmp280test.New(0, environment.BMP280AddrLow)

	s := New()
	require.NoError(t, s.Register(low, sim))
	require.NoError(t, s.Register(high, sim))

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		s.Step(ctx)
		clock.Advance(50 * time.Millisecond)
	}

	assert.Equal(t, environment.BMP280Reading, low.State())
	assert.InDelta(t, 25.08, low.Temperature(), 0.01)
	// nothing answers on 0x77
	assert.True(t, high.Failed())
	assert.Zero(t, high.Temperature())
}

func TestFlush(t *testing.T) {
	var calls []string
	a := &recorder{name: "a", log: &calls}
	b := &recorder{name: "b", log: &calls}
	sink := new(MockSink)
	sink.On("Consume", mock.Anything, a).Return(nil).Once()
	sink.On("Consume", mock.Anything, b).Return(errors.New("unreachable")).Once()

	s := New(WithSink(sink))
	require.NoError(t, s.Register(a, nil))
	require.NoError(t, s.Register(b, nil))

	err := s.Flush(context.Background())
	assert.ErrorContains(t, err, "b: unreachable")
	sink.AssertExpectations(t)
}

func TestRun(t *testing.T) {
	var calls []string
	a := &recorder{name: "a", log: &calls}
	sink := new(MockSink)
	sink.On("Consume", mock.Anything, a).Return(nil)

	s := New(WithPeriod(time.Millisecond), WithFlushInterval(5*time.Millisecond), WithSink(sink))
	require.NoError(t, s.Register(a, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, calls)
	assert.Equal(t, 1, a.inits)
	sink.AssertCalled(t, "Consume", mock.Anything, a)
}
