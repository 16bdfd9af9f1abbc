package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maxpromer/sensors/bmp280/bmp280test"
	"github.com/maxpromer/sensors/environment"
	"github.com/maxpromer/sensors/tick"
)

type MockPointWriter struct {
	mock.Mock
}

func (m *MockPointWriter) WritePoint(ctx context.Context, point ...*write.Point) error {
	return m.Called(ctx, point).Error(0)
}

func barometer(name string, fail bool) *environment.MockBarometer {
	b := environment.NewMockBarometer(name, func(ctx context.Context) (float64, float64, error) {
		if fail {
			return 0, 0, errors.New("offline")
		}
		return 25.08, 100653.27, nil
	})
	b.Process(context.Background(), nil)
	return b
}

func TestInflux_Consume(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	writer := new(MockPointWriter)
	var written []*write.Point
	writer.On("WritePoint", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		written = append(written, args.Get(1).([]*write.Point)...)
	}).Return(nil).Once()

	s := NewInfluxWriter(writer,
		WithMeasurement("attic"),
		WithTag("host", "lab"),
		WithClock(func() time.Time { return ts }))
	require.NoError(t, s.Consume(context.Background(), barometer("bmp280@0:0x76", false)))
	writer.AssertExpectations(t)

	require.Len(t, written, 1)
	p := written[0]
	assert.Equal(t, "attic", p.Name())
	assert.Equal(t, ts, p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"host": "lab", "sensor": "bmp280@0:0x76"}, tags)

	fields := map[string]interface{}{}
	for _, field := range p.FieldList() {
		fields[field.Key] = field.Value
	}
	assert.Equal(t, 25.08, fields["temperature"])
	assert.Equal(t, 100653.27, fields["pressure"])
}

func TestInflux_SkipsStaleReadings(t *testing.T) {
	writer := new(MockPointWriter)
	s := NewInfluxWriter(writer)

	require.NoError(t, s.Consume(context.Background(), barometer("broken", true)))
	require.NoError(t, s.Consume(context.Background(), environment.NewBMP280(0, environment.BMP280AddrLow)))
	writer.AssertNotCalled(t, "WritePoint", mock.Anything, mock.Anything)
}

func TestInflux_SkipsUnpolledSensor(t *testing.T) {
	ctx := context.Background()
	clock := tick.NewManual(0)
	sensor := environment.NewBMP280(1, environment.BMP280AddrLow, environment.WithClock(clock))
	sensor.Init()
	sim := bmp280test.New(1, environment.BMP280AddrLow)
	sensor.Process(ctx, sim)
	sensor.Process(ctx, sim)
	require.Equal(t, environment.BMP280Reading, sensor.State(), "last error: %v", sensor.LastError())
	require.True(t, sensor.Initialized())

	writer := new(MockPointWriter)
	s := NewInfluxWriter(writer)
	require.NoError(t, s.Consume(ctx, sensor))
	writer.AssertNotCalled(t, "WritePoint", mock.Anything, mock.Anything)

	var written []*write.Point
	writer.On("WritePoint", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		written = append(written, args.Get(1).([]*write.Point)...)
	}).Return(nil).Once()
	clock.Advance(environment.DefaultPollingInterval)
	sensor.Process(ctx, sim)
	require.NoError(t, s.Consume(ctx, sensor))
	writer.AssertExpectations(t)

	require.Len(t, written, 1)
	for _, field := range written[0].FieldList() {
		assert.NotZero(t, field.Value, field.Key)
	}
}

func TestInflux_WriteError(t *testing.T) {
	writer := new(MockPointWriter)
	writer.On("WritePoint", mock.Anything, mock.Anything).Return(errors.New("401 unauthorized"))

	s := NewInfluxWriter(writer)
	err := s.Consume(context.Background(), barometer("attic", false))
	assert.ErrorContains(t, err, "sink: influx write: 401 unauthorized")
	s.Close()
}
