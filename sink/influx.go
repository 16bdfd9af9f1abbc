// Package sink provides consumers for barometer readings collected by the scheduler.
package sink

import (
	"context"
	"fmt"
	"maps"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/maxpromer/sensors"
	"github.com/maxpromer/sensors/environment"
)

const DefaultMeasurement = "environment"

// PointWriter is the part of the influx blocking write API used by the sink.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Influx writes one point per fresh barometer reading. Drivers that are not
// barometers, and barometers without a valid reading, are skipped.
type Influx struct {
	writer      PointWriter
	measurement string
	tags        map[string]string
	now         func() time.Time
	close       func()
}

type InfluxConfig struct {
	Measurement string
	Tags        map[string]string
	Now         func() time.Time
}

type InfluxConfigOption func(*InfluxConfig)

func WithMeasurement(name string) InfluxConfigOption {
	return func(c *InfluxConfig) {
		c.Measurement = name
	}
}

// WithTag adds a tag to every point.
func WithTag(key, value string) InfluxConfigOption {
	return func(c *InfluxConfig) {
		c.Tags[key] = value
	}
}

func WithClock(now func() time.Time) InfluxConfigOption {
	return func(c *InfluxConfig) {
		c.Now = now
	}
}

// NewInflux connects to an InfluxDB v2 server and writes to bucket of org.
func NewInflux(url, token, org, bucket string, opts ...InfluxConfigOption) *Influx {
	client := influxdb2.NewClient(url, token)
	s := NewInfluxWriter(client.WriteAPIBlocking(org, bucket), opts...)
	s.close = client.Close
	return s
}

// NewInfluxWriter builds the sink over an existing writer.
func NewInfluxWriter(writer PointWriter, opts ...InfluxConfigOption) *Influx {
	config := &InfluxConfig{
		Measurement: DefaultMeasurement,
		Tags:        map[string]string{},
		Now:         time.Now,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &Influx{
		writer:      writer,
		measurement: config.Measurement,
		tags:        config.Tags,
		now:         config.Now,
	}
}

func (s *Influx) Consume(ctx context.Context, driver sensors.Driver) error {
	b, ok := driver.(environment.Barometer)
	if !ok || !environment.HasReading(b) {
		return nil
	}
	if err := s.writer.WritePoint(ctx, s.point(b)); err != nil {
		return fmt.Errorf("sink: influx write: %w", err)
	}
	return nil
}

func (s *Influx) point(b environment.Barometer) *write.Point {
	tags := maps.Clone(s.tags)
	tags["sensor"] = b.Name()
	return influxdb2.NewPoint(s.measurement, tags, map[string]interface{}{
		"temperature": b.Temperature(),
		"pressure":    b.Pressure(),
	}, s.now())
}

// Close releases the client created by NewInflux.
func (s *Influx) Close() {
	if s.close != nil {
		s.close()
	}
}
