package sink

import (
	"context"
	"log/slog"

	"github.com/maxpromer/sensors"
	"github.com/maxpromer/sensors/environment"
)

// Log reports barometer readings at Info level and failures at Warn level.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (s *Log) Consume(ctx context.Context, driver sensors.Driver) error {
	b, ok := driver.(environment.Barometer)
	if !ok {
		return nil
	}
	if b.Failed() {
		s.logger.WarnContext(ctx, "no reading", "sensor", b.Name())
		return nil
	}
	if !environment.HasReading(b) {
		s.logger.DebugContext(ctx, "waiting for first reading", "sensor", b.Name())
		return nil
	}
	s.logger.InfoContext(ctx, "reading",
		"sensor", b.Name(),
		"temperature", b.Temperature(),
		"pressure", b.Pressure())
	return nil
}
