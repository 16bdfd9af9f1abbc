// Package scheduler hosts polled drivers: it calls Init once on every
// registered driver and then Process on each of them, in registration order,
// on every tick. Readings are handed to sinks at their own cadence.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maxpromer/sensors"
)

// DefaultPeriod is how often Run steps the drivers. Drivers gate their own
// bus traffic, so the period only bounds their reaction time.
const DefaultPeriod = 10 * time.Millisecond

// DefaultFlushInterval is how often Run hands readings to the sinks.
const DefaultFlushInterval = time.Second

var (
	ErrDuplicate = errors.New("scheduler: driver already registered")
	ErrStarted   = errors.New("scheduler: already started")
)

// Addressed is implemented by drivers bound to a device address on a bus channel.
type Addressed interface {
	Channel() int
	Address() byte
}

// Sink consumes the current state of a driver.
type Sink interface {
	Consume(ctx context.Context, driver sensors.Driver) error
}

// Key identifies a device on a multi-channel transport.
type Key struct {
	Channel int
	Address byte
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%#x", k.Channel, k.Address)
}

type entry struct {
	driver    sensors.Driver
	transport sensors.Transport
}

type Scheduler struct {
	period  time.Duration
	flush   time.Duration
	logger  *slog.Logger
	sinks   []Sink
	entries []entry
	byKey   map[Key]sensors.Driver
	started bool
}

type Config struct {
	Period        time.Duration
	FlushInterval time.Duration
	Logger        *slog.Logger
	Sinks         []Sink
}

type ConfigOption func(*Config)

func WithPeriod(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Period = d
	}
}

func WithFlushInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.FlushInterval = d
	}
}

func WithLogger(logger *slog.Logger) ConfigOption {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithSink adds a sink; it may be given more than once.
func WithSink(sink Sink) ConfigOption {
	return func(c *Config) {
		c.Sinks = append(c.Sinks, sink)
	}
}

func New(opts ...ConfigOption) *Scheduler {
	config := &Config{
		Period:        DefaultPeriod,
		FlushInterval: DefaultFlushInterval,
		Logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(config)
	}
	return &Scheduler{
		period: config.Period,
		flush:  config.FlushInterval,
		logger: config.Logger,
		sinks:  config.Sinks,
		byKey:  make(map[Key]sensors.Driver),
	}
}

// Register adds a driver polled over transport. Addressed drivers can be
// looked up by channel and address afterwards; two drivers cannot share one.
func (s *Scheduler) Register(driver sensors.Driver, transport sensors.Transport) error {
	if s.started {
		return ErrStarted
	}
	if a, ok := driver.(Addressed); ok {
		key := Key{Channel: a.Channel(), Address: a.Address()}
		if _, exists := s.byKey[key]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicate, key)
		}
		s.byKey[key] = driver
	}
	s.entries = append(s.entries, entry{driver: driver, transport: transport})
	return nil
}

// Lookup returns the driver bound to address on channel.
func (s *Scheduler) Lookup(channel int, address byte) (sensors.Driver, bool) {
	d, ok := s.byKey[Key{Channel: channel, Address: address}]
	return d, ok
}

// Drivers returns the registered drivers in polling order.
func (s *Scheduler) Drivers() []sensors.Driver {
	drivers := make([]sensors.Driver, len(s.entries))
	for i, e := range s.entries {
		drivers[i] = e.driver
	}
	return drivers
}

// Start calls Init on every driver. Step and Run call it when needed.
func (s *Scheduler) Start() {
	if s.started {
		return
	}
	for _, e := range s.entries {
		e.driver.Init()
	}
	s.started = true
	s.logger.Debug("scheduler started", "drivers", len(s.entries))
}

// Step advances every driver by one state machine step.
func (s *Scheduler) Step(ctx context.Context) {
	s.Start()
	for _, e := range s.entries {
		e.driver.Process(ctx, e.transport)
	}
}

// Flush hands every driver to every sink. All sinks see all drivers; the
// errors are joined.
func (s *Scheduler) Flush(ctx context.Context) error {
	var errs []error
	for _, sink := range s.sinks {
		for _, e := range s.entries {
			if err := sink.Consume(ctx, e.driver); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", e.driver.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Run steps the drivers every period and flushes the sinks every flush
// interval until ctx is done. Sink errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	var flush <-chan time.Time
	if len(s.sinks) > 0 && s.flush > 0 {
		flushTicker := time.NewTicker(s.flush)
		defer flushTicker.Stop()
		flush = flushTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Step(ctx)
		case <-flush:
			if err := s.Flush(ctx); err != nil {
				s.logger.Warn("sink failed", "error", err)
			}
		}
	}
}
