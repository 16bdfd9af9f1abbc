package environment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/maxpromer/sensors"
	"github.com/maxpromer/sensors/bmp280"
	"github.com/maxpromer/sensors/tick"
)

// BMP280 addresses selectable with the SDO pin.
const (
	BMP280AddrLow  = bmp280.AddrLow
	BMP280AddrHigh = bmp280.AddrHigh
)

// DefaultPollingInterval is the fixed cadence of reads and of retries after a failure.
const DefaultPollingInterval = 100 * time.Millisecond

var ErrChipID = errors.New("bmp280: unexpected chip id")

// BMP280State is the lifecycle phase of the BMP280 driver.
type BMP280State int

const (
	BMP280Detecting BMP280State = iota
	BMP280Initializing
	BMP280Reading
	BMP280WaitingAfterError
	BMP280Error
)

func (s BMP280State) String() string {
	switch s {
	case BMP280Detecting:
		return "detecting"
	case BMP280Initializing:
		return "initializing"
	case BMP280Reading:
		return "reading"
	case BMP280WaitingAfterError:
		return "waiting"
	case BMP280Error:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// sampling settings applied during initialization
var bmp280Sampling = bmp280.Config{
	Filter: bmp280.FilterCoeff2,
	OSTemp: bmp280.Oversampling4x,
	OSPres: bmp280.OversamplingNone,
	ODR:    bmp280.Standby62_5ms,
}

// BMP280 drives a Bosch BMP280 barometer as a cooperative state machine:
// detect, configure, poll every DefaultPollingInterval and start over from
// detection after any failure.
//
// Usage: construct with NewBMP280, call Init once and then Process on every
// scheduler tick. Temperature and Pressure return the last good reading.
// A BMP280 must only be used from one goroutine.
type BMP280 struct {
	channel  int
	address  byte
	interval time.Duration
	clock    tick.Source
	logger   *slog.Logger

	state       BMP280State
	lastPoll    tick.Tick
	temperature float64
	pressure    float64
	initialized bool
	failed      bool
	lastErr     error

	regs *registerIO
	dev  bmp280.Dev
}

type BMP280Config struct {
	Clock  tick.Source
	Logger *slog.Logger
}

type BMP280ConfigOption func(*BMP280Config)

// WithClock replaces the process wide tick source.
func WithClock(src tick.Source) BMP280ConfigOption {
	return func(c *BMP280Config) {
		c.Clock = src
	}
}

func WithLogger(logger *slog.Logger) BMP280ConfigOption {
	return func(c *BMP280Config) {
		c.Logger = logger
	}
}

// NewBMP280 binds a driver to the device at address on bus channel.
func NewBMP280(channel int, address byte, opts ...BMP280ConfigOption) *BMP280 {
	config := &BMP280Config{
		Clock:  tick.System(),
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(config)
	}
	return &BMP280{
		channel:  channel,
		address:  address,
		interval: DefaultPollingInterval,
		clock:    config.Clock,
		logger:   config.Logger.With("driver", "bmp280", "channel", channel, "addr", fmt.Sprintf("%#x", address)),
	}
}

var _ sensors.Driver = &BMP280{}
var _ Barometer = &BMP280{}

func (s *BMP280) Name() string {
	return fmt.Sprintf("bmp280@%d:%#x", s.channel, s.address)
}

func (s *BMP280) Channel() int { return s.channel }

func (s *BMP280) Address() byte { return s.address }

// Init restarts the lifecycle from detection.
func (s *BMP280) Init() {
	s.initialized = false
	s.state = BMP280Detecting
}

// Process advances the state machine by one step. Failures never escape:
// they move the driver to the error state and are reported by Failed and
// LastError.
func (s *BMP280) Process(ctx context.Context, transport sensors.Transport) {
	now := s.clock.Now()
	switch s.state {
	case BMP280Detecting:
		if err := s.detect(ctx, transport); err != nil {
			s.fail(now, err)
			return
		}
		s.transition(BMP280Initializing)
	case BMP280Initializing:
		if err := s.configure(ctx); err != nil {
			s.fail(now, err)
			return
		}
		s.failed = false
		s.initialized = true
		s.lastErr = nil
		s.transition(BMP280Reading)
	case BMP280Reading:
		if !tick.Elapsed(s.lastPoll, now, s.interval) {
			return
		}
		s.lastPoll = now
		if err := s.read(ctx); err != nil {
			s.fail(now, err)
		}
	case BMP280Error:
		s.transition(BMP280WaitingAfterError)
	case BMP280WaitingAfterError:
		if s.failed && tick.Elapsed(s.lastPoll, now, s.interval) {
			s.transition(BMP280Detecting)
		}
	}
}

func (s *BMP280) detect(ctx context.Context, transport sensors.Transport) error {
	if err := transport.Detect(ctx, s.channel, s.address); err != nil {
		return fmt.Errorf("bmp280: detect: %w", err)
	}
	id := make([]byte, 1)
	if err := transport.Read(ctx, s.channel, s.address, []byte{bmp280.RegChipID}, id); err != nil {
		return fmt.Errorf("bmp280: read chip id: %w", err)
	}
	if id[0] != bmp280.ChipID {
		return fmt.Errorf("%w: got %#x, expected %#x", ErrChipID, id[0], bmp280.ChipID)
	}
	s.regs = &registerIO{transport: transport, channel: s.channel}
	return nil
}

func (s *BMP280) configure(ctx context.Context) error {
	s.dev = bmp280.Dev{
		Addr:  s.address,
		Intf:  bmp280.InterfaceI2C,
		Read:  s.regs.read,
		Write: s.regs.write,
		Delay: s.regs.delay,
	}
	if err := s.dev.Init(ctx); err != nil {
		return err
	}
	conf, err := s.dev.ReadConfig(ctx)
	if err != nil {
		return err
	}
	conf.Filter = bmp280Sampling.Filter
	conf.OSTemp = bmp280Sampling.OSTemp
	conf.OSPres = bmp280Sampling.OSPres
	conf.ODR = bmp280Sampling.ODR
	if err := s.dev.WriteConfig(ctx, conf); err != nil {
		return err
	}
	return s.dev.SetPowerMode(ctx, bmp280.NormalMode)
}

// read updates both readings or neither.
func (s *BMP280) read(ctx context.Context) error {
	raw, err := s.dev.ReadUncompensated(ctx)
	if err != nil {
		return err
	}
	temp, err := s.dev.CompensateTemperature(raw.Temp)
	if err != nil {
		return err
	}
	press, err := s.dev.CompensatePressure(raw.Press)
	if err != nil {
		return err
	}
	s.temperature, s.pressure = temp, press
	s.logger.Debug("reading", "temperature", temp, "pressure", press)
	return nil
}

// fail runs the error state bookkeeping right away so the flags and the
// zeroed readings are visible as soon as the state is error.
func (s *BMP280) fail(now tick.Tick, err error) {
	s.logger.Warn("sensor failure", "state", s.state, "error", err)
	s.temperature = 0
	s.pressure = 0
	s.failed = true
	s.initialized = false
	s.lastErr = err
	s.lastPoll = now
	s.transition(BMP280Error)
}

func (s *BMP280) transition(next BMP280State) {
	s.logger.Debug("state transition", "from", s.state, "to", next)
	s.state = next
}

func (s *BMP280) State() BMP280State { return s.state }

// Temperature returns the last reading in degrees Celsius, zero after a failure.
func (s *BMP280) Temperature() float64 { return s.temperature }

// Pressure returns the last reading in Pa, zero after a failure.
func (s *BMP280) Pressure() float64 { return s.pressure }

func (s *BMP280) Initialized() bool { return s.initialized }

func (s *BMP280) Failed() bool { return s.failed }

// LastError is the cause of the latest failure, nil once the sensor is back.
func (s *BMP280) LastError() error { return s.lastErr }

// Env returns the readings as periph physical quantities.
func (s *BMP280) Env() physic.Env {
	return physic.Env{
		Temperature: physic.ZeroCelsius + physic.Temperature(s.temperature*float64(physic.Kelvin)),
		Pressure:    physic.Pressure(s.pressure * float64(physic.Pascal)),
	}
}

// Properties is empty: the BMP280 exposes no introspectable properties.
func (s *BMP280) Properties() sensors.PropertySet {
	return nil
}
