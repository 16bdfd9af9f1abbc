package environment

import (
	"context"
	"strconv"

	"github.com/maxpromer/sensors"
)

// ReadingBehaviorFunc produces one temperature (°C) and pressure (Pa) sample or an error.
type ReadingBehaviorFunc func(ctx context.Context) (float64, float64, error)

// MockBarometer is a driver that uses a behavior function to produce readings
// without requiring any hardware. It follows the BMP280 flag semantics: a
// failing sample zeroes both readings and sets the error flag.
type MockBarometer struct {
	name     string
	behavior ReadingBehaviorFunc

	temperature float64
	pressure    float64
	initialized bool
	failed      bool
	calls       int
}

// NewMockBarometer creates a new mock barometer. The behavior function is
// called on every Process.
//
// Example usage:
//
//	sensor := NewMockBarometer("attic", func(ctx context.Context) (float64, float64, error) {
//		return 21.5, 101325, nil
//	})
func NewMockBarometer(name string, behavior ReadingBehaviorFunc) *MockBarometer {
	return &MockBarometer{name: name, behavior: behavior}
}

var _ sensors.Driver = &MockBarometer{}
var _ Barometer = &MockBarometer{}

func (m *MockBarometer) Name() string { return m.name }

func (m *MockBarometer) Init() {
	m.initialized = false
}

// Process ignores the transport.
func (m *MockBarometer) Process(ctx context.Context, _ sensors.Transport) {
	m.calls++
	temp, press, err := m.behavior(ctx)
	if err != nil {
		m.temperature, m.pressure = 0, 0
		m.failed, m.initialized = true, false
		return
	}
	m.temperature, m.pressure = temp, press
	m.failed, m.initialized = false, true
}

func (m *MockBarometer) Temperature() float64 { return m.temperature }

func (m *MockBarometer) Pressure() float64 { return m.pressure }

func (m *MockBarometer) Initialized() bool { return m.initialized }

func (m *MockBarometer) Failed() bool { return m.failed }

// Calls returns how many times Process ran.
func (m *MockBarometer) Calls() int { return m.calls }

// Properties exposes the readings read only.
func (m *MockBarometer) Properties() sensors.PropertySet {
	return sensors.PropertySet{
		{Name: "temperature", Unit: "°C", Attr: "r", Read: func() (string, error) {
			return strconv.FormatFloat(m.temperature, 'f', 2, 64), nil
		}},
		{Name: "pressure", Unit: "Pa", Attr: "r", Read: func() (string, error) {
			return strconv.FormatFloat(m.pressure, 'f', 2, 64), nil
		}},
	}
}
