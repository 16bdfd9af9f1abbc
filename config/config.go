// Package config loads the YAML configuration of the sensors CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maxpromer/sensors/bmp280"
)

// Build information, injected at link time.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

const (
	AdapterPeriph  = "periph"
	AdapterNanoPi  = "nanopi"
	AdapterRaspi   = "raspi"
	AdapterMCP2221 = "mcp2221"
	AdapterSim     = "sim"
)

var Adapters = []string{AdapterPeriph, AdapterNanoPi, AdapterRaspi, AdapterMCP2221, AdapterSim}

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	// Adapter selects the transport: periph, nanopi, raspi, mcp2221 or sim.
	Adapter string `yaml:"adapter"`
	// Buses lists one bus per channel: periph bus names or gobot bus numbers.
	Buses         []string      `yaml:"buses,omitempty"`
	Sensors       []Sensor      `yaml:"sensors"`
	Period        time.Duration `yaml:"period"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MCP2221       MCP2221       `yaml:"mcp2221"`
	Influx        *Influx       `yaml:"influx,omitempty"`
}

type Sensor struct {
	Channel int  `yaml:"channel"`
	Address byte `yaml:"address"`
}

type MCP2221 struct {
	DeviceID *int `yaml:"device_id,omitempty"`
	// Speed in Hz, 0 keeps the current setting.
	Speed int `yaml:"speed,omitempty"`
}

type Influx struct {
	URL         string            `yaml:"url"`
	Token       string            `yaml:"token"`
	Org         string            `yaml:"org"`
	Bucket      string            `yaml:"bucket"`
	Measurement string            `yaml:"measurement,omitempty"`
	Tags        map[string]string `yaml:"tags,omitempty"`
}

// Default is a single BMP280 at 0x76 on the first periph bus.
func Default() *Config {
	return &Config{
		Adapter:       AdapterPeriph,
		Sensors:       []Sensor{{Channel: 0, Address: bmp280.AddrLow}},
		Period:        10 * time.Millisecond,
		FlushInterval: time.Second,
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Channels is the number of bus channels the adapter provides.
func (c *Config) Channels() int {
	switch c.Adapter {
	case AdapterMCP2221, AdapterSim:
		return 1
	}
	if len(c.Buses) == 0 {
		return 1
	}
	return len(c.Buses)
}

// BusNumbers parses Buses for gobot adapters.
func (c *Config) BusNumbers() ([]int, error) {
	numbers := make([]int, 0, len(c.Buses))
	for _, bus := range c.Buses {
		n, err := strconv.Atoi(bus)
		if err != nil {
			return nil, fmt.Errorf("%w: bus %q is not a number", ErrInvalid, bus)
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

// Address narrows a flag value to a 7-bit bus address.
func Address(v uint) (byte, error) {
	if v > 0x7F {
		return 0, fmt.Errorf("%w: address %#x out of range", ErrInvalid, v)
	}
	return byte(v), nil
}

func (c *Config) Validate() error {
	if !slices.Contains(Adapters, c.Adapter) {
		return fmt.Errorf("%w: unknown adapter %q", ErrInvalid, c.Adapter)
	}
	if c.Adapter == AdapterNanoPi || c.Adapter == AdapterRaspi {
		if _, err := c.BusNumbers(); err != nil {
			return err
		}
	}
	if len(c.Sensors) == 0 {
		return fmt.Errorf("%w: no sensors", ErrInvalid)
	}
	seen := map[Sensor]bool{}
	for _, s := range c.Sensors {
		if s.Address != bmp280.AddrLow && s.Address != bmp280.AddrHigh {
			return fmt.Errorf("%w: address %#x is not a bmp280 address", ErrInvalid, s.Address)
		}
		if s.Channel < 0 || s.Channel >= c.Channels() {
			return fmt.Errorf("%w: channel %d out of range", ErrInvalid, s.Channel)
		}
		if seen[s] {
			return fmt.Errorf("%w: sensor %d:%#x listed twice", ErrInvalid, s.Channel, s.Address)
		}
		seen[s] = true
	}
	if c.Period <= 0 {
		return fmt.Errorf("%w: period must be positive", ErrInvalid)
	}
	if c.MCP2221.Speed < 0 {
		return fmt.Errorf("%w: negative mcp2221 speed", ErrInvalid)
	}
	if c.Influx != nil {
		if c.Influx.URL == "" || c.Influx.Org == "" || c.Influx.Bucket == "" {
			return fmt.Errorf("%w: influx needs url, org and bucket", ErrInvalid)
		}
		if c.FlushInterval <= 0 {
			return fmt.Errorf("%w: flush interval must be positive", ErrInvalid)
		}
	}
	return nil
}
