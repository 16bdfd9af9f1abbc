package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	data := []byte(`
adapter: nanopi
buses: ["0", "2"]
sensors:
  - channel: 0
    address: 0x76
  - channel: 1
    address: 0x77
period: 20ms
flush_interval: 5s
influx:
  url: http://localhost:8086
  token: secret
  org: home
  bucket: sensors
  tags:
    room: attic
`)
	got, err := Parse(data)
	require.NoError(t, err)

	want := &Config{
		Adapter: AdapterNanoPi,
		Buses:   []string{"0", "2"},
		Sensors: []Sensor{
			{Channel: 0, Address: 0x76},
			{Channel: 1, Address: 0x77},
		},
		Period:        20 * time.Millisecond,
		FlushInterval: 5 * time.Second,
		Influx: &Influx{
			URL:    "http://localhost:8086",
			Token:  "secret",
			Org:    "home",
			Bucket: "sensors",
			Tags:   map[string]string{"room": "attic"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}

	buses, err := got.BusNumbers()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, buses)
	assert.Equal(t, 2, got.Channels())
}

func TestParse_Defaults(t *testing.T) {
	got, err := Parse([]byte(`adapter: sim`))
	require.NoError(t, err)

	want := Default()
	want.Adapter = AdapterSim
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"unknown adapter", func(c *Config) { c.Adapter = "ftdi" }},
		{"no sensors", func(c *Config) { c.Sensors = nil }},
		{"bad address", func(c *Config) { c.Sensors[0].Address = 0x40 }},
		{"channel out of range", func(c *Config) { c.Sensors[0].Channel = 1 }},
		{"duplicate sensor", func(c *Config) { c.Sensors = append(c.Sensors, c.Sensors[0]) }},
		{"zero period", func(c *Config) { c.Period = 0 }},
		{"gobot bus name", func(c *Config) { c.Adapter = AdapterRaspi; c.Buses = []string{"/dev/i2c-1"} }},
		{"incomplete influx", func(c *Config) { c.Influx = &Influx{URL: "http://localhost:8086"} }},
		{"negative speed", func(c *Config) { c.MCP2221.Speed = -1 }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := Default()
			test.modify(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adapter: mcp2221\nmcp2221:\n  speed: 400000\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, AdapterMCP2221, c.Adapter)
	assert.Equal(t, 400000, c.MCP2221.Speed)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAddress(t *testing.T) {
	addr, err := Address(0x77)
	require.NoError(t, err)
	assert.Equal(t, byte(0x77), addr)

	for _, v := range []uint{0x80, 0x176, 0x1_0076} {
		_, err := Address(v)
		assert.ErrorIs(t, err, ErrInvalid, "%#x", v)
	}
}
