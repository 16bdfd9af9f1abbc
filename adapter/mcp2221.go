package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/maxpromer/sensors"
	"github.com/maxpromer/sensors/snsctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const (
	cmdStatusSetParams = 0x10
	cmdGetI2CData      = 0x40
	cmdI2CWriteData    = 0x90
	cmdI2CReadData     = 0x91

	paramCancelTransfer = 0x10
	paramSetSpeed       = 0x20

	// status byte 3 after a speed change request
	speedAccepted = 0x20

	reportSize  = 64
	maxTransfer = 60
	clockHz     = 12_000_000
)

var ErrCommandUnsupported = errors.New("unsupported command")
var ErrCommandFailed = errors.New("command failed")
var ErrDeviceNotFound = errors.New("MCP2221 device not found")

type device interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

type opener func(id ...int) (device, error)

// MCP2221 is the Microchip USB to I2C bridge. Every command opens the HID
// device, sends one 64 byte report and reads the response report.
type MCP2221 struct {
	mx           sync.Mutex
	request      []byte
	response     []byte
	responseWait time.Duration
	open         opener
	id           []int
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"speed_divider"`
	I2CTimeout             int    `yaml:"timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent"`
	ReadPending            int    `yaml:"read_pending"`
	Cancelled              bool   `yaml:"cancelled"`
}

// Speed returns the I2C clock derived from the divider in Hz.
func (s *MCP2221Status) Speed() int {
	return clockHz / (s.I2CSpeedDivider + 3)
}

type MCP2221Config struct {
	ResponseWait time.Duration
	DeviceID     []int
}

type MCP2221ConfigOption func(*MCP2221Config)

// WithResponseWait sets how long to wait between a request and its response.
func WithResponseWait(d time.Duration) MCP2221ConfigOption {
	return func(c *MCP2221Config) {
		c.ResponseWait = d
	}
}

// WithDeviceID selects one of several connected bridges by enumeration index.
func WithDeviceID(id int) MCP2221ConfigOption {
	return func(c *MCP2221Config) {
		c.DeviceID = []int{id}
	}
}

func NewMCP2221(opts ...MCP2221ConfigOption) *MCP2221 {
	config := &MCP2221Config{
		ResponseWait: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &MCP2221{
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: config.ResponseWait,
		open:         openHID,
		id:           config.DeviceID,
	}
}

var _ sensors.I2CBus = &MCP2221{}

// Init checks that the bridge is connected and its I2C engine idle,
// releasing the bus if a previous transfer was left hanging.
func (d *MCP2221) Init(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	status, err := d.status(ctx, false)
	if err != nil {
		return err
	}
	if status.ReadPending != 0 || status.LastWriteRequestedSize != status.LastWriteSentSize {
		snsctx.Logger(ctx).Debug("releasing stale i2c transfer", "status", status)
		_, err = d.status(ctx, true)
	}
	return err
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > maxTransfer {
		return fmt.Errorf("write to %x failed: %d bytes exceed a single report", address, len(buffer))
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdI2CWriteData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	// write could not be performed
	if d.response[1] == 0x01 {
		snsctx.Logger(ctx).Debug("adapter busy")
		return sensors.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > maxTransfer {
		return fmt.Errorf("bus read from %x failed: %d bytes exceed a single report", address, len(buffer))
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdI2CReadData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if d.response[1] == 0x01 {
		return sensors.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdGetI2CData
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == 0x41 {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine")
	}
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}

	copy(buffer, d.response[4:])
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.status(ctx, false)
}

// SetSpeed changes the I2C clock. The bridge refuses while a transfer is in progress.
func (d *MCP2221) SetSpeed(ctx context.Context, hz int) (*MCP2221Status, error) {
	if hz <= 0 || clockHz/hz-3 < 1 || clockHz/hz-3 > 0xFF {
		return nil, fmt.Errorf("unsupported i2c speed %d Hz", hz)
	}
	divider := clockHz/hz - 3
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParams
	d.request[3] = paramSetSpeed
	d.request[4] = byte(divider)
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("set speed request failed: %w", err)
	}
	if d.response[3] != speedAccepted {
		return nil, fmt.Errorf("set speed to %d Hz: %w", hz, ErrCommandFailed)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		2:	0x10 when a transfer cancellation was requested
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
		25: I2C read pending
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
		Cancelled:            buffer[2] == paramCancelTransfer,
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

// Release cancels the current transfer and frees the bus.
func (d *MCP2221) Release(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.status(ctx, true)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.status(ctx, true)
}

func (d *MCP2221) status(ctx context.Context, cancel bool) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatusSetParams
	if cancel {
		d.request[2] = paramCancelTransfer
	}
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	if d.response[0] != cmdStatusSetParams {
		return nil, ErrCommandUnsupported
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) send(ctx context.Context) error {
	dev, err := d.open(d.id...)
	if err != nil {
		return err
	}
	logger := snsctx.Logger(ctx)
	defer func() {
		if err := dev.Close(); err != nil {
			logger.Debug("could not close adapter", "error", err)
		}
	}()
	verbose := snsctx.IsVerbose(ctx)
	if verbose {
		logger.Debug(fmt.Sprintf("sending message to adapter:\n%s", hex.Dump(d.request)))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	if d.responseWait > 0 {
		timer := time.NewTimer(d.responseWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		logger.Debug(fmt.Sprintf("read message from adapter:\n%s", hex.Dump(d.response)))
	}
	return nil
}

// enumerate lists the HID interfaces matching vendor and product.
var enumerate = hid.Enumerate

// Bridge describes one connected MCP2221. ID is the value accepted by
// WithDeviceID.
type Bridge struct {
	ID           int
	Path         string
	Serial       string
	Manufacturer string
	Product      string
}

// Enumerate lists the connected MCP2221 bridges in WithDeviceID order.
func Enumerate() []Bridge {
	devs := enumerate(VendorID, ProductID)
	bridges := make([]Bridge, 0, len(devs))
	for i, dev := range devs {
		bridges = append(bridges, Bridge{
			ID:           i,
			Path:         dev.Path,
			Serial:       dev.Serial,
			Manufacturer: dev.Manufacturer,
			Product:      dev.Product,
		})
	}
	return bridges
}

func openHID(id ...int) (device, error) {
	devs := enumerate(VendorID, ProductID)
	if len(devs) > 1 && len(id) == 0 {
		return nil, fmt.Errorf("ambiguous device identification")
	}
	if len(devs) == 0 {
		return nil, ErrDeviceNotFound
	}
	idx := 0
	if len(id) > 0 {
		if id[0] < 0 || id[0] >= len(devs) {
			return nil, fmt.Errorf("no device with id %d", id[0])
		}
		idx = id[0]
	}
	dev, err := devs[idx].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return dev, nil
}

func (d *MCP2221) resetBuffers() {
	resetBuffer(d.request)
	resetBuffer(d.response)
}

func resetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0x00
	}
}
