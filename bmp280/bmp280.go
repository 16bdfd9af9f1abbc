// Package bmp280 implements the register level API of the Bosch BMP280
// digital pressure sensor: identification, calibration, configuration,
// raw data acquisition and floating point compensation.
//
// See: https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bmp280-ds001.pdf
//
// The package never touches a bus directly. Callers supply register read and
// write callbacks and a delay callback on Dev:
//
//	dev := &bmp280.Dev{Addr: bmp280.AddrLow, Read: rd, Write: wr, Delay: delay}
//	if err := dev.Init(ctx); err != nil { ... }
//	raw, err := dev.ReadUncompensated(ctx)
//	t, err := dev.CompensateTemperature(raw.Temp)
package bmp280

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNilCallback    = errors.New("bmp280: read, write or delay callback not set")
	ErrDevNotFound    = errors.New("bmp280: device not found")
	ErrNotCalibrated  = errors.New("bmp280: calibration parameters not loaded")
	ErrUncompRange    = errors.New("bmp280: uncompensated data out of range")
	ErrDivByZero      = errors.New("bmp280: pressure compensation division by zero")
	ErrInvalidLength  = errors.New("bmp280: invalid register burst length")
	ErrInvalidSetting = errors.New("bmp280: invalid setting")
)

// ReadFunc reads len(data) bytes starting at register reg of the device at addr.
type ReadFunc func(ctx context.Context, addr, reg byte, data []byte) error

// WriteFunc writes data to the device at addr, starting at register reg.
type WriteFunc func(ctx context.Context, addr, reg byte, data []byte) error

// DelayFunc blocks for d or until ctx is done.
type DelayFunc func(ctx context.Context, d time.Duration) error

// CalibParams holds the factory trimming coefficients (dig_T1..dig_P9) and
// the fine temperature shared by both compensation formulas.
type CalibParams struct {
	T1 uint16
	T2 int16
	T3 int16
	P1 uint16
	P2 int16
	P3 int16
	P4 int16
	P5 int16
	P6 int16
	P7 int16
	P8 int16
	P9 int16

	TFine int32
}

// Config mirrors the ctrl_meas and config registers except the power mode.
type Config struct {
	OSTemp Oversampling
	OSPres Oversampling
	ODR    StandbyTime
	Filter Filter
	SPI3W  bool
}

// UncompData are raw 20-bit ADC readings.
type UncompData struct {
	Temp  int32
	Press int32
}

// Dev is a BMP280 handle. Fields other than the callbacks, Addr and Intf
// are populated by the API.
type Dev struct {
	Addr  byte
	Intf  Interface
	Read  ReadFunc
	Write WriteFunc
	Delay DelayFunc

	ChipID    byte
	Calib     CalibParams
	Config    Config
	PowerMode PowerMode
}

// Init identifies the chip, soft resets it and loads the calibration
// parameters. The chip id read is retried with a short delay.
func (d *Dev) Init(ctx context.Context) error {
	if err := d.check(); err != nil {
		return err
	}
	var lastErr error
	for try := 0; try < chipIDRetries; try++ {
		id, err := d.readRegs(ctx, RegChipID, 1)
		switch {
		case err != nil:
			lastErr = err
		case !validChipID(id[0]):
			lastErr = fmt.Errorf("unexpected chip id %#x", id[0])
		default:
			d.ChipID = id[0]
			if err := d.SoftReset(ctx); err != nil {
				return err
			}
			return d.readCalibration(ctx)
		}
		if err := d.Delay(ctx, chipIDRetryMs*time.Millisecond); err != nil {
			return fmt.Errorf("bmp280: chip id retry: %w", err)
		}
	}
	return fmt.Errorf("%w: %w", ErrDevNotFound, lastErr)
}

// SoftReset resets the device to power-on state and waits for its startup.
func (d *Dev) SoftReset(ctx context.Context) error {
	if err := d.check(); err != nil {
		return err
	}
	if err := d.writeRegs(ctx, []byte{RegSoftReset}, []byte{softResetCmd}); err != nil {
		return fmt.Errorf("bmp280: soft reset: %w", err)
	}
	if err := d.Delay(ctx, startupDelayMs*time.Millisecond); err != nil {
		return fmt.Errorf("bmp280: soft reset: %w", err)
	}
	return nil
}

func (d *Dev) readCalibration(ctx context.Context) error {
	buf, err := d.readRegs(ctx, RegCalib, calibLen)
	if err != nil {
		return fmt.Errorf("bmp280: read calibration: %w", err)
	}
	d.Calib = parseCalibration(buf)
	return nil
}

func parseCalibration(buf []byte) CalibParams {
	le := binary.LittleEndian
	return CalibParams{
		T1: le.Uint16(buf[0:2]),
		T2: int16(le.Uint16(buf[2:4])),
		T3: int16(le.Uint16(buf[4:6])),
		P1: le.Uint16(buf[6:8]),
		P2: int16(le.Uint16(buf[8:10])),
		P3: int16(le.Uint16(buf[10:12])),
		P4: int16(le.Uint16(buf[12:14])),
		P5: int16(le.Uint16(buf[14:16])),
		P6: int16(le.Uint16(buf[16:18])),
		P7: int16(le.Uint16(buf[18:20])),
		P8: int16(le.Uint16(buf[20:22])),
		P9: int16(le.Uint16(buf[22:24])),
	}
}

// ReadConfig reads ctrl_meas and config and stores the result in d.Config
// and d.PowerMode.
func (d *Dev) ReadConfig(ctx context.Context) (Config, error) {
	if err := d.check(); err != nil {
		return Config{}, err
	}
	regs, err := d.readRegs(ctx, RegCtrlMeas, 2)
	if err != nil {
		return Config{}, fmt.Errorf("bmp280: read config: %w", err)
	}
	d.Config = decodeConfig(regs[0], regs[1])
	d.PowerMode = PowerMode(regs[0] & powerMask)
	return d.Config, nil
}

// WriteConfig applies conf and leaves the device in sleep mode.
func (d *Dev) WriteConfig(ctx context.Context, conf Config) error {
	return d.configure(ctx, SleepMode, conf)
}

// SetPowerMode re-applies the current configuration with the given mode.
// The configuration should always be written before the power mode.
func (d *Dev) SetPowerMode(ctx context.Context, mode PowerMode) error {
	return d.configure(ctx, mode, d.Config)
}

func (d *Dev) configure(ctx context.Context, mode PowerMode, conf Config) error {
	if err := d.check(); err != nil {
		return err
	}
	if err := validate(mode, conf); err != nil {
		return err
	}
	regs, err := d.readRegs(ctx, RegCtrlMeas, 2)
	if err != nil {
		return fmt.Errorf("bmp280: configure: %w", err)
	}
	// a soft reset is the fastest way to get the device to sleep
	if err := d.SoftReset(ctx); err != nil {
		return err
	}
	ctrl, cfg := encodeConfig(regs[1], conf)
	// ctrl_meas goes out in sleep mode, config is ignored by the chip otherwise
	if err := d.writeRegs(ctx, []byte{RegCtrlMeas, RegConfig}, []byte{ctrl, cfg}); err != nil {
		return fmt.Errorf("bmp280: write config: %w", err)
	}
	d.Config = conf
	d.PowerMode = SleepMode
	if mode == SleepMode {
		return nil
	}
	ctrl = ctrl&^powerMask | byte(mode)
	if err := d.writeRegs(ctx, []byte{RegCtrlMeas}, []byte{ctrl}); err != nil {
		return fmt.Errorf("bmp280: set power mode %s: %w", mode, err)
	}
	d.PowerMode = mode
	return nil
}

func validate(mode PowerMode, conf Config) error {
	if mode != SleepMode && mode != ForcedMode && mode != NormalMode {
		return fmt.Errorf("%w: power mode %#x", ErrInvalidSetting, byte(mode))
	}
	if conf.OSTemp > Oversampling16x || conf.OSPres > Oversampling16x {
		return fmt.Errorf("%w: oversampling", ErrInvalidSetting)
	}
	if conf.Filter > FilterCoeff16 {
		return fmt.Errorf("%w: filter %d", ErrInvalidSetting, conf.Filter)
	}
	if conf.ODR > Standby4000ms {
		return fmt.Errorf("%w: odr %d", ErrInvalidSetting, conf.ODR)
	}
	return nil
}

func decodeConfig(ctrl, cfg byte) Config {
	return Config{
		OSTemp: Oversampling(ctrl >> osTempPos & threeBitMsk),
		OSPres: Oversampling(ctrl >> osPresPos & threeBitMsk),
		ODR:    StandbyTime(cfg >> odrPos & threeBitMsk),
		Filter: Filter(cfg >> filterPos & threeBitMsk),
		SPI3W:  cfg&spi3wMask != 0,
	}
}

// encodeConfig builds ctrl_meas with sleep mode and merges conf into the
// current config register value.
func encodeConfig(cfg byte, conf Config) (byte, byte) {
	ctrl := byte(conf.OSTemp)<<osTempPos | byte(conf.OSPres)<<osPresPos
	cfg &^= threeBitMsk<<odrPos | threeBitMsk<<filterPos | spi3wMask
	cfg |= byte(conf.ODR)<<odrPos | byte(conf.Filter)<<filterPos
	if conf.SPI3W {
		cfg |= spi3wMask
	}
	return ctrl, cfg
}

// ReadUncompensated fetches the raw pressure and temperature ADC values.
func (d *Dev) ReadUncompensated(ctx context.Context) (UncompData, error) {
	if err := d.check(); err != nil {
		return UncompData{}, err
	}
	buf, err := d.readRegs(ctx, RegPressMSB, dataLen)
	if err != nil {
		return UncompData{}, fmt.Errorf("bmp280: read data: %w", err)
	}
	data := UncompData{
		Press: int32(buf[0])<<12 | int32(buf[1])<<4 | int32(buf[2])>>4,
		Temp:  int32(buf[3])<<12 | int32(buf[4])<<4 | int32(buf[5])>>4,
	}
	if err := checkBoundaries(data); err != nil {
		return data, err
	}
	return data, nil
}

func checkBoundaries(data UncompData) error {
	tBad := data.Temp <= adcMin || data.Temp >= adcMax
	pBad := data.Press <= adcMin || data.Press >= adcMax
	switch {
	case tBad && pBad:
		return fmt.Errorf("%w: temperature %#x, pressure %#x", ErrUncompRange, data.Temp, data.Press)
	case tBad:
		return fmt.Errorf("%w: temperature %#x", ErrUncompRange, data.Temp)
	case pBad:
		return fmt.Errorf("%w: pressure %#x", ErrUncompRange, data.Press)
	}
	return nil
}

// CompensateTemperature returns the temperature in degrees Celsius and
// updates the fine temperature used by CompensatePressure.
func (d *Dev) CompensateTemperature(uncomp int32) (float64, error) {
	if d.Calib.T1 == 0 {
		return 0, ErrNotCalibrated
	}
	c := &d.Calib
	var1 := (float64(uncomp)/16384.0 - float64(c.T1)/1024.0) * float64(c.T2)
	var2 := float64(uncomp)/131072.0 - float64(c.T1)/8192.0
	var2 = var2 * var2 * float64(c.T3)
	c.TFine = int32(var1 + var2)
	return (var1 + var2) / 5120.0, nil
}

// CompensatePressure returns the pressure in Pa. CompensateTemperature must
// be called first with the same sample.
func (d *Dev) CompensatePressure(uncomp int32) (float64, error) {
	if d.Calib.P1 == 0 {
		return 0, ErrNotCalibrated
	}
	c := &d.Calib
	var1 := float64(c.TFine)/2.0 - 64000.0
	var2 := var1 * var1 * float64(c.P6) / 32768.0
	var2 = var2 + var1*float64(c.P5)*2.0
	var2 = var2/4.0 + float64(c.P4)*65536.0
	var1 = (float64(c.P3)*var1*var1/524288.0 + float64(c.P2)*var1) / 524288.0
	var1 = (1.0 + var1/32768.0) * float64(c.P1)
	if var1 == 0 {
		return 0, ErrDivByZero
	}
	p := 1048576.0 - float64(uncomp)
	p = (p - var2/4096.0) * 6250.0 / var1
	var1 = float64(c.P9) * p * p / 2147483648.0
	var2 = p * float64(c.P8) / 32768.0
	return p + (var1+var2+float64(c.P7))/16.0, nil
}

func (d *Dev) check() error {
	if d.Read == nil || d.Write == nil || d.Delay == nil {
		return ErrNilCallback
	}
	return nil
}

func (d *Dev) readRegs(ctx context.Context, reg byte, n int) ([]byte, error) {
	if d.Intf == InterfaceSPI {
		reg |= 0x80
	}
	buf := make([]byte, n)
	if err := d.Read(ctx, d.Addr, reg, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// writeRegs writes one value per register. Bursts are sent as a single
// transfer of interleaved register/value pairs since the chip does not
// auto-increment on writes.
func (d *Dev) writeRegs(ctx context.Context, regs []byte, values []byte) error {
	if len(regs) == 0 || len(regs) != len(values) {
		return ErrInvalidLength
	}
	buf := make([]byte, 0, 2*len(regs)-1)
	buf = append(buf, values[0])
	for i := 1; i < len(regs); i++ {
		buf = append(buf, d.mask(regs[i]), values[i])
	}
	return d.Write(ctx, d.Addr, d.mask(regs[0]), buf)
}

func (d *Dev) mask(reg byte) byte {
	if d.Intf == InterfaceSPI {
		return reg & 0x7F
	}
	return reg
}

func validChipID(id byte) bool {
	return id == ChipID || id == ChipIDSample1 || id == ChipIDSample2
}
