// Package bmp280test provides a simulated BMP280 that can be used as a
// sensors.Transport in tests and on hosts without the hardware.
package bmp280test

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/maxpromer/sensors"
	"github.com/maxpromer/sensors/bmp280"
)

var ErrInjected = errors.New("bmp280test: injected fault")

// Op identifies a bus operation for fault injection.
type Op int

const (
	OpDetect Op = iota
	OpRead
	OpWrite
)

func (o Op) String() string {
	switch o {
	case OpDetect:
		return "detect"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// FaultFunc decides whether an operation on reg fails. For writes reg is
// the first register of the transfer, for detection it is zero.
type FaultFunc func(op Op, reg byte) error

// DatasheetCalib are the example trimming values of the BMP280 datasheet
// (section 8.2). With DatasheetTemp and DatasheetPress they compensate to
// 25.08 °C and 100653.27 Pa.
var DatasheetCalib = bmp280.CalibParams{
	T1: 27504, T2: 26435, T3: -1000,
	P1: 36477, P2: -10685, P3: 3024, P4: 2855, P5: 140, P6: -7, P7: 15500, P8: -14600, P9: 6000,
}

const (
	DatasheetTemp  int32 = 519888
	DatasheetPress int32 = 415148
)

// Sim is a register level BMP280 model on a single channel and address.
type Sim struct {
	mx      sync.Mutex
	channel int
	addr    byte
	regs    [256]byte
	present bool
	fault   FaultFunc

	Resets int
	Reads  int
	Writes int
}

// New returns a present, datasheet calibrated chip at addr on channel.
func New(channel int, addr byte) *Sim {
	s := &Sim{channel: channel, addr: addr, present: true}
	s.regs[bmp280.RegChipID] = bmp280.ChipID
	s.SetCalibration(DatasheetCalib)
	s.SetRaw(DatasheetTemp, DatasheetPress)
	return s
}

var _ sensors.Transport = &Sim{}

// SetPresent plugs or unplugs the chip.
func (s *Sim) SetPresent(present bool) {
	s.mx.Lock()
	s.present = present
	s.mx.Unlock()
}

func (s *Sim) SetChipID(id byte) {
	s.mx.Lock()
	s.regs[bmp280.RegChipID] = id
	s.mx.Unlock()
}

// SetFault installs f; nil clears it.
func (s *Sim) SetFault(f FaultFunc) {
	s.mx.Lock()
	s.fault = f
	s.mx.Unlock()
}

func (s *Sim) SetCalibration(c bmp280.CalibParams) {
	s.mx.Lock()
	defer s.mx.Unlock()
	le := binary.LittleEndian
	b := s.regs[bmp280.RegCalib:]
	le.PutUint16(b[0:], c.T1)
	le.PutUint16(b[2:], uint16(c.T2))
	le.PutUint16(b[4:], uint16(c.T3))
	le.PutUint16(b[6:], c.P1)
	le.PutUint16(b[8:], uint16(c.P2))
	le.PutUint16(b[10:], uint16(c.P3))
	le.PutUint16(b[12:], uint16(c.P4))
	le.PutUint16(b[14:], uint16(c.P5))
	le.PutUint16(b[16:], uint16(c.P6))
	le.PutUint16(b[18:], uint16(c.P7))
	le.PutUint16(b[20:], uint16(c.P8))
	le.PutUint16(b[22:], uint16(c.P9))
}

// SetRaw sets the 20-bit ADC values returned from the data registers.
func (s *Sim) SetRaw(temp, press int32) {
	s.mx.Lock()
	defer s.mx.Unlock()
	d := s.regs[bmp280.RegPressMSB:]
	d[0], d[1], d[2] = byte(press>>12), byte(press>>4), byte(press<<4)
	d[3], d[4], d[5] = byte(temp>>12), byte(temp>>4), byte(temp<<4)
}

// Reg returns the current value of a register.
func (s *Sim) Reg(reg byte) byte {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.regs[reg]
}

func (s *Sim) Detect(ctx context.Context, channel int, address byte) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.reachable(channel, address); err != nil {
		return err
	}
	return s.inject(OpDetect, 0)
}

func (s *Sim) Read(ctx context.Context, channel int, address byte, reg []byte, out []byte) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.reachable(channel, address); err != nil {
		return err
	}
	if len(reg) != 1 {
		return fmt.Errorf("bmp280test: expected a single register byte, got %d", len(reg))
	}
	if err := s.inject(OpRead, reg[0]); err != nil {
		return err
	}
	if int(reg[0])+len(out) > len(s.regs) {
		return fmt.Errorf("bmp280test: read past register %#x", reg[0])
	}
	copy(out, s.regs[reg[0]:])
	s.Reads++
	return nil
}

// Write accepts register/value pairs, the way the chip takes bursts.
func (s *Sim) Write(ctx context.Context, channel int, address byte, buf []byte) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.reachable(channel, address); err != nil {
		return err
	}
	if len(buf) < 2 || len(buf)%2 != 0 {
		return fmt.Errorf("bmp280test: write of %d bytes is not a register/value sequence", len(buf))
	}
	if err := s.inject(OpWrite, buf[0]); err != nil {
		return err
	}
	for i := 0; i < len(buf); i += 2 {
		s.writeReg(buf[i], buf[i+1])
	}
	s.Writes++
	return nil
}

func (s *Sim) writeReg(reg, value byte) {
	switch reg {
	case bmp280.RegSoftReset:
		if value == 0xB6 {
			s.regs[bmp280.RegCtrlMeas] = 0
			s.regs[bmp280.RegConfig] = 0
			s.Resets++
		}
	case bmp280.RegCtrlMeas, bmp280.RegConfig:
		s.regs[reg] = value
	}
}

func (s *Sim) reachable(channel int, address byte) error {
	if channel != s.channel {
		return fmt.Errorf("bmp280test: channel %d: %w", channel, sensors.ErrNoChannel)
	}
	if !s.present || address != s.addr {
		return fmt.Errorf("bmp280test: %#x: %w", address, sensors.ErrNoDevice)
	}
	return nil
}

func (s *Sim) inject(op Op, reg byte) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op, reg)
}

// FailOn returns a FaultFunc failing every op on reg.
func FailOn(op Op, reg byte) FaultFunc {
	return func(o Op, r byte) error {
		if o == op && r == reg {
			return fmt.Errorf("%s %#x: %w", op, reg, ErrInjected)
		}
		return nil
	}
}
