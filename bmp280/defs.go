package bmp280

// I2C addresses selected by the SDO pin.
const (
	AddrLow  byte = 0x76
	AddrHigh byte = 0x77
)

// Chip identities reported by register 0xD0. 0x56 and 0x57 are engineering
// samples, mass production parts report 0x58.
const (
	ChipIDSample1 byte = 0x56
	ChipIDSample2 byte = 0x57
	ChipID        byte = 0x58
)

const (
	RegCalib     byte = 0x88
	RegChipID    byte = 0xD0
	RegSoftReset byte = 0xE0
	RegStatus    byte = 0xF3
	RegCtrlMeas  byte = 0xF4
	RegConfig    byte = 0xF5
	RegPressMSB  byte = 0xF7
)

const (
	softResetCmd = 0xB6
	calibLen     = 24
	dataLen      = 6

	// startup time after power on or soft reset
	startupDelayMs = 2
	chipIDRetries  = 5
	chipIDRetryMs  = 10

	// uncompensated readings outside (adcMin, adcMax) are invalid
	adcMin = 0x00000
	adcMax = 0xFFFF0
)

type Interface byte

const (
	InterfaceI2C Interface = iota
	InterfaceSPI
)

type PowerMode byte

const (
	SleepMode  PowerMode = 0x00
	ForcedMode PowerMode = 0x01
	NormalMode PowerMode = 0x03
)

func (m PowerMode) String() string {
	switch m {
	case SleepMode:
		return "sleep"
	case ForcedMode, 0x02:
		return "forced"
	case NormalMode:
		return "normal"
	default:
		return "unknown"
	}
}

type Oversampling byte

const (
	OversamplingNone Oversampling = iota
	Oversampling1x
	Oversampling2x
	Oversampling4x
	Oversampling8x
	Oversampling16x
)

type Filter byte

const (
	FilterOff Filter = iota
	FilterCoeff2
	FilterCoeff4
	FilterCoeff8
	FilterCoeff16
)

// StandbyTime is the inactive period between measurements in normal mode.
// It sets the output data rate.
type StandbyTime byte

const (
	Standby0_5ms StandbyTime = iota
	Standby62_5ms
	Standby125ms
	Standby250ms
	Standby500ms
	Standby1000ms
	Standby2000ms
	Standby4000ms
)

// bit positions within ctrl_meas (0xF4) and config (0xF5)
const (
	osTempPos   = 5
	osPresPos   = 2
	powerMask   = 0x03
	odrPos      = 5
	filterPos   = 2
	spi3wMask   = 0x01
	threeBitMsk = 0x07
)
