package bme280

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// calibration ranges

	AddrCal1Start byte = 0x88 // calib00..calib25, t1..p9 and h1
	AddrCal1End   byte = 0xA1
	AddrCal2Start byte = 0xE1 // calib26..calib41, h2..h6
	AddrCal2End   byte = 0xF0

	AddrChipID byte = 0xD0 // read-only, should contain 0x60

	// control registers from this point on

	AddrReset    byte = 0xE0 // write-only, resetCmd triggers a power-on reset
	AddrCtrlHum  byte = 0xF2
	AddrStatus   byte = 0xF3 // status only
	AddrCtrlMeas byte = 0xF4
	AddrConfig   byte = 0xF5 // not written by this driver

	// data registers from this point on

	AddrPressMSB  byte = 0xF7
	AddrPressXLSB byte = 0xF9
	AddrTempMSB   byte = 0xFA
	AddrTempXLSB  byte = 0xFC
	AddrHumMSB    byte = 0xFD
	AddrHumLSB    byte = 0xFE
)

const (
	chipID   byte = 0x60
	resetCmd byte = 0xB6

	cal1Size    = int(AddrCal1End+1) - int(AddrCal1Start)
	cal2Size    = int(AddrCal2End+1) - int(AddrCal2Start)
	rawSize     = int(AddrHumLSB+1) - int(AddrPressMSB)
	settingSize = int(AddrConfig+1) - int(AddrCtrlHum)
)

// ErrUnrecognizedValue is returned when a register field holds an encoding
// that has no matching variant.
var ErrUnrecognizedValue = errors.New("bme280: unrecognized field value")

// field is a bit range inside a single register byte. Bit 0 is the least
// significant bit.
type field struct {
	offset uint8
	width  uint8
}

func (f field) mask() byte {
	return byte(1<<f.width-1) << f.offset
}

func (f field) get(b byte) byte {
	return (b & f.mask()) >> f.offset
}

func (f field) set(b, v byte) byte {
	return b&^f.mask() | (v<<f.offset)&f.mask()
}

var (
	// ctrl_hum
	fieldOsrsH = field{offset: 0, width: 3}

	// status
	fieldImUpdate  = field{offset: 0, width: 1}
	fieldMeasuring = field{offset: 3, width: 1}

	// ctrl_meas
	fieldMode  = field{offset: 0, width: 2}
	fieldOsrsP = field{offset: 2, width: 3}
	fieldOsrsT = field{offset: 5, width: 3}

	// config
	fieldSPI3W  = field{offset: 0, width: 1}
	fieldFilter = field{offset: 2, width: 3}
	fieldTSb    = field{offset: 5, width: 3}
)

// Oversampling affects how much time is taken to measure each of temperature,
// pressure and humidity.
type Oversampling uint8

// Possible oversampling values.
//
// The higher the more time and power it takes to take a measurement. Even at
// 16x for all 3 sensors, it is less than 100ms.
const (
	Off  Oversampling = 0 // skipped, output set to 0x8000 / 0x80000
	O1x  Oversampling = 1
	O2x  Oversampling = 2
	O4x  Oversampling = 3
	O8x  Oversampling = 4
	O16x Oversampling = 5
)

const oversamplingName = "Off1x2x4x8x16x"

var oversamplingIndex = [...]uint8{0, 3, 5, 7, 9, 11, 14}

func (o Oversampling) String() string {
	if o >= Oversampling(len(oversamplingIndex)-1) {
		return fmt.Sprintf("Oversampling(%d)", o)
	}
	return oversamplingName[oversamplingIndex[o]:oversamplingIndex[o+1]]
}

// ParseOversampling returns the Oversampling whose String() matches s,
// ignoring case.
func ParseOversampling(s string) (Oversampling, error) {
	for o := Off; o <= O16x; o++ {
		if strings.EqualFold(o.String(), s) {
			return o, nil
		}
	}
	return 0, fmt.Errorf("%w: oversampling %q", ErrUnrecognizedValue, s)
}

func decodeOversampling(v byte) (Oversampling, error) {
	if v > byte(O16x) {
		return 0, fmt.Errorf("%w: oversampling %#03b", ErrUnrecognizedValue, v)
	}
	return Oversampling(v), nil
}

// Mode is the operating mode.
type Mode uint8

const (
	Sleep     Mode = 0b00 // no operation, all registers accessible, lowest power, selected after startup
	Forced    Mode = 0b01 // perform one measurement, store results and return to sleep mode
	ForcedAlt Mode = 0b10 // same as Forced
	Normal    Mode = 0b11 // perpetual cycling of measurements and inactive periods
)

func (m Mode) String() string {
	switch m {
	case Sleep:
		return "Sleep"
	case Forced, ForcedAlt:
		return "Forced"
	case Normal:
		return "Normal"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

func decodeMode(v byte) (Mode, error) {
	if v > byte(Normal) {
		return 0, fmt.Errorf("%w: mode %#02b", ErrUnrecognizedValue, v)
	}
	return Mode(v), nil
}

// Filter is the IIR filter coefficient. It is only reported by ReadSettings;
// the driver leaves the config register untouched.
type Filter uint8

const (
	NoFilter Filter = 0
	F2       Filter = 1
	F4       Filter = 2
	F8       Filter = 3
	F16      Filter = 4
)

func decodeFilter(v byte) (Filter, error) {
	if v > byte(F16) {
		return 0, fmt.Errorf("%w: filter %#03b", ErrUnrecognizedValue, v)
	}
	return Filter(v), nil
}

// Standby is the inactive duration between measurements in normal mode.
type Standby uint8

const (
	S500us  Standby = 0b000
	S62ms   Standby = 0b001 // 62.5ms
	S125ms  Standby = 0b010
	S250ms  Standby = 0b011
	S500ms  Standby = 0b100
	S1000ms Standby = 0b101
	S10ms   Standby = 0b110
	S20ms   Standby = 0b111
)

func decodeStandby(v byte) (Standby, error) {
	if v > byte(S20ms) {
		return 0, fmt.Errorf("%w: standby %#03b", ErrUnrecognizedValue, v)
	}
	return Standby(v), nil
}

// CtrlHum is the ctrl_hum register (0xF2).
//
//	bits 2..0: osrs_h
type CtrlHum struct {
	Humidity Oversampling
}

func decodeCtrlHum(b byte) (CtrlHum, error) {
	h, err := decodeOversampling(fieldOsrsH.get(b))
	return CtrlHum{Humidity: h}, err
}

func (c CtrlHum) encode() byte {
	return fieldOsrsH.set(0, byte(c.Humidity))
}

// Status is the status register (0xF3).
//
//	bit 3: measuring, set while a conversion is running
//	bit 0: im_update, set while NVM data is copied to image registers
type Status struct {
	Measuring bool
	ImUpdate  bool
}

func decodeStatus(b byte) Status {
	return Status{
		Measuring: fieldMeasuring.get(b) == 1,
		ImUpdate:  fieldImUpdate.get(b) == 1,
	}
}

// CtrlMeas is the ctrl_meas register (0xF4).
//
//	bits 7..5: osrs_t
//	bits 4..2: osrs_p
//	bits 1..0: mode
type CtrlMeas struct {
	Temperature Oversampling
	Pressure    Oversampling
	Mode        Mode
}

func decodeCtrlMeas(b byte) (CtrlMeas, error) {
	var c CtrlMeas
	var err error
	if c.Temperature, err = decodeOversampling(fieldOsrsT.get(b)); err != nil {
		return c, err
	}
	if c.Pressure, err = decodeOversampling(fieldOsrsP.get(b)); err != nil {
		return c, err
	}
	c.Mode, err = decodeMode(fieldMode.get(b))
	return c, err
}

func (c CtrlMeas) encode() byte {
	b := fieldOsrsT.set(0, byte(c.Temperature))
	b = fieldOsrsP.set(b, byte(c.Pressure))
	return fieldMode.set(b, byte(c.Mode))
}

// withMode replaces only the mode bits of a raw ctrl_meas value.
func withMode(ctrlMeas byte, m Mode) byte {
	return fieldMode.set(ctrlMeas, byte(m))
}

// Config is the config register (0xF5).
//
//	bits 7..5: t_sb
//	bits 4..2: filter
//	bit 0:     spi3w_en
type Config struct {
	Standby Standby
	Filter  Filter
	SPI3W   bool
}

func decodeConfig(b byte) (Config, error) {
	var c Config
	var err error
	if c.Standby, err = decodeStandby(fieldTSb.get(b)); err != nil {
		return c, err
	}
	if c.Filter, err = decodeFilter(fieldFilter.get(b)); err != nil {
		return c, err
	}
	c.SPI3W = fieldSPI3W.get(b) == 1
	return c, nil
}

func (c Config) encode() byte {
	b := fieldTSb.set(0, byte(c.Standby))
	b = fieldFilter.set(b, byte(c.Filter))
	if c.SPI3W {
		b = fieldSPI3W.set(b, 1)
	}
	return b
}

// RawMeasurement holds the uncompensated ADC codes.
type RawMeasurement struct {
	Pressure    uint32 // 20 bits
	Temperature uint32 // 20 bits
	Humidity    uint32 // 16 bits
}

// decodeRaw unpacks the burst read of 0xF7..0xFE.
//
//	press: msb[7:0] lsb[7:0] xlsb[7:4]
//	temp:  msb[7:0] lsb[7:0] xlsb[7:4]
//	hum:   msb[7:0] lsb[7:0]
func decodeRaw(b []byte) RawMeasurement {
	return RawMeasurement{
		Pressure:    uint32(b[0])<<12 | uint32(b[1])<<4 | uint32(b[2])>>4,
		Temperature: uint32(b[3])<<12 | uint32(b[4])<<4 | uint32(b[5])>>4,
		Humidity:    uint32(b[6])<<8 | uint32(b[7]),
	}
}
