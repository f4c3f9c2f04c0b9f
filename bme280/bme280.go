package bme280

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

const (
	// The device has no "reset done" flag.
	resetDelay   = 10 * time.Millisecond
	pollInterval = 10 * time.Millisecond
)

// ErrChipID is returned by New when the chip id register doesn't hold 0x60,
// either because the device is not a BME280 or because nothing answered.
var ErrChipID = errors.New("unexpected chip id")

// TransportError is a failed register access. Err is the error returned by
// the Transport, untouched.
type TransportError struct {
	Op  string // "read" or "write"
	Reg byte
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s 0x%02X: %v", e.Op, e.Reg, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Temperature: O4x,
	Pressure:    O4x,
	Humidity:    O4x,
}

// Opts defines the options for the device.
//
// Recommended sensing settings as per the datasheet:
//
// → Weather monitoring: manual sampling once per minute, all sensors O1x.
// Power consumption: 0.16µA. RMS noise: 3.3Pa / 30cm, 0.07%RH.
//
// → Humidity sensing: manual sampling once per second, pressure Off, humidity
// and temperature O1X. Power consumption: 2.9µA, 0.07%RH.
//
// See the datasheet for more details about the trade offs.
type Opts struct {
	// Temperature must be measured for pressure and humidity to be measured.
	Temperature Oversampling
	Pressure    Oversampling
	Humidity    Oversampling
}

// Measurement is one compensated reading.
type Measurement struct {
	Temperature I22F10 // °C
	Pressure    I24F8  // Pa
	Humidity    I22F10 // %RH
}

// Settings is the content of the control registers as read back from the
// device.
type Settings struct {
	CtrlHum  CtrlHum
	Status   Status
	CtrlMeas CtrlMeas
	Config   Config
}

// NewI2C returns an object that communicates over I²C to a BME280
// environmental sensor.
//
// The address must be 0x76 or 0x77. The value used depends on HW
// configuration of the sensor's SDO pin.
//
// It is recommended to call Halt() when done with the device so it stops
// sampling.
func NewI2C(b i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	switch addr {
	case 0x76, 0x77:
	default:
		return nil, errors.New("bme280: given address not supported by device")
	}
	return New(&I2C{Bus: b}, uint8(addr), SleepFunc(doSleep), opts)
}

// NewSPI returns an object that communicates over SPI to a BME280
// environmental sensor.
//
// When using SPI, the CS line must be used.
func NewSPI(p spi.Port, opts *Opts) (*Dev, error) {
	// It works both in Mode0 and Mode3.
	c, err := p.Connect(10*physic.MegaHertz, spi.Mode3, 8)
	if err != nil {
		return nil, fmt.Errorf("bme280: %w", err)
	}
	return New(&SPI{Conn: c}, 0, SleepFunc(doSleep), opts)
}

// New resets the device behind t, checks its identity, loads the calibration
// and applies opts. When opts is nil DefaultOpts is used.
//
// The returned Dev is ready to Measure.
func New(t Transport, addr uint8, delay Delayer, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{t: t, addr: addr, delay: delay, opts: *opts, name: "BME280"}
	if err := d.makeDev(); err != nil {
		return nil, err
	}
	return d, nil
}

// Dev is a handle to an initialized BME280 device.
type Dev struct {
	t     Transport
	addr  uint8
	delay Delayer
	opts  Opts
	name  string
	cal   CalibData

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

func (d *Dev) String() string {
	return fmt.Sprintf("%s{%s}", d.name, d.t)
}

// Calibration returns the calibration loaded at initialization.
func (d *Dev) Calibration() CalibData {
	return d.cal
}

// Measure triggers a forced conversion, waits for it and returns the
// compensated values.
//
// The wait for the conversion is not bounded; it returns only once the
// device clears its measuring flag or the bus fails.
func (d *Dev) Measure() (Measurement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return Measurement{}, d.wrap(errors.New("already sensing continuously"))
	}
	return d.measure()
}

// ReadSettings reads back the control and status registers.
func (d *Dev) ReadSettings() (Settings, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf [settingSize]byte
	if err := d.readReg(AddrCtrlHum, buf[:]); err != nil {
		return Settings{}, err
	}
	var s Settings
	var err error
	if s.CtrlHum, err = decodeCtrlHum(buf[AddrCtrlHum-AddrCtrlHum]); err != nil {
		return s, d.wrap(err)
	}
	s.Status = decodeStatus(buf[AddrStatus-AddrCtrlHum])
	if s.CtrlMeas, err = decodeCtrlMeas(buf[AddrCtrlMeas-AddrCtrlHum]); err != nil {
		return s, d.wrap(err)
	}
	if s.Config, err = decodeConfig(buf[AddrConfig-AddrCtrlHum]); err != nil {
		return s, d.wrap(err)
	}
	return s, nil
}

//

func (d *Dev) makeDev() error {
	log.Debugf("%s: soft reset", d)
	if err := d.writeReg(AddrReset, resetCmd); err != nil {
		return err
	}
	d.delay.Sleep(resetDelay)

	var id [1]byte
	if err := d.readReg(AddrChipID, id[:]); err != nil {
		return err
	}
	if id[0] != chipID {
		return d.wrap(fmt.Errorf("%w 0x%02X", ErrChipID, id[0]))
	}

	var cal1 [cal1Size]byte
	if err := d.readReg(AddrCal1Start, cal1[:]); err != nil {
		return err
	}
	var cal2 [cal2Size]byte
	if err := d.readReg(AddrCal2Start, cal2[:]); err != nil {
		return err
	}
	d.cal = NewCalibData(cal1[:], cal2[:])
	log.Debugf("%s: calibration %+v", d, d.cal)

	// ctrl_hum only becomes effective after a write to ctrl_meas.
	if err := d.writeReg(AddrCtrlHum, CtrlHum{Humidity: d.opts.Humidity}.encode()); err != nil {
		return err
	}
	m := CtrlMeas{Temperature: d.opts.Temperature, Pressure: d.opts.Pressure, Mode: Sleep}
	return d.writeReg(AddrCtrlMeas, m.encode())
}

// measure must be called with d.mu lock held.
func (d *Dev) measure() (Measurement, error) {
	if err := d.setMode(Forced); err != nil {
		return Measurement{}, err
	}
	if err := d.waitIdle(); err != nil {
		return Measurement{}, err
	}
	var buf [rawSize]byte
	if err := d.readReg(AddrPressMSB, buf[:]); err != nil {
		return Measurement{}, err
	}
	return d.compensate(decodeRaw(buf[:])), nil
}

func (d *Dev) compensate(raw RawMeasurement) Measurement {
	tFine, centiC := CompensateTemperature(&d.cal, raw.Temperature)
	return Measurement{
		Temperature: NewI22F10(centiC, 0).Div(NewI22F10(100, 0)),
		Pressure:    CompensatePressure(&d.cal, tFine, raw.Pressure),
		Humidity:    CompensateHumidity(&d.cal, tFine, raw.Humidity),
	}
}

// setMode changes the mode bits of ctrl_meas, keeping the oversampling bits.
func (d *Dev) setMode(m Mode) error {
	var v [1]byte
	if err := d.readReg(AddrCtrlMeas, v[:]); err != nil {
		return err
	}
	return d.writeReg(AddrCtrlMeas, withMode(v[0], m))
}

func (d *Dev) waitIdle() error {
	for {
		idle, err := d.isIdle()
		if err != nil || idle {
			return err
		}
		d.delay.Sleep(pollInterval)
	}
}

func (d *Dev) isIdle() (bool, error) {
	// status
	v := [1]byte{}
	if err := d.readReg(AddrStatus, v[:]); err != nil {
		return false, err
	}
	// Only bit 3 matters; bit 0 is only important at device boot up.
	return !decodeStatus(v[0]).Measuring, nil
}

func (d *Dev) readReg(reg uint8, b []byte) error {
	if err := d.t.ReadReg(d.addr, reg, b); err != nil {
		return d.wrap(&TransportError{Op: "read", Reg: reg, Err: err})
	}
	return nil
}

func (d *Dev) writeReg(reg uint8, v byte) error {
	if err := d.t.WriteReg(d.addr, reg, v); err != nil {
		return d.wrap(&TransportError{Op: "write", Reg: reg, Err: err})
	}
	return nil
}

func (d *Dev) wrap(err error) error {
	return fmt.Errorf("bme280: %w", err)
}

var doSleep = time.Sleep

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
