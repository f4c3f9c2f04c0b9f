package bme280

import (
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
)

// Transport gives access to the device registers, whatever the bus.
type Transport interface {
	// ReadReg fills b with len(b) consecutive registers starting at reg.
	ReadReg(addr, reg uint8, b []byte) error
	// WriteReg writes a single register.
	WriteReg(addr, reg uint8, v byte) error
}

// Delayer blocks the calling goroutine.
type Delayer interface {
	Sleep(d time.Duration)
}

// SleepFunc adapts a function like time.Sleep to a Delayer.
type SleepFunc func(d time.Duration)

// Sleep implements Delayer.
func (f SleepFunc) Sleep(d time.Duration) {
	f(d)
}

// I2C is a Transport over an I²C bus.
type I2C struct {
	Bus i2c.Bus
}

// ReadReg implements Transport.
func (t *I2C) ReadReg(addr, reg uint8, b []byte) error {
	return t.Bus.Tx(uint16(addr), []byte{reg}, b)
}

// WriteReg implements Transport.
func (t *I2C) WriteReg(addr, reg uint8, v byte) error {
	return t.Bus.Tx(uint16(addr), []byte{reg, v}, nil)
}

func (t *I2C) String() string {
	return t.Bus.String()
}

// SPI is a Transport over a SPI connection. The device is selected with the
// CS line so addr is ignored.
type SPI struct {
	Conn conn.Conn
}

// ReadReg implements Transport.
func (t *SPI) ReadReg(addr, reg uint8, b []byte) error {
	// MSB is 0 for write and 1 for read. All registers read by the driver are
	// above 0x80 so the address already has it set.
	read := make([]byte, len(b)+1)
	write := make([]byte, len(read))
	// Rest of the write buffer is ignored.
	write[0] = reg
	if err := t.Conn.Tx(write, read); err != nil {
		return err
	}
	copy(b, read[1:])
	return nil
}

// WriteReg implements Transport.
func (t *SPI) WriteReg(addr, reg uint8, v byte) error {
	// set RW bit 7 to 0.
	return t.Conn.Tx([]byte{reg &^ 0x80, v}, nil)
}

func (t *SPI) String() string {
	return t.Conn.String()
}
