// Package bme280 controls a Bosch BME280 device over I²C or SPI.
//
// The driver only uses forced mode: every Measure call triggers one
// conversion, waits for the device to clear its measuring flag and reads the
// result back. Compensation uses the 32 and 64 bits integer formulas from the
// datasheet and returns fixed point values (I22F10 and I24F8), never floats.
//
// Any bus can be used by implementing Transport; I2C and SPI wrap the periph
// buses.
//
// # Datasheet
//
// The URLs tend to rot, visit https://www.bosch-sensortec.com if they become
// invalid.
//
// https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bme280-ds002.pdf
//
// C Reference code can be found from Bosh at
// https://github.com/boschsensortec/BME280_SensorAPI
package bme280
