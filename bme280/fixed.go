package bme280

import (
	"strconv"
)

// I22F10 is a 32 bits fixed point value with a signed 22 bits integer part
// and an unsigned 10 bits fractional part.
//
// It holds temperatures in °C and relative humidity in %RH. A humidity value
// of 47445 represents 47445/1024 = 46.333%RH.
type I22F10 uint32

// NewI22F10 returns integer + frac/1024. frac is truncated to 10 bits.
func NewI22F10(integer int32, frac uint32) I22F10 {
	return I22F10(uint32(integer)<<10 | frac&(1<<10-1))
}

// Int returns the integer part, rounded towards negative infinity.
func (f I22F10) Int() int32 {
	return int32(f) >> 10
}

// Frac returns the fractional part in 1/1024th.
func (f I22F10) Frac() uint32 {
	return uint32(f) & (1<<10 - 1)
}

// Bits returns the raw 32 bits word.
func (f I22F10) Bits() uint32 {
	return uint32(f)
}

// Div returns f / d, truncated towards zero.
//
// d must not be zero.
func (f I22F10) Div(d I22F10) I22F10 {
	return I22F10(uint32(int64(int32(f)) << 10 / int64(int32(d))))
}

func (f I22F10) String() string {
	return formatFixed(int64(int32(f)), 10)
}

// I24F8 is a 32 bits fixed point value with a signed 24 bits integer part and
// an unsigned 8 bits fractional part.
//
// It holds pressure in Pa. A value of 24674867 represents 24674867/256 =
// 96386.2 Pa = 963.862 hPa.
type I24F8 uint32

// NewI24F8 returns integer + frac/256. frac is truncated to 8 bits.
func NewI24F8(integer int32, frac uint32) I24F8 {
	return I24F8(uint32(integer)<<8 | frac&(1<<8-1))
}

// Int returns the integer part, rounded towards negative infinity.
func (f I24F8) Int() int32 {
	return int32(f) >> 8
}

// Frac returns the fractional part in 1/256th.
func (f I24F8) Frac() uint32 {
	return uint32(f) & (1<<8 - 1)
}

// Bits returns the raw 32 bits word.
func (f I24F8) Bits() uint32 {
	return uint32(f)
}

// Div returns f / d, truncated towards zero.
//
// d must not be zero.
func (f I24F8) Div(d I24F8) I24F8 {
	return I24F8(uint32(int64(int32(f)) << 8 / int64(int32(d))))
}

func (f I24F8) String() string {
	return formatFixed(int64(int32(f)), 8)
}

// formatFixed prints v/2^shift with 3 decimals, truncated.
func formatFixed(v int64, shift uint) string {
	var b []byte
	if v < 0 {
		b = append(b, '-')
		v = -v
	}
	b = strconv.AppendInt(b, v>>shift, 10)
	milli := (v & (1<<shift - 1)) * 1000 >> shift
	b = append(b, '.', byte('0'+milli/100), byte('0'+milli/10%10), byte('0'+milli%10))
	return string(b)
}
