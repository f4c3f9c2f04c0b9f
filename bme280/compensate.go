package bme280

// humidityMax is 100%RH in the pre-shift Q22.10 << 12 domain.
const humidityMax = 419430400

// CompensateTemperature returns the fine temperature and the temperature in
// °C, resolution is 0.01 °C. Output value of 5123 equals 51.23 C.
//
// tFine is needed by CompensatePressure and CompensateHumidity, so this
// function must always be called first.
//
// raw has 20 bits of resolution.
// This function has been ported from the BME280 datasheet, section 4.2.3.
func CompensateTemperature(c *CalibData, raw uint32) (tFine, centiC int32) {
	x := int32(raw>>3) - int32(c.T1)<<1
	var1 := (x * int32(c.T2)) >> 11
	y := int32(raw>>4) - int32(c.T1)
	var2 := (((y * y) >> 12) * int32(c.T3)) >> 14
	tFine = var1 + var2
	return tFine, (tFine*5 + 128) >> 8
}

// CompensatePressure returns pressure in Pa in Q24.8 format (24 integer bits
// and 8 fractional bits). Output value of 24674867 represents 24674867/256 =
// 96386.2 Pa = 963.862 hPa.
//
// raw has 20 bits of resolution.
func CompensatePressure(c *CalibData, tFine int32, raw uint32) I24F8 {
	var1 := int64(tFine) - 128000
	var2 := var1 * var1 * int64(c.P6)
	var2 += (var1 * int64(c.P5)) << 17
	var2 += int64(c.P4) << 35
	var1 = ((var1 * var1 * int64(c.P3)) >> 8) + ((var1 * int64(c.P2)) << 12)
	var1 = ((int64(1)<<47 + var1) * int64(c.P1)) >> 33
	if var1 == 0 {
		// Avoid exception caused by division by zero.
		return 0
	}
	p := 1048576 - int64(raw)
	p = ((p<<31 - var2) * 3125) / var1
	var1 = (int64(c.P9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(c.P8) * p) >> 19
	p = ((p + var1 + var2) >> 8) + int64(c.P7)<<4
	return I24F8(uint32(p))
}

// CompensateHumidity returns humidity in %RH in Q22.10 format (22 integer
// and 10 fractional bits). Output value of 47445 represents 47445/1024 =
// 46.333%
//
// raw has 16 bits of resolution.
func CompensateHumidity(c *CalibData, tFine int32, raw uint32) I22F10 {
	x := tFine - 76800
	x1 := (int32(raw<<14) - int32(c.H4)<<20 - int32(c.H5)*x + 16384) >> 15
	h6 := (x * int32(c.H6)) >> 10
	h3 := (x*int32(c.H3))>>11 + 32768
	x2 := (((h6*h3)>>10+2097152)*int32(c.H2) + 8192) >> 14
	x = x1 * x2
	x -= ((((x >> 15) * (x >> 15)) >> 7) * int32(c.H1)) >> 4
	if x < 0 {
		x = 0
	} else if x > humidityMax {
		x = humidityMax
	}
	return I22F10(uint32(x >> 12))
}
