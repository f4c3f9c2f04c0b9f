package bme280

// CalibData holds the factory trimming parameters.
//
// The values are never validated; a misread block propagates into the
// compensated values.
type CalibData struct {
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

	H1 uint8
	H2 int16
	H3 uint8
	H4 int16
	H5 int16
	H6 int8
}

// NewCalibData parses calibration data from both buffers.
//
// cd1 covers 0x88 through 0xA1 and must be at least 26 bytes.
// cd2 covers 0xE1 through 0xF0 and must be at least 7 bytes.
func NewCalibData(cd1, cd2 []byte) (c CalibData) {
	getInt16 := func(lsb, msb byte) int16 {
		return int16(lsb) | (int16(msb) << 8)
	}

	getUInt16 := func(lsb, msb byte) uint16 {
		return uint16(lsb) | (uint16(msb) << 8)
	}

	c.T1 = getUInt16(cd1[0], cd1[1])
	c.T2 = getInt16(cd1[2], cd1[3])
	c.T3 = getInt16(cd1[4], cd1[5])

	c.P1 = getUInt16(cd1[6], cd1[7])
	c.P2 = getInt16(cd1[8], cd1[9])
	c.P3 = getInt16(cd1[10], cd1[11])
	c.P4 = getInt16(cd1[12], cd1[13])
	c.P5 = getInt16(cd1[14], cd1[15])
	c.P6 = getInt16(cd1[16], cd1[17])
	c.P7 = getInt16(cd1[18], cd1[19])
	c.P8 = getInt16(cd1[20], cd1[21])
	c.P9 = getInt16(cd1[22], cd1[23])

	// 0xA0 is unused; h1 sits alone in the upper byte of the last slot.
	c.H1 = cd1[25]

	c.H2 = getInt16(cd2[0], cd2[1])
	c.H3 = cd2[2]
	// h4 and h5 share 0xE5:
	// h4 = 0xE4[7:0] 0xE5[3:0], h5 = 0xE6[7:0] 0xE5[7:4].
	// Only h5 is sign-extended.
	c.H4 = int16(cd2[3])<<4 | int16(cd2[4]&0x0F)
	c.H5 = int16(int8(cd2[5]))<<4 | int16(cd2[4]>>4)
	c.H6 = int8(cd2[6])

	return c
}
