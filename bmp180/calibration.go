package bmp180

import (
	"encoding/binary"

	"github.com/calmh/envsense/sensor"
)

// Calibration holds the eleven factory coefficients stored in EEPROM
// from register 0xAA, big endian.
type Calibration struct {
	AC1, AC2, AC3 int16
	AC4, AC5, AC6 uint16
	B1, B2        int16
	MB, MC, MD    int16
}

const calibrationLen = 22

func parseCalibration(b []byte) Calibration {
	be := binary.BigEndian
	return Calibration{
		AC1: int16(be.Uint16(b[0:])),
		AC2: int16(be.Uint16(b[2:])),
		AC3: int16(be.Uint16(b[4:])),
		AC4: be.Uint16(b[6:]),
		AC5: be.Uint16(b[8:]),
		AC6: be.Uint16(b[10:]),
		B1:  int16(be.Uint16(b[12:])),
		B2:  int16(be.Uint16(b[14:])),
		MB:  int16(be.Uint16(b[16:])),
		MC:  int16(be.Uint16(b[18:])),
		MD:  int16(be.Uint16(b[20:])),
	}
}

// validate rejects a calibration block with an erased or unpopulated
// word; no coefficient is ever 0x0000 or 0xffff.
func validate(b []byte) error {
	for i := 0; i < calibrationLen; i += 2 {
		if w := binary.BigEndian.Uint16(b[i:]); w == 0 || w == 0xffff {
			return sensor.Singular("calibration", "coefficient %d is 0x%04x", i/2, w)
		}
	}
	return nil
}

// b5 is the temperature term shared by both compensations.
func (c Calibration) b5(ut int32) (int32, error) {
	x1 := (ut - int32(c.AC6)) * int32(c.AC5) >> 15
	if x1+int32(c.MD) == 0 {
		return 0, sensor.Singular("compensate temperature", "x1 + md is zero")
	}
	x2 := (int32(c.MC) << 11) / (x1 + int32(c.MD))
	return x1 + x2, nil
}

// Temperature returns the compensated temperature in °C for the raw
// temperature code ut. The integer result has a resolution of 0.1 °C.
func (c Calibration) Temperature(ut int32) (float64, error) {
	b5, err := c.b5(ut)
	if err != nil {
		return 0, err
	}
	t := (b5 + 8) >> 4
	return float64(t) / 10, nil
}

// Pressure returns the compensated pressure in Pa for the raw temperature
// code ut and the raw pressure code up acquired at oversampling oss.
func (c Calibration) Pressure(ut, up int32, oss Oversampling) (int32, error) {
	b5, err := c.b5(ut)
	if err != nil {
		return 0, err
	}
	s := oss.Exponent()

	b6 := b5 - 4000
	x1 := (int32(c.B2) * (b6 * b6 >> 12)) >> 11
	x2 := int32(c.AC2) * b6 >> 11
	x3 := x1 + x2
	b3 := ((int32(c.AC1)*4+x3)<<s + 2) / 4

	x1 = int32(c.AC3) * b6 >> 13
	x2 = (int32(c.B1) * (b6 * b6 >> 12)) >> 16
	x3 = ((x1 + x2) + 2) >> 2
	b4 := uint32(c.AC4) * uint32(x3+32768) >> 15
	if b4 == 0 {
		return 0, sensor.Singular("compensate pressure", "b4 is zero")
	}
	b7 := uint32(up-b3) * (50000 >> s)

	var p uint32
	if b7 < 0x80000000 {
		p = (b7 * 2) / b4
	} else {
		p = (b7 / b4) * 2
	}

	x1 = int32((p >> 8) * (p >> 8))
	x1 = (x1 * 3038) >> 16
	x2 = (-7357 * int32(p)) >> 16
	return int32(p) + (x1+x2+3791)>>4, nil
}
