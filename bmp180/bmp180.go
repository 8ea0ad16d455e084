// Package bmp180 drives the Bosch BMP180 barometric pressure and
// temperature sensor.
//
// The factory calibration is read once by New. Each measurement triggers a
// conversion, polls the start-of-conversion bit with a bounded wait, and
// compensates the raw codes with the datasheet's fixed-point algorithm.
package bmp180

import (
	"context"
	"fmt"

	"github.com/calmh/envsense/i2c"
	"github.com/calmh/envsense/sensor"
)

const (
	Address = 0x77

	regCalibration = 0xaa
	regID          = 0xd0
	regSoftReset   = 0xe0
	regCtrlMeas    = 0xf4
	regDataOutMSB  = 0xf6

	chipID        = 0x55
	cmdSoftReset  = 0xb6
	cmdTemp       = 0x2e
	cmdPressure   = 0x34
	ctrlSCOMask   = 0x20 // start of conversion, cleared when done
	ossShift      = 6
	maxExponent   = 3
	rawDataLength = 3
)

// Oversampling selects the number of internal pressure samples, trading
// conversion time for precision.
type Oversampling uint8

const (
	Oss1 Oversampling = iota
	Oss2
	Oss4
	Oss8
)

// ParseOversampling maps a sample count (1, 2, 4 or 8) to its setting.
func ParseOversampling(n int) (Oversampling, error) {
	switch n {
	case 1:
		return Oss1, nil
	case 2:
		return Oss2, nil
	case 4:
		return Oss4, nil
	case 8:
		return Oss8, nil
	}
	return 0, sensor.Invalid("oversampling", "%d samples not supported", n)
}

// Exponent is the oss value of the datasheet, log2 of the sample count.
func (o Oversampling) Exponent() uint {
	return uint(o)
}

// Samples is the number of internal samples, 1 to 8.
func (o Oversampling) Samples() int {
	return 1 << o.Exponent()
}

func (o Oversampling) Validate() error {
	if o > maxExponent {
		return sensor.Invalid("oversampling", "setting %d out of range", o)
	}
	return nil
}

func (o Oversampling) command() uint8 {
	return cmdPressure | uint8(o)<<ossShift
}

// Config for New. The zero value selects the fixed address, single
// sampling and the default poll bounds.
type Config struct {
	Address      uint8
	Oversampling Oversampling
	Poll         i2c.Poll
}

// Device is a BMP180 on a shared bus.
type Device struct {
	bus  i2c.Bus
	addr uint8
	oss  Oversampling
	poll i2c.Poll
	cal  Calibration
}

// New reads the calibration coefficients. It does not check the chip
// identity; see CheckID.
func New(bus i2c.Bus, cfg Config) (*Device, error) {
	if err := cfg.Oversampling.Validate(); err != nil {
		return nil, err
	}
	if cfg.Address == 0 {
		cfg.Address = Address
	}

	buf := make([]byte, calibrationLen)
	if err := bus.ReadBlock(cfg.Address, regCalibration, buf); err != nil {
		return nil, fmt.Errorf("read calibration data: %w", err)
	}
	if err := validate(buf); err != nil {
		return nil, err
	}

	return &Device{
		bus:  bus,
		addr: cfg.Address,
		oss:  cfg.Oversampling,
		poll: cfg.Poll,
		cal:  parseCalibration(buf),
	}, nil
}

func (d *Device) Name() string { return "bmp180" }

// Calibration returns the coefficients read at construction.
func (d *Device) Calibration() Calibration {
	return d.cal
}

// CheckID returns an IdentityMismatch error if the chip ID register does
// not hold the BMP180 ID.
func (d *Device) CheckID() error {
	id, err := d.bus.ReadReg(d.addr, regID)
	if err != nil {
		return fmt.Errorf("read chip id: %w", err)
	}
	if id != chipID {
		return sensor.Mismatch("bmp180", id, chipID)
	}
	return nil
}

// Reset performs a power-on reset sequence. The calibration read by New
// stays valid.
func (d *Device) Reset() error {
	return d.bus.WriteReg(d.addr, regSoftReset, cmdSoftReset)
}

func (d *Device) convert(ctx context.Context, cmd uint8) ([rawDataLength]byte, error) {
	var buf [rawDataLength]byte
	if err := d.bus.WriteReg(d.addr, regCtrlMeas, cmd); err != nil {
		return buf, fmt.Errorf("start conversion: %w", err)
	}
	if err := d.poll.Wait(ctx, "bmp180 conversion", i2c.Bit(d.bus, d.addr, regCtrlMeas, ctrlSCOMask, 0)); err != nil {
		return buf, err
	}
	if err := d.bus.ReadBlock(d.addr, regDataOutMSB, buf[:]); err != nil {
		return buf, fmt.Errorf("read data: %w", err)
	}
	return buf, nil
}

// RawTemperature returns the uncompensated temperature code UT.
func (d *Device) RawTemperature(ctx context.Context) (int32, error) {
	b, err := d.convert(ctx, cmdTemp)
	if err != nil {
		return 0, err
	}
	return int32(b[0])<<8 | int32(b[1]), nil
}

// RawPressure returns the uncompensated pressure code UP at the given
// oversampling.
func (d *Device) RawPressure(ctx context.Context, oss Oversampling) (int32, error) {
	if err := oss.Validate(); err != nil {
		return 0, err
	}
	b, err := d.convert(ctx, oss.command())
	if err != nil {
		return 0, err
	}
	raw := int32(b[0])<<16 | int32(b[1])<<8 | int32(b[2])
	return raw >> (8 - oss.Exponent()), nil
}

// Temperature returns the temperature in °C.
func (d *Device) Temperature(ctx context.Context) (float64, error) {
	ut, err := d.RawTemperature(ctx)
	if err != nil {
		return 0, err
	}
	return d.cal.Temperature(ut)
}

// Pressure returns the pressure in Pa. A temperature conversion is made
// first, as the compensation depends on it.
func (d *Device) Pressure(ctx context.Context, oss Oversampling) (int32, error) {
	ut, err := d.RawTemperature(ctx)
	if err != nil {
		return 0, err
	}
	up, err := d.RawPressure(ctx, oss)
	if err != nil {
		return 0, err
	}
	return d.cal.Pressure(ut, up, oss)
}

// Measure returns temperature and pressure from a single temperature
// conversion and one pressure conversion at the configured oversampling.
func (d *Device) Measure(ctx context.Context) ([]sensor.Reading, error) {
	ut, err := d.RawTemperature(ctx)
	if err != nil {
		return nil, err
	}
	up, err := d.RawPressure(ctx, d.oss)
	if err != nil {
		return nil, err
	}

	t, err := d.cal.Temperature(ut)
	if err != nil {
		return nil, err
	}
	p, err := d.cal.Pressure(ut, up, d.oss)
	if err != nil {
		return nil, err
	}

	return []sensor.Reading{
		{Sensor: d.Name(), Quantity: sensor.Temperature, Value: t, Raw: int64(ut)},
		{Sensor: d.Name(), Quantity: sensor.Pressure, Value: float64(p), Raw: int64(up)},
	}, nil
}
