// Package hts221 drives the ST HTS221 humidity and temperature sensor.
package hts221

import (
	"context"
	"fmt"
	"math"

	"github.com/calmh/envsense/i2c"
	"github.com/calmh/envsense/sensor"
)

// ST HTS221 Humidity & Temperature Sensor

const (
	Address = 0x5f

	hts221ID          = 0xbc
	hts221WhoAmIReg   = 0x0f
	hts221AvConfReg   = 0x10
	hts221CtrlReg1    = 0x20
	hts221CtrlReg2    = 0x21
	hts221CtrlReg3    = 0x22
	hts221StatusReg   = 0x27
	hts221HumOutLReg  = 0x28
	hts221HumOutHReg  = 0x29
	hts221TempOutLReg = 0x2a
	hts221TempOutHReg = 0x2b
	h0rHx2Reg         = 0x30
	h1rHx2Reg         = 0x31
	t0degCx8Reg       = 0x32
	t1degCx8Reg       = 0x33
	t1t0msbReg        = 0x35
	h0t0OutRegL       = 0x36
	h0t0OutRegH       = 0x37
	h1t0OutRegL       = 0x3a
	h1t0OutRegH       = 0x3b
	t0OutRegL         = 0x3c
	t0OutRegH         = 0x3d
	t1OutRegL         = 0x3e
	t1OutRegH         = 0x3f

	ctrl1PD      = 1 << 7
	ctrl1BDU     = 1 << 2
	ctrl1Mask    = 0x87
	ctrl2Heater  = 1 << 1
	ctrl2OneShot = 1 << 0
	ctrl2Mask    = 0x83
	ctrl3DRDYEn  = 1 << 2
	ctrl3Mask    = 0xc4
	avConfMask   = 0x3f
	statusTDA    = 1 << 0
	statusHDA    = 1 << 1
)

// HumidityAvg is the number of internal humidity samples averaged per
// output value, 4 to 512.
type HumidityAvg uint8

const (
	HumidityAvg4 HumidityAvg = iota
	HumidityAvg8
	HumidityAvg16
	HumidityAvg32
	HumidityAvg64
	HumidityAvg128
	HumidityAvg256
	HumidityAvg512
)

func (a HumidityAvg) Samples() int { return 4 << a }

// TemperatureAvg is the number of internal temperature samples averaged
// per output value, 2 to 256.
type TemperatureAvg uint8

const (
	TemperatureAvg2 TemperatureAvg = iota
	TemperatureAvg4
	TemperatureAvg8
	TemperatureAvg16
	TemperatureAvg32
	TemperatureAvg64
	TemperatureAvg128
	TemperatureAvg256
)

func (a TemperatureAvg) Samples() int { return 2 << a }

// DataRate is the output data rate. OneShot converts only when triggered.
type DataRate uint8

const (
	OneShot DataRate = iota
	Rate1Hz
	Rate7Hz
	Rate12_5Hz
)

// Config for New. The zero value is one-shot mode, minimal averaging and a
// single sample per reading.
type Config struct {
	Address         uint8
	HumidityAvg     HumidityAvg
	TemperatureAvg  TemperatureAvg
	DataRate        DataRate
	BlockDataUpdate bool
	Heater          bool
	DataReadyOutput bool
	// Samples is the number of conversions averaged per humidity reading.
	// Zero means one.
	Samples int
	Poll    i2c.Poll
}

func (c Config) validate() error {
	switch {
	case c.HumidityAvg > HumidityAvg512:
		return sensor.Invalid("hts221 humidity averaging", "setting %d out of range", c.HumidityAvg)
	case c.TemperatureAvg > TemperatureAvg256:
		return sensor.Invalid("hts221 temperature averaging", "setting %d out of range", c.TemperatureAvg)
	case c.DataRate > Rate12_5Hz:
		return sensor.Invalid("hts221 data rate", "setting %d out of range", c.DataRate)
	case c.Samples < 0:
		return sensor.Invalid("hts221 samples", "%d", c.Samples)
	}
	return nil
}

func (c Config) ctrl1() uint8 {
	v := ctrl1PD | uint8(c.DataRate)
	if c.BlockDataUpdate {
		v |= ctrl1BDU
	}
	return v & ctrl1Mask
}

func (c Config) ctrl2() uint8 {
	var v uint8
	if c.Heater {
		v |= ctrl2Heater
	}
	return v & ctrl2Mask
}

func (c Config) ctrl3() uint8 {
	var v uint8
	if c.DataReadyOutput {
		v |= ctrl3DRDYEn
	}
	return v & ctrl3Mask
}

func (c Config) avConf() uint8 {
	return (uint8(c.TemperatureAvg)<<3 | uint8(c.HumidityAvg)) & avConfMask
}

type HTS221 struct {
	bus     i2c.Bus
	addr    uint8
	cfg     Config
	humid   Curve
	temp    Curve
	samples int
}

// New verifies the device identity, writes the configuration and reads
// the calibration curves.
func New(bus i2c.Bus, cfg Config) (*HTS221, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Address == 0 {
		cfg.Address = Address
	}
	if cfg.Samples == 0 {
		cfg.Samples = 1
	}

	id, err := bus.ReadReg(cfg.Address, hts221WhoAmIReg)
	if err != nil {
		return nil, fmt.Errorf("read device id: %w", err)
	}
	if id != hts221ID {
		return nil, sensor.Mismatch("hts221", id, hts221ID)
	}

	// Initialize sensor

	for _, w := range []struct{ reg, val uint8 }{
		{hts221CtrlReg1, cfg.ctrl1()},
		{hts221CtrlReg2, cfg.ctrl2()},
		{hts221CtrlReg3, cfg.ctrl3()},
		{hts221AvConfReg, cfg.avConf()},
	} {
		if err := bus.WriteReg(cfg.Address, w.reg, w.val); err != nil {
			return nil, fmt.Errorf("write control register: %w", err)
		}
	}

	// Read calibration data

	r := i2c.NewReader(bus, cfg.Address)

	h0rH := float64(r.Unsigned(h0rHx2Reg)) / 2
	h1rH := float64(r.Unsigned(h1rHx2Reg)) / 2
	t0degC := float64(r.Unsigned(t0degCx8Reg))
	t1degC := float64(r.Unsigned(t1degCx8Reg))
	t1t0msb := r.Byte(t1t0msbReg)
	t0degC += float64((t1t0msb & 0x3) << 8)
	t1degC += float64((t1t0msb & 0xc) << 6)
	t0degC /= 8
	t1degC /= 8

	h0t0Out := float64(r.Signed(h0t0OutRegH, h0t0OutRegL))
	h1t0Out := float64(r.Signed(h1t0OutRegH, h1t0OutRegL))
	t0Out := float64(r.Signed(t0OutRegH, t0OutRegL))
	t1Out := float64(r.Signed(t1OutRegH, t1OutRegL))

	if err := r.Error(); err != nil {
		return nil, fmt.Errorf("read calibration data: %w", err)
	}

	s := &HTS221{bus: bus, addr: cfg.Address, cfg: cfg, samples: cfg.Samples}
	if s.humid, err = NewCurve(h0t0Out, h0rH, h1t0Out, h1rH); err != nil {
		return nil, fmt.Errorf("humidity: %w", err)
	}
	if s.temp, err = NewCurve(t0Out, t0degC, t1Out, t1degC); err != nil {
		return nil, fmt.Errorf("temperature: %w", err)
	}
	return s, nil
}

func (s *HTS221) Name() string { return "hts221" }

// HumidityCurve returns the humidity calibration read at construction.
func (s *HTS221) HumidityCurve() Curve { return s.humid }

// TemperatureCurve returns the temperature calibration read at
// construction.
func (s *HTS221) TemperatureCurve() Curve { return s.temp }

func (s *HTS221) powerUp() error {
	if err := s.bus.WriteReg(s.addr, hts221CtrlReg1, s.cfg.ctrl1()|ctrl1PD); err != nil {
		return fmt.Errorf("power up: %w", err)
	}
	return nil
}

// sample triggers a conversion when in one-shot mode, waits for the
// status bit and returns the signed output code.
func (s *HTS221) sample(ctx context.Context, ready uint8, hi, lo uint8) (int, error) {
	if s.cfg.DataRate == OneShot {
		if err := s.bus.WriteReg(s.addr, hts221CtrlReg2, s.cfg.ctrl2()|ctrl2OneShot); err != nil {
			return 0, fmt.Errorf("trigger conversion: %w", err)
		}
	}
	if err := s.cfg.Poll.Wait(ctx, "hts221 data ready", i2c.Bit(s.bus, s.addr, hts221StatusReg, ready, ready)); err != nil {
		return 0, err
	}

	r := i2c.NewReader(s.bus, s.addr)
	v := r.Signed(hi, lo)
	if err := r.Error(); err != nil {
		return 0, fmt.Errorf("read data: %w", err)
	}
	return v, nil
}

// Temperature returns the temperature in °C.
func (s *HTS221) Temperature(ctx context.Context) (float64, error) {
	raw, err := s.RawTemperature(ctx)
	if err != nil {
		return 0, err
	}
	return s.temp.At(float64(raw)), nil
}

// RawTemperature returns one temperature output code.
func (s *HTS221) RawTemperature(ctx context.Context) (int, error) {
	if err := s.powerUp(); err != nil {
		return 0, err
	}
	return s.sample(ctx, statusTDA, hts221TempOutHReg, hts221TempOutLReg)
}

// Humidity returns the relative humidity in percent, from the average of
// the configured number of conversions.
func (s *HTS221) Humidity(ctx context.Context) (float64, error) {
	raw, err := s.RawHumidity(ctx)
	if err != nil {
		return 0, err
	}
	return s.humid.At(raw), nil
}

// RawHumidity returns the average humidity output code over the
// configured number of conversions.
func (s *HTS221) RawHumidity(ctx context.Context) (float64, error) {
	if err := s.powerUp(); err != nil {
		return 0, err
	}

	// A pending temperature value is read to clear its ready bit.
	status, err := s.bus.ReadReg(s.addr, hts221StatusReg)
	if err != nil {
		return 0, fmt.Errorf("read status: %w", err)
	}
	if status&statusTDA != 0 {
		if _, err := s.bus.ReadReg(s.addr, hts221TempOutHReg); err != nil {
			return 0, fmt.Errorf("read data: %w", err)
		}
	}

	sum := 0
	for i := 0; i < s.samples; i++ {
		v, err := s.sample(ctx, statusHDA, hts221HumOutHReg, hts221HumOutLReg)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return float64(sum) / float64(s.samples), nil
}

func (s *HTS221) Measure(ctx context.Context) ([]sensor.Reading, error) {
	rawH, err := s.RawHumidity(ctx)
	if err != nil {
		return nil, err
	}
	rawT, err := s.RawTemperature(ctx)
	if err != nil {
		return nil, err
	}
	return []sensor.Reading{
		{Sensor: s.Name(), Quantity: sensor.Humidity, Value: s.humid.At(rawH), Raw: int64(math.Round(rawH))},
		{Sensor: s.Name(), Quantity: sensor.Temperature, Value: s.temp.At(float64(rawT)), Raw: int64(rawT)},
	}, nil
}
