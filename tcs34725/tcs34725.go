// Package tcs34725 drives the AMS TCS34725 RGBC colour light sensor.
package tcs34725

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/calmh/envsense/i2c"
	"github.com/calmh/envsense/sensor"
	"golang.org/x/exp/constraints"
)

const (
	Address = 0x29

	tcsID = 0x44

	// Every register access is prefixed by the command bit; block reads
	// also set the auto-increment protocol.
	cmdBit     = 1 << 7
	cmdAutoInc = 1 << 5

	regEnable  = 0x00
	regAtime   = 0x01
	regWtime   = 0x03
	regControl = 0x0f
	regID      = 0x12
	regStatus  = 0x13
	regCdataL  = 0x14

	enablePON = 1 << 0
	enableAEN = 1 << 1

	statusAValid = 1 << 0

	minTimeMS = 2.4
	maxTimeMS = 700

	DefaultIntegrationTime = 30 * time.Millisecond
)

// Gain is the analog gain of the RGBC channels.
type Gain uint8

const (
	X1 Gain = iota
	X4
	X16
	X60
)

func (g Gain) validate() error {
	if g > X60 {
		return sensor.Invalid("tcs34725 gain", "setting %d out of range", g)
	}
	return nil
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TimeRegister encodes an integration or wait time in milliseconds. The
// time is clamped to [2.4, 700] ms; longer times give smaller values.
func TimeRegister(ms float64) uint8 {
	steps := math.Ceil(clamp(ms, minTimeMS, maxTimeMS))
	return uint8(256 - min(256, int(steps)))
}

// Config for New. Zero durations mean DefaultIntegrationTime.
type Config struct {
	Address         uint8
	IntegrationTime time.Duration
	WaitTime        time.Duration
	Gain            Gain
	Poll            i2c.Poll
}

func (c Config) validate() error {
	if c.IntegrationTime < 0 {
		return sensor.Invalid("tcs34725 integration time", "%v", c.IntegrationTime)
	}
	if c.WaitTime < 0 {
		return sensor.Invalid("tcs34725 wait time", "%v", c.WaitTime)
	}
	return c.Gain.validate()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// RGBC is one set of raw channel counts.
type RGBC struct {
	Clear, Red, Green, Blue uint16
}

type TCS34725 struct {
	bus  i2c.Bus
	addr uint8
	poll i2c.Poll
}

// New powers the device on, writes the timing and gain registers and
// verifies the device identity.
func New(bus i2c.Bus, cfg Config) (*TCS34725, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Address == 0 {
		cfg.Address = Address
	}
	if cfg.IntegrationTime == 0 {
		cfg.IntegrationTime = DefaultIntegrationTime
	}
	if cfg.WaitTime == 0 {
		cfg.WaitTime = DefaultIntegrationTime
	}

	s := &TCS34725{bus: bus, addr: cfg.Address, poll: cfg.Poll}
	for _, w := range []struct{ reg, val uint8 }{
		{regEnable, enablePON},
		{regAtime, TimeRegister(millis(cfg.IntegrationTime))},
		{regWtime, TimeRegister(millis(cfg.WaitTime))},
		{regControl, uint8(cfg.Gain)},
	} {
		if err := s.write(w.reg, w.val); err != nil {
			return nil, fmt.Errorf("initialize: %w", err)
		}
	}

	id, err := bus.ReadReg(s.addr, cmdBit|regID)
	if err != nil {
		return nil, fmt.Errorf("read device id: %w", err)
	}
	if id != tcsID {
		return nil, sensor.Mismatch("tcs34725", id, tcsID)
	}
	return s, nil
}

func (s *TCS34725) Name() string { return "tcs34725" }

func (s *TCS34725) write(reg, val uint8) error {
	return s.bus.WriteReg(s.addr, cmdBit|reg, val)
}

// Read enables the converter, waits for a valid measurement, reads all
// four channels and powers the converter down again.
func (s *TCS34725) Read(ctx context.Context) (RGBC, error) {
	if err := s.write(regEnable, enablePON|enableAEN); err != nil {
		return RGBC{}, fmt.Errorf("enable conversion: %w", err)
	}
	if err := s.poll.Wait(ctx, "tcs34725 measurement", i2c.Bit(s.bus, s.addr, cmdBit|regStatus, statusAValid, statusAValid)); err != nil {
		return RGBC{}, err
	}

	var buf [8]byte
	if err := s.bus.ReadBlock(s.addr, cmdBit|cmdAutoInc|regCdataL, buf[:]); err != nil {
		return RGBC{}, fmt.Errorf("read channel data: %w", err)
	}
	if err := s.write(regEnable, enablePON); err != nil {
		return RGBC{}, fmt.Errorf("disable conversion: %w", err)
	}

	word := func(i int) uint16 { return uint16(buf[i+1])<<8 | uint16(buf[i]) }
	return RGBC{Clear: word(0), Red: word(2), Green: word(4), Blue: word(6)}, nil
}

func (s *TCS34725) Measure(ctx context.Context) ([]sensor.Reading, error) {
	c, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	rs := make([]sensor.Reading, 0, 4)
	for _, ch := range []struct {
		name string
		v    uint16
	}{
		{"clear", c.Clear},
		{"red", c.Red},
		{"green", c.Green},
		{"blue", c.Blue},
	} {
		rs = append(rs, sensor.Reading{
			Sensor:   s.Name(),
			Quantity: sensor.Light,
			Channel:  ch.name,
			Value:    float64(ch.v),
			Raw:      int64(ch.v),
		})
	}
	return rs, nil
}
