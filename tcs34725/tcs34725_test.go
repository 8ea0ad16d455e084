package tcs34725

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calmh/envsense/i2c"
	"github.com/calmh/envsense/i2c/i2ctest"
	"github.com/calmh/envsense/sensor"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

var fastPoll = i2c.Poll{Interval: time.Microsecond, MaxAttempts: 5}

func newBus() *i2ctest.Bus {
	bus := i2ctest.New()
	bus.Set(Address, cmdBit|regID, tcsID)
	bus.Set(Address, cmdBit|regStatus, statusAValid)
	bus.Set(Address, cmdBit|cmdAutoInc|regCdataL,
		0x34, 0x12, // clear
		0x02, 0x01, // red
		0xff, 0x00, // green
		0x00, 0x80, // blue
	)
	return bus
}

func TestTimeRegister(t *testing.T) {
	cases := []struct {
		ms  float64
		reg uint8
	}{
		{30, 226},
		{2.4, 253},
		{0, 253},
		{-5, 253},
		{2.5, 253},
		{101, 155},
		{256, 0},
		{700, 0},
		{5000, 0},
	}

	for _, tc := range cases {
		if reg := TimeRegister(tc.ms); reg != tc.reg {
			t.Errorf("%d != expected %d for %v ms", reg, tc.reg, tc.ms)
		}
	}
}

func TestNewWritesConfiguration(t *testing.T) {
	bus := newBus()
	_, err := New(bus, Config{Gain: X16, WaitTime: 2400 * time.Microsecond})
	assert.NilError(t, err)

	assert.Assert(t, cmp.DeepEqual(bus.Writes(), []i2ctest.Write{
		{Addr: Address, Reg: cmdBit | regEnable, Data: []byte{enablePON}},
		{Addr: Address, Reg: cmdBit | regAtime, Data: []byte{226}},
		{Addr: Address, Reg: cmdBit | regWtime, Data: []byte{253}},
		{Addr: Address, Reg: cmdBit | regControl, Data: []byte{0x02}},
	}))
}

func TestNewIdentityMismatch(t *testing.T) {
	bus := newBus()
	bus.Set(Address, cmdBit|regID, 0x4d)

	s, err := New(bus, Config{})
	assert.Assert(t, s == nil)
	assert.Assert(t, errors.Is(err, sensor.IdentityMismatch))
}

func TestNewInvalidConfig(t *testing.T) {
	for _, cfg := range []Config{
		{Gain: 4},
		{IntegrationTime: -time.Millisecond},
		{WaitTime: -time.Millisecond},
	} {
		_, err := New(newBus(), cfg)
		assert.Assert(t, errors.Is(err, sensor.ConfigurationInvalid), "%+v", cfg)
	}
}

func TestRead(t *testing.T) {
	bus := newBus()
	s, err := New(bus, Config{Poll: fastPoll})
	assert.NilError(t, err)

	c, err := s.Read(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, c, RGBC{Clear: 0x1234, Red: 0x0102, Green: 0x00ff, Blue: 0x8000})

	// power-on, conversion on, conversion off
	assert.Assert(t, cmp.DeepEqual(bus.WritesTo(Address, cmdBit|regEnable), [][]byte{{0x01}, {0x03}, {0x01}}))
}

func TestMeasure(t *testing.T) {
	bus := newBus()
	s, err := New(bus, Config{Poll: fastPoll})
	assert.NilError(t, err)

	rs, err := s.Measure(context.Background())
	assert.NilError(t, err)
	assert.Assert(t, cmp.DeepEqual(rs, []sensor.Reading{
		{Sensor: "tcs34725", Quantity: sensor.Light, Channel: "clear", Value: 0x1234, Raw: 0x1234},
		{Sensor: "tcs34725", Quantity: sensor.Light, Channel: "red", Value: 0x0102, Raw: 0x0102},
		{Sensor: "tcs34725", Quantity: sensor.Light, Channel: "green", Value: 0x00ff, Raw: 0x00ff},
		{Sensor: "tcs34725", Quantity: sensor.Light, Channel: "blue", Value: 0x8000, Raw: 0x8000},
	}))
}

func TestReadWaitsForValid(t *testing.T) {
	bus := newBus()
	bus.Script(Address, cmdBit|regStatus, []byte{0x00}, []byte{0x00}, []byte{statusAValid})
	s, err := New(bus, Config{Poll: fastPoll})
	assert.NilError(t, err)

	_, err = s.Read(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, bus.Reads(Address, cmdBit|regStatus), 3)
}

func TestReadTimeout(t *testing.T) {
	bus := newBus()
	bus.Set(Address, cmdBit|regStatus, 0x00)
	s, err := New(bus, Config{Poll: fastPoll})
	assert.NilError(t, err)

	_, err = s.Read(context.Background())
	assert.Assert(t, errors.Is(err, sensor.PollTimeout))
	assert.Equal(t, bus.Reads(Address, cmdBit|cmdAutoInc|regCdataL), 0)
}

func TestReadBusError(t *testing.T) {
	bus := newBus()
	s, err := New(bus, Config{Poll: fastPoll})
	assert.NilError(t, err)

	bus.Fail(Address, cmdBit|cmdAutoInc|regCdataL, errors.New("nak"))
	_, err = s.Read(context.Background())
	assert.Assert(t, errors.Is(err, sensor.BusIO))
}
