package ratio

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/calmh/envsense/ads1115"
	"github.com/calmh/envsense/i2c"
	"github.com/calmh/envsense/i2c/i2ctest"
	"github.com/calmh/envsense/sensor"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

type fixedVoltage struct {
	v   float64
	err error
}

func (f fixedVoltage) Voltage(context.Context) (float64, error) { return f.v, f.err }

var _ Voltmeter = (*ads1115.Input)(nil)
var _ Voltmeter = (*ads1115.Device)(nil)

func TestPhotoRatio(t *testing.T) {
	r, err := PhotoRatio(3.3, 1.65)
	assert.NilError(t, err)
	assert.Equal(t, r, 1.0)

	_, err = PhotoRatio(3.3, 0)
	assert.Assert(t, errors.Is(err, sensor.ErrDivideByZero))
	assert.Assert(t, errors.Is(err, sensor.ConfigurationInvalid))
}

func TestGasRatio(t *testing.T) {
	r, err := GasRatio(3.3, 3.3, 10)
	assert.NilError(t, err)
	assert.Equal(t, r, 0.0)

	r, err = GasRatio(3.3, 1.65, 10)
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(r-0.15) < 1e-12, "%v", r)

	for _, vout := range []float64{0, math.Copysign(0, -1)} {
		r, err = GasRatio(3.3, vout, 10)
		assert.Assert(t, errors.Is(err, sensor.ErrDivideByZero))
		assert.Assert(t, errors.Is(err, sensor.ConfigurationInvalid))
		assert.Assert(t, !math.IsNaN(r))
	}
}

func TestGasDefaults(t *testing.T) {
	g, err := NewGas(fixedVoltage{v: 1.65}, GasConfig{})
	assert.NilError(t, err)

	rs, err := g.Measure(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, len(rs), 2)
	assert.Equal(t, rs[0].Value, 1.65)
	assert.Assert(t, math.Abs(rs[1].Value-0.15) < 1e-12)
}

func TestGasZeroVoltage(t *testing.T) {
	g, err := NewGas(fixedVoltage{}, GasConfig{Vref: 3.3, K: 10})
	assert.NilError(t, err)

	_, err = g.Ratio(context.Background())
	assert.Assert(t, errors.Is(err, sensor.ErrDivideByZero))
	_, err = g.Measure(context.Background())
	assert.Assert(t, errors.Is(err, sensor.ErrDivideByZero))
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewGas(fixedVoltage{}, GasConfig{Vref: -1})
	assert.Assert(t, errors.Is(err, sensor.ConfigurationInvalid))
	_, err = NewGas(fixedVoltage{}, GasConfig{K: -10})
	assert.Assert(t, errors.Is(err, sensor.ConfigurationInvalid))
	_, err = NewPhotoresistor(fixedVoltage{}, PhotoConfig{FixedResistance: -1})
	assert.Assert(t, errors.Is(err, sensor.ConfigurationInvalid))
}

func TestPhotoresistorResistance(t *testing.T) {
	p, err := NewPhotoresistor(fixedVoltage{v: 1.65}, PhotoConfig{Vref: 3.3})
	assert.NilError(t, err)

	ohms, err := p.Resistance(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, ohms, 10000.0)

	rs, err := p.Measure(context.Background())
	assert.NilError(t, err)
	assert.Assert(t, cmp.DeepEqual(rs, []sensor.Reading{
		{Sensor: "photoresistor", Quantity: sensor.Voltage, Value: 1.65},
		{Sensor: "photoresistor", Quantity: sensor.Ratio, Value: 1},
		{Sensor: "photoresistor", Quantity: sensor.Resistance, Value: 10000},
	}))
}

func TestVoltmeterErrorPropagates(t *testing.T) {
	p, err := NewPhotoresistor(fixedVoltage{err: sensor.BusError("read", errors.New("nak"))}, PhotoConfig{})
	assert.NilError(t, err)
	_, err = p.Ratio(context.Background())
	assert.Assert(t, errors.Is(err, sensor.BusIO))
}

func TestOverADCChannel(t *testing.T) {
	bus := i2ctest.New()
	bus.Script(ads1115.Address, 0x01, []byte{0x80, 0x00})
	bus.Script(ads1115.Address, 0x00, []byte{0x00, 0x00})

	adc, err := ads1115.New(bus, ads1115.Config{Mode: ads1115.SingleShot}, i2c.Poll{MaxAttempts: 1})
	assert.NilError(t, err)
	in, err := adc.Channel(ads1115.AIN0)
	assert.NilError(t, err)
	g, err := NewGas(in, GasConfig{})
	assert.NilError(t, err)

	_, err = g.Ratio(context.Background())
	assert.Assert(t, errors.Is(err, sensor.ErrDivideByZero))
	assert.Assert(t, errors.Is(err, sensor.ConfigurationInvalid))
	assert.Assert(t, !errors.Is(err, sensor.PollTimeout))
}
