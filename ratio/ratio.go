// Package ratio derives dimensionless quantities from an analog voltage
// and a known reference: the sensing resistance ratio of a resistive gas
// sensor and the resistance ratio of a photoresistor divider.
//
// The sensors hold no bus state; they read a Voltmeter, normally an
// ads1115 input.
package ratio

import (
	"context"

	"github.com/calmh/envsense/sensor"
)

const (
	DefaultVref            = 3.3
	DefaultGasK            = 10
	DefaultFixedResistance = 10000
)

// A Voltmeter returns a voltage in volts.
type Voltmeter interface {
	Voltage(ctx context.Context) (float64, error)
}

// GasRatio returns (vref/vout - vout/vref) / k.
func GasRatio(vref, vout, k float64) (float64, error) {
	if vout == 0 || vref == 0 || k == 0 {
		return 0, sensor.DivideByZero("gas ratio")
	}
	return (vref/vout - vout/vref) / k, nil
}

// PhotoRatio returns (vref - vsig) / vsig, the ratio of the
// photoresistor to the fixed divider resistor.
func PhotoRatio(vref, vsig float64) (float64, error) {
	if vsig == 0 {
		return 0, sensor.DivideByZero("photoresistor ratio")
	}
	return (vref - vsig) / vsig, nil
}

// GasConfig for NewGas. Zero fields take the defaults.
type GasConfig struct {
	Vref float64
	K    float64
}

type Gas struct {
	in   Voltmeter
	vref float64
	k    float64
}

func NewGas(in Voltmeter, cfg GasConfig) (*Gas, error) {
	if cfg.Vref == 0 {
		cfg.Vref = DefaultVref
	}
	if cfg.K == 0 {
		cfg.K = DefaultGasK
	}
	if cfg.Vref < 0 {
		return nil, sensor.Invalid("gas sensor", "reference voltage %v", cfg.Vref)
	}
	if cfg.K < 0 {
		return nil, sensor.Invalid("gas sensor", "ratio divisor %v", cfg.K)
	}
	return &Gas{in: in, vref: cfg.Vref, k: cfg.K}, nil
}

func (g *Gas) Name() string { return "gas" }

func (g *Gas) Ratio(ctx context.Context) (float64, error) {
	v, err := g.in.Voltage(ctx)
	if err != nil {
		return 0, err
	}
	return GasRatio(g.vref, v, g.k)
}

func (g *Gas) Measure(ctx context.Context) ([]sensor.Reading, error) {
	v, err := g.in.Voltage(ctx)
	if err != nil {
		return nil, err
	}
	r, err := GasRatio(g.vref, v, g.k)
	if err != nil {
		return nil, err
	}
	return []sensor.Reading{
		{Sensor: g.Name(), Quantity: sensor.Voltage, Value: v},
		{Sensor: g.Name(), Quantity: sensor.Ratio, Value: r},
	}, nil
}

// PhotoConfig for NewPhotoresistor. Zero fields take the defaults.
type PhotoConfig struct {
	Vref float64
	// FixedResistance is the divider resistor across which the signal
	// voltage is measured, in ohms.
	FixedResistance float64
}

type Photoresistor struct {
	in    Voltmeter
	vref  float64
	fixed float64
}

func NewPhotoresistor(in Voltmeter, cfg PhotoConfig) (*Photoresistor, error) {
	if cfg.Vref == 0 {
		cfg.Vref = DefaultVref
	}
	if cfg.FixedResistance == 0 {
		cfg.FixedResistance = DefaultFixedResistance
	}
	if cfg.Vref < 0 {
		return nil, sensor.Invalid("photoresistor", "reference voltage %v", cfg.Vref)
	}
	if cfg.FixedResistance < 0 {
		return nil, sensor.Invalid("photoresistor", "fixed resistance %v", cfg.FixedResistance)
	}
	return &Photoresistor{in: in, vref: cfg.Vref, fixed: cfg.FixedResistance}, nil
}

func (p *Photoresistor) Name() string { return "photoresistor" }

func (p *Photoresistor) Ratio(ctx context.Context) (float64, error) {
	v, err := p.in.Voltage(ctx)
	if err != nil {
		return 0, err
	}
	return PhotoRatio(p.vref, v)
}

// Resistance returns the photoresistor resistance in ohms.
func (p *Photoresistor) Resistance(ctx context.Context) (float64, error) {
	r, err := p.Ratio(ctx)
	if err != nil {
		return 0, err
	}
	return r * p.fixed, nil
}

func (p *Photoresistor) Measure(ctx context.Context) ([]sensor.Reading, error) {
	v, err := p.in.Voltage(ctx)
	if err != nil {
		return nil, err
	}
	r, err := PhotoRatio(p.vref, v)
	if err != nil {
		return nil, err
	}
	return []sensor.Reading{
		{Sensor: p.Name(), Quantity: sensor.Voltage, Value: v},
		{Sensor: p.Name(), Quantity: sensor.Ratio, Value: r},
		{Sensor: p.Name(), Quantity: sensor.Resistance, Value: r * p.fixed},
	}, nil
}
