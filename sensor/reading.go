// Package sensor holds the types shared by every driver: the calibrated
// reading handed to consumers, the error codes, and the Sensor interface
// the station drives once per cycle.
package sensor

import (
	"context"
	"fmt"
	"math"

	"periph.io/x/conn/v3/physic"
)

// Quantity is the physical quantity a Reading carries.
type Quantity int

const (
	Temperature Quantity = iota + 1 // °C
	Pressure                        // Pa
	Humidity                        // %RH
	Voltage                         // V
	Ratio                           // dimensionless
	Resistance                      // Ω
	Light                           // raw photon counts
)

var quantityNames = map[Quantity]string{
	Temperature: "temperature",
	Pressure:    "pressure",
	Humidity:    "humidity",
	Voltage:     "voltage",
	Ratio:       "ratio",
	Resistance:  "resistance",
	Light:       "light",
}

var quantityUnits = map[Quantity]string{
	Temperature: "celsius",
	Pressure:    "pascal",
	Humidity:    "percent",
	Voltage:     "volts",
	Ratio:       "ratio",
	Resistance:  "ohms",
	Light:       "counts",
}

func (q Quantity) String() string {
	if s, ok := quantityNames[q]; ok {
		return s
	}
	return fmt.Sprintf("quantity(%d)", int(q))
}

// Unit is the base unit name, suitable for metric names.
func (q Quantity) Unit() string {
	return quantityUnits[q]
}

// Reading is one calibrated value produced by a driver. Channel
// distinguishes several values of the same quantity from one sensor
// (RGBC channels, ADC inputs) and is empty otherwise. Raw is the register
// code the value was computed from, where there is a single one.
type Reading struct {
	Sensor   string
	Quantity Quantity
	Channel  string
	Value    float64
	Raw      int64
}

// Key identifies the reading's series across cycles.
func (r Reading) Key() string {
	if r.Channel == "" {
		return r.Sensor + "/" + r.Quantity.String()
	}
	return r.Sensor + "/" + r.Quantity.String() + "/" + r.Channel
}

// Physic returns the value as a periph physic quantity for the quantities
// that have one; the boolean is false for ratios and counts.
func (r Reading) Physic() (fmt.Stringer, bool) {
	switch r.Quantity {
	case Temperature:
		return physic.Temperature(math.Round(r.Value*float64(physic.Celsius))) + physic.ZeroCelsius, true
	case Pressure:
		return physic.Pressure(math.Round(r.Value * float64(physic.Pascal))), true
	case Humidity:
		return physic.RelativeHumidity(math.Round(r.Value * float64(physic.PercentRH))), true
	case Voltage:
		return physic.ElectricPotential(math.Round(r.Value * float64(physic.Volt))), true
	case Resistance:
		return physic.ElectricResistance(math.Round(r.Value * float64(physic.Ohm))), true
	}
	return nil, false
}

func (r Reading) String() string {
	if p, ok := r.Physic(); ok {
		return r.Key() + "=" + p.String()
	}
	return fmt.Sprintf("%s=%g", r.Key(), r.Value)
}

// A Sensor produces readings on demand. Measure is called from a single
// goroutine; implementations share the bus with other sensors and must
// not hold it between calls.
type Sensor interface {
	Name() string
	Measure(ctx context.Context) ([]Reading, error)
}
