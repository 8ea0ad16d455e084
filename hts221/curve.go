package hts221

import "github.com/calmh/envsense/sensor"

// Curve is a two-point linear calibration mapping a raw output code to a
// physical value.
type Curve struct {
	Out0, V0 float64
	Out1, V1 float64
}

// NewCurve returns the curve through (out0, v0) and (out1, v1). Equal
// codes make the curve singular.
func NewCurve(out0, v0, out1, v1 float64) (Curve, error) {
	if out1 == out0 {
		return Curve{}, sensor.Singular("calibration curve", "reference codes are both %v", out0)
	}
	return Curve{Out0: out0, V0: v0, Out1: out1, V1: v1}, nil
}

func (c Curve) Slope() float64 {
	return (c.V1 - c.V0) / (c.Out1 - c.Out0)
}

func (c Curve) Intercept() float64 {
	return (c.Out1*c.V0 - c.Out0*c.V1) / (c.Out1 - c.Out0)
}

// At returns Slope()*raw + Intercept(), evaluated with a single division.
func (c Curve) At(raw float64) float64 {
	return ((c.V1-c.V0)*raw + (c.Out1*c.V0 - c.Out0*c.V1)) / (c.Out1 - c.Out0)
}
