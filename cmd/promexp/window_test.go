package main

import (
	"context"
	"testing"
	"time"

	"github.com/calmh/envsense/sensor"
	"github.com/calmh/envsense/station"
	"gotest.tools/v3/assert"
)

func cycle(vs ...float64) station.Cycle {
	var c station.Cycle
	for _, v := range vs {
		c.Readings = append(c.Readings, sensor.Reading{Sensor: "bmp180", Quantity: sensor.Pressure, Value: v})
	}
	return c
}

func TestWindowMedian(t *testing.T) {
	w := NewWindow(3*time.Second, time.Second, nil)
	_, ok := w.Median("bmp180/pressure")
	assert.Assert(t, !ok)

	w.update(cycle(100))
	w.update(cycle(300))
	med, ok := w.Median("bmp180/pressure")
	assert.Assert(t, ok)
	assert.Equal(t, med, 200.0)

	w.update(cycle(150))
	med, _ = w.Median("bmp180/pressure")
	assert.Equal(t, med, 150.0)

	// 100 falls out of the window
	w.update(cycle(400))
	med, _ = w.Median("bmp180/pressure")
	assert.Equal(t, med, 300.0)
	sp, _ := w.Spread("bmp180/pressure")
	assert.Equal(t, sp, 250.0)
}

func TestWindowEach(t *testing.T) {
	w := NewWindow(time.Minute, time.Second, nil)
	w.update(station.Cycle{Readings: []sensor.Reading{
		{Sensor: "tcs34725", Quantity: sensor.Light, Channel: "red", Value: 3},
		{Sensor: "bmp180", Quantity: sensor.Temperature, Value: 15},
	}})

	var keys []string
	w.Each(func(r sensor.Reading, med, spread float64) {
		keys = append(keys, r.Key())
		assert.Equal(t, med, r.Value)
		assert.Equal(t, spread, 0.0)
	})
	assert.DeepEqual(t, keys, []string{"bmp180/temperature", "tcs34725/light/red"})
}

type fixedMeasurer struct{ c station.Cycle }

func (f fixedMeasurer) Measure(context.Context) station.Cycle { return f.c }

func TestWindowServe(t *testing.T) {
	w := NewWindow(time.Minute, time.Millisecond, fixedMeasurer{cycle(42)})
	ctx, cancel := context.WithCancel(context.Background())
	w.OnCycle = func(station.Cycle) { cancel() }

	w.Serve(ctx)
	med, ok := w.Median("bmp180/pressure")
	assert.Assert(t, ok)
	assert.Equal(t, med, 42.0)
}
