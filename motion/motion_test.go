package motion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calmh/envsense/sensor"
	"github.com/google/uuid"
	"gotest.tools/v3/assert"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func setLevel(p *gpiotest.Pin, l gpio.Level) {
	p.Lock()
	p.L = l
	p.Unlock()
}

func TestConfig(t *testing.T) {
	d, err := New(&gpiotest.Pin{}, Config{})
	assert.NilError(t, err)
	assert.Equal(t, d.interval, DefaultInterval)

	_, err = New(&gpiotest.Pin{}, Config{Interval: -time.Second})
	assert.Assert(t, errors.Is(err, sensor.ConfigurationInvalid))
	_, err = New(&gpiotest.Pin{}, Config{Buffer: -1})
	assert.Assert(t, errors.Is(err, sensor.ConfigurationInvalid))
}

func TestEventsWhileHigh(t *testing.T) {
	pin := &gpiotest.Pin{N: "PIR"}
	setLevel(pin, gpio.High)

	d, err := New(pin, Config{Interval: time.Millisecond, Buffer: 4})
	assert.NilError(t, err)
	assert.NilError(t, d.Start(context.Background()))
	defer d.Stop()

	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 3; i++ {
		select {
		case ev := <-d.Events():
			assert.Assert(t, ev.ID != uuid.Nil)
			assert.Assert(t, !ev.At.IsZero())
			assert.Assert(t, !seen[ev.ID])
			seen[ev.ID] = true
		case <-time.After(5 * time.Second):
			t.Fatal("no event")
		}
	}
}

func TestNoEventsWhileLow(t *testing.T) {
	pin := &gpiotest.Pin{N: "PIR"}

	d, err := New(pin, Config{Interval: time.Millisecond, Buffer: 16})
	assert.NilError(t, err)
	assert.NilError(t, d.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	d.Stop()

	n := 0
	for range d.Events() {
		n++
	}
	assert.Equal(t, n, 0)
	assert.Equal(t, d.Dropped(), uint64(0))
}

func TestStopClosesEvents(t *testing.T) {
	pin := &gpiotest.Pin{N: "PIR"}
	setLevel(pin, gpio.High)

	d, err := New(pin, Config{Interval: time.Hour, Buffer: 1})
	assert.NilError(t, err)
	assert.NilError(t, d.Start(context.Background()))

	// the first sample is taken immediately
	select {
	case <-d.Events():
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}

	d.Stop()
	_, ok := <-d.Events()
	assert.Assert(t, !ok)

	// idempotent
	d.Stop()
}

func TestContextCancelStops(t *testing.T) {
	d, err := New(&gpiotest.Pin{}, Config{Interval: time.Millisecond})
	assert.NilError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	assert.NilError(t, d.Start(ctx))
	cancel()

	select {
	case _, ok := <-d.Events():
		assert.Assert(t, !ok)
	case <-time.After(5 * time.Second):
		t.Fatal("detector did not stop")
	}
}

func TestDropsWhenFull(t *testing.T) {
	pin := &gpiotest.Pin{N: "PIR"}
	setLevel(pin, gpio.High)

	d, err := New(pin, Config{Interval: time.Millisecond})
	assert.NilError(t, err)
	assert.NilError(t, d.Start(context.Background()))

	deadline := time.Now().Add(5 * time.Second)
	for d.Dropped() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("no events dropped")
		}
		time.Sleep(time.Millisecond)
	}
	d.Stop()
}

func TestStartTwice(t *testing.T) {
	d, err := New(&gpiotest.Pin{}, Config{Interval: time.Millisecond})
	assert.NilError(t, err)
	assert.NilError(t, d.Start(context.Background()))
	defer d.Stop()
	assert.Assert(t, errors.Is(d.Start(context.Background()), ErrStarted))
}

func TestStopBeforeStart(t *testing.T) {
	d, err := New(&gpiotest.Pin{}, Config{})
	assert.NilError(t, err)
	d.Stop()
}
