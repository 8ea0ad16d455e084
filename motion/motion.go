// Package motion samples a passive infrared motion sensor on a digital
// input and publishes an event for every sample taken while the input is
// high.
package motion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calmh/envsense/sensor"
	"github.com/google/uuid"
	"periph.io/x/conn/v3/gpio"
)

const DefaultInterval = 5 * time.Second

var ErrStarted = errors.New("detector already started")

// An Input is a digital input; gpio.PinIn satisfies it.
type Input interface {
	Read() gpio.Level
}

type Config struct {
	// Interval between samples. Zero means DefaultInterval.
	Interval time.Duration
	// Buffer is the event channel capacity. Events that do not fit are
	// dropped and counted.
	Buffer int
}

type Event struct {
	ID uuid.UUID
	At time.Time
}

type Detector struct {
	in       Input
	interval time.Duration
	events   chan Event
	dropped  atomic.Uint64

	mut     sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(in Input, cfg Config) (*Detector, error) {
	if cfg.Interval < 0 {
		return nil, sensor.Invalid("motion interval", "%v", cfg.Interval)
	}
	if cfg.Buffer < 0 {
		return nil, sensor.Invalid("motion buffer", "%d", cfg.Buffer)
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	return &Detector{
		in:       in,
		interval: cfg.Interval,
		events:   make(chan Event, cfg.Buffer),
		done:     make(chan struct{}),
	}, nil
}

// Events returns the event channel. It is closed when the detector stops.
func (d *Detector) Events() <-chan Event { return d.events }

// Dropped returns the number of events discarded because the channel was
// full.
func (d *Detector) Dropped() uint64 { return d.dropped.Load() }

// Start samples the input in the background until ctx is cancelled or
// Stop is called. A detector can be started once.
func (d *Detector) Start(ctx context.Context) error {
	d.mut.Lock()
	defer d.mut.Unlock()
	if d.started {
		return ErrStarted
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	go d.serve(ctx)
	return nil
}

// Stop cancels sampling and waits for the background task to exit.
func (d *Detector) Stop() {
	d.mut.Lock()
	started, cancel := d.started, d.cancel
	d.mut.Unlock()
	if !started {
		return
	}
	cancel()
	<-d.done
}

func (d *Detector) serve(ctx context.Context) {
	defer close(d.done)
	defer close(d.events)

	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		d.sample()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (d *Detector) sample() {
	if d.in.Read() != gpio.High {
		return
	}
	select {
	case d.events <- Event{ID: uuid.New(), At: time.Now()}:
	default:
		d.dropped.Add(1)
	}
}
