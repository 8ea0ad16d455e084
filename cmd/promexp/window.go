package main

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/calmh/envsense/sensor"
	"github.com/calmh/envsense/station"
)

type Measurer interface {
	Measure(ctx context.Context) station.Cycle
}

// Window keeps the last values of every reading series over a fixed
// duration and reports their median and spread.
type Window struct {
	st   Measurer
	intv time.Duration
	size int

	// OnCycle, when set, is called after each cycle has been added.
	OnCycle func(station.Cycle)

	mut    sync.Mutex
	series map[string]*series
}

type series struct {
	last   sensor.Reading
	values []float64
}

func NewWindow(total, intv time.Duration, st Measurer) *Window {
	size := int(total / intv)
	if size < 1 {
		size = 1
	}
	return &Window{
		st:     st,
		intv:   intv,
		size:   size,
		series: make(map[string]*series),
	}
}

// Serve measures once per interval until ctx is cancelled.
func (w *Window) Serve(ctx context.Context) {
	t := time.NewTicker(w.intv)
	defer t.Stop()
	for {
		c := w.st.Measure(ctx)
		for name, err := range c.Errors {
			log.Println("measure "+name+":", err)
		}
		w.update(c)
		if w.OnCycle != nil {
			w.OnCycle(c)
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (w *Window) update(c station.Cycle) {
	w.mut.Lock()
	defer w.mut.Unlock()
	for _, r := range c.Readings {
		s, ok := w.series[r.Key()]
		if !ok {
			s = &series{values: make([]float64, 0, w.size)}
			w.series[r.Key()] = s
		}
		s.last = r
		if len(s.values) < cap(s.values) {
			s.values = append(s.values, r.Value)
		} else {
			copy(s.values, s.values[1:])
			s.values[len(s.values)-1] = r.Value
		}
	}
}

// Median returns the median of the series' values in the window.
func (w *Window) Median(key string) (float64, bool) {
	w.mut.Lock()
	defer w.mut.Unlock()
	s, ok := w.series[key]
	if !ok || len(s.values) == 0 {
		return 0, false
	}
	return median(s.values), true
}

// Spread returns the difference between the largest and smallest value
// in the window.
func (w *Window) Spread(key string) (float64, bool) {
	w.mut.Lock()
	defer w.mut.Unlock()
	s, ok := w.series[key]
	if !ok || len(s.values) == 0 {
		return 0, false
	}
	return spread(s.values), true
}

// Each calls fn for every series, ordered by key, with the most recent
// reading of the series.
func (w *Window) Each(fn func(last sensor.Reading, median, spread float64)) {
	w.mut.Lock()
	keys := make([]string, 0, len(w.series))
	for k := range w.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	type result struct {
		last        sensor.Reading
		med, spread float64
	}
	res := make([]result, len(keys))
	for i, k := range keys {
		s := w.series[k]
		res[i] = result{s.last, median(s.values), spread(s.values)}
	}
	w.mut.Unlock()

	for _, r := range res {
		fn(r.last, r.med, r.spread)
	}
}

func median(vs []float64) float64 {
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	i := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[i-1] + sorted[i]) / 2
	}
	return sorted[i]
}

func spread(vs []float64) float64 {
	lo, hi := vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}
