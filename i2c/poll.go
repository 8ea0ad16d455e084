package i2c

import (
	"context"
	"fmt"
	"time"

	"github.com/calmh/envsense/sensor"
)

const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultPollAttempts = 100
)

// Poll bounds a ready-bit wait. Zero or negative fields take the
// defaults.
type Poll struct {
	Interval    time.Duration
	MaxAttempts int
}

func (p Poll) withDefaults() Poll {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPollAttempts
	}
	return p
}

// Wait calls ready until it reports true, returns an error, the context
// ends or MaxAttempts checks have been made. Exhaustion is a
// sensor.PollTimeout error.
func (p Poll) Wait(ctx context.Context, op string, ready func() (bool, error)) error {
	p = p.withDefaults()

	var timer *time.Timer
	for i := 0; i < p.MaxAttempts; i++ {
		ok, err := ready()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if i == p.MaxAttempts-1 {
			break
		}

		if timer == nil {
			timer = time.NewTimer(p.Interval)
			defer timer.Stop()
		} else {
			timer.Reset(p.Interval)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return &sensor.Error{Code: sensor.PollTimeout, Op: op, Msg: fmt.Sprintf("not ready after %d attempts", p.MaxAttempts)}
}

// Bit returns a ready check that is true when the masked bits of a status
// register equal want.
func Bit(bus Bus, addr, reg, mask, want uint8) func() (bool, error) {
	return func() (bool, error) {
		v, err := bus.ReadReg(addr, reg)
		if err != nil {
			return false, err
		}
		return v&mask == want, nil
	}
}
