// Package ads1115 drives the TI ADS1115 16-bit, four input, programmable
// gain analog to digital converter.
//
// A Device holds the converter configuration. Channels obtained from it
// share the converter and differ only in the input multiplexer setting;
// every read writes the full configuration with the start bit set, so
// the conversion mode does not affect how reads are performed.
package ads1115

import (
	"context"
	"fmt"

	"github.com/calmh/envsense/i2c"
	"github.com/calmh/envsense/sensor"
)

const (
	Address = 0x48

	regConversion = 0x00
	regConfig     = 0x01
)

type Device struct {
	bus  i2c.Bus
	addr uint8
	cfg  Config
	poll i2c.Poll
}

// New validates cfg and writes it to the configuration register.
func New(bus i2c.Bus, cfg Config, poll i2c.Poll) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Address == 0 {
		cfg.Address = Address
	}
	d := &Device{bus: bus, addr: cfg.Address, cfg: cfg, poll: poll}
	if err := d.writeConfig(cfg.Bits()); err != nil {
		return nil, err
	}
	return d, nil
}

// Config returns the configuration the device was created with.
func (d *Device) Config() Config { return d.cfg }

// Channel returns a handle reading the given input with the device's
// range, rate and comparator settings.
func (d *Device) Channel(ch Channel) (*Input, error) {
	if err := ch.validate(); err != nil {
		return nil, err
	}
	cfg := d.cfg
	cfg.Channel = ch
	return &Input{dev: d, cfg: cfg}, nil
}

func (d *Device) writeConfig(v uint16) error {
	if err := d.bus.WriteBlock(d.addr, regConfig, []byte{byte(v >> 8), byte(v)}); err != nil {
		return fmt.Errorf("write config register: %w", err)
	}
	return nil
}

func (d *Device) readWord(reg uint8) (uint16, error) {
	var buf [2]byte
	if err := d.bus.ReadBlock(d.addr, reg, buf[:]); err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

func (d *Device) convert(ctx context.Context, cfg Config) (int16, error) {
	if err := d.writeConfig(cfg.Bits()); err != nil {
		return 0, err
	}
	err := d.poll.Wait(ctx, "ads1115 conversion", func() (bool, error) {
		v, err := d.readWord(regConfig)
		if err != nil {
			return false, fmt.Errorf("read config register: %w", err)
		}
		return v&osBit != 0, nil
	})
	if err != nil {
		return 0, err
	}
	v, err := d.readWord(regConversion)
	if err != nil {
		return 0, fmt.Errorf("read conversion register: %w", err)
	}
	return int16(v), nil
}

// Voltage converts a conversion code taken with cfg to volts. Inputs
// relative to ground read double the scaled value.
func Voltage(raw int16, cfg Config) float64 {
	v := float64(raw) * cfg.Range.Scale()
	if cfg.Channel.Relative() {
		v *= 2
	}
	return v
}

// Raw converts the configured channel.
func (d *Device) Raw(ctx context.Context) (int16, error) {
	return d.convert(ctx, d.cfg)
}

// Voltage returns the configured channel's voltage in volts.
func (d *Device) Voltage(ctx context.Context) (float64, error) {
	raw, err := d.Raw(ctx)
	if err != nil {
		return 0, err
	}
	return Voltage(raw, d.cfg), nil
}

// Input is one multiplexer setting of a Device.
type Input struct {
	dev *Device
	cfg Config
}

func (in *Input) Name() string { return "ads1115" }

// Channel returns the input's multiplexer setting.
func (in *Input) Channel() Channel { return in.cfg.Channel }

// Raw starts a conversion, waits for it to complete and returns the
// signed conversion code.
func (in *Input) Raw(ctx context.Context) (int16, error) {
	return in.dev.convert(ctx, in.cfg)
}

// Voltage returns the input voltage in volts.
func (in *Input) Voltage(ctx context.Context) (float64, error) {
	raw, err := in.Raw(ctx)
	if err != nil {
		return 0, err
	}
	return Voltage(raw, in.cfg), nil
}

func (in *Input) Measure(ctx context.Context) ([]sensor.Reading, error) {
	raw, err := in.Raw(ctx)
	if err != nil {
		return nil, err
	}
	return []sensor.Reading{{
		Sensor:   in.Name(),
		Quantity: sensor.Voltage,
		Channel:  in.cfg.Channel.String(),
		Value:    Voltage(raw, in.cfg),
		Raw:      int64(raw),
	}}, nil
}
