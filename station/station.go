// Package station builds the set of sensors attached to one bus and reads
// them once per cycle.
package station

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calmh/envsense/ads1115"
	"github.com/calmh/envsense/bmp180"
	"github.com/calmh/envsense/hts221"
	"github.com/calmh/envsense/i2c"
	"github.com/calmh/envsense/ratio"
	"github.com/calmh/envsense/sensor"
	"github.com/calmh/envsense/tcs34725"
	"github.com/google/uuid"
)

// GasInput and PhotoInput select the converter channel feeding a derived
// sensor.
type GasInput struct {
	Channel ads1115.Channel
	ratio.GasConfig
}

type PhotoInput struct {
	Channel ads1115.Channel
	ratio.PhotoConfig
}

// Config lists the sensors to build. A nil entry disables that sensor.
// The derived sensors need ADS1115; without them the converter's
// configured channel is measured as a voltage.
type Config struct {
	BMP180   *bmp180.Config
	HTS221   *hts221.Config
	ADS1115  *ads1115.Config
	Gas      *GasInput
	Photo    *PhotoInput
	TCS34725 *tcs34725.Config

	// Poll bounds every ready-bit wait.
	Poll i2c.Poll
}

// DefaultConfig returns the full sensor set: barometer at 4x
// oversampling, humidity sensor with 4x temperature averaging and block
// data update, gas sensor on AIN0, photoresistor on AIN1 and the colour
// sensor at 16x gain.
func DefaultConfig() Config {
	return Config{
		BMP180: &bmp180.Config{Oversampling: bmp180.Oss4},
		HTS221: &hts221.Config{
			TemperatureAvg:  hts221.TemperatureAvg4,
			BlockDataUpdate: true,
		},
		ADS1115: &ads1115.Config{
			Range:    ads1115.Range6_144V,
			DataRate: ads1115.Rate32,
			Mode:     ads1115.SingleShot,
			Queue:    ads1115.QueueDisabled,
		},
		Gas:      &GasInput{Channel: ads1115.AIN0},
		Photo:    &PhotoInput{Channel: ads1115.AIN1},
		TCS34725: &tcs34725.Config{Gain: tcs34725.X16},
	}
}

// Cycle is the result of one pass over every sensor.
type Cycle struct {
	ID       uuid.UUID
	At       time.Time
	Readings []sensor.Reading
	// Errors holds the failure of each sensor that did not produce
	// readings, by sensor name.
	Errors map[string]error
}

type Station struct {
	sensors []sensor.Sensor
}

// Open builds every configured sensor on bus. Sensors that fail
// construction are left out; their errors are joined into the returned
// error, which is non-nil even though the station is usable.
func Open(bus i2c.Bus, cfg Config) (*Station, error) {
	s := &Station{}
	var errs []error
	add := func(name string, sens sensor.Sensor, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		s.sensors = append(s.sensors, sens)
	}

	if cfg.BMP180 != nil {
		c := *cfg.BMP180
		c.Poll = pollOr(c.Poll, cfg.Poll)
		d, err := bmp180.New(bus, c)
		if err == nil {
			err = d.CheckID()
		}
		add("bmp180", d, err)
	}

	if cfg.HTS221 != nil {
		c := *cfg.HTS221
		c.Poll = pollOr(c.Poll, cfg.Poll)
		d, err := hts221.New(bus, c)
		add("hts221", d, err)
	}

	if cfg.ADS1115 != nil || cfg.Gas != nil || cfg.Photo != nil {
		var adc *ads1115.Device
		var err error
		if cfg.ADS1115 == nil {
			err = sensor.Invalid("ads1115", "derived sensors configured without a converter")
		} else {
			adc, err = ads1115.New(bus, *cfg.ADS1115, cfg.Poll)
		}

		if cfg.Gas == nil && cfg.Photo == nil {
			// The converter's own input is the sensor.
			var in *ads1115.Input
			if err == nil {
				in, err = adc.Channel(cfg.ADS1115.Channel)
			}
			add("ads1115", in, err)
		}
		if cfg.Gas != nil {
			var g *ratio.Gas
			gerr := err
			if gerr == nil {
				g, gerr = newGas(adc, *cfg.Gas)
			}
			add("gas", g, gerr)
		}
		if cfg.Photo != nil {
			var p *ratio.Photoresistor
			perr := err
			if perr == nil {
				p, perr = newPhoto(adc, *cfg.Photo)
			}
			add("photoresistor", p, perr)
		}
	}

	if cfg.TCS34725 != nil {
		c := *cfg.TCS34725
		c.Poll = pollOr(c.Poll, cfg.Poll)
		d, err := tcs34725.New(bus, c)
		add("tcs34725", d, err)
	}

	return s, errors.Join(errs...)
}

func newGas(adc *ads1115.Device, cfg GasInput) (*ratio.Gas, error) {
	in, err := adc.Channel(cfg.Channel)
	if err != nil {
		return nil, err
	}
	return ratio.NewGas(in, cfg.GasConfig)
}

func newPhoto(adc *ads1115.Device, cfg PhotoInput) (*ratio.Photoresistor, error) {
	in, err := adc.Channel(cfg.Channel)
	if err != nil {
		return nil, err
	}
	return ratio.NewPhotoresistor(in, cfg.PhotoConfig)
}

func pollOr(p, def i2c.Poll) i2c.Poll {
	if p == (i2c.Poll{}) {
		return def
	}
	return p
}

// New returns a station over already constructed sensors.
func New(sensors ...sensor.Sensor) *Station {
	return &Station{sensors: sensors}
}

// Sensors returns the names of the sensors in measurement order.
func (s *Station) Sensors() []string {
	names := make([]string, len(s.sensors))
	for i, sens := range s.sensors {
		names[i] = sens.Name()
	}
	return names
}

// Measure reads every sensor in turn. A failing sensor is recorded in
// the cycle's Errors and does not stop the others.
func (s *Station) Measure(ctx context.Context) Cycle {
	c := Cycle{
		ID:     uuid.New(),
		At:     time.Now(),
		Errors: make(map[string]error),
	}
	for _, sens := range s.sensors {
		rs, err := sens.Measure(ctx)
		if err != nil {
			c.Errors[sens.Name()] = err
			continue
		}
		c.Readings = append(c.Readings, rs...)
	}
	return c
}
