package ads1115

import "github.com/calmh/envsense/sensor"

// Configuration register fields.
const (
	osBit         = 1 << 15
	muxShift      = 12
	pgaShift      = 9
	modeShift     = 8
	drShift       = 5
	compPolBit    = 1 << 3
	compLatBit    = 1 << 2
	compQueueMask = 0x3
)

// Channel selects the input multiplexer setting: one of four differential
// pairs or one of four inputs relative to ground.
type Channel uint8

const (
	DiffAIN0AIN1 Channel = iota
	DiffAIN0AIN3
	DiffAIN1AIN3
	DiffAIN2AIN3
	AIN0
	AIN1
	AIN2
	AIN3
)

var channelNames = [...]string{"ain0-ain1", "ain0-ain3", "ain1-ain3", "ain2-ain3", "ain0", "ain1", "ain2", "ain3"}

func (c Channel) String() string {
	if int(c) < len(channelNames) {
		return channelNames[c]
	}
	return "invalid"
}

// Relative is true for inputs measured against ground.
func (c Channel) Relative() bool {
	return c >= AIN0 && c <= AIN3
}

func (c Channel) validate() error {
	if c > AIN3 {
		return sensor.Invalid("ads1115 channel", "setting %d out of range", c)
	}
	return nil
}

func (c Channel) bits() uint16 { return uint16(c) << muxShift }

// Range is the programmable gain amplifier setting, named by its full
// scale voltage.
type Range uint8

const (
	Range6_144V Range = iota
	Range4_096V
	Range2_048V
	Range1_024V
	Range0_512V
	Range0_256V
)

// Volts per count for each range. The relative-input doubling applied in
// Voltage brings a full scale code to the nominal range voltage.
var rangeScale = [...]float64{
	Range6_144V: 9.375e-5,
	Range4_096V: 6.25e-5,
	Range2_048V: 3.125e-5,
	Range1_024V: 1.5625e-5,
	Range0_512V: 7.8125e-6,
	Range0_256V: 3.90625e-6,
}

// Scale returns the volts per count before any relative-input doubling.
func (r Range) Scale() float64 {
	if int(r) < len(rangeScale) {
		return rangeScale[r]
	}
	return 0
}

func (r Range) validate() error {
	if r > Range0_256V {
		return sensor.Invalid("ads1115 range", "setting %d out of range", r)
	}
	return nil
}

func (r Range) bits() uint16 { return uint16(r) << pgaShift }

// DataRate is the conversion rate in samples per second.
type DataRate uint8

const (
	Rate8 DataRate = iota
	Rate16
	Rate32
	Rate64
	Rate128
	Rate250
	Rate475
	Rate860
)

var dataRates = [...]int{8, 16, 32, 64, 128, 250, 475, 860}

// PerSecond returns the nominal number of conversions per second.
func (d DataRate) PerSecond() int {
	if int(d) < len(dataRates) {
		return dataRates[d]
	}
	return 0
}

func (d DataRate) validate() error {
	if d > Rate860 {
		return sensor.Invalid("ads1115 data rate", "setting %d out of range", d)
	}
	return nil
}

func (d DataRate) bits() uint16 { return uint16(d) << drShift }

// Mode is the conversion mode.
type Mode uint8

const (
	Continuous Mode = iota
	SingleShot
)

func (m Mode) validate() error {
	if m > SingleShot {
		return sensor.Invalid("ads1115 mode", "setting %d out of range", m)
	}
	return nil
}

func (m Mode) bits() uint16 { return uint16(m) << modeShift }

// ComparatorQueue is the number of successive conversions exceeding a
// threshold before the ALERT pin asserts, or QueueDisabled.
type ComparatorQueue uint8

const (
	Queue1 ComparatorQueue = iota
	Queue2
	Queue4
	QueueDisabled
)

func (q ComparatorQueue) validate() error {
	if q > QueueDisabled {
		return sensor.Invalid("ads1115 comparator queue", "setting %d out of range", q)
	}
	return nil
}

func (q ComparatorQueue) bits() uint16 { return uint16(q) & compQueueMask }

// Config is the acquisition configuration written to the configuration
// register.
type Config struct {
	Address              uint8
	Channel              Channel
	Range                Range
	DataRate             DataRate
	Mode                 Mode
	Queue                ComparatorQueue
	ComparatorActiveHigh bool
	ComparatorLatching   bool
}

func (c Config) Validate() error {
	for _, err := range []error{
		c.Channel.validate(),
		c.Range.validate(),
		c.DataRate.validate(),
		c.Mode.validate(),
		c.Queue.validate(),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Bits composes the configuration register value, including the
// start-conversion bit.
func (c Config) Bits() uint16 {
	v := uint16(osBit) | c.Channel.bits() | c.Mode.bits() | c.DataRate.bits() | c.Range.bits() | c.Queue.bits()
	if c.ComparatorActiveHigh {
		v |= compPolBit
	}
	if c.ComparatorLatching {
		v |= compLatBit
	}
	return v
}
