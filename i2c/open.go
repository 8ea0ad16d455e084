package i2c

import (
	"fmt"
	"io"

	"gobot.io/x/gobot/sysfs"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/calmh/envsense/sensor"
)

// Transports accepted by Open.
const (
	Sysfs  = "sysfs"
	Periph = "periph"
)

// Open opens the bus device with the named transport. Sysfs uses the
// kernel's SMBus interface on a /dev/i2c-N path; Periph initializes the
// periph host drivers and accepts any name i2creg knows, including the
// empty string for the first bus.
func Open(transport, device string) (Bus, io.Closer, error) {
	switch transport {
	case Sysfs, "":
		dev, err := sysfs.NewI2cDevice(device)
		if err != nil {
			return nil, nil, sensor.BusError("open "+device, err)
		}
		return NewDeviceBus(dev), dev, nil

	case Periph:
		if _, err := host.Init(); err != nil {
			return nil, nil, fmt.Errorf("initialize host: %w", err)
		}
		bus, err := i2creg.Open(device)
		if err != nil {
			return nil, nil, sensor.BusError("open "+device, err)
		}
		return NewTxBus(bus), bus, nil

	default:
		return nil, nil, sensor.Invalid("i2c transport", "unknown transport %q", transport)
	}
}
