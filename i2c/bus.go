// Package i2c is the register-level transport shared by every driver. One
// Bus is opened per physical bus and handed to each driver at
// construction.
package i2c

import (
	"fmt"
	"sync"

	"github.com/calmh/envsense/sensor"
	"tinygo.org/x/drivers"
)

// A Bus performs addressed register transfers. Block transfers start at
// reg and rely on the device's own pointer auto-increment. Implementations
// report transport failures as sensor.BusIO errors.
type Bus interface {
	ReadReg(addr, reg uint8) (uint8, error)
	ReadBlock(addr, reg uint8, buf []byte) error
	WriteReg(addr, reg, val uint8) error
	WriteBlock(addr, reg uint8, data []byte) error
}

// A Device is typically a *sysfs.I2cDevice (gobot.io/x/gobot/sysfs).
type Device interface {
	SetAddress(address int) error
	ReadByteData(reg uint8) (val uint8, err error)
	WriteByteData(reg, val uint8) error
	WriteBlockData(reg uint8, data []byte) error
	WriteByte(val byte) error
	Read(b []byte) (int, error)
}

// DeviceBus is a Bus over a single SMBus style device handle whose target
// address is switched per transfer.
type DeviceBus struct {
	dev Device
	mut sync.Mutex
}

func NewDeviceBus(dev Device) *DeviceBus {
	return &DeviceBus{dev: dev}
}

func (b *DeviceBus) ReadReg(addr, reg uint8) (uint8, error) {
	b.mut.Lock()
	defer b.mut.Unlock()

	if err := b.dev.SetAddress(int(addr)); err != nil {
		return 0, sensor.BusError(op("set address", addr, reg), err)
	}
	val, err := b.dev.ReadByteData(reg)
	if err != nil {
		return 0, sensor.BusError(op("read", addr, reg), err)
	}
	return val, nil
}

func (b *DeviceBus) ReadBlock(addr, reg uint8, buf []byte) error {
	b.mut.Lock()
	defer b.mut.Unlock()

	if err := b.dev.SetAddress(int(addr)); err != nil {
		return sensor.BusError(op("set address", addr, reg), err)
	}
	if err := b.dev.WriteByte(reg); err != nil {
		return sensor.BusError(op("write pointer", addr, reg), err)
	}
	n, err := b.dev.Read(buf)
	if err != nil {
		return sensor.BusError(op("read block", addr, reg), err)
	}
	if n != len(buf) {
		return sensor.BusError(op("read block", addr, reg), fmt.Errorf("short read, %d of %d bytes", n, len(buf)))
	}
	return nil
}

func (b *DeviceBus) WriteReg(addr, reg, val uint8) error {
	b.mut.Lock()
	defer b.mut.Unlock()

	if err := b.dev.SetAddress(int(addr)); err != nil {
		return sensor.BusError(op("set address", addr, reg), err)
	}
	if err := b.dev.WriteByteData(reg, val); err != nil {
		return sensor.BusError(op("write", addr, reg), err)
	}
	return nil
}

func (b *DeviceBus) WriteBlock(addr, reg uint8, data []byte) error {
	b.mut.Lock()
	defer b.mut.Unlock()

	if err := b.dev.SetAddress(int(addr)); err != nil {
		return sensor.BusError(op("set address", addr, reg), err)
	}
	if err := b.dev.WriteBlockData(reg, data); err != nil {
		return sensor.BusError(op("write block", addr, reg), err)
	}
	return nil
}

// TxBus is a Bus over a combined write-then-read transaction primitive,
// as provided by periph.io's i2c.Bus and tinygo's drivers.I2C.
type TxBus struct {
	bus drivers.I2C
	mut sync.Mutex
}

func NewTxBus(bus drivers.I2C) *TxBus {
	return &TxBus{bus: bus}
}

func (b *TxBus) ReadReg(addr, reg uint8) (uint8, error) {
	var v [1]byte
	if err := b.ReadBlock(addr, reg, v[:]); err != nil {
		return 0, err
	}
	return v[0], nil
}

func (b *TxBus) ReadBlock(addr, reg uint8, buf []byte) error {
	b.mut.Lock()
	defer b.mut.Unlock()

	if err := b.bus.Tx(uint16(addr), []byte{reg}, buf); err != nil {
		return sensor.BusError(op("read", addr, reg), err)
	}
	return nil
}

func (b *TxBus) WriteReg(addr, reg, val uint8) error {
	return b.WriteBlock(addr, reg, []byte{val})
}

func (b *TxBus) WriteBlock(addr, reg uint8, data []byte) error {
	b.mut.Lock()
	defer b.mut.Unlock()

	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	if err := b.bus.Tx(uint16(addr), w, nil); err != nil {
		return sensor.BusError(op("write", addr, reg), err)
	}
	return nil
}

func op(what string, addr, reg uint8) string {
	return fmt.Sprintf("%s 0x%02x:0x%02x", what, addr, reg)
}
