// Package i2ctest provides an in-memory i2c.Bus for driver tests.
package i2ctest

import (
	"fmt"
	"sync"

	"github.com/calmh/envsense/sensor"
)

type key struct {
	addr, reg uint8
}

// Write records one register write seen by the Bus.
type Write struct {
	Addr uint8
	Reg  uint8
	Data []byte
}

// Bus is a fake register bus. Each address has 256 bytes of register
// memory; block reads copy consecutive bytes starting at the register.
// Scripted responses for a specific register take precedence over memory:
// each read consumes one and the last one repeats. Devices with registers
// wider than a byte, whose addresses overlap in byte memory, are modelled
// with a single repeating Script per register. Writes are recorded but
// never change memory.
type Bus struct {
	mut    sync.Mutex
	mem    map[uint8]*[256]byte
	script map[key][][]byte
	fail   map[key]error
	writes []Write
	reads  map[key]int
}

func New() *Bus {
	return &Bus{
		mem:    make(map[uint8]*[256]byte),
		script: make(map[key][][]byte),
		fail:   make(map[key]error),
		reads:  make(map[key]int),
	}
}

// Set stores data in the register memory of addr starting at reg.
func (b *Bus) Set(addr, reg uint8, data ...byte) {
	b.mut.Lock()
	defer b.mut.Unlock()
	m := b.memory(addr)
	for i, v := range data {
		m[(int(reg)+i)&0xff] = v
	}
}

// Script queues the responses returned by successive reads starting at
// reg.
func (b *Bus) Script(addr, reg uint8, responses ...[]byte) {
	b.mut.Lock()
	defer b.mut.Unlock()
	k := key{addr, reg}
	b.script[k] = append(b.script[k], responses...)
}

// Fail makes every transfer to addr starting at reg return err.
func (b *Bus) Fail(addr, reg uint8, err error) {
	b.mut.Lock()
	defer b.mut.Unlock()
	b.fail[key{addr, reg}] = err
}

// Writes returns the writes seen so far.
func (b *Bus) Writes() []Write {
	b.mut.Lock()
	defer b.mut.Unlock()
	return append([]Write(nil), b.writes...)
}

// WritesTo returns the values written to one register, in order.
func (b *Bus) WritesTo(addr, reg uint8) [][]byte {
	b.mut.Lock()
	defer b.mut.Unlock()
	var res [][]byte
	for _, w := range b.writes {
		if w.Addr == addr && w.Reg == reg {
			res = append(res, w.Data)
		}
	}
	return res
}

// Reads returns how many reads started at reg.
func (b *Bus) Reads(addr, reg uint8) int {
	b.mut.Lock()
	defer b.mut.Unlock()
	return b.reads[key{addr, reg}]
}

func (b *Bus) ReadReg(addr, reg uint8) (uint8, error) {
	var v [1]byte
	if err := b.ReadBlock(addr, reg, v[:]); err != nil {
		return 0, err
	}
	return v[0], nil
}

func (b *Bus) ReadBlock(addr, reg uint8, buf []byte) error {
	b.mut.Lock()
	defer b.mut.Unlock()

	k := key{addr, reg}
	if err := b.fail[k]; err != nil {
		return sensor.BusError(fmt.Sprintf("read 0x%02x:0x%02x", addr, reg), err)
	}
	b.reads[k]++

	if q := b.script[k]; len(q) > 0 {
		copy(buf, q[0])
		if len(q) > 1 {
			b.script[k] = q[1:]
		}
		return nil
	}

	m := b.memory(addr)
	for i := range buf {
		buf[i] = m[(int(reg)+i)&0xff]
	}
	return nil
}

func (b *Bus) WriteReg(addr, reg, val uint8) error {
	return b.WriteBlock(addr, reg, []byte{val})
}

func (b *Bus) WriteBlock(addr, reg uint8, data []byte) error {
	b.mut.Lock()
	defer b.mut.Unlock()

	if err := b.fail[key{addr, reg}]; err != nil {
		return sensor.BusError(fmt.Sprintf("write 0x%02x:0x%02x", addr, reg), err)
	}
	b.writes = append(b.writes, Write{Addr: addr, Reg: reg, Data: append([]byte(nil), data...)})
	return nil
}

func (b *Bus) memory(addr uint8) *[256]byte {
	m, ok := b.mem[addr]
	if !ok {
		m = new([256]byte)
		b.mem[addr] = m
	}
	return m
}
