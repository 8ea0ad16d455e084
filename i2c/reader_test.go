package i2c

import (
	"errors"
	"testing"

	"github.com/calmh/envsense/sensor"
)

func TestSigned(t *testing.T) {
	cases := []struct {
		in  []byte
		out int
	}{
		{[]byte{1, 2, 3, 4}, 1<<24 + 2<<16 + 3<<8 + 4},
		{[]byte{0x7f, 0xff}, 0x7fff},
		{[]byte{0xff, 0xff}, -1},
		{[]byte{0x80, 0x00}, -32768},
	}

	for _, tc := range cases {
		if res := signed(tc.in); res != tc.out {
			t.Errorf("%d != expected %d for %v", res, tc.out, tc.in)
		}
	}
}

func TestUnsigned(t *testing.T) {
	cases := []struct {
		in  []byte
		out int
	}{
		{[]byte{0xff, 0xff}, 0xffff},
		{[]byte{0x7f, 0xe5}, 32741},
		{[]byte{0x5d, 0x23, 0x00}, 23843 << 8},
	}

	for _, tc := range cases {
		if res := unsigned(tc.in); res != tc.out {
			t.Errorf("%d != expected %d for %v", res, tc.out, tc.in)
		}
	}
}

type regBus struct {
	regs  map[uint8]uint8
	order []uint8
	fail  uint8
}

func (b *regBus) ReadReg(addr, reg uint8) (uint8, error) {
	if reg == b.fail {
		return 0, sensor.BusError("read", errors.New("nak"))
	}
	b.order = append(b.order, reg)
	return b.regs[reg], nil
}
func (b *regBus) ReadBlock(addr, reg uint8, buf []byte) error { return nil }
func (b *regBus) WriteReg(addr, reg, val uint8) error { return nil }
func (b *regBus) WriteBlock(addr, reg uint8, data []byte) error { return nil }

func TestReaderLowByteFirst(t *testing.T) {
	bus := &regBus{regs: map[uint8]uint8{0x28: 0x34, 0x29: 0xf2}}
	r := NewReader(bus, 0x5f)

	if v := r.Signed(0x29, 0x28); v != -3532 {
		t.Errorf("%d != expected %d", v, -3532)
	}
	if len(bus.order) != 2 || bus.order[0] != 0x28 || bus.order[1] != 0x29 {
		t.Errorf("unexpected read order %x", bus.order)
	}
}

func TestReaderStickyError(t *testing.T) {
	bus := &regBus{regs: map[uint8]uint8{0x30: 60}, fail: 0x31}
	r := NewReader(bus, 0x5f)

	if v := r.Byte(0x30); v != 60 {
		t.Errorf("%d != expected 60", v)
	}
	if v := r.Byte(0x31); v != 0 {
		t.Errorf("%d != expected 0 after error", v)
	}
	if v := r.Byte(0x30); v != 0 {
		t.Errorf("%d != expected 0 after error", v)
	}
	if !errors.Is(r.Error(), sensor.BusIO) {
		t.Errorf("unexpected error %v", r.Error())
	}

	r.Reset()
	if v := r.Unsigned(0x30); v != 60 || r.Error() != nil {
		t.Errorf("%d, %v after reset", v, r.Error())
	}
}
