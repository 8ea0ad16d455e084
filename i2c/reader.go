package i2c

// Reader reads registers one byte at a time from a single device and
// remembers the first error, so a sequence of reads can be checked once.
type Reader struct {
	bus   Bus
	addr  uint8
	error error
}

func NewReader(bus Bus, addr uint8) *Reader {
	return &Reader{bus: bus, addr: addr}
}

func (r *Reader) Error() error {
	return r.error
}

func (r *Reader) Reset() {
	r.error = nil
}

// Read returns the value of each register, most significant first. The
// registers are read in reverse order, least significant first, which is
// what block data update latching expects.
func (r *Reader) Read(regs ...uint8) ([]byte, error) {
	res := make([]byte, len(regs))

	for i := len(regs) - 1; i >= 0; i-- {
		val, err := r.bus.ReadReg(r.addr, regs[i])
		if err != nil {
			return nil, err
		}
		res[i] = val
	}
	return res, nil
}

// Signed assembles the registers, most significant first, as a two's
// complement value.
func (r *Reader) Signed(regs ...uint8) int {
	if r.error != nil {
		return 0
	}
	data, err := r.Read(regs...)
	if err != nil {
		r.error = err
		return 0
	}
	return signed(data)
}

// Unsigned assembles the registers, most significant first.
func (r *Reader) Unsigned(regs ...uint8) int {
	if r.error != nil {
		return 0
	}
	data, err := r.Read(regs...)
	if err != nil {
		r.error = err
		return 0
	}
	return unsigned(data)
}

func (r *Reader) Byte(reg uint8) int {
	if r.error != nil {
		return 0
	}
	val, err := r.bus.ReadReg(r.addr, reg)
	if err != nil {
		r.error = err
		return 0
	}
	return int(val)
}

func signed(data []byte) int {
	res := int(int8(data[0]))
	for _, val := range data[1:] {
		res <<= 8
		res |= int(val)
	}
	return res
}

func unsigned(data []byte) int {
	res := 0
	for _, val := range data {
		res <<= 8
		res |= int(val)
	}
	return res
}
