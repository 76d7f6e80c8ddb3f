// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package bitstream

// LSB hands out bits least-significant first from a 16-bit accumulator.
// When the accumulator runs dry it pulls two bytes, little-endian,
// or one if only one remains.
type LSB struct {
	src   []byte
	pos   int
	acc   uint32
	nbits int
}

func NewLSB(src []byte) *LSB {
	return &LSB{src: src}
}

func (r *LSB) refill() error {
	if r.pos >= len(r.src) {
		return ErrOverrun
	}
	r.acc = uint32(r.src[r.pos])
	r.pos++
	r.nbits = 8
	if r.pos < len(r.src) {
		r.acc |= uint32(r.src[r.pos]) << 8
		r.pos++
		r.nbits += 8
	}
	return nil
}

// ReadBits returns n bits, the first one read in bit 0.
func (r *LSB) ReadBits(n int) (uint32, error) {
	var v uint32
	got := 0
	for got < n {
		if r.nbits == 0 {
			if err := r.refill(); err != nil {
				return 0, err
			}
		}
		take := min(n-got, r.nbits)
		v |= (r.acc & (1<<take - 1)) << got
		got += take
		r.acc >>= take
		r.nbits -= take
	}
	return v, nil
}

func (r *LSB) ReadByte() (byte, error) {
	if r.pos >= len(r.src) {
		return 0, ErrOverrun
	}
	b := r.src[r.pos]
	r.pos++
	return b, nil
}
