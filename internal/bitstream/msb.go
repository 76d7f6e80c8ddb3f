// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package bitstream

type Direction int8

const (
	Forward Direction = iota
	Backward
)

// MSB hands out bits most-significant first, one byte at a time.
// A Backward reader starts at the end of its slice and works toward the start.
type MSB struct {
	src   []byte
	pos   int // Forward: next byte; Backward: one past the next byte
	dir   Direction
	bits  uint8 // unconsumed bits, left-justified
	nbits uint8
}

func NewMSB(src []byte, dir Direction) *MSB {
	r := &MSB{src: src, dir: dir}
	if dir == Backward {
		r.pos = len(src)
	}
	return r
}

func (r *MSB) next() (byte, error) {
	if r.dir == Backward {
		if r.pos <= 0 {
			return 0, ErrOverrun
		}
		r.pos--
		return r.src[r.pos], nil
	}
	if r.pos >= len(r.src) {
		return 0, ErrOverrun
	}
	b := r.src[r.pos]
	r.pos++
	return b, nil
}

// Anchor loads the first byte of the stream as a partial bit buffer.
// The lowest set bit among bits 0-6 is a sentinel: it and everything below it
// are padding, and only the bits above it are data.
// If none of bits 0-6 is set the byte carries no data at all.
func (r *MSB) Anchor() error {
	b, err := r.next()
	if err != nil {
		return err
	}
	r.bits, r.nbits = b, 7
	for i := range 7 {
		if b&(1<<i) != 0 {
			break
		}
		r.nbits--
	}
	return nil
}

func (r *MSB) ReadBit() (uint32, error) {
	if r.nbits == 0 {
		b, err := r.next()
		if err != nil {
			return 0, err
		}
		r.bits, r.nbits = b, 8
	}
	bit := r.bits >> 7
	r.bits <<= 1
	r.nbits--
	return uint32(bit), nil
}

func (r *MSB) ReadBits(n int) (uint32, error) {
	var v uint32
	for range n {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | bit
	}
	return v, nil
}

func (r *MSB) ReadByte() (byte, error) {
	return r.next()
}
