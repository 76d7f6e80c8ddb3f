// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package mash decompresses the MASH method of the XPK library,
// an LZRW variant built from the same parts as RNC.
// Only the compressed stream is handled, not the XPK container around it.
package mash

import (
	"errors"
	"fmt"

	"github.com/elliotnunn/unrnc/internal/bitstream"
	"github.com/elliotnunn/unrnc/internal/huffman"
)

var ErrDecompression = errors.New("corrupt MASH stream")

const escapeLiteral = 6

var literalLengths = huffman.MustNew(
	huffman.Code{Len: 1, Bits: 0b0, Sym: 0},
	huffman.Code{Len: 2, Bits: 0b10, Sym: 1},
	huffman.Code{Len: 3, Bits: 0b110, Sym: 2},
	huffman.Code{Len: 4, Bits: 0b1110, Sym: 3},
	huffman.Code{Len: 5, Bits: 0b11110, Sym: 4},
	huffman.Code{Len: 6, Bits: 0b111110, Sym: 5},
	huffman.Code{Len: 6, Bits: 0b111111, Sym: escapeLiteral},
)

var (
	distanceBits = [8]int{5, 7, 9, 10, 11, 12, 13, 14}
	distanceAdds = [8]uint32{0, 0x20, 0xa0, 0x2a0, 0x6a0, 0xea0, 0x1ea0, 0x3ea0}
)

// unary counts the bits read up to and including the first zero.
// A zero in position limit is invalid, but limit ones in a row give limit+1.
func unary(br *bitstream.MSB, limit int) (int, error) {
	for n := 1; n <= limit; n++ {
		bit, err := br.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit == 0 {
			if n == limit {
				return 0, fmt.Errorf("%w: unary prefix of %d", ErrDecompression, limit-1)
			}
			return n, nil
		}
	}
	return limit + 1, nil
}

// escaped reads a unary width w and then w bits, biased by 1<<w plus add.
func escaped(br *bitstream.MSB, limit int, add uint32) (uint32, error) {
	n, err := unary(br, limit)
	if err != nil {
		return 0, err
	}
	v, err := br.ReadBits(n)
	if err != nil {
		return 0, err
	}
	return v + 1<<n + add, nil
}

func distance(br *bitstream.MSB) (int, error) {
	class, err := br.ReadBits(3)
	if err != nil {
		return 0, err
	}
	v, err := br.ReadBits(distanceBits[class])
	if err != nil {
		return 0, err
	}
	return int(v + distanceAdds[class]), nil
}

// Decompress fills all of dst from the packed stream.
func Decompress(packed, dst []byte) error {
	if err := decompress(packed, dst); err != nil {
		if !errors.Is(err, ErrDecompression) {
			err = fmt.Errorf("%w: %w", ErrDecompression, err)
		}
		return err
	}
	return nil
}

func decompress(packed, dst []byte) error {
	br := bitstream.NewMSB(packed, bitstream.Forward)
	out := 0
	for out != len(dst) {
		run, err := literalLengths.Decode(br)
		if err != nil {
			return err
		}
		if run == escapeLiteral {
			if run, err = escaped(br, 17, 4); err != nil {
				return err
			}
		}
		if out+int(run) > len(dst) {
			return fmt.Errorf("%w: literal run of %d at offset %d overflows output", ErrDecompression, run, out)
		}
		for range run {
			b, err := br.ReadByte()
			if err != nil {
				return err
			}
			dst[out] = b
			out++
		}

		var count uint32
		var dist int
		long, err := br.ReadBit()
		if err != nil {
			return err
		}
		if long == 1 {
			if count, err = escaped(br, 16, 2); err == nil {
				dist, err = distance(br)
			}
		} else {
			var three uint32
			if three, err = br.ReadBit(); err == nil {
				if three == 1 {
					count = 3
					dist, err = distance(br)
				} else {
					count = 2
					var d uint32
					d, err = br.ReadBits(9)
					dist = int(d)
				}
			}
		}
		if err != nil {
			return err
		}

		// Streams in the wild often end with a dummy match: either a zero
		// distance once the output is full, or a match one byte too long.
		if dist == 0 && out == len(dst) {
			break
		}
		n := min(int(count), len(dst)-out)
		if dist == 0 || dist > out {
			return fmt.Errorf("%w: match of %d bytes from %d back at offset %d", ErrDecompression, n, dist, out)
		}
		for range n {
			dst[out] = dst[out-dist]
			out++
		}
	}
	return nil
}
