// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package rnc

import (
	"fmt"

	"github.com/elliotnunn/unrnc/internal/bitstream"
	"github.com/elliotnunn/unrnc/internal/huffman"
)

// The old RNC1 stream is read from its last byte toward its first,
// and the output is written from its last byte toward its first.

var (
	oldLiteralRun = huffman.MustNew(
		huffman.Code{Len: 1, Bits: 0b0, Sym: 0},
		huffman.Code{Len: 2, Bits: 0b10, Sym: 1},
		huffman.Code{Len: 2, Bits: 0b11, Sym: 2},
	)
	oldLiteralWidths = []int{2, 2, 3, 10}
	oldLiteralAdds   = []uint32{2, 5, 8, 15}

	oldMatchLength = extraBits{
		table: huffman.MustNew(
			huffman.Code{Len: 1, Bits: 0b0, Sym: 0},
			huffman.Code{Len: 2, Bits: 0b10, Sym: 1},
			huffman.Code{Len: 3, Bits: 0b110, Sym: 2},
			huffman.Code{Len: 4, Bits: 0b1110, Sym: 3},
			huffman.Code{Len: 4, Bits: 0b1111, Sym: 4},
		),
		bits: []int{0, 0, 1, 2, 10},
		adds: []uint32{2, 3, 4, 6, 10},
	}

	oldDistance = extraBits{
		table: huffman.MustNew(
			huffman.Code{Len: 1, Bits: 0b0, Sym: 0},
			huffman.Code{Len: 2, Bits: 0b10, Sym: 1},
			huffman.Code{Len: 2, Bits: 0b11, Sym: 2},
		),
		bits: []int{8, 5, 12},
		adds: []uint32{32, 0, 288},
	}
)

func decodeRNC1Old(payload, dst []byte) error {
	br := bitstream.NewMSB(payload, bitstream.Backward)
	if err := br.Anchor(); err != nil {
		return err
	}

	out := len(dst) // bytes still to fill, and the write cursor
	for {
		run, err := oldLiteralRun.Decode(br)
		if err != nil {
			return err
		}
		if run == 2 {
			run, err = readLadder(br, oldLiteralWidths, oldLiteralAdds)
			if err != nil {
				return err
			}
		}

		if int(run) > out {
			return fmt.Errorf("%w: literal run of %d with %d bytes left", ErrDecompression, run, out)
		}
		for range run {
			b, err := br.ReadByte()
			if err != nil {
				return err
			}
			out--
			dst[out] = b
		}

		if out == 0 {
			return nil
		}

		count, err := oldMatchLength.decode(br)
		if err != nil {
			return err
		}

		var dist uint32
		if count != 2 {
			dist, err = oldDistance.decode(br)
		} else {
			var far uint32
			far, err = br.ReadBits(1)
			if err == nil {
				if far == 0 {
					dist, err = br.ReadBits(6)
				} else {
					dist, err = br.ReadBits(9)
					dist += 64
				}
			}
		}
		if err != nil {
			return err
		}

		back := 1
		if dist != 0 {
			back = int(dist) + int(count) - 1
		}
		if out < int(count) || out+back > len(dst) {
			return fmt.Errorf("%w: match of %d bytes from %d with %d bytes left", ErrDecompression, count, back, out)
		}

		from := out + back
		for range count {
			out--
			from--
			dst[out] = dst[from]
		}
	}
}
