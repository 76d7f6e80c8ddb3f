// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package rnc

import (
	"fmt"

	"github.com/elliotnunn/unrnc/internal/bitstream"
	"github.com/elliotnunn/unrnc/internal/huffman"
)

type command uint32

const (
	cmdLiteral     command = iota // 0: one literal byte
	cmdMove                       // 10: match of 4-8, or a run of literals
	cmdMove2                      // 110: two bytes, short distance
	cmdMove3                      // 1110: three bytes
	cmdConditional                // 1111: long match, or end of chunk
)

// A length of 9 means a run of literals instead of a match.
const literalRunMarker = 9

var (
	rnc2Commands = huffman.MustNew(
		huffman.Code{Len: 1, Bits: 0b0, Sym: uint32(cmdLiteral)},
		huffman.Code{Len: 2, Bits: 0b10, Sym: uint32(cmdMove)},
		huffman.Code{Len: 3, Bits: 0b110, Sym: uint32(cmdMove2)},
		huffman.Code{Len: 4, Bits: 0b1110, Sym: uint32(cmdMove3)},
		huffman.Code{Len: 4, Bits: 0b1111, Sym: uint32(cmdConditional)},
	)

	rnc2Lengths = huffman.MustNew(
		huffman.Code{Len: 2, Bits: 0b00, Sym: 4},
		huffman.Code{Len: 2, Bits: 0b10, Sym: 5},
		huffman.Code{Len: 3, Bits: 0b010, Sym: 6},
		huffman.Code{Len: 3, Bits: 0b011, Sym: 7},
		huffman.Code{Len: 3, Bits: 0b110, Sym: 8},
		huffman.Code{Len: 3, Bits: 0b111, Sym: literalRunMarker},
	)

	// high byte of the distance
	rnc2Distances = huffman.MustNew(
		huffman.Code{Len: 1, Bits: 0b0, Sym: 0},
		huffman.Code{Len: 3, Bits: 0b110, Sym: 1},
		huffman.Code{Len: 4, Bits: 0b1000, Sym: 2},
		huffman.Code{Len: 4, Bits: 0b1001, Sym: 3},
		huffman.Code{Len: 5, Bits: 0b10101, Sym: 4},
		huffman.Code{Len: 5, Bits: 0b10111, Sym: 5},
		huffman.Code{Len: 5, Bits: 0b11101, Sym: 6},
		huffman.Code{Len: 5, Bits: 0b11111, Sym: 7},
		huffman.Code{Len: 6, Bits: 0b101000, Sym: 8},
		huffman.Code{Len: 6, Bits: 0b101001, Sym: 9},
		huffman.Code{Len: 6, Bits: 0b101100, Sym: 10},
		huffman.Code{Len: 6, Bits: 0b101101, Sym: 11},
		huffman.Code{Len: 6, Bits: 0b111000, Sym: 12},
		huffman.Code{Len: 6, Bits: 0b111001, Sym: 13},
		huffman.Code{Len: 6, Bits: 0b111100, Sym: 14},
		huffman.Code{Len: 6, Bits: 0b111101, Sym: 15},
	)
)

type rnc2State struct {
	br  *bitstream.MSB
	dst []byte
	out int
}

func (s *rnc2State) distance() (int, error) {
	hi, err := rnc2Distances.Decode(s.br)
	if err != nil {
		return 0, err
	}
	lo, err := s.br.ReadByte()
	if err != nil {
		return 0, err
	}
	return (int(hi)<<8 | int(lo)) + 1, nil
}

func (s *rnc2State) match(dist, count int) error {
	if count == 0 || dist > s.out || s.out+count > len(s.dst) {
		return fmt.Errorf("%w: match of %d bytes from %d back at offset %d", ErrDecompression, count, dist, s.out)
	}
	for range count {
		s.dst[s.out] = s.dst[s.out-dist]
		s.out++
	}
	return nil
}

func (s *rnc2State) literals(n int) error {
	if s.out+n > len(s.dst) {
		return fmt.Errorf("%w: %d literals at offset %d overflow output", ErrDecompression, n, s.out)
	}
	for range n {
		b, err := s.br.ReadByte()
		if err != nil {
			return err
		}
		s.dst[s.out] = b
		s.out++
	}
	return nil
}

func decodeRNC2(payload, dst []byte, chunks int) error {
	s := &rnc2State{br: bitstream.NewMSB(payload, bitstream.Forward), dst: dst}
	if _, err := s.br.ReadBits(2); err != nil {
		return err
	}

	found := 0
	for done := false; !done && found < chunks; {
		cmd, err := rnc2Commands.Decode(s.br)
		if err != nil {
			return err
		}

		switch command(cmd) {
		case cmdLiteral:
			err = s.literals(1)

		case cmdMove:
			var n uint32
			n, err = rnc2Lengths.Decode(s.br)
			if err != nil {
				break
			}
			if n == literalRunMarker {
				var r uint32
				r, err = s.br.ReadBits(4)
				if err == nil {
					err = s.literals(int(r+3) * 4)
				}
				break
			}
			var dist int
			if dist, err = s.distance(); err == nil {
				err = s.match(dist, int(n))
			}

		case cmdMove2:
			var b byte
			if b, err = s.br.ReadByte(); err == nil {
				err = s.match(int(b)+1, 2)
			}

		case cmdMove3:
			var dist int
			if dist, err = s.distance(); err == nil {
				err = s.match(dist, 3)
			}

		case cmdConditional:
			var n byte
			n, err = s.br.ReadByte()
			if err != nil {
				break
			}
			if n != 0 {
				var dist int
				if dist, err = s.distance(); err == nil {
					err = s.match(dist, int(n)+8)
				}
				break
			}
			found++
			var more uint32
			more, err = s.br.ReadBits(1)
			done = more == 0
		}
		if err != nil {
			return err
		}
	}

	if s.out != len(dst) || found != chunks {
		return fmt.Errorf("%w: stream ended after %d of %d bytes and %d of %d chunks",
			ErrDecompression, s.out, len(dst), found, chunks)
	}
	return nil
}
