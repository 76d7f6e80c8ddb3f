// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package huffman decodes prefix codes one bit at a time.
package huffman

import (
	"errors"
	"fmt"
	"slices"
)

// MaxLen is the longest code a Table will hold.
const MaxLen = 32

var (
	ErrInvalidCode    = errors.New("invalid huffman code")
	ErrEmpty          = errors.New("decode from empty huffman table")
	ErrOversubscribed = errors.New("oversubscribed huffman code lengths")
	ErrConflict       = errors.New("conflicting huffman codes")
)

// BitReader is satisfied by every reader in the bitstream package.
type BitReader interface {
	ReadBits(n int) (uint32, error)
}

// Code maps the Len-bit value Bits, read most significant bit first, to Sym.
type Code struct {
	Len  uint8
	Bits uint32
	Sym  uint32
}

func (c Code) String() string {
	return fmt.Sprintf("%0*b=%d", int(c.Len), c.Bits, c.Sym)
}

// Table is ordered by code length. The zero Table is empty.
type Table struct {
	codes  []Code
	maxLen uint8
}

// New builds a table from an explicit list of codes,
// which must form a prefix code.
func New(codes ...Code) (*Table, error) {
	t := &Table{codes: slices.Clone(codes)}
	slices.SortStableFunc(t.codes, func(a, b Code) int { return int(a.Len) - int(b.Len) })

	for i, c := range t.codes {
		if c.Len == 0 || c.Len > MaxLen || uint64(c.Bits) >= 1<<c.Len {
			return nil, fmt.Errorf("%w: %v", ErrConflict, c)
		}
		for _, shorter := range t.codes[:i] {
			if c.Bits>>(c.Len-shorter.Len) == shorter.Bits {
				return nil, fmt.Errorf("%w: %v and %v", ErrConflict, shorter, c)
			}
		}
		t.maxLen = max(t.maxLen, c.Len)
	}
	return t, nil
}

// MustNew is for tables fixed at compile time.
func MustNew(codes ...Code) *Table {
	t, err := New(codes...)
	if err != nil {
		panic(err)
	}
	return t
}

// FromLengths builds a canonical table, see Build.
func FromLengths(lengths []uint8) (*Table, error) {
	t := new(Table)
	if err := t.Build(lengths); err != nil {
		return nil, err
	}
	return t, nil
}

// Build replaces the table with a canonical code where symbol i has code
// length lengths[i], reusing the existing storage.
// Zero-length symbols get no code.
// Codes are handed out shortest first, and in symbol order within a length.
func (t *Table) Build(lengths []uint8) error {
	t.codes = t.codes[:0]
	t.maxLen = 0
	for _, l := range lengths {
		if l > MaxLen {
			return fmt.Errorf("%w: length %d", ErrConflict, l)
		}
		t.maxLen = max(t.maxLen, l)
	}

	// the running code is kept left-justified at maxLen bits
	var code uint64
	for depth := uint8(1); depth <= t.maxLen; depth++ {
		step := uint64(1) << (t.maxLen - depth)
		for sym, l := range lengths {
			if l != depth {
				continue
			}
			if code >= 1<<t.maxLen {
				t.codes, t.maxLen = t.codes[:0], 0
				return ErrOversubscribed
			}
			t.codes = append(t.codes, Code{Len: depth, Bits: uint32(code >> (t.maxLen - depth)), Sym: uint32(sym)})
			code += step
		}
	}
	return nil
}

func (t *Table) Len() int { return len(t.codes) }

// Codes lists the table in the order that Decode searches it.
func (t *Table) Codes() []Code { return slices.Clone(t.codes) }

// Decode reads one bit at a time until the bits read so far match a code.
func (t *Table) Decode(r BitReader) (uint32, error) {
	if len(t.codes) == 0 {
		return 0, ErrEmpty
	}

	var code uint32
	i := 0
	for l := uint8(1); l <= t.maxLen; l++ {
		bit, err := r.ReadBits(1)
		if err != nil {
			return 0, err
		}
		code = code<<1 | bit
		for ; i < len(t.codes) && t.codes[i].Len == l; i++ {
			if t.codes[i].Bits == code {
				return t.codes[i].Sym, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %0*b", ErrInvalidCode, int(t.maxLen), code)
}
