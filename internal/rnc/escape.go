// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package rnc

import (
	"github.com/elliotnunn/unrnc/internal/bitstream"
	"github.com/elliotnunn/unrnc/internal/huffman"
)

// readEscaped expands a raw symbol into an integer.
// Symbols 0 and 1 stand for themselves. A larger symbol s stands for
// a value with s significant bits: an implied leading one followed by
// s-1 bits read from the stream.
func readEscaped(sym uint32, r bitstream.Reader) (uint32, error) {
	if sym < 2 {
		return sym, nil
	}
	extra, err := r.ReadBits(int(sym - 1))
	if err != nil {
		return 0, err
	}
	return 1<<(sym-1) | extra, nil
}

func decodeEscaped(t *huffman.Table, r bitstream.Reader) (uint32, error) {
	sym, err := t.Decode(r)
	if err != nil {
		return 0, err
	}
	return readEscaped(sym, r)
}

// readLadder tries each bit width in turn. A value of all ones moves on to
// the next rung; anything else, or any value on the last rung, is final.
func readLadder(r bitstream.Reader, widths []int, adds []uint32) (uint32, error) {
	for i, n := range widths {
		v, err := r.ReadBits(n)
		if err != nil {
			return 0, err
		}
		if v != 1<<n-1 || i == len(widths)-1 {
			return v + adds[i], nil
		}
	}
	panic("empty ladder")
}

// extraBits follows a decoded class index with a number of extra bits
// and an offset, both chosen by the index.
type extraBits struct {
	table *huffman.Table
	bits  []int
	adds  []uint32
}

func (e extraBits) decode(r bitstream.Reader) (uint32, error) {
	idx, err := e.table.Decode(r)
	if err != nil {
		return 0, err
	}
	v, err := r.ReadBits(e.bits[idx])
	if err != nil {
		return 0, err
	}
	return v + e.adds[idx], nil
}
