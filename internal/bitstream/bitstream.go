// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package bitstream reads bit-packed compressed payloads out of an
// in-memory byte slice.
//
// Every read is bounds-checked: running off either end of the payload
// returns ErrOverrun rather than inventing zero bits.
package bitstream

import (
	"errors"
	"io"
)

var (
	ErrOverrun    = errors.New("read past end of bitstream")
	ErrOutOfRange = errors.New("offset out of range")
)

// Reader is the capability that the decoders share, whatever the bit order
// or direction of the underlying stream.
// Raw bytes obtained with ReadByte come from the byte stream itself,
// not from any partially consumed bit buffer.
type Reader interface {
	io.ByteReader
	ReadBits(n int) (uint32, error)
}

// Source is a bounds-checked view of a fixed byte sequence.
type Source []byte

func (s Source) Byte(off int) (byte, error) {
	if off < 0 || off >= len(s) {
		return 0, ErrOutOfRange
	}
	return s[off], nil
}

func (s Source) BE16(off int) (uint16, error) {
	if off < 0 || off+2 > len(s) {
		return 0, ErrOutOfRange
	}
	return uint16(s[off])<<8 | uint16(s[off+1]), nil
}

func (s Source) BE32(off int) (uint32, error) {
	if off < 0 || off+4 > len(s) {
		return 0, ErrOutOfRange
	}
	return uint32(s[off])<<24 | uint32(s[off+1])<<16 | uint32(s[off+2])<<8 | uint32(s[off+3]), nil
}

// Sub returns the n bytes starting at off.
func (s Source) Sub(off, n int) (Source, error) {
	if off < 0 || n < 0 || off+n > len(s) || off+n < off {
		return nil, ErrOutOfRange
	}
	return s[off : off+n : off+n], nil
}
