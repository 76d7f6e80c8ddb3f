// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package rnc decompresses Rob Northen Computing ProPack archives:
// the original RNC1 method, the later RNC1 method that reuses its magic,
// and RNC2.
package rnc

import (
	"errors"
	"fmt"

	"github.com/elliotnunn/unrnc/internal/crc16"
)

var (
	ErrFormat        = errors.New("not an RNC archive")
	ErrDecompression = errors.New("corrupt RNC stream")
	ErrVerification  = errors.New("RNC checksum mismatch")
)

const (
	MaxRawSize    = 0x100_0000
	MaxPackedSize = 0x100_0000
)

type Version uint8

const (
	RNC1Old Version = iota
	RNC1New
	RNC2
)

var names = [...]string{
	RNC1Old: "RNC1: Rob Northen RNC1 Compressor (old)",
	RNC1New: "RNC1: Rob Northen RNC1 Compressor",
	RNC2:    "RNC2: Rob Northen RNC2 Compressor",
}

func (v Version) String() string {
	switch v {
	case RNC1Old:
		return "RNC1old"
	case RNC1New:
		return "RNC1"
	case RNC2:
		return "RNC2"
	default:
		return fmt.Sprintf("Version(%d)", uint8(v))
	}
}

// HeaderSize is the number of bytes in front of the payload.
func (v Version) HeaderSize() int {
	if v == RNC1Old {
		return 12
	}
	return 18
}

// Detect reports whether hdr starts with either RNC magic number.
// It is cheap enough to run against every file that is probed.
func Detect(hdr []byte) bool {
	return len(hdr) >= 4 && (string(hdr[:4]) == magicRNC1 || string(hdr[:4]) == magicRNC2)
}

// A Decompressor holds a validated archive header.
// It is immutable, and Decompress may be called concurrently
// with distinct destination buffers.
type Decompressor struct {
	packed   []byte
	hdr      Header
	ver      Version
	verified bool // packed CRC already matched during detection
}

// New validates the header of an archive that starts at packed[0].
// Any problem with the header itself is reported as ErrFormat.
func New(packed []byte) (*Decompressor, error) {
	hdr, ver, verified, err := parseHeader(packed)
	if err != nil {
		return nil, err
	}
	return &Decompressor{packed: packed, hdr: hdr, ver: ver, verified: verified}, nil
}

func (d *Decompressor) Name() string     { return names[d.ver] }
func (d *Decompressor) Version() Version { return d.ver }
func (d *Decompressor) Header() Header   { return d.hdr }
func (d *Decompressor) RawSize() int     { return int(d.hdr.RawSize) }

// PackedSize is the length of the whole archive, header included.
func (d *Decompressor) PackedSize() int {
	return int(d.hdr.PackedSize) + d.ver.HeaderSize()
}

func (d *Decompressor) payload() []byte {
	off := d.ver.HeaderSize()
	return d.packed[off : off+int(d.hdr.PackedSize)]
}

// Decompress fills dst[:RawSize()], which must already be allocated.
//
// With verify set, archives that carry checksums have them checked:
// the packed payload before decoding and the output after it.
// On any error the contents of dst are meaningless.
func (d *Decompressor) Decompress(dst []byte, verify bool) error {
	if len(dst) < d.RawSize() {
		return fmt.Errorf("%w: output buffer of %d bytes, need %d", ErrDecompression, len(dst), d.RawSize())
	}
	dst = dst[:d.RawSize()]

	if verify && d.ver != RNC1Old && !d.verified {
		if got := crc16.Checksum(d.payload()); got != d.hdr.PackedCRC {
			return fmt.Errorf("%w: packed data crc %#04x, header says %#04x", ErrVerification, got, d.hdr.PackedCRC)
		}
	}

	var err error
	switch d.ver {
	case RNC1Old:
		err = decodeRNC1Old(d.payload(), dst)
	case RNC1New:
		err = decodeRNC1New(d.payload(), dst, int(d.hdr.Chunks))
	case RNC2:
		err = decodeRNC2(d.payload(), dst, int(d.hdr.Chunks))
	default:
		err = fmt.Errorf("unknown version %v", d.ver)
	}
	if err != nil {
		if !errors.Is(err, ErrDecompression) {
			err = fmt.Errorf("%w: %w", ErrDecompression, err)
		}
		return err
	}

	if verify && d.ver != RNC1Old {
		if got := crc16.Checksum(dst); got != d.hdr.RawCRC {
			return fmt.Errorf("%w: unpacked data crc %#04x, header says %#04x", ErrVerification, got, d.hdr.RawCRC)
		}
	}
	return nil
}

// Decode is New followed by Decompress into a fresh buffer.
func Decode(packed []byte, verify bool) ([]byte, error) {
	d, err := New(packed)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, d.RawSize())
	if err := d.Decompress(dst, verify); err != nil {
		return nil, err
	}
	return dst, nil
}
