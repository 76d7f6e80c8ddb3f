// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package rnc

import (
	"fmt"
	"log/slog"

	"github.com/elliotnunn/unrnc/internal/bitstream"
	"github.com/elliotnunn/unrnc/internal/crc16"
)

const (
	magicRNC1 = "RNC\x01"
	magicRNC2 = "RNC\x02"
)

// Header fields are big-endian on the wire:
//
//	0  magic
//	4  unpacked size
//	8  packed size, excluding the header
//	12 crc of unpacked data   (not in RNC1 old)
//	14 crc of packed data     (not in RNC1 old)
//	16 leeway                 (not in RNC1 old)
//	17 chunk count            (not in RNC1 old)
type Header struct {
	Magic      [4]byte
	RawSize    uint32
	PackedSize uint32
	RawCRC     uint16
	PackedCRC  uint16
	Leeway     uint8 // overlap needed to unpack in place, unused here
	Chunks     uint8
}

func parseHeader(packed []byte) (h Header, ver Version, verified bool, err error) {
	src := bitstream.Source(packed)
	if len(src) < 12 {
		return h, 0, false, fmt.Errorf("%w: %d bytes is too short for a header", ErrFormat, len(src))
	}
	copy(h.Magic[:], src)
	h.RawSize, _ = src.BE32(4)
	h.PackedSize, _ = src.BE32(8)

	if h.RawSize == 0 || h.RawSize > MaxRawSize {
		return h, 0, false, fmt.Errorf("%w: unpacked size %d", ErrFormat, h.RawSize)
	}
	if h.PackedSize == 0 || h.PackedSize > MaxPackedSize {
		return h, 0, false, fmt.Errorf("%w: packed size %d", ErrFormat, h.PackedSize)
	}

	switch string(h.Magic[:]) {
	case magicRNC1:
		ver, verified, err = detectRNC1(src, &h)
		if err != nil {
			return h, 0, false, err
		}
	case magicRNC2:
		ver = RNC2
	default:
		return h, 0, false, fmt.Errorf("%w: magic %q", ErrFormat, h.Magic[:])
	}

	if int(h.PackedSize)+ver.HeaderSize() > len(src) {
		return h, 0, false, fmt.Errorf("%w: %v archive needs %d bytes, only %d present",
			ErrFormat, ver, int(h.PackedSize)+ver.HeaderSize(), len(src))
	}

	if ver != RNC1Old {
		h.RawCRC, _ = src.BE16(12)
		h.PackedCRC, _ = src.BE16(14)
		h.Leeway = src[16]
		h.Chunks = src[17]
	}
	return h, ver, verified, nil
}

// detectRNC1 tells the two RNC1 variants apart.
// They share a magic number and nothing in the header distinguishes them,
// so this looks for bitstream content that is invalid for one or the other.
// A crafted archive can fool it either way.
// When the packed crc confirms the new variant, verified is set.
func detectRNC1(src bitstream.Source, h *Header) (ver Version, verified bool, err error) {
	ver, reason := RNC1Old, ""
	defer func() {
		if err == nil {
			slog.Debug("rncDetect", "version", ver, "reason", reason)
		}
	}()

	if len(src) < 19 {
		reason = "short"
		return RNC1Old, false, nil
	}

	newStart := src[18]
	// the old variant is read backward, so this is where its stream begins
	oldStart, err := src.Byte(int(h.PackedSize) + 11)
	if err != nil {
		return 0, false, fmt.Errorf("%w: packed size %d overruns %d byte archive", ErrFormat, h.PackedSize, len(src))
	}

	switch {
	case oldStart&0x80 == 0:
		// an old stream must open with a nonzero literal run
		ver, reason = RNC1New, "noLeadingLiteral"
	case newStart&3 != 0:
		// the two filler bits of a new stream are always clear
		ver, reason = RNC1Old, "fillerBits"
	case newStart&0x7c == 0:
		// a new stream with an empty literal table is vanishingly unlikely
		ver, reason = RNC1Old, "emptyLiteralTable"
	case len(src) >= int(h.PackedSize)+18 && packedCRCMatches(src, h.PackedSize):
		ver, reason, verified = RNC1New, "crc", true
	default:
		ver, reason = RNC1Old, "crcMismatch"
	}
	return ver, verified, nil
}

func packedCRCMatches(src bitstream.Source, packedSize uint32) bool {
	want, _ := src.BE16(14)
	return crc16.Checksum(src[18:18+int(packedSize)]) == want
}
