// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package rnc

import (
	"fmt"

	"github.com/elliotnunn/unrnc/internal/bitstream"
	"github.com/elliotnunn/unrnc/internal/huffman"
)

// maxTableSymbols is bounded by the 5-bit symbol count.
const maxTableSymbols = 1<<5 - 1

// readTable rebuilds t from its serialized form:
// a 5-bit symbol count followed by a 4-bit code length per symbol.
func readTable(br bitstream.Reader, t *huffman.Table, lengths *[maxTableSymbols]uint8) error {
	n, err := br.ReadBits(5)
	if err != nil {
		return err
	}
	for i := range n {
		l, err := br.ReadBits(4)
		if err != nil {
			return err
		}
		lengths[i] = uint8(l)
	}
	return t.Build(lengths[:n])
}

func decodeRNC1New(payload, dst []byte, chunks int) error {
	br := bitstream.NewLSB(payload)
	if _, err := br.ReadBits(2); err != nil {
		return err
	}

	var (
		lengths                     [maxTableSymbols]uint8
		literals, distances, counts huffman.Table
		out                         int
	)

	copyLiterals := func() error {
		run, err := decodeEscaped(&literals, br)
		if err != nil {
			return err
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
		return nil
	}

	for chunk := range chunks {
		for _, t := range []*huffman.Table{&literals, &distances, &counts} {
			if err := readTable(br, t, &lengths); err != nil {
				return fmt.Errorf("chunk %d table: %w", chunk, err)
			}
		}

		steps, err := br.ReadBits(16)
		if err != nil {
			return err
		}

		for i := uint32(1); i < steps; i++ {
			if err := copyLiterals(); err != nil {
				return err
			}

			dist, err := decodeEscaped(&distances, br)
			if err != nil {
				return err
			}
			count, err := decodeEscaped(&counts, br)
			if err != nil {
				return err
			}

			d, n := int(dist)+1, int(count)+2
			if d > out || out+n > len(dst) {
				return fmt.Errorf("%w: match of %d bytes from %d back at offset %d", ErrDecompression, n, d, out)
			}
			for range n {
				dst[out] = dst[out-d]
				out++
			}
		}

		if err := copyLiterals(); err != nil {
			return err
		}
	}

	if out != len(dst) {
		return fmt.Errorf("%w: stream ended after %d of %d bytes", ErrDecompression, out, len(dst))
	}
	return nil
}
