package rnc

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"slices"

	"github.com/elliotnunn/unrnc/internal/crc16"
	"github.com/elliotnunn/unrnc/internal/huffman"
)

// Bit writers that mirror the readers in the bitstream package,
// so that tests can build archives from a list of LZ steps.

// msbWriter fills bytes most significant bit first, front to back.
type msbWriter struct {
	buf  []byte
	cur  int
	used int
}

func newMSBWriter() *msbWriter { return &msbWriter{used: 8} }

func (w *msbWriter) bit(b uint32) {
	if w.used == 8 {
		w.buf = append(w.buf, 0)
		w.cur, w.used = len(w.buf)-1, 0
	}
	if b != 0 {
		w.buf[w.cur] |= 0x80 >> w.used
	}
	w.used++
}

func (w *msbWriter) bits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bit(v >> i & 1)
	}
}

func (w *msbWriter) code(c huffman.Code) { w.bits(c.Bits, int(c.Len)) }
func (w *msbWriter) raw(b byte)          { w.buf = append(w.buf, b) }

// backWriter is an msbWriter whose output is reversed at the end,
// with an anchor bit planted in the first byte to be read.
type backWriter struct {
	seq  []byte // in reading order
	cur  int
	used int
	room int
}

func newBackWriter() *backWriter { return &backWriter{seq: []byte{0}, room: 7} }

func (w *backWriter) bit(b uint32) {
	if w.used == w.room {
		w.seq = append(w.seq, 0)
		w.cur, w.used, w.room = len(w.seq)-1, 0, 8
	}
	if b != 0 {
		w.seq[w.cur] |= 0x80 >> w.used
	}
	w.used++
}

func (w *backWriter) bits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bit(v >> i & 1)
	}
}

func (w *backWriter) code(c huffman.Code) { w.bits(c.Bits, int(c.Len)) }
func (w *backWriter) raw(b byte)          { w.seq = append(w.seq, b) }

func (w *backWriter) payload() []byte {
	seq := slices.Clone(w.seq)
	firstUsed := 7
	if w.cur == 0 {
		firstUsed = w.used
	}
	seq[0] |= 1 << (7 - firstUsed)
	slices.Reverse(seq)
	return seq
}

// lsbWriter fills 16-bit little-endian words least significant bit first.
type lsbWriter struct {
	buf  []byte
	cur  int
	used int
}

func newLSBWriter() *lsbWriter { return &lsbWriter{used: 16} }

func (w *lsbWriter) bit(b uint32) {
	if w.used == 16 {
		w.buf = append(w.buf, 0, 0)
		w.cur, w.used = len(w.buf)-2, 0
	}
	if b != 0 {
		w.buf[w.cur+w.used/8] |= 1 << (w.used % 8)
	}
	w.used++
}

func (w *lsbWriter) bits(v uint32, n int) {
	for i := range n {
		w.bit(v >> i & 1)
	}
}

// huffman codes are consumed a bit at a time, first bit first
func (w *lsbWriter) code(c huffman.Code) {
	for i := int(c.Len) - 1; i >= 0; i-- {
		w.bit(c.Bits >> i & 1)
	}
}

func (w *lsbWriter) raw(b byte) { w.buf = append(w.buf, b) }

// step is a run of literals followed by an optional match.
// back is the distance in the direction of decoding.
type step struct {
	lit         []byte
	back, count int
}

// expand plays the steps forward, as a plain LZ77 decoder would.
func expand(steps []step) []byte {
	var out []byte
	for _, s := range steps {
		out = append(out, s.lit...)
		for range s.count {
			out = append(out, out[len(out)-s.back])
		}
	}
	return out
}

func lookup(t *huffman.Table, sym uint32) huffman.Code {
	for _, c := range t.Codes() {
		if c.Sym == sym {
			return c
		}
	}
	panic(fmt.Sprintf("no code for symbol %d", sym))
}

// canonical assigns codes the way RFC 1951 does, independently of huffman.Build.
func canonical(lengths []uint8) map[uint32]huffman.Code {
	var count [16]uint32
	for _, l := range lengths {
		if l != 0 {
			count[l]++
		}
	}
	var next [16]uint32
	code := uint32(0)
	for l := 1; l < 16; l++ {
		code = (code + count[l-1]) << 1
		next[l] = code
	}
	codes := make(map[uint32]huffman.Code)
	for sym, l := range lengths {
		if l != 0 {
			codes[uint32(sym)] = huffman.Code{Len: l, Bits: next[l], Sym: uint32(sym)}
			next[l]++
		}
	}
	return codes
}

func header(magic string, rawSize, packedSize int) []byte {
	hdr := make([]byte, 12, 18)
	copy(hdr, magic)
	binary.BigEndian.PutUint32(hdr[4:], uint32(rawSize))
	binary.BigEndian.PutUint32(hdr[8:], uint32(packedSize))
	return hdr
}

func oldArchive(payload []byte, rawSize int) []byte {
	return append(header(magicRNC1, rawSize, len(payload)), payload...)
}

func extArchive(magic string, payload, raw []byte, chunks int) []byte {
	hdr := header(magic, len(raw), len(payload))
	hdr = binary.BigEndian.AppendUint16(hdr, crc16.Checksum(raw))
	hdr = binary.BigEndian.AppendUint16(hdr, crc16.Checksum(payload))
	hdr = append(hdr, 0, byte(chunks))
	return append(hdr, payload...)
}

// encodeOld produces an old RNC1 payload. The output of the archive is
// the expansion of steps, reversed.
// The last step must have no match.
func encodeOld(steps []step) []byte {
	w := newBackWriter()
	for i, s := range steps {
		n := uint32(len(s.lit))
		switch {
		case n < 2:
			w.code(lookup(oldLiteralRun, n))
		default:
			w.code(lookup(oldLiteralRun, 2))
			for j, width := range oldLiteralWidths {
				top := uint32(1)<<width - 1
				v := n - oldLiteralAdds[j]
				if v < top || j == len(oldLiteralWidths)-1 {
					w.bits(v, width)
					break
				}
				w.bits(top, width)
			}
		}
		for _, b := range s.lit {
			w.raw(b)
		}

		if s.count == 0 {
			if i != len(steps)-1 {
				panic("only the last step may lack a match")
			}
			break
		}
		encodeExtra(w, oldMatchLength, uint32(s.count))

		var dist uint32
		switch {
		case s.back == 1:
			dist = 0
		case s.back >= s.count:
			dist = uint32(s.back - s.count + 1)
		default:
			panic(fmt.Sprintf("distance %d for count %d is not representable", s.back, s.count))
		}
		if s.count != 2 {
			encodeExtra(w, oldDistance, dist)
		} else if dist < 64 {
			w.bit(0)
			w.bits(dist, 6)
		} else {
			w.bit(1)
			w.bits(dist-64, 9)
		}
	}
	return w.payload()
}

type bitWriter interface {
	code(huffman.Code)
	bits(v uint32, n int)
}

// encodeExtra picks the last class whose offset does not exceed v.
func encodeExtra(w bitWriter, e extraBits, v uint32) {
	best := -1
	for i, add := range e.adds {
		if add <= v && v-add < 1<<e.bits[i] && (best < 0 || add > e.adds[best]) {
			best = i
		}
	}
	if best < 0 {
		panic(fmt.Sprintf("value %d is not representable", v))
	}
	w.code(lookup(e.table, uint32(best)))
	w.bits(v-e.adds[best], e.bits[best])
}

// newChunk is one chunk of a new RNC1 stream.
// The last step must have no match, and all others must have one.
type newChunk struct {
	literals, distances, counts []uint8
	steps                       []step
}

var flat16 = []uint8{4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4}

func encodeNew(chunks []newChunk) []byte {
	w := newLSBWriter()
	w.bits(0, 2)

	escaped := func(codes map[uint32]huffman.Code, v uint32) {
		sym := v
		if v >= 2 {
			sym = uint32(bits.Len32(v))
		}
		c, ok := codes[sym]
		if !ok {
			panic(fmt.Sprintf("no symbol %d for value %d", sym, v))
		}
		w.code(c)
		if sym >= 2 {
			w.bits(v^1<<(sym-1), int(sym-1))
		}
	}

	for _, ch := range chunks {
		tables := make([]map[uint32]huffman.Code, 3)
		for i, lengths := range [][]uint8{ch.literals, ch.distances, ch.counts} {
			w.bits(uint32(len(lengths)), 5)
			for _, l := range lengths {
				w.bits(uint32(l), 4)
			}
			tables[i] = canonical(lengths)
		}

		w.bits(uint32(len(ch.steps)), 16)
		for i, s := range ch.steps {
			escaped(tables[0], uint32(len(s.lit)))
			for _, b := range s.lit {
				w.raw(b)
			}
			if i == len(ch.steps)-1 {
				if s.count != 0 {
					panic("last step of a chunk may not have a match")
				}
				break
			}
			escaped(tables[1], uint32(s.back-1))
			escaped(tables[2], uint32(s.count-2))
		}
	}
	return w.buf
}

// rnc2Chunk is one sub-chunk of an RNC2 stream.
type rnc2Chunk struct {
	steps []step
}

func encodeRNC2(chunks []rnc2Chunk, finalMore bool) []byte {
	w := newMSBWriter()
	w.bits(0, 2)

	cmd := func(c command) { w.code(lookup(rnc2Commands, uint32(c))) }
	distance := func(d int) {
		v := uint32(d - 1)
		w.code(lookup(rnc2Distances, v>>8))
		w.raw(byte(v))
	}

	for i, ch := range chunks {
		for _, s := range ch.steps {
			lit := s.lit
			for len(lit) > 0 {
				if n := len(lit) &^ 3; n >= 12 {
					n = min(n, 72)
					cmd(cmdMove)
					w.code(lookup(rnc2Lengths, literalRunMarker))
					w.bits(uint32(n/4-3), 4)
					for _, b := range lit[:n] {
						w.raw(b)
					}
					lit = lit[n:]
					continue
				}
				cmd(cmdLiteral)
				w.raw(lit[0])
				lit = lit[1:]
			}

			switch {
			case s.count == 0:
			case s.count == 2:
				if s.back > 256 {
					panic("two byte match too far back")
				}
				cmd(cmdMove2)
				w.raw(byte(s.back - 1))
			case s.count == 3:
				cmd(cmdMove3)
				distance(s.back)
			case s.count <= 8:
				cmd(cmdMove)
				w.code(lookup(rnc2Lengths, uint32(s.count)))
				distance(s.back)
			default:
				cmd(cmdConditional)
				w.raw(byte(s.count - 8))
				distance(s.back)
			}
		}

		cmd(cmdConditional)
		w.raw(0)
		if i < len(chunks)-1 || finalMore {
			w.bit(1)
		} else {
			w.bit(0)
		}
	}
	return w.buf
}
