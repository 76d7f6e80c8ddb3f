// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/elliotnunn/unrnc/internal/rnc"
	"github.com/therootcompany/xz"
)

var (
	errNotArchive = errors.New("not a recognised archive")
	errTooDeep    = errors.New("archives nested too deeply")
	errTooLarge   = errors.New("archive too large")
)

const maxDepth = 4

// A format is either a container, which unwraps to another stream to be probed,
// or a terminal format, which decodes to the final output.
type format struct {
	name     string
	suffixes string // for changeSuffix
	match    func(s *sniffer) bool
	unwrap   func(r io.Reader) (io.Reader, error)
	decode   func(packed []byte, verify bool) ([]byte, error)
	maxSize  int64 // of the packed input to decode
}

// formats are tried in order
var formats = []format{
	{
		name:     "xz",
		suffixes: ".xz .txz=.tar",
		match:    func(s *sniffer) bool { return s.at("\xfd7zXZ\x00", 0) },
		unwrap: func(r io.Reader) (io.Reader, error) {
			zr, err := xz.NewReader(r, xz.DefaultDictMax)
			if err != nil {
				return nil, err
			}
			return zr, nil
		},
	},
	{
		name:     "rnc",
		suffixes: ".rnc .RNC",
		match:    func(s *sniffer) bool { return rnc.Detect(s.peek(4)) },
		decode:   rnc.Decode,
		maxSize:  18 + rnc.MaxPackedSize,
	},
}

// sniffer reads just enough of a stream to tell formats apart.
type sniffer struct {
	r           io.Reader
	header      []byte
	accessError error
}

func (s *sniffer) fill(n int) {
	if len(s.header) < n && len(s.header) == cap(s.header) {
		target := (n + 63) &^ 63
		s.header = slices.Grow(s.header, target-len(s.header))
		got, err := io.ReadFull(s.r, s.header[len(s.header):cap(s.header)])
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF && s.accessError == nil {
			s.accessError = err
		}
		s.header = s.header[:len(s.header)+got]
	}
}

func (s *sniffer) at(magic string, offset int) bool {
	s.fill(offset + len(magic))
	return len(s.header) >= offset+len(magic) && string(s.header[offset:][:len(magic)]) == magic
}

// peek may return fewer than n bytes at the end of the stream.
func (s *sniffer) peek(n int) []byte {
	s.fill(n)
	return s.header[:min(n, len(s.header))]
}

// rest is the whole stream again, including the sniffed header.
func (s *sniffer) rest() io.Reader {
	return io.MultiReader(bytes.NewReader(s.header), s.r)
}

// probe picks the first format that matches r.
// The returned reader replays r from its start.
func probe(r io.Reader) (*format, io.Reader, error) {
	s := &sniffer{r: r}
	for i := range formats {
		if formats[i].match(s) {
			return &formats[i], s.rest(), nil
		}
	}
	if s.accessError != nil {
		return nil, nil, s.accessError
	}
	return nil, nil, errNotArchive
}

// unwrapAll peels containers until it reaches a terminal format.
// The name is renamed along the way, so "x.rnc.xz" becomes "x.rnc".
func unwrapAll(r io.Reader, name string) (*format, io.Reader, string, error) {
	for depth := 0; depth < maxDepth; depth++ {
		f, rr, err := probe(r)
		if err != nil {
			if depth > 0 && errors.Is(err, errNotArchive) {
				return nil, nil, "", fmt.Errorf("%w inside %s", errNotArchive, name)
			}
			return nil, nil, "", err
		}
		if f.unwrap == nil {
			return f, rr, name, nil
		}
		r, err = f.unwrap(rr)
		if err != nil {
			return nil, nil, "", fmt.Errorf("%s: %w", f.name, err)
		}
		name = changeSuffix(name, f.suffixes)
	}
	return nil, nil, "", fmt.Errorf("%w: more than %d levels", errTooDeep, maxDepth)
}

// readLimited reads all of r, failing if it is longer than limit.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", errTooLarge, limit)
	}
	return data, nil
}

func changeSuffix(s string, suffixes string) string {
	for _, rule := range strings.Split(suffixes, " ") {
		from, to, _ := strings.Cut(rule, "=")
		if strings.HasSuffix(s, from) && len(s) > len(from) {
			return s[:len(s)-len(from)] + to
		}
	}
	return s
}

// outputName strips a known suffix, or failing that adds one.
func outputName(s string, suffixes string) string {
	if t := changeSuffix(s, suffixes); t != s {
		return t
	}
	return s + ".out"
}
