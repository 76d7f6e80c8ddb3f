// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/elliotnunn/unrnc/internal/decodecache"
)

var errCollision = errors.New("output path already written by another input")

type extractor struct {
	outDir string
	verify bool
	cache  *decodecache.Cache

	mu      sync.Mutex
	written map[string]string // output path to input path
}

func newExtractor(outDir string, verify bool, cache *decodecache.Cache) *extractor {
	return &extractor{outDir: outDir, verify: verify, cache: cache, written: make(map[string]string)}
}

// extract decodes one input file and writes the output file,
// returning the output path.
func (x *extractor) extract(in input) (string, error) {
	f, err := os.Open(in.path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fm, r, name, err := unwrapAll(f, filepath.Base(in.path))
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(in.path)
	if x.outDir != "" {
		dir = filepath.Join(x.outDir, filepath.Dir(in.rel))
	}
	outPath := filepath.Join(dir, outputName(name, fm.suffixes))
	if err := x.claim(outPath, in.path); err != nil {
		return "", err
	}

	packed, err := readLimited(r, fm.maxSize)
	if err != nil {
		return "", err
	}
	out, err := x.decode(fm, packed)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return "", err
	}
	slog.Info("decoded", "path", in.path, "out", outPath, "packed", len(packed), "raw", len(out))
	return outPath, nil
}

// claim reserves an output path for one input for the rest of the run.
func (x *extractor) claim(outPath, inPath string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if prev, ok := x.written[outPath]; ok {
		return fmt.Errorf("%w: %s is also the output of %s", errCollision, outPath, prev)
	}
	x.written[outPath] = inPath
	return nil
}

func (x *extractor) decode(fm *format, packed []byte) ([]byte, error) {
	method := fm.name
	if x.verify {
		method += "+verify"
	}
	key := decodecache.KeyOf(method, packed)
	if x.cache != nil {
		if out, ok := x.cache.Get(key); ok {
			return out, nil
		}
	}

	out, err := fm.decode(packed, x.verify)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fm.name, err)
	}
	if x.cache != nil {
		if err := x.cache.Put(key, out); err != nil {
			slog.Warn("cacheWriteError", "key", key, "err", err)
		}
	}
	return out, nil
}
