// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package decodecache remembers the output of expensive decompressions,
// keyed by a hash of the packed bytes.
//
// A TinyLFU cache in memory sits in front of an optional pebble database,
// which holds zstd-compressed copies that outlive the process.
// A Cache is safe for concurrent use by multiple goroutines.
package decodecache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/maphash"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/v2"
	"github.com/dgryski/go-tinylfu"
	"github.com/klauspost/compress/zstd"
)

// Key identifies a decoded output by its input.
type Key struct {
	Hash   uint64 // xxhash of the packed bytes
	Size   int
	Method string
}

func KeyOf(method string, packed []byte) Key {
	return Key{Hash: xxhash.Sum64(packed), Size: len(packed), Method: method}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%016x/%d", k.Method, k.Hash, k.Size)
}

// disk form: hash, size, method
func (k Key) bytes() []byte {
	b := binary.BigEndian.AppendUint64(nil, k.Hash)
	b = binary.BigEndian.AppendUint64(b, uint64(k.Size))
	return append(b, k.Method...)
}

var seed = maphash.MakeSeed()

var encoderOptions = []zstd.EOption{zstd.WithEncoderConcurrency(1)}

// tinylfu needs room for a window entry and both segments
const minEntries = 3

func hasher(k Key) uint64 { return maphash.Comparable(seed, k) }

type Cache struct {
	mu       sync.Mutex
	mem      *tinylfu.T[Key, []byte]
	maxEntry int
	held     int // bytes in mem

	db  *pebble.DB // nil if there is no directory
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open creates a cache that keeps at most budget bytes of outputs in memory,
// none of them larger than maxEntry bytes.
// If dir is not empty, a pebble database there backs the memory tier.
func Open(dir string, budget, maxEntry int) (*Cache, error) {
	maxEntry = max(min(maxEntry, budget/minEntries), 0)
	entries := minEntries
	if maxEntry > 0 {
		entries = budget / maxEntry
	}
	c := &Cache{maxEntry: maxEntry}
	c.mem = tinylfu.New[Key, []byte](entries, entries*10, hasher,
		tinylfu.OnEvict(c.forget),
		tinylfu.OnReplace(c.forget))
	if dir == "" {
		return c, nil
	}

	db, err := pebble.Open(dir, &pebble.Options{Logger: pebbleLogger{}})
	if err != nil {
		return nil, fmt.Errorf("decode cache %s: %w", dir, err)
	}
	if c.enc, err = zstd.NewWriter(nil, encoderOptions...); err != nil {
		db.Close()
		return nil, fmt.Errorf("decode cache %s: %w", dir, err)
	}
	if c.dec, err = zstd.NewReader(nil); err != nil {
		c.enc.Close()
		db.Close()
		return nil, fmt.Errorf("decode cache %s: %w", dir, err)
	}
	c.db = db
	return c, nil
}

// Get returns a previously stored output. The slice must not be modified.
func (c *Cache) Get(k Key) ([]byte, bool) {
	c.mu.Lock()
	v, ok := c.mem.Get(k)
	c.mu.Unlock()
	if ok {
		slog.Debug("cacheHit", "key", k, "tier", "memory")
		return v, true
	}
	if c.db == nil {
		return nil, false
	}

	packed, closer, err := c.db.Get(k.bytes())
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false
	} else if err != nil {
		slog.Warn("cacheReadError", "key", k, "err", err)
		return nil, false
	}
	v, err = c.dec.DecodeAll(packed, nil)
	closer.Close()
	if err != nil {
		slog.Warn("cacheCorrupt", "key", k, "err", err)
		return nil, false
	}

	slog.Debug("cacheHit", "key", k, "tier", "disk")
	c.remember(k, v)
	return v, true
}

// Put stores an output. The cache keeps v, so it must not be modified afterward.
func (c *Cache) Put(k Key, v []byte) error {
	c.remember(k, v)
	if c.db == nil {
		return nil
	}
	if err := c.db.Set(k.bytes(), c.enc.EncodeAll(v, nil), pebble.NoSync); err != nil {
		return fmt.Errorf("decode cache %v: %w", k, err)
	}
	return nil
}

func (c *Cache) remember(k Key, v []byte) {
	if len(v) > c.maxEntry {
		return
	}
	c.mu.Lock()
	c.held += len(v)
	c.mem.Add(k, v)
	c.mu.Unlock()
}

// forget is called by the memory tier, with mu held, when it lets go of a value.
func (c *Cache) forget(_ Key, old []byte) {
	c.held -= len(old)
}

// Held is the number of bytes kept in memory.
func (c *Cache) Held() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held
}

func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	c.enc.Close()
	c.dec.Close()
	return c.db.Close()
}

// pebbleLogger sends the database's chatter through slog.
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...any) {
	slog.Debug("pebble", "msg", fmt.Sprintf(format, args...))
}

func (pebbleLogger) Errorf(format string, args ...any) {
	slog.Error("pebble", "msg", fmt.Sprintf(format, args...))
}

func (pebbleLogger) Fatalf(format string, args ...any) {
	panic(fmt.Sprintf("pebble: "+format, args...))
}
