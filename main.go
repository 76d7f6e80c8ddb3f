// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Command unrnc decompresses Rob Northen ProPack archives.
//
//	unrnc [-config file] [-o dir] [-verify] [-cache dir] [-workers n] [-log level] pattern...
//
// Patterns may use ** to match any number of directories.
// Each archive "name.rnc" is written out as "name", and any other name
// gets ".out" appended. Archives wrapped in xz are unwrapped first.
// With -o, the directories that a pattern matched are recreated under
// the output directory.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/elliotnunn/unrnc/internal/decodecache"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run(os.Args[1:], os.Getenv, os.Stderr))
}

func run(args []string, getenv func(string) string, stderr io.Writer) int {
	cfg, patterns, err := loadConfig(args, getenv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	} else if err != nil {
		fmt.Fprintln(stderr, "unrnc:", err)
		return 2
	}
	level, _ := cfg.level()
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	if len(patterns) == 0 {
		fmt.Fprintln(stderr, "unrnc: no input files")
		return 2
	}
	inputs, err := expand(patterns)
	if err != nil {
		slog.Error("badPattern", "err", err)
		return 2
	}

	cache, err := decodecache.Open(cfg.CacheDir, memLimit, memLimit/256)
	if err != nil {
		slog.Error("cacheOpenError", "err", err)
		return 1
	}
	defer cache.Close()

	x := newExtractor(cfg.OutDir, cfg.Verify, cache)
	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for _, in := range inputs {
		g.Go(func() error {
			if _, err := x.extract(in); errors.Is(err, errNotArchive) {
				slog.Info("notArchive", "path", in.path)
			} else if err != nil {
				slog.Error("decodeError", "path", in.path, "err", err)
				failed.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	if n := failed.Load(); n > 0 {
		slog.Error("failures", "count", n, "of", len(inputs))
		return 1
	}
	return 0
}

// An input is a file matched by a pattern.
type input struct {
	path string
	rel  string // path below the pattern's fixed leading directories
}

// expand turns patterns into a sorted list of regular files.
// A pattern that matches nothing is an error, as in a shell with failglob.
func expand(patterns []string) ([]input, error) {
	var inputs []input
	for _, pat := range patterns {
		matches, err := doublestar.FilepathGlob(pat, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pat, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%s: no matching files", pat)
		}
		base, _ := doublestar.SplitPattern(filepath.ToSlash(filepath.Clean(pat)))
		for _, m := range matches {
			rel, err := filepath.Rel(filepath.FromSlash(base), m)
			if err != nil || !filepath.IsLocal(rel) {
				rel = filepath.Base(m)
			}
			inputs = append(inputs, input{path: m, rel: rel})
		}
	}
	slices.SortFunc(inputs, func(a, b input) int { return strings.Compare(a.path, b.path) })
	return slices.CompactFunc(inputs, func(a, b input) bool { return a.path == b.path }), nil
}
