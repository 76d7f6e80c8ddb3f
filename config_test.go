package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "unrnc.yaml")
	err := os.WriteFile(file, []byte("outDir: /from/file\ncacheDir: /cache/file\nworkers: 3\nlogLevel: warn\n"), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		args []string
		env  map[string]string
		want Config
	}{
		{"defaults", nil, nil,
			Config{Workers: runtime.GOMAXPROCS(0), LogLevel: "info"}},
		{"file", []string{"-config", file}, nil,
			Config{OutDir: "/from/file", CacheDir: "/cache/file", Workers: 3, LogLevel: "warn"}},
		{"fileFromEnv", nil, map[string]string{"UNRNC_CONFIG": file},
			Config{OutDir: "/from/file", CacheDir: "/cache/file", Workers: 3, LogLevel: "warn"}},
		{"envOverFile", []string{"-config", file}, map[string]string{"UNRNC_CACHE": "/cache/env", "UNRNC_WORKERS": "5", "UNRNC_VERIFY": "true", "UNRNC_LOG": "debug"},
			Config{OutDir: "/from/file", CacheDir: "/cache/env", Workers: 5, Verify: true, LogLevel: "debug"}},
		{"flagsOverEnv", []string{"-config", file, "-o", "/out", "-workers", "7", "-verify=false", "-log", "error"}, map[string]string{"UNRNC_WORKERS": "5", "UNRNC_VERIFY": "1"},
			Config{OutDir: "/out", CacheDir: "/cache/file", Workers: 7, Verify: false, LogLevel: "error"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, rest, err := loadConfig(append(c.args, "a.rnc", "b/**"), env(c.env), io.Discard)
			if err != nil {
				t.Fatal(err)
			}
			if got != c.want {
				t.Errorf("got %+v, want %+v", got, c.want)
			}
			if !slices.Equal(rest, []string{"a.rnc", "b/**"}) {
				t.Errorf("patterns %q", rest)
			}
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	unknown := filepath.Join(dir, "unknown.yaml")
	if err := os.WriteFile(unknown, []byte("colour: blue\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"badFlag", []string{"-frobnicate"}, nil},
		{"missingFile", []string{"-config", filepath.Join(dir, "absent.yaml")}, nil},
		{"unknownField", []string{"-config", unknown}, nil},
		{"badWorkersEnv", nil, map[string]string{"UNRNC_WORKERS": "lots"}},
		{"badVerifyEnv", nil, map[string]string{"UNRNC_VERIFY": "perhaps"}},
		{"zeroWorkers", []string{"-workers", "0"}, nil},
		{"badLevel", []string{"-log", "loud"}, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, _, err := loadConfig(c.args, env(c.env), io.Discard); err == nil {
				t.Error("no error")
			}
		})
	}
}

func TestConfigLevel(t *testing.T) {
	for s, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := Config{LogLevel: s}.level()
		if err != nil || got != want {
			t.Errorf("%s: got %v %v", s, got, err)
		}
	}
}
