// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"

	"sigs.k8s.io/yaml"
)

// Config is built up from defaults, then a YAML file, then the environment,
// then the command line, each overriding the last.
type Config struct {
	OutDir   string `json:"outDir"`   // empty means beside each input
	CacheDir string `json:"cacheDir"` // empty means no disk cache
	Workers  int    `json:"workers"`
	Verify   bool   `json:"verify"`
	LogLevel string `json:"logLevel"`
}

func defaultConfig() Config {
	return Config{
		Workers:  runtime.GOMAXPROCS(0),
		LogLevel: "info",
	}
}

// loadConfig returns the config and the remaining arguments, which are input patterns.
func loadConfig(args []string, getenv func(string) string, stderr io.Writer) (Config, []string, error) {
	var (
		fl       = flag.NewFlagSet("unrnc", flag.ContinueOnError)
		file     = fl.String("config", "", "YAML config `file`")
		outDir   = fl.String("o", "", "output `dir`ectory (default beside each input)")
		cacheDir = fl.String("cache", "", "persistent decode cache `dir`ectory")
		workers  = fl.Int("workers", 0, "files to decode at once")
		verify   = fl.Bool("verify", false, "check archive CRCs")
		level    = fl.String("log", "", "log `level`: debug, info, warn or error")
	)
	fl.SetOutput(stderr)
	fl.Usage = func() {
		fmt.Fprintln(stderr, "usage: unrnc [flags] pattern...")
		fl.PrintDefaults()
	}
	if err := fl.Parse(args); err != nil {
		return Config{}, nil, err
	}

	cfg := defaultConfig()

	if *file == "" {
		*file = getenv("UNRNC_CONFIG")
	}
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			return Config{}, nil, err
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return Config{}, nil, fmt.Errorf("config %s: %w", *file, err)
		}
	}

	if e := getenv("UNRNC_CACHE"); e != "" {
		cfg.CacheDir = e
	}
	if e := getenv("UNRNC_WORKERS"); e != "" {
		n, err := strconv.Atoi(e)
		if err != nil {
			return Config{}, nil, fmt.Errorf("malformed UNRNC_WORKERS environment variable, should be a number: %s", e)
		}
		cfg.Workers = n
	}
	if e := getenv("UNRNC_VERIFY"); e != "" {
		b, err := strconv.ParseBool(e)
		if err != nil {
			return Config{}, nil, fmt.Errorf("malformed UNRNC_VERIFY environment variable, should be true or false: %s", e)
		}
		cfg.Verify = b
	}
	if e := getenv("UNRNC_LOG"); e != "" {
		cfg.LogLevel = e
	}

	fl.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			cfg.OutDir = *outDir
		case "cache":
			cfg.CacheDir = *cacheDir
		case "workers":
			cfg.Workers = *workers
		case "verify":
			cfg.Verify = *verify
		case "log":
			cfg.LogLevel = *level
		}
	})

	if cfg.Workers < 1 {
		return Config{}, nil, fmt.Errorf("need at least one worker, not %d", cfg.Workers)
	}
	if _, err := cfg.level(); err != nil {
		return Config{}, nil, err
	}
	return cfg, fl.Args(), nil
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
