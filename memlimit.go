// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"math"
	"os"
	"strconv"
)

var memLimit int = calcMemLimit()

func calcMemLimit() int {
	if e := os.Getenv("UNRNCGB"); e != "" {
		f, err := strconv.ParseFloat(e, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			panic("malformed UNRNCGB environment variable, should be a number of gigabytes: " + e)
		}
		return int(f * 1024 * 1024 * 1024)
	}
	if ram := physicalMemory(); ram > 0 {
		return ram / 8
	}
	return 1024 * 1024 * 1024 // fall back on 1GiB
}
