// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import "golang.org/x/sys/unix"

func physicalMemory() int {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return int(uint64(info.Totalram) * uint64(info.Unit))
}
