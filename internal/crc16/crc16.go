// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package crc16 implements the bit-reversed CRC-16 with polynomial 0x8005
// and zero initial value (CRC-16/ARC), as used by Rob Northen archives.
package crc16

var crctab [256]uint16

func init() {
	for i := range uint16(256) {
		k := i
		for range 8 {
			if k&1 != 0 {
				k = (k >> 1) ^ 0xa001
			} else {
				k >>= 1
			}
		}
		crctab[i] = k
	}
}

func Update(crc uint16, buf []byte) uint16 {
	for _, ch := range buf {
		crc = crctab[byte(crc)^ch] ^ crc>>8
	}
	return crc
}

func Checksum(buf []byte) uint16 {
	return Update(0, buf)
}
