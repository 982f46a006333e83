package fec

import (
	"math/bits"
	"strings"
)

// Bits are numbered MSB-first: bit i lives in byte i>>3 under mask 0x80>>(i&7).

func bitAt(b []byte, i int) byte { return (b[i>>3] >> (7 - uint(i&7))) & 1 }

func setBit(b []byte, i int) { b[i>>3] |= 0x80 >> uint(i&7) }

func flipBit(b []byte, i int) { b[i>>3] ^= 0x80 >> uint(i&7) }

// HammingDistance counts differing bits over the common prefix of a and b.
func HammingDistance(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	d := 0
	for i := 0; i < n; i++ {
		d += bits.OnesCount8(a[i] ^ b[i])
	}
	return d
}

// BitString renders b as space separated %08b groups.
func BitString(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 9)
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		for k := 7; k >= 0; k-- {
			sb.WriteByte('0' + (v>>uint(k))&1)
		}
	}
	return sb.String()
}
