// Package mathx holds small integer helpers shared by the firmware and the
// host tools. Everything here is allocation-free and safe in interrupt
// context.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Saturate16 narrows v to the 16-bit range used on the wire.
func Saturate16[T constraints.Unsigned](v T) uint16 {
	if uint64(v) > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}
