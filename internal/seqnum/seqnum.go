// Package seqnum implements wrapping 16-bit sequence arithmetic shared by
// packet, message, and tick indices: a signed distance between two numbers
// and a half-range "greater than" comparison that stays correct across a
// wraparound from 65535 back to 0.
package seqnum

import "github.com/duskwire/netcode/internal/bitio"

// Num is a 16-bit sequence number that wraps on overflow. It is used as the
// underlying representation for packet indices, message indices, and tick
// numbers throughout this module.
type Num uint16

const (
	Zero Num = 0
	Max  Num = ^Num(0)
)

// Add returns n advanced by delta, wrapping on overflow. delta may be
// negative.
func (n Num) Add(delta int16) Num {
	return Num(uint16(n) + uint16(delta))
}

// Incr returns n+1, wrapping from Max back to Zero.
func (n Num) Incr() Num { return n + 1 }

// Sub returns n retreated by delta (unsigned), wrapping on underflow.
func (n Num) Sub(delta uint16) Num { return Num(uint16(n) - delta) }

// Diff returns the signed distance from rhs to n: n.Diff(rhs) == d means
// n == rhs.Add(d), with |d| minimized across the wraparound.
func (n Num) Diff(rhs Num) int16 {
	return seqDiff(uint16(n), uint16(rhs))
}

func seqDiff(lhs, rhs uint16) int16 {
	const rangeSize = int32(1) << 16
	diff := int32(lhs) - int32(rhs)
	switch {
	case diff > 32767:
		diff -= rangeSize
	case diff < -32768:
		diff += rangeSize
	}
	return int16(diff)
}

// seqGreaterThan reports whether lhs should be considered later than rhs
// under half-range wraparound semantics: of the 65536 possible values, the
// 32768 "ahead" of rhs count as greater, and the other half count as behind
// it.
func seqGreaterThan(lhs, rhs uint16) bool {
	const halfRange = uint16(1) << 15
	return (lhs > rhs && lhs-rhs <= halfRange) || (lhs < rhs && rhs-lhs > halfRange)
}

// GreaterThan reports whether n is ordered after rhs.
func (n Num) GreaterThan(rhs Num) bool {
	return seqGreaterThan(uint16(n), uint16(rhs))
}

// LessThan reports whether n is ordered before rhs.
func (n Num) LessThan(rhs Num) bool {
	return n != rhs && !n.GreaterThan(rhs)
}

// GreaterOrEqual reports whether n is ordered at or after rhs.
func (n Num) GreaterOrEqual(rhs Num) bool {
	return n == rhs || n.GreaterThan(rhs)
}

// Ser writes n to w as a raw uint16, little-endian.
func (n Num) Ser(w bitio.Writer) {
	writeU16(w, uint16(n))
}

// De reads a Num from r.
func De(r *bitio.BitReader) (Num, error) {
	v, err := r.ReadU16()
	return Num(v), err
}

func writeU16(w bitio.Writer, v uint16) {
	w.WriteByte(byte(v))
	w.WriteByte(byte(v >> 8))
}
