// Package simd implements byte-level scanning primitives for the CSV engine.
//
// The package provides two layers:
//
//   - IndexAny finds the first occurrence of any of four significant bytes.
//     This is the hot operation behind field scanning: the tokenizer asks
//     "where is the next delimiter, quote, or record terminator" and skips
//     plain content in bulk.
//   - Classify builds per-byte structural masks over 64-byte blocks, used
//     for quote-aware analysis such as dialect detection.
//
// Three kernels implement the same IndexAny contract: a byte-at-a-time
// scalar loop, an 8-byte SWAR (SIMD Within A Register) loop, and a 64-byte
// block kernel. The active kernel is chosen once at package initialization
// from the detected CPU capabilities and never changes afterward, so
// concurrent callers always observe the same implementation.
package simd

import (
	"encoding/binary"
	"math/bits"
)

const (
	loBits = 0x0101010101010101
	hiBits = 0x8080808080808080
)

// indexAny is the kernel selected at startup.
var indexAny = indexAnySWAR

func init() {
	if useWideKernel {
		indexAny = indexAnyWide
	}
}

// IndexAny returns the index of the first byte in data equal to a, b, c,
// or d, or -1 if no such byte is present. Callers searching for fewer
// than four distinct bytes pass a repeated needle.
func IndexAny(data []byte, a, b, c, d byte) int {
	return indexAny(data, a, b, c, d)
}

// Kernel reports which IndexAny implementation was selected at startup.
func Kernel() string {
	if useWideKernel {
		return "wide"
	}
	return "swar"
}

// IndexAnyScalar is the portable reference kernel. It is never selected
// as the default but is exported so callers can cross-check the
// vectorized kernels against it.
func IndexAnyScalar(data []byte, a, b, c, d byte) int {
	for i, x := range data {
		if x == a || x == b || x == c || x == d {
			return i
		}
	}
	return -1
}

// IndexAnySWAR scans 8 bytes per iteration using the zero-byte detection
// trick on XOR-ed words.
func IndexAnySWAR(data []byte, a, b, c, d byte) int {
	return indexAnySWAR(data, a, b, c, d)
}

// IndexAnyWide scans 64 bytes per iteration by building a per-block match
// bitmask and taking its lowest set bit.
func IndexAnyWide(data []byte, a, b, c, d byte) int {
	return indexAnyWide(data, a, b, c, d)
}

// broadcast replicates b into all 8 bytes of a word.
func broadcast(b byte) uint64 {
	return uint64(b) * loBits
}

// matchMask returns a word with 0x80 set in every byte of v equal to the
// broadcast pattern pat and 0x00 elsewhere.
//
// XOR zeroes the matching bytes, then the expression
// ((x - 0x01..01) & ^x & 0x80..80) lights the high bit of exactly the
// zero bytes.
func matchMask(v, pat uint64) uint64 {
	x := v ^ pat
	return (x - loBits) & ^x & hiBits
}

// matchAny returns the combined match mask for four needles over one word.
func matchAny(v, pa, pb, pc, pd uint64) uint64 {
	return matchMask(v, pa) | matchMask(v, pb) | matchMask(v, pc) | matchMask(v, pd)
}

func indexAnySWAR(data []byte, a, b, c, d byte) int {
	pa, pb, pc, pd := broadcast(a), broadcast(b), broadcast(c), broadcast(d)

	i := 0
	for ; i+8 <= len(data); i += 8 {
		v := binary.LittleEndian.Uint64(data[i:])
		if m := matchAny(v, pa, pb, pc, pd); m != 0 {
			// The high bit of byte k sits at bit 8k+7.
			return i + bits.TrailingZeros64(m)/8
		}
	}

	// Tail shorter than one word.
	for ; i < len(data); i++ {
		x := data[i]
		if x == a || x == b || x == c || x == d {
			return i
		}
	}
	return -1
}

func indexAnyWide(data []byte, a, b, c, d byte) int {
	pa, pb, pc, pd := broadcast(a), broadcast(b), broadcast(c), broadcast(d)

	i := 0
	for ; i+64 <= len(data); i += 64 {
		var mask uint64
		for w := 0; w < 8; w++ {
			v := binary.LittleEndian.Uint64(data[i+w*8:])
			mask |= moveMask(matchAny(v, pa, pb, pc, pd)) << (w * 8)
		}
		if mask != 0 {
			return i + bits.TrailingZeros64(mask)
		}
	}

	if n := indexAnySWAR(data[i:], a, b, c, d); n >= 0 {
		return i + n
	}
	return -1
}

// moveMask compresses a match mask (0x80 per matching byte) into an
// 8-bit mask with bit k set when byte k matched.
//
// The multiplier places each byte's high bit at a distinct position in
// 56..63 with no carries, so a single shift extracts the result.
func moveMask(m uint64) uint64 {
	return (m * 0x0002040810204081) >> 56
}
