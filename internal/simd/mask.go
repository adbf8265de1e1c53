package simd

import (
	"encoding/binary"
	"math/bits"
)

// BlockSize is the width in bytes of one classification block.
const BlockSize = 64

// Block holds the structural masks for one 64-byte block. Bit i of each
// mask corresponds to byte i of the block.
type Block struct {
	Quotes uint64
	Delims uint64
	CRs    uint64
	LFs    uint64
}

// Classify builds the structural masks for one full block. The caller
// must supply at least BlockSize bytes; only the first BlockSize are
// examined.
func Classify(block []byte, delim, quote byte) Block {
	_ = block[BlockSize-1]

	pd := broadcast(delim)
	pq := broadcast(quote)
	pcr := broadcast('\r')
	plf := broadcast('\n')

	var b Block
	for w := 0; w < 8; w++ {
		v := binary.LittleEndian.Uint64(block[w*8:])
		sh := w * 8
		b.Quotes |= moveMask(matchMask(v, pq)) << sh
		b.Delims |= moveMask(matchMask(v, pd)) << sh
		b.CRs |= moveMask(matchMask(v, pcr)) << sh
		b.LFs |= moveMask(matchMask(v, plf)) << sh
	}
	return b
}

// ClassifyPadded classifies a block that may be shorter than BlockSize.
// Bytes past len(block) are treated as zero and match nothing.
func ClassifyPadded(block []byte, delim, quote byte) Block {
	if len(block) >= BlockSize {
		return Classify(block, delim, quote)
	}
	var padded [BlockSize]byte
	copy(padded[:], block)
	b := Classify(padded[:], delim, quote)
	valid := uint64(1)<<len(block) - 1
	b.Quotes &= valid
	b.Delims &= valid
	b.CRs &= valid
	b.LFs &= valid
	return b
}

// QuotedRegions expands a quote mask into the mask of bytes lying inside
// quoted sections, using a prefix XOR over the block. inQuote carries the
// quote state across block boundaries; the returned state feeds the next
// block.
//
// A bit is set from each opening quote through the byte before its
// closing quote. Doubled quotes inside quoted fields toggle the mask off
// and back on within the pair, which leaves the bytes around them
// correctly classified.
func QuotedRegions(quotes uint64, inQuote bool) (region uint64, nextInQuote bool) {
	m := quotes
	m ^= m << 1
	m ^= m << 2
	m ^= m << 4
	m ^= m << 8
	m ^= m << 16
	m ^= m << 32
	if inQuote {
		m = ^m
	}
	nextInQuote = inQuote
	if bits.OnesCount64(quotes)&1 == 1 {
		nextInQuote = !nextInQuote
	}
	return m, nextInQuote
}
