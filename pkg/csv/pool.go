package csv

import (
	"bytes"
	"sync"
	"unsafe"

	"github.com/shapestone/streamcsv/internal/tokenizer"
)

// machinePool recycles record machines, with their field and scratch
// buffers, across one-shot parse calls.
var machinePool = sync.Pool{
	New: func() any {
		return &tokenizer.Machine{}
	},
}

// getMachine returns a machine configured from opts. The caller must
// hand it back with putMachine when done.
func getMachine(opts ReaderOptions) *tokenizer.Machine {
	m := machinePool.Get().(*tokenizer.Machine)
	m.Reset()
	m.Delim = opts.Comma
	m.DelimSeq = nil
	if opts.CommaSeq != "" {
		m.DelimSeq = []byte(opts.CommaSeq)
	}
	m.Quote = opts.Quote
	m.Comment = opts.Comment
	m.Lenient = opts.Mode == ModeLenient
	m.TrimLeadingSpace = opts.TrimLeadingSpace
	m.Scan = nil
	return m
}

func putMachine(m *tokenizer.Machine) {
	machinePool.Put(m)
}

// bufferPool recycles output buffers across Marshal calls.
var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// putBuffer returns a buffer to the pool unless it has grown past what
// a typical document needs.
func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() < 64<<10 {
		bufferPool.Put(buf)
	}
}

// unsafeString converts a []byte to a string without allocation.
//
// The string shares the byte slice's backing array, so the bytes must
// not change while the string is live. It is used for fields handed out
// under ReuseRecord, which are documented to be valid only until the
// next read.
func unsafeString(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// unsafeBytes views a string's bytes without allocation. The result
// must never be written to.
func unsafeBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
