// Package tokenizer implements the CSV record state machine.
//
// The machine turns a window of raw bytes into one record of field
// slices per call. It performs no I/O and keeps no position between
// records: when a record is cut off by the end of the window, the
// caller stitches a longer window and the machine re-scans that record
// from its start. The restart contract keeps the streaming reader's
// buffer management simple and makes results independent of where
// window boundaries fall.
//
// Scanning inside fields is delegated to the simd package, so runs of
// plain content are skipped in bulk rather than byte by byte.
package tokenizer

import (
	"bytes"

	"github.com/shapestone/streamcsv/internal/simd"
)

// state identifies where the machine sits within the current record.
type state uint8

const (
	stateFieldStart state = iota
	stateInField
	stateInQuoted
	stateQuoteInQuoted
	stateRecordEnd
)

// Machine is the record-level state machine. Configure the exported
// fields before the first call to Next; they must not change between
// calls on the same input.
type Machine struct {
	// Delim is the field delimiter byte.
	Delim byte

	// DelimSeq, when it holds two or more bytes, replaces Delim as the
	// field delimiter and switches scanning to a byte-stepping fallback
	// that bypasses the vectorized kernels. The sequence must not
	// contain the quote byte, CR, or LF.
	DelimSeq []byte

	// Quote is the quote byte.
	Quote byte

	// Comment, if nonzero, marks lines whose first byte equals it as
	// comments to skip. Comments are recognized only at the start of a
	// line, before any field content.
	Comment byte

	// Lenient switches the machine from raising quoting errors to the
	// documented recovery rules: a quote inside an unquoted field is
	// literal content, and data following a closing quote is
	// concatenated onto the field.
	Lenient bool

	// TrimLeadingSpace drops spaces and tabs at the start of each field
	// unless the delimiter itself is one of those bytes.
	TrimLeadingSpace bool

	// Scan locates the next occurrence of any of four bytes. When nil,
	// the kernel selected by the simd package at startup is used. Tests
	// inject the scalar reference kernel here.
	Scan func(data []byte, a, b, c, d byte) int

	fields   []Field
	scratch  []byte
	eol      string
	recStart int
}

// NewMachine returns a machine for the given delimiter and quote bytes.
func NewMachine(delim, quote byte) *Machine {
	return &Machine{Delim: delim, Quote: quote}
}

// Reset clears per-input state so the machine can scan a fresh input.
// Internal buffers keep their capacity.
func (m *Machine) Reset() {
	m.fields = m.fields[:0]
	m.scratch = m.scratch[:0]
	m.eol = ""
}

// Next scans the next record from window. atEOF tells the machine that
// window holds all remaining input.
//
// On Record, n covers the record and its terminator (plus any skipped
// blank or comment lines) and the fields are available through Len and
// FieldBytes until the next call. On NeedMore, n covers only the
// skipped prefix; the unfinished record is left unconsumed so the
// caller can re-present it at the front of a longer window. On EOF, n
// covers trailing blank lines. When err is non-nil it is a
// *SyntaxError, nothing is consumed, and the error offset is relative
// to window.
func (m *Machine) Next(window []byte, atEOF bool) (n int, res Result, err error) {
	if len(m.DelimSeq) > 1 {
		return m.nextSeq(window, atEOF)
	}

	m.fields = m.fields[:0]
	m.scratch = m.scratch[:0]

	scan := m.Scan
	if scan == nil {
		scan = simd.IndexAny
	}

	pos, res, ok := m.skipPrefix(window, atEOF)
	if !ok {
		return pos, res, nil
	}

	prefix := pos
	m.recStart = prefix
	st := stateFieldStart
	fieldStart := pos
	scratchStart := 0
	usingScratch := false
	quoted := false

	for {
		switch st {
		case stateFieldStart:
			usingScratch, quoted = false, false
			if m.TrimLeadingSpace {
				for pos < len(window) {
					c := window[pos]
					if (c != ' ' && c != '\t') || c == m.Delim {
						break
					}
					pos++
				}
			}
			if pos >= len(window) {
				if !atEOF {
					return prefix, NeedMore, nil
				}
				// Input ends on a delimiter or trimmed space: the
				// record still owns one final empty field.
				m.fields = append(m.fields, Field{start: pos, end: pos})
				st = stateRecordEnd
				continue
			}
			switch c := window[pos]; {
			case c == m.Quote:
				quoted = true
				pos++
				fieldStart = pos
				st = stateInQuoted
			case c == m.Delim:
				m.fields = append(m.fields, Field{start: pos, end: pos})
				pos++
			case c == '\r' || c == '\n':
				m.fields = append(m.fields, Field{start: pos, end: pos})
				st = stateRecordEnd
			default:
				fieldStart = pos
				st = stateInField
			}

		case stateInField:
			off := scan(window[pos:], m.Delim, m.Quote, '\r', '\n')
			if off < 0 {
				if !atEOF {
					return prefix, NeedMore, nil
				}
				m.emit(window, fieldStart, len(window), usingScratch, scratchStart, quoted)
				pos = len(window)
				st = stateRecordEnd
				continue
			}
			pos += off
			switch c := window[pos]; {
			case c == m.Delim:
				m.emit(window, fieldStart, pos, usingScratch, scratchStart, quoted)
				pos++
				st = stateFieldStart
			case c == m.Quote:
				if !m.Lenient {
					return m.fail(pos, ErrBareQuote)
				}
				pos++ // literal quote inside unquoted content
			default:
				m.emit(window, fieldStart, pos, usingScratch, scratchStart, quoted)
				st = stateRecordEnd
			}

		case stateInQuoted:
			off := bytes.IndexByte(window[pos:], m.Quote)
			if off < 0 {
				if !atEOF {
					return prefix, NeedMore, nil
				}
				if !m.Lenient {
					return m.fail(len(window), ErrUnterminatedQuote)
				}
				// Lenient: everything up to end of input is content.
				if usingScratch {
					m.scratch = append(m.scratch, window[pos:]...)
					m.fields = append(m.fields, Field{start: scratchStart, end: len(m.scratch), scratch: true, quoted: true})
				} else {
					m.fields = append(m.fields, Field{start: fieldStart, end: len(window), quoted: true})
				}
				pos = len(window)
				st = stateRecordEnd
				continue
			}
			if usingScratch {
				m.scratch = append(m.scratch, window[pos:pos+off]...)
			}
			pos += off + 1
			st = stateQuoteInQuoted

		case stateQuoteInQuoted:
			if pos >= len(window) {
				if !atEOF {
					return prefix, NeedMore, nil
				}
				m.closeQuoted(fieldStart, pos-1, usingScratch, scratchStart)
				st = stateRecordEnd
				continue
			}
			switch c := window[pos]; {
			case c == m.Quote:
				// Doubled quote: one literal quote, still inside the
				// field. The field can no longer be a plain view of
				// the window, so content moves to scratch.
				if !usingScratch {
					usingScratch = true
					scratchStart = len(m.scratch)
					m.scratch = append(m.scratch, window[fieldStart:pos-1]...)
				}
				m.scratch = append(m.scratch, m.Quote)
				pos++
				st = stateInQuoted
			case c == m.Delim:
				m.closeQuoted(fieldStart, pos-1, usingScratch, scratchStart)
				pos++
				st = stateFieldStart
			case c == '\r' || c == '\n':
				m.closeQuoted(fieldStart, pos-1, usingScratch, scratchStart)
				st = stateRecordEnd
			default:
				if !m.Lenient {
					return m.fail(pos, ErrQuote)
				}
				// Lenient: the quoted part is closed; the rest of the
				// field continues unquoted and is concatenated.
				if !usingScratch {
					usingScratch = true
					scratchStart = len(m.scratch)
					m.scratch = append(m.scratch, window[fieldStart:pos-1]...)
				}
				fieldStart = pos
				st = stateInField
			}

		case stateRecordEnd:
			if pos >= len(window) {
				return pos, Record, nil
			}
			if window[pos] == '\n' {
				pos++
				m.noteEOL("\n")
				return pos, Record, nil
			}
			// \r, possibly the start of \r\n.
			if pos+1 < len(window) {
				if window[pos+1] == '\n' {
					pos += 2
					m.noteEOL("\r\n")
				} else {
					pos++
					m.noteEOL("\r")
				}
				return pos, Record, nil
			}
			if !atEOF {
				return prefix, NeedMore, nil
			}
			pos++
			m.noteEOL("\r")
			return pos, Record, nil
		}
	}
}

// skipPrefix consumes blank lines and comment lines ahead of a record.
// ok reports that a record starts at pos; otherwise pos and res are
// ready to return from Next as-is (split \r\n pair, unterminated
// comment, or nothing left in the window).
func (m *Machine) skipPrefix(window []byte, atEOF bool) (pos int, res Result, ok bool) {
	for pos < len(window) {
		switch c := window[pos]; {
		case c == '\n':
			pos++
		case c == '\r':
			if pos+1 >= len(window) && !atEOF {
				// Could be the first half of a \r\n pair.
				return pos, NeedMore, false
			}
			pos++
			if pos < len(window) && window[pos] == '\n' {
				pos++
			}
		case m.Comment != 0 && c == m.Comment:
			nl := bytes.IndexByte(window[pos:], '\n')
			if nl < 0 {
				if atEOF {
					return len(window), EOF, false
				}
				return pos, NeedMore, false
			}
			pos += nl + 1
		default:
			return pos, 0, true
		}
	}
	if !atEOF {
		return pos, NeedMore, false
	}
	return pos, EOF, false
}

// seqMatch classifies how the head of a window tail relates to the
// delimiter sequence.
type seqMatch uint8

const (
	seqNone    seqMatch = iota
	seqFull             // the full sequence starts here
	seqPartial          // the tail is a proper prefix of the sequence
)

func matchSeq(tail, seq []byte) seqMatch {
	if len(tail) >= len(seq) {
		if bytes.Equal(tail[:len(seq)], seq) {
			return seqFull
		}
		return seqNone
	}
	if bytes.Equal(tail, seq[:len(tail)]) {
		return seqPartial
	}
	return seqNone
}

// nextSeq scans one record with a multi-byte delimiter. It walks the
// window a byte at a time instead of dispatching to the scan kernels;
// the restart and skip semantics match Next exactly. A partial
// delimiter match cut off by the window edge counts as NeedMore so the
// verdict never depends on where the window boundary falls.
func (m *Machine) nextSeq(window []byte, atEOF bool) (int, Result, error) {
	m.fields = m.fields[:0]
	m.scratch = m.scratch[:0]
	seq := m.DelimSeq

	pos, res, ok := m.skipPrefix(window, atEOF)
	if !ok {
		return pos, res, nil
	}

	prefix := pos
	m.recStart = prefix
	st := stateFieldStart
	fieldStart := pos
	scratchStart := 0
	usingScratch := false
	quoted := false

	for {
		switch st {
		case stateFieldStart:
			usingScratch, quoted = false, false
			if m.TrimLeadingSpace {
				for pos < len(window) {
					c := window[pos]
					if c != ' ' && c != '\t' {
						break
					}
					if ms := matchSeq(window[pos:], seq); ms == seqFull {
						break
					} else if ms == seqPartial && !atEOF {
						return prefix, NeedMore, nil
					}
					pos++
				}
			}
			if pos >= len(window) {
				if !atEOF {
					return prefix, NeedMore, nil
				}
				m.fields = append(m.fields, Field{start: pos, end: pos})
				st = stateRecordEnd
				continue
			}
			switch c := window[pos]; {
			case c == m.Quote:
				quoted = true
				pos++
				fieldStart = pos
				st = stateInQuoted
			case c == '\r' || c == '\n':
				m.fields = append(m.fields, Field{start: pos, end: pos})
				st = stateRecordEnd
			default:
				switch matchSeq(window[pos:], seq) {
				case seqFull:
					m.fields = append(m.fields, Field{start: pos, end: pos})
					pos += len(seq)
				case seqPartial:
					if !atEOF {
						return prefix, NeedMore, nil
					}
					fieldStart = pos
					st = stateInField
				default:
					fieldStart = pos
					st = stateInField
				}
			}

		case stateInField:
			if pos >= len(window) {
				if !atEOF {
					return prefix, NeedMore, nil
				}
				m.emit(window, fieldStart, len(window), usingScratch, scratchStart, quoted)
				st = stateRecordEnd
				continue
			}
			switch c := window[pos]; {
			case c == '\r' || c == '\n':
				m.emit(window, fieldStart, pos, usingScratch, scratchStart, quoted)
				st = stateRecordEnd
			case c == m.Quote:
				if !m.Lenient {
					return m.fail(pos, ErrBareQuote)
				}
				pos++ // literal quote inside unquoted content
			default:
				switch matchSeq(window[pos:], seq) {
				case seqFull:
					m.emit(window, fieldStart, pos, usingScratch, scratchStart, quoted)
					pos += len(seq)
					st = stateFieldStart
				case seqPartial:
					if !atEOF {
						return prefix, NeedMore, nil
					}
					pos++
				default:
					pos++
				}
			}

		case stateInQuoted:
			off := bytes.IndexByte(window[pos:], m.Quote)
			if off < 0 {
				if !atEOF {
					return prefix, NeedMore, nil
				}
				if !m.Lenient {
					return m.fail(len(window), ErrUnterminatedQuote)
				}
				if usingScratch {
					m.scratch = append(m.scratch, window[pos:]...)
					m.fields = append(m.fields, Field{start: scratchStart, end: len(m.scratch), scratch: true, quoted: true})
				} else {
					m.fields = append(m.fields, Field{start: fieldStart, end: len(window), quoted: true})
				}
				pos = len(window)
				st = stateRecordEnd
				continue
			}
			if usingScratch {
				m.scratch = append(m.scratch, window[pos:pos+off]...)
			}
			pos += off + 1
			st = stateQuoteInQuoted

		case stateQuoteInQuoted:
			if pos >= len(window) {
				if !atEOF {
					return prefix, NeedMore, nil
				}
				m.closeQuoted(fieldStart, pos-1, usingScratch, scratchStart)
				st = stateRecordEnd
				continue
			}
			switch c := window[pos]; {
			case c == m.Quote:
				if !usingScratch {
					usingScratch = true
					scratchStart = len(m.scratch)
					m.scratch = append(m.scratch, window[fieldStart:pos-1]...)
				}
				m.scratch = append(m.scratch, m.Quote)
				pos++
				st = stateInQuoted
			case c == '\r' || c == '\n':
				m.closeQuoted(fieldStart, pos-1, usingScratch, scratchStart)
				st = stateRecordEnd
			default:
				ms := matchSeq(window[pos:], seq)
				if ms == seqPartial && !atEOF {
					return prefix, NeedMore, nil
				}
				if ms == seqFull {
					m.closeQuoted(fieldStart, pos-1, usingScratch, scratchStart)
					pos += len(seq)
					st = stateFieldStart
					continue
				}
				if !m.Lenient {
					return m.fail(pos, ErrQuote)
				}
				if !usingScratch {
					usingScratch = true
					scratchStart = len(m.scratch)
					m.scratch = append(m.scratch, window[fieldStart:pos-1]...)
				}
				fieldStart = pos
				st = stateInField
			}

		case stateRecordEnd:
			if pos >= len(window) {
				return pos, Record, nil
			}
			if window[pos] == '\n' {
				pos++
				m.noteEOL("\n")
				return pos, Record, nil
			}
			if pos+1 < len(window) {
				if window[pos+1] == '\n' {
					pos += 2
					m.noteEOL("\r\n")
				} else {
					pos++
					m.noteEOL("\r")
				}
				return pos, Record, nil
			}
			if !atEOF {
				return prefix, NeedMore, nil
			}
			pos++
			m.noteEOL("\r")
			return pos, Record, nil
		}
	}
}

// Len returns the number of fields in the last scanned record.
func (m *Machine) Len() int {
	return len(m.fields)
}

// FieldBytes resolves field i against the window passed to the Next
// call that produced it. The returned bytes are fully unescaped and
// valid until the next call to Next.
func (m *Machine) FieldBytes(window []byte, i int) []byte {
	f := m.fields[i]
	if f.scratch {
		return m.scratch[f.start:f.end]
	}
	return window[f.start:f.end]
}

// FieldQuoted reports whether field i was quoted in the source.
func (m *Machine) FieldQuoted(i int) bool {
	return m.fields[i].quoted
}

// FieldCopied reports whether field i lives in the machine's scratch
// buffer rather than the window. Scratch contents are overwritten by
// the next call to Next, so callers keeping such a field must copy it.
func (m *Machine) FieldCopied(i int) bool {
	return m.fields[i].scratch
}

// RecordStart returns the offset within the last Next window at which
// the scanned record began, after any skipped blank or comment lines.
func (m *Machine) RecordStart() int {
	return m.recStart
}

// EOL reports the first record terminator observed: "\n", "\r\n", or
// "\r". It is empty until a terminated record has been scanned.
func (m *Machine) EOL() string {
	return m.eol
}

func (m *Machine) noteEOL(s string) {
	if m.eol == "" {
		m.eol = s
	}
}

// emit appends one field scanned by stateInField. With scratch active
// the window span joins the bytes accumulated there; otherwise the
// field is a plain view of the window.
func (m *Machine) emit(window []byte, start, end int, usingScratch bool, scratchStart int, quoted bool) {
	if usingScratch {
		m.scratch = append(m.scratch, window[start:end]...)
		m.fields = append(m.fields, Field{start: scratchStart, end: len(m.scratch), scratch: true, quoted: quoted})
		return
	}
	m.fields = append(m.fields, Field{start: start, end: end, quoted: quoted})
}

// closeQuoted appends the quoted field whose closing quote sits at end.
func (m *Machine) closeQuoted(fieldStart, end int, usingScratch bool, scratchStart int) {
	if usingScratch {
		m.fields = append(m.fields, Field{start: scratchStart, end: len(m.scratch), scratch: true, quoted: true})
		return
	}
	m.fields = append(m.fields, Field{start: fieldStart, end: end, quoted: true})
}

func (m *Machine) fail(offset int, sentinel error) (int, Result, error) {
	return 0, 0, &SyntaxError{Offset: offset, Field: len(m.fields), Err: sentinel}
}
