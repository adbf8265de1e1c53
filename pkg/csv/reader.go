package csv

import (
	"bytes"
	"io"

	"github.com/shapestone/streamcsv/internal/tokenizer"
)

// maxEmptyReads bounds consecutive zero-byte reads from the source
// before the reader gives up with io.ErrNoProgress.
const maxEmptyReads = 100

var (
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
	sepLF   = []byte{'\n'}
	sepCR   = []byte{'\r'}
	sepCRLF = []byte{'\r', '\n'}
)

// linesCrossed counts physical line terminators in s, treating \r\n as
// one terminator.
func linesCrossed(s []byte) int {
	return bytes.Count(s, sepLF) + bytes.Count(s, sepCR) - bytes.Count(s, sepCRLF)
}

// Reader streams CSV records from an io.Reader through a bounded,
// reusable window. Records never require the whole input in memory:
// the window holds one record at a time and grows only when a single
// record outgrows it, up to the MaxFieldSize bound.
//
// Example:
//
//	r, err := csv.NewReader(file, csv.DefaultReaderOptions())
//	if err != nil {
//		return err
//	}
//	for {
//		record, err := r.Read()
//		if err == io.EOF {
//			break
//		}
//		if err != nil {
//			return err
//		}
//		process(record)
//	}
type Reader struct {
	opts ReaderOptions
	src  io.Reader
	m    tokenizer.Machine

	buf   []byte // window storage
	start int    // unconsumed window begins here
	end   int    // valid data ends here
	atEOF bool   // src is exhausted

	off  int64 // input offset of buf[start]
	line int   // physical line number at buf[start], 1-indexed

	recNum     int64 // records seen, delivered and skipped, header included
	wantFields int   // resolved field count; 0 until learned, <0 disabled

	record []string // reused record storage under ReuseRecord
	staged []byte   // staging for single-allocation string records
	views  [][]byte // reused view storage for ReadBytes

	headers    []string
	headerDone bool

	errs []*ParseError

	bomDone bool
	err     error // sticky terminal state, io.EOF included
}

// NewReader returns a Reader that streams records from src with the
// given options.
func NewReader(src io.Reader, opts ReaderOptions) (*Reader, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	r := &Reader{
		opts:       opts,
		src:        src,
		line:       1,
		wantFields: opts.FieldsPerRecord,
	}
	r.m.Delim = opts.Comma
	if opts.CommaSeq != "" {
		r.m.DelimSeq = []byte(opts.CommaSeq)
	}
	r.m.Quote = opts.Quote
	r.m.Comment = opts.Comment
	r.m.Lenient = opts.Mode == ModeLenient
	r.m.TrimLeadingSpace = opts.TrimLeadingSpace
	return r, nil
}

// Read returns the next record as a slice of field strings. At the end
// of the input it returns nil, io.EOF.
//
// Without ReuseRecord every record is freshly allocated and immutable.
// With ReuseRecord both the slice and the bytes behind the strings are
// reused, so the record and its fields are valid only until the next
// call on the reader.
func (r *Reader) Read() ([]string, error) {
	window, err := r.next()
	if err != nil {
		return nil, err
	}
	if r.opts.ReuseRecord {
		return r.viewStrings(window), nil
	}
	return r.ownedStrings(window), nil
}

// ReadBytes returns the next record as raw field views into the read
// window. No string is allocated. The views are valid only until the
// next call on the reader.
func (r *Reader) ReadBytes() ([][]byte, error) {
	window, err := r.next()
	if err != nil {
		return nil, err
	}
	n := r.m.Len()
	views := r.views[:0]
	for i := 0; i < n; i++ {
		views = append(views, r.m.FieldBytes(window, i))
	}
	r.views = views
	return views, nil
}

// ReadAll reads every remaining record. Records are always freshly
// allocated, regardless of ReuseRecord.
func (r *Reader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		window, err := r.next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r.ownedStrings(window))
	}
}

// Headers returns the first record of the input, reading it on the
// first call. After a Headers call, Read returns data records only.
func (r *Reader) Headers() ([]string, error) {
	if r.headerDone {
		return r.headers, nil
	}
	window, err := r.next()
	if err != nil {
		return nil, err
	}
	r.headers = r.ownedStrings(window)
	r.headerDone = true
	return r.headers, nil
}

// Errs returns the errors collected so far in ModeCollect, in input
// order. The slice is shared; do not modify it while still reading.
func (r *Reader) Errs() []*ParseError {
	return r.errs
}

// InputOffset returns the input byte offset of the end of the most
// recently read record.
func (r *Reader) InputOffset() int64 {
	return r.off
}

// Line returns the 1-indexed physical line number of the reader's
// current position.
func (r *Reader) Line() int {
	return r.line
}

// LineEnding reports the first record terminator observed in the
// input: "\n", "\r\n", or "\r". It is empty until a terminated record
// has been read.
func (r *Reader) LineEnding() string {
	return r.m.EOL()
}

// next drives the machine until a well-formed record is available. On
// success the machine holds the record's fields, resolved against the
// returned window.
func (r *Reader) next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	for {
		window := r.buf[r.start:r.end]
		n, res, err := r.m.Next(window, r.atEOF)
		if err != nil {
			syn := err.(*tokenizer.SyntaxError)
			perr := r.syntaxError(window, syn)
			if r.opts.Mode != ModeCollect {
				r.err = perr
				return nil, perr
			}
			r.recNum++
			if !r.report(perr) {
				r.err = perr
				return nil, perr
			}
			if serr := r.skipBadRecord(syn.Offset); serr != nil {
				r.err = serr
				return nil, serr
			}
			continue
		}
		switch res {
		case tokenizer.Record:
			r.recNum++
			recStart := r.m.RecordStart()
			startLine := r.line + linesCrossed(window[:recStart])
			startOff := r.off + int64(recStart)
			r.advance(n)
			if r.opts.MaxRecords > 0 && r.recNum > r.opts.MaxRecords {
				perr := &ParseError{
					Record: r.recNum,
					Line:   startLine,
					Offset: startOff,
					Raw:    rawSnippet(window[recStart:]),
					Err:    ErrTooManyRecords,
				}
				r.err = perr
				return nil, perr
			}
			if perr := r.validateRecord(window, recStart, startLine, startOff); perr != nil {
				if r.opts.Mode == ModeCollect && perr.Err == ErrFieldCount {
					if !r.report(perr) {
						r.err = perr
						return nil, perr
					}
					continue
				}
				r.err = perr
				return nil, perr
			}
			return window, nil

		case tokenizer.NeedMore:
			r.advance(n)
			if err := r.fill(); err != nil {
				r.err = err
				return nil, err
			}

		case tokenizer.EOF:
			r.advance(n)
			r.err = io.EOF
			return nil, io.EOF
		}
	}
}

// advance consumes n bytes from the front of the window, keeping the
// offset and line caches current.
func (r *Reader) advance(n int) {
	if n == 0 {
		return
	}
	r.line += linesCrossed(r.buf[r.start : r.start+n])
	r.off += int64(n)
	r.start += n
}

// fill slides the unconsumed tail to the front of the buffer and reads
// fresh bytes after it, growing the buffer when the tail already fills
// it. The context, when configured, is only consulted here.
func (r *Reader) fill() error {
	if ctx := r.opts.Context; ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	if r.start > 0 {
		n := copy(r.buf, r.buf[r.start:r.end])
		r.start = 0
		r.end = n
	}
	if r.buf == nil {
		r.buf = make([]byte, r.opts.BufferSize)
	} else if r.end == len(r.buf) {
		limit := r.windowLimit()
		if len(r.buf) >= limit {
			return r.overflowError()
		}
		size := len(r.buf) * 2
		if size > limit {
			size = limit
		}
		grown := make([]byte, size)
		copy(grown, r.buf[:r.end])
		r.buf = grown
	}

	for i := 0; i < maxEmptyReads; i++ {
		n, err := r.src.Read(r.buf[r.end:])
		r.end += n
		if err == io.EOF {
			r.atEOF = true
			r.skipBOM()
			return nil
		}
		if err != nil {
			return err
		}
		if n > 0 {
			r.skipBOM()
			return nil
		}
	}
	return io.ErrNoProgress
}

// skipBOM drops a UTF-8 byte order mark at the very start of the input.
// It stays undecided until three bytes are buffered or the input ends.
func (r *Reader) skipBOM() {
	if r.bomDone {
		return
	}
	if r.off > 0 {
		r.bomDone = true
		return
	}
	if r.end-r.start < len(utf8BOM) && !r.atEOF {
		return
	}
	if bytes.HasPrefix(r.buf[r.start:r.end], utf8BOM) {
		r.start += len(utf8BOM)
		r.off += int64(len(utf8BOM))
	}
	r.bomDone = true
}

// windowLimit is how large the read window may grow. A record must fit
// in the window, so this bounds record size as well.
func (r *Reader) windowLimit() int {
	if r.opts.MaxFieldSize > r.opts.BufferSize {
		return r.opts.MaxFieldSize
	}
	return r.opts.BufferSize
}

// overflowError reports the record that outgrew the window.
func (r *Reader) overflowError() *ParseError {
	return &ParseError{
		Record: r.recNum + 1,
		Line:   r.line,
		Offset: r.off,
		Raw:    rawSnippet(r.buf[r.start:r.end]),
		Err:    ErrFieldTooLarge,
	}
}

// syntaxError converts a window-relative machine error into an absolute
// ParseError.
func (r *Reader) syntaxError(window []byte, syn *tokenizer.SyntaxError) *ParseError {
	lineStart := bytes.LastIndexByte(window[:syn.Offset], '\n') + 1
	return &ParseError{
		Record: r.recNum + 1,
		Line:   r.line + linesCrossed(window[:syn.Offset]),
		Field:  syn.Field + 1,
		Offset: r.off + int64(syn.Offset),
		Raw:    rawSnippet(window[lineStart:]),
		Err:    syn.Err,
	}
}

// validateRecord applies the field size bound and the field count rule
// to the record currently held by the machine.
func (r *Reader) validateRecord(window []byte, recStart, startLine int, startOff int64) *ParseError {
	got := r.m.Len()
	for i := 0; i < got; i++ {
		if len(r.m.FieldBytes(window, i)) > r.opts.MaxFieldSize {
			return &ParseError{
				Record: r.recNum,
				Line:   startLine,
				Field:  i + 1,
				Offset: startOff,
				Raw:    rawSnippet(window[recStart:]),
				Err:    ErrFieldTooLarge,
			}
		}
	}
	if r.opts.Mode == ModeLenient {
		return nil
	}
	switch {
	case r.wantFields > 0 && got != r.wantFields:
		return &ParseError{
			Record: r.recNum,
			Line:   startLine,
			Offset: startOff,
			Raw:    rawSnippet(window[recStart:]),
			Err:    ErrFieldCount,
		}
	case r.wantFields == 0:
		r.wantFields = got
	}
	return nil
}

// report delivers a collect-mode error, returning false when reading
// should stop.
func (r *Reader) report(perr *ParseError) bool {
	if r.opts.OnError != nil {
		return r.opts.OnError(perr)
	}
	r.errs = append(r.errs, perr)
	return true
}

// skipBadRecord drops input through the line terminator following a
// syntax error at window offset errOff, refilling as needed. Dropped
// bytes never grow the window.
func (r *Reader) skipBadRecord(errOff int) error {
	from := errOff
	for {
		window := r.buf[r.start:r.end]
		if nl := bytes.IndexByte(window[from:], '\n'); nl >= 0 {
			r.advance(from + nl + 1)
			return nil
		}
		if r.atEOF {
			r.advance(len(window))
			return nil
		}
		// Keep a trailing \r: it may pair with a \n in the next fill.
		drop := len(window)
		if drop > 0 && window[drop-1] == '\r' {
			drop--
		}
		r.advance(drop)
		from = 0
		if err := r.fill(); err != nil {
			return err
		}
	}
}

// ownedStrings builds a freshly allocated record. All fields share one
// string allocation.
func (r *Reader) ownedStrings(window []byte) []string {
	n := r.m.Len()
	rec := make([]string, n)
	staged := r.staged[:0]
	for i := 0; i < n; i++ {
		staged = append(staged, r.m.FieldBytes(window, i)...)
	}
	r.staged = staged
	all := string(staged)
	pos := 0
	for i := 0; i < n; i++ {
		flen := len(r.m.FieldBytes(window, i))
		rec[i] = all[pos : pos+flen]
		pos += flen
	}
	return rec
}

// viewStrings builds the record as zero-copy views into the window.
// Contents are only stable until the next call on the reader.
func (r *Reader) viewStrings(window []byte) []string {
	n := r.m.Len()
	rec := r.record
	if cap(rec) < n {
		rec = make([]string, n)
	}
	rec = rec[:n]
	for i := 0; i < n; i++ {
		rec[i] = unsafeString(r.m.FieldBytes(window, i))
	}
	r.record = rec
	return rec
}
