package csv

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Scanner reads CSV records one at a time in the bufio.Scanner idiom.
// Records are pulled through the window incrementally, so arbitrarily
// large inputs scan in constant memory.
//
//	scanner := csv.NewScanner(file).SetHasHeaders(true)
//	for scanner.Scan() {
//	    row := scanner.Row()
//	    fmt.Println(row.String("name"))
//	}
//	if err := scanner.Err(); err != nil {
//	    // handle error
//	}
type Scanner struct {
	src        io.Reader
	opts       ReaderOptions
	hasHeaders bool
	headerConv HeaderConverter

	r       *Reader
	table   *Table
	fields  []string
	n       int
	err     error
	started bool
}

// NewScanner creates a Scanner reading CSV from src with default
// options. The first row is treated as data; use SetHasHeaders to read
// it as column names instead.
func NewScanner(src io.Reader) *Scanner {
	return &Scanner{src: src, opts: DefaultReaderOptions()}
}

// NewScannerWith is NewScanner with explicit reader options.
func NewScannerWith(src io.Reader, opts ReaderOptions) *Scanner {
	return &Scanner{src: src, opts: opts}
}

// SetHasHeaders treats the first row as column names, enabling access
// by name on the scanned rows. It returns the Scanner for chaining and
// must be called before the first Scan.
func (s *Scanner) SetHasHeaders(hasHeaders bool) *Scanner {
	s.hasHeaders = hasHeaders
	return s
}

// SetReuseRecord makes successive rows share field memory. Scanning is
// allocation-free, but a row's values are only valid until the next
// Scan. It returns the Scanner for chaining and must be called before
// the first Scan.
func (s *Scanner) SetReuseRecord(reuse bool) *Scanner {
	s.opts.ReuseRecord = reuse
	return s
}

// SetHeaderConverter normalizes column names as the header row is read,
// for example with SnakeCaseHeader. It returns the Scanner for chaining
// and must be called before the first Scan.
func (s *Scanner) SetHeaderConverter(fn HeaderConverter) *Scanner {
	s.headerConv = fn
	return s
}

// Scan advances to the next record. It returns false at the end of the
// input or on the first fatal error; Err tells the two apart.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	if !s.started {
		if !s.start() {
			return false
		}
	}
	fields, err := s.r.Read()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = err
		}
		return false
	}
	s.fields = fields
	s.n++
	return true
}

func (s *Scanner) start() bool {
	s.started = true
	r, err := NewReader(s.src, s.opts)
	if err != nil {
		s.err = err
		return false
	}
	s.r = r
	s.table = NewTable()
	if s.hasHeaders {
		headers, err := r.Headers()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
			}
			return false
		}
		if s.headerConv != nil {
			for i, h := range headers {
				headers[i] = s.headerConv(h)
			}
		}
		s.table.SetHeaders(headers)
	}
	return true
}

// Row returns the current record with access by column name when
// headers were scanned.
func (s *Scanner) Row() Row {
	return Row{fields: s.fields, table: s.table, num: s.n - 1}
}

// Fields returns the current record's raw fields.
func (s *Scanner) Fields() []string {
	return s.fields
}

// Headers returns the column names from the first row, or nil when
// SetHasHeaders was not enabled. Calling it before the first Scan reads
// the header row.
func (s *Scanner) Headers() []string {
	if !s.started && s.err == nil {
		s.start()
	}
	if s.table == nil {
		return nil
	}
	return s.table.headers
}

// Err returns the first fatal error hit while scanning. It returns nil
// at a clean end of input.
func (s *Scanner) Err() error {
	return s.err
}

// Errs returns the recoverable errors collected so far when scanning in
// ModeCollect.
func (s *Scanner) Errs() []*ParseError {
	if s.r == nil {
		return nil
	}
	return s.r.Errs()
}

// StreamRow is one record delivered by Stream, or the terminal error
// when Err is set.
type StreamRow struct {
	Index  int64 // 0-based delivery index
	Fields []string
	Err    error
}

// Stream reads records on a separate goroutine and delivers each as an
// owned StreamRow, safe to retain, on the returned channel. buf sets
// the channel capacity, letting parsing run ahead of a slow consumer.
//
// The channel closes after the last record, after the first fatal
// error (delivered with Err set), or when ctx is canceled. Recoverable
// errors in ModeCollect are not delivered; they accumulate in Errs as
// usual.
//
// The Reader must not be used by anything else while the stream runs.
func (r *Reader) Stream(ctx context.Context, buf int) <-chan StreamRow {
	if r.opts.Context == nil {
		// Let cancellation also interrupt refills mid-record.
		r.opts.Context = ctx
	}
	out := make(chan StreamRow, buf)
	go func() {
		defer close(out)
		var idx int64
		for {
			rec, err := r.Read()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					select {
					case out <- StreamRow{Index: idx, Err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
			if r.opts.ReuseRecord {
				owned := make([]string, len(rec))
				for i, f := range rec {
					owned[i] = strings.Clone(f)
				}
				rec = owned
			}
			select {
			case out <- StreamRow{Index: idx, Fields: rec}:
			case <-ctx.Done():
				return
			}
			idx++
		}
	}()
	return out
}
