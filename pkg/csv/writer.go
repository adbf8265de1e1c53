package csv

import (
	"bufio"
	"bytes"
	"io"

	"github.com/shapestone/streamcsv/internal/simd"
)

// Writer writes CSV records to an io.Writer through an internal buffer.
// Fields are quoted only when they contain the delimiter, the quote
// byte, a line terminator, or a leading space, unless AlwaysQuote is
// set. Embedded quotes are doubled.
//
// Writes are buffered; call Flush when done and check Error.
//
// Example:
//
//	w, err := csv.NewWriter(file, csv.DefaultWriterOptions())
//	if err != nil {
//		return err
//	}
//	w.Write([]string{"name", "age"})
//	w.Write([]string{"Alice", "30"})
//	if err := w.Flush(); err != nil {
//		return err
//	}
type Writer struct {
	opts WriterOptions
	seq  []byte // multi-byte delimiter, nil when Comma is in effect
	w    *bufio.Writer
}

// NewWriter returns a Writer with the given options.
func NewWriter(w io.Writer, opts WriterOptions) (*Writer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	out := &Writer{opts: opts, w: bufio.NewWriter(w)}
	if opts.CommaSeq != "" {
		out.seq = []byte(opts.CommaSeq)
	}
	return out, nil
}

// Write writes one record. The record is buffered; Flush pushes it to
// the underlying writer.
func (w *Writer) Write(record []string) error {
	if len(record) == 1 && len(record[0]) == 0 {
		return w.writeLoneEmpty()
	}
	for i, field := range record {
		if i > 0 {
			if err := w.writeDelim(); err != nil {
				return err
			}
		}
		if err := w.writeField(unsafeBytes(field)); err != nil {
			return err
		}
	}
	return w.terminate()
}

// WriteBytes writes one record of raw byte fields. Field contents are
// copied into the buffer before Write returns.
func (w *Writer) WriteBytes(record [][]byte) error {
	if len(record) == 1 && len(record[0]) == 0 {
		return w.writeLoneEmpty()
	}
	for i, field := range record {
		if i > 0 {
			if err := w.writeDelim(); err != nil {
				return err
			}
		}
		if err := w.writeField(field); err != nil {
			return err
		}
	}
	return w.terminate()
}

// WriteAll writes every record and flushes.
func (w *Writer) WriteAll(records [][]string) error {
	for _, record := range records {
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Flush pushes buffered output to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Error reports any error from a previous Write or Flush.
func (w *Writer) Error() error {
	_, err := w.w.Write(nil)
	return err
}

// writeLoneEmpty emits a record of one empty field as a quoted empty
// string. Rendered bare it would be a blank line, which readers skip,
// and the record would not survive a round trip.
func (w *Writer) writeLoneEmpty() error {
	buf := w.w.AvailableBuffer()
	buf = append(buf, w.opts.Quote, w.opts.Quote)
	if _, err := w.w.Write(buf); err != nil {
		return err
	}
	return w.terminate()
}

func (w *Writer) writeField(field []byte) error {
	if !w.opts.AlwaysQuote && !w.fieldNeedsQuotes(field) {
		_, err := w.w.Write(field)
		return err
	}
	buf := w.w.AvailableBuffer()
	buf = w.appendQuoted(buf, field)
	_, err := w.w.Write(buf)
	return err
}

func (w *Writer) writeDelim() error {
	if w.seq != nil {
		_, err := w.w.Write(w.seq)
		return err
	}
	return w.w.WriteByte(w.opts.Comma)
}

// fieldNeedsQuotes reports whether field must be quoted to survive a
// round trip.
func (w *Writer) fieldNeedsQuotes(field []byte) bool {
	if len(field) == 0 {
		return false
	}
	if field[0] == ' ' || field[0] == '\t' {
		return true
	}
	if w.seq != nil {
		return bytes.Contains(field, w.seq) ||
			simd.IndexAny(field, w.opts.Quote, w.opts.Quote, '\r', '\n') >= 0
	}
	return simd.IndexAny(field, w.opts.Comma, w.opts.Quote, '\r', '\n') >= 0
}

// appendQuoted appends field to dst wrapped in quotes, doubling each
// embedded quote byte.
func (w *Writer) appendQuoted(dst, field []byte) []byte {
	q := w.opts.Quote
	dst = append(dst, q)
	for {
		i := bytes.IndexByte(field, q)
		if i < 0 {
			break
		}
		dst = append(dst, field[:i+1]...)
		dst = append(dst, q)
		field = field[i+1:]
	}
	dst = append(dst, field...)
	dst = append(dst, q)
	return dst
}

func (w *Writer) terminate() error {
	if w.opts.UseCRLF {
		_, err := w.w.WriteString("\r\n")
		return err
	}
	return w.w.WriteByte('\n')
}
