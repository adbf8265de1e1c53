package csv

import (
	"context"
	"unicode/utf8"
)

// Defaults applied when the corresponding option is left zero.
const (
	// DefaultBufferSize is the initial size of the streaming read
	// window.
	DefaultBufferSize = 64 << 10

	// DefaultMaxFieldSize bounds a single field and, with it, how far
	// the read window may grow while assembling one record.
	DefaultMaxFieldSize = 1 << 20
)

// ReaderOptions configures CSV parsing behavior.
type ReaderOptions struct {
	// Comma is the field delimiter. It must be an ASCII byte other than
	// the quote byte, \r, and \n.
	// Default: ','
	Comma byte

	// CommaSeq, when non-empty, is a multi-byte field delimiter that
	// replaces Comma. Parsing falls back to a byte-stepping scan that
	// bypasses the vectorized kernels, so single-byte delimiters should
	// use Comma. The sequence must be at least two bytes and must not
	// contain the quote, comment, \r, or \n bytes.
	// Default: "" (use Comma)
	CommaSeq string

	// Quote is the quote byte.
	// Default: '"'
	Quote byte

	// Comment, if not 0, is the comment byte. Lines whose first byte
	// equals it are skipped. It is recognized only at the start of a
	// line.
	// Default: 0 (disabled)
	Comment byte

	// Mode selects how malformed records are handled.
	// Default: ModeStrict
	Mode Mode

	// FieldsPerRecord is the expected number of fields per record.
	// If positive, each record must have exactly this many fields.
	// If 0, the first record determines the expected field count.
	// If negative, no field count validation is performed.
	// Default: 0
	FieldsPerRecord int

	// TrimLeadingSpace controls whether leading spaces and tabs in a
	// field are ignored.
	// Default: false
	TrimLeadingSpace bool

	// ReuseRecord controls whether calls to Read may return a slice
	// sharing the backing array of the previous call's returned slice
	// for performance.
	// Default: false
	ReuseRecord bool

	// MaxFieldSize is the largest single field, in bytes, the reader
	// accepts. A longer field fails with ErrFieldTooLarge. Because a
	// record is always scanned from one window, this also bounds read
	// window growth on pathological input.
	// Default: DefaultMaxFieldSize
	MaxFieldSize int

	// MaxRecords, if positive, bounds the number of records read.
	// Reading past the limit fails with ErrTooManyRecords.
	// Default: 0 (unlimited)
	MaxRecords int64

	// BufferSize is the initial read window size in bytes. The window
	// grows as needed up to the MaxFieldSize bound.
	// Default: DefaultBufferSize
	BufferSize int

	// OnError is invoked for each malformed record in ModeCollect.
	// Return true to continue reading, false to stop with that error.
	// If nil, errors are collected and available from Reader.Errs.
	// Default: nil
	OnError func(*ParseError) bool

	// Context, if not nil, is checked between buffer refills; once it
	// is done, reads fail with its error.
	// Default: nil
	Context context.Context
}

// DefaultReaderOptions returns the default reader configuration.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{
		Comma:        ',',
		Quote:        '"',
		Comment:      0,
		Mode:         ModeStrict,
		MaxFieldSize: DefaultMaxFieldSize,
		BufferSize:   DefaultBufferSize,
	}
}

// withDefaults fills zero-valued fields so that the zero ReaderOptions
// behaves like DefaultReaderOptions.
func (o ReaderOptions) withDefaults() ReaderOptions {
	if o.Comma == 0 {
		o.Comma = ','
	}
	if o.Quote == 0 {
		o.Quote = '"'
	}
	if o.MaxFieldSize == 0 {
		o.MaxFieldSize = DefaultMaxFieldSize
	}
	if o.BufferSize == 0 {
		o.BufferSize = DefaultBufferSize
	}
	return o
}

// Validate checks if the options are valid.
// Returns an error if the options are invalid.
func (o ReaderOptions) Validate() error {
	o = o.withDefaults()
	if !validDelim(o.Comma) || o.Comma == o.Quote {
		return &OptionsError{Field: "Comma", Message: "invalid delimiter"}
	}
	if !validDelim(o.Quote) {
		return &OptionsError{Field: "Quote", Message: "invalid quote character"}
	}
	if o.Comment != 0 {
		if !validDelim(o.Comment) {
			return &OptionsError{Field: "Comment", Message: "invalid comment character"}
		}
		if o.Comment == o.Comma {
			return &OptionsError{Field: "Comment", Message: "comment character same as delimiter"}
		}
		if o.Comment == o.Quote {
			return &OptionsError{Field: "Comment", Message: "comment character same as quote"}
		}
	}
	if o.CommaSeq != "" {
		if len(o.CommaSeq) < 2 {
			return &OptionsError{Field: "CommaSeq", Message: "single-byte delimiters use Comma"}
		}
		for i := 0; i < len(o.CommaSeq); i++ {
			switch c := o.CommaSeq[i]; c {
			case o.Quote, '\r', '\n':
				return &OptionsError{Field: "CommaSeq", Message: "sequence contains a quote or line terminator byte"}
			default:
				if o.Comment != 0 && c == o.Comment {
					return &OptionsError{Field: "CommaSeq", Message: "sequence contains the comment byte"}
				}
			}
		}
	}
	switch o.Mode {
	case ModeStrict, ModeCollect, ModeLenient:
	default:
		return &OptionsError{Field: "Mode", Message: "unknown mode"}
	}
	if o.MaxFieldSize < 0 {
		return &OptionsError{Field: "MaxFieldSize", Message: "must not be negative"}
	}
	if o.MaxRecords < 0 {
		return &OptionsError{Field: "MaxRecords", Message: "must not be negative"}
	}
	if o.BufferSize < 0 {
		return &OptionsError{Field: "BufferSize", Message: "must not be negative"}
	}
	return nil
}

// WriterOptions configures CSV writing behavior.
type WriterOptions struct {
	// Comma is the field delimiter.
	// Default: ','
	Comma byte

	// CommaSeq, when non-empty, is a multi-byte field delimiter written
	// between fields in place of Comma. Fields containing the sequence
	// are quoted. Same restrictions as ReaderOptions.CommaSeq.
	// Default: "" (use Comma)
	CommaSeq string

	// Quote is the quote byte.
	// Default: '"'
	Quote byte

	// UseCRLF controls whether to use \r\n (true) or \n (false) as the
	// record terminator.
	// Default: false (use \n)
	UseCRLF bool

	// AlwaysQuote forces every field to be quoted. By default a field
	// is quoted only when it contains the delimiter, the quote byte, a
	// line terminator, or a leading space.
	// Default: false
	AlwaysQuote bool
}

// DefaultWriterOptions returns the default writer configuration.
func DefaultWriterOptions() WriterOptions {
	return WriterOptions{
		Comma: ',',
		Quote: '"',
	}
}

// withDefaults fills zero-valued fields so that the zero WriterOptions
// behaves like DefaultWriterOptions.
func (o WriterOptions) withDefaults() WriterOptions {
	if o.Comma == 0 {
		o.Comma = ','
	}
	if o.Quote == 0 {
		o.Quote = '"'
	}
	return o
}

// Validate checks if the writer options are valid.
func (o WriterOptions) Validate() error {
	o = o.withDefaults()
	if !validDelim(o.Comma) || o.Comma == o.Quote {
		return &OptionsError{Field: "Comma", Message: "invalid delimiter"}
	}
	if !validDelim(o.Quote) {
		return &OptionsError{Field: "Quote", Message: "invalid quote character"}
	}
	if o.CommaSeq != "" {
		if len(o.CommaSeq) < 2 {
			return &OptionsError{Field: "CommaSeq", Message: "single-byte delimiters use Comma"}
		}
		for i := 0; i < len(o.CommaSeq); i++ {
			switch o.CommaSeq[i] {
			case o.Quote, '\r', '\n':
				return &OptionsError{Field: "CommaSeq", Message: "sequence contains a quote or line terminator byte"}
			}
		}
	}
	return nil
}

// validDelim reports whether b can serve as a delimiter, quote, or
// comment byte: a nonzero ASCII byte that is not a line terminator.
func validDelim(b byte) bool {
	return b != 0 && b != '\r' && b != '\n' && b < utf8.RuneSelf
}

// OptionsError represents an invalid option configuration.
type OptionsError struct {
	Field   string
	Message string
}

func (e *OptionsError) Error() string {
	return "csv: invalid " + e.Field + ": " + e.Message
}
