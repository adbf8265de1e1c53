package csv

import (
	"errors"
	"fmt"

	"github.com/shapestone/streamcsv/internal/tokenizer"
)

// Mode selects how the reader reacts to malformed records.
type Mode int

const (
	// ModeStrict stops at the first malformed record and returns a
	// *ParseError (default).
	ModeStrict Mode = iota

	// ModeCollect skips malformed records and keeps reading. Each
	// skipped record produces a *ParseError, delivered to the OnError
	// callback when one is set and otherwise available from
	// Reader.Errs after reading.
	ModeCollect

	// ModeLenient repairs malformed quoting instead of reporting it: a
	// quote inside an unquoted field is literal content, data after a
	// closing quote is concatenated onto the field, and a quoted field
	// cut off by end of input keeps what it has.
	ModeLenient
)

// String returns the string representation of Mode.
func (m Mode) String() string {
	switch m {
	case ModeStrict:
		return "strict"
	case ModeCollect:
		return "collect"
	case ModeLenient:
		return "lenient"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseError reports a malformed record with its position in the input.
type ParseError struct {
	// Record is the record number where the error occurred (1-indexed,
	// counting every record delivered or skipped, header included).
	Record int64

	// Line is the physical line number where the error occurred
	// (1-indexed). Lines inside quoted fields count.
	Line int

	// Field is the field number within the record (1-indexed), or 0
	// when the error is not tied to a single field.
	Field int

	// Offset is the byte offset from the start of the input at which
	// the error was detected.
	Offset int64

	// Raw holds the offending line as it appeared in the input,
	// truncated to a short snippet.
	Raw string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message with position information.
func (e *ParseError) Error() string {
	if e.Field > 0 {
		return fmt.Sprintf("parse error on record %d, line %d, field %d: %v", e.Record, e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("parse error on record %d, line %d: %v", e.Record, e.Line, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Errors wrapped inside *ParseError values.
var (
	// ErrBareQuote indicates a quote character inside an unquoted field.
	ErrBareQuote = tokenizer.ErrBareQuote

	// ErrQuote indicates data between a closing quote and the next
	// delimiter or record terminator.
	ErrQuote = tokenizer.ErrQuote

	// ErrUnterminatedQuote indicates input that ends inside a quoted
	// field.
	ErrUnterminatedQuote = tokenizer.ErrUnterminatedQuote

	// ErrFieldCount indicates a record with the wrong number of fields.
	ErrFieldCount = errors.New("wrong number of fields")

	// ErrFieldTooLarge indicates a field exceeded MaxFieldSize.
	ErrFieldTooLarge = errors.New("field exceeds maximum size")

	// ErrTooManyRecords indicates input with more records than
	// MaxRecords allows.
	ErrTooManyRecords = errors.New("too many records")

	// ErrMissingRequired indicates an empty value in a column marked
	// required.
	ErrMissingRequired = errors.New("missing required value")
)

// ConversionError reports a field value that could not be converted to
// its target Go type.
type ConversionError struct {
	// Record is the record number where the value appeared (1-indexed,
	// header included).
	Record int64

	// Column is the column name from the header, or the stringified
	// column index when no header is present.
	Column string

	// Value is the raw field value.
	Value string

	// Target is the name of the Go type the value was converted to.
	Target string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message naming the value and target
// type.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("record %d, column %q: cannot convert %q to %s: %v", e.Record, e.Column, e.Value, e.Target, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// maxRawLen bounds the Raw snippet carried by a ParseError.
const maxRawLen = 80

// rawSnippet clips the offending record to the first line, capped at
// maxRawLen bytes.
func rawSnippet(data []byte) string {
	for i, c := range data {
		if c == '\r' || c == '\n' || i == maxRawLen {
			return string(data[:i])
		}
	}
	return string(data)
}
