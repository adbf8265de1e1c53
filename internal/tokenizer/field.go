package tokenizer

import (
	"errors"
	"fmt"
)

// Syntax errors reported by the machine. The public csv package exposes
// these same values, so errors.Is works across the boundary.
var (
	// ErrBareQuote reports a quote character inside an unquoted field.
	ErrBareQuote = errors.New(`bare " in non-quoted field`)

	// ErrQuote reports data between a closing quote and the next
	// delimiter or record terminator.
	ErrQuote = errors.New(`extraneous or missing " in quoted field`)

	// ErrUnterminatedQuote reports end of input inside a quoted field.
	ErrUnterminatedQuote = errors.New(`unterminated quoted field`)
)

// Result classifies the outcome of one Next call.
type Result uint8

const (
	// Record reports that a complete record was scanned and its fields
	// are available on the machine.
	Record Result = iota

	// NeedMore reports that the window ended inside a record. The caller
	// re-presents a window with more data after the unconsumed tail.
	NeedMore

	// EOF reports that the window was consumed without starting a
	// record (blank lines, comments, or nothing at all).
	EOF
)

func (r Result) String() string {
	switch r {
	case Record:
		return "Record"
	case NeedMore:
		return "NeedMore"
	case EOF:
		return "EOF"
	default:
		return fmt.Sprintf("Result(%d)", uint8(r))
	}
}

// Field locates one field's bytes. The bytes live either in the window
// passed to the producing Next call or, when escape sequences forced a
// rewrite, in the machine's scratch buffer.
type Field struct {
	start   int
	end     int
	scratch bool
	quoted  bool
}

// SyntaxError reports malformed quoting at a byte position within the
// window passed to Next.
type SyntaxError struct {
	// Offset is the byte offset of the offending position, relative to
	// the start of the window.
	Offset int

	// Field is the zero-based index of the field being scanned when the
	// error was detected.
	Field int

	// Err is one of the sentinel syntax errors.
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("offset %d, field %d: %v", e.Offset, e.Field, e.Err)
}

// Unwrap returns the underlying sentinel error.
func (e *SyntaxError) Unwrap() error {
	return e.Err
}
