package csv

import "io"

// Parse parses a complete in-memory CSV document into records of field
// strings using the default options.
//
// Example:
//
//	records, err := csv.Parse([]byte("name,age\nAlice,30\n"))
//	// records[0] = []string{"name", "age"}
//	// records[1] = []string{"Alice", "30"}
func Parse(data []byte) ([][]string, error) {
	return ParseWithOptions(data, DefaultReaderOptions())
}

// ParseWithOptions parses a complete in-memory CSV document with custom
// options. The input buffer is never copied or modified.
//
// In ModeCollect, malformed records are skipped and reported through
// opts.OnError when set; with a nil OnError they are skipped silently.
// Use a Reader when collected errors need to be inspected afterwards.
//
// Example:
//
//	opts := csv.DefaultReaderOptions()
//	opts.Comma = '\t'
//	records, err := csv.ParseWithOptions(data, opts)
func ParseWithOptions(data []byte, opts ReaderOptions) ([][]string, error) {
	r, err := newBufReader(data, opts)
	if err != nil {
		return nil, err
	}
	return r.ReadAll()
}

// ParseBytes parses a complete in-memory CSV document into records of
// raw field bytes using the default options. Fields that needed no
// escape rewriting are views into data; the rest are small copies. The
// result stays valid for as long as data does.
func ParseBytes(data []byte) ([][][]byte, error) {
	return ParseBytesWithOptions(data, DefaultReaderOptions())
}

// ParseBytesWithOptions is ParseBytes with custom options.
func ParseBytesWithOptions(data []byte, opts ReaderOptions) ([][][]byte, error) {
	r, err := newBufReader(data, opts)
	if err != nil {
		return nil, err
	}
	var out [][][]byte
	for {
		window, err := r.next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		n := r.m.Len()
		rec := make([][]byte, n)
		for i := 0; i < n; i++ {
			f := r.m.FieldBytes(window, i)
			if r.m.FieldCopied(i) {
				f = append([]byte(nil), f...)
			}
			rec[i] = f
		}
		out = append(out, rec)
	}
}

// Validate checks whether data is well-formed CSV under the default
// options, without materializing any records.
//
// Example:
//
//	if err := csv.Validate(data); err != nil {
//		var perr *csv.ParseError
//		if errors.As(err, &perr) {
//			fmt.Printf("bad input at line %d: %v\n", perr.Line, perr.Err)
//		}
//	}
func Validate(data []byte) error {
	return ValidateWithOptions(data, DefaultReaderOptions())
}

// ValidateWithOptions is Validate with custom options.
func ValidateWithOptions(data []byte, opts ReaderOptions) error {
	r, err := newBufReader(data, opts)
	if err != nil {
		return err
	}
	for {
		if _, err := r.next(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// newBufReader wraps an in-memory buffer in a Reader without copying:
// the read window is the buffer itself, presented to the machine in one
// piece, so the refill path never runs.
func newBufReader(data []byte, opts ReaderOptions) (*Reader, error) {
	r, err := NewReader(nil, opts)
	if err != nil {
		return nil, err
	}
	r.buf = data
	r.end = len(data)
	r.atEOF = true
	r.skipBOM()
	return r, nil
}
