package csv

import (
	"errors"
	"io"
)

// ParseFile reads and parses an entire CSV file. On Unix platforms the
// file is memory mapped, so fields are sliced straight out of the page
// cache with no intermediate read buffer. The returned records own
// their memory and outlive the mapping.
func ParseFile(name string) ([][]string, error) {
	return ParseFileWithOptions(name, DefaultReaderOptions())
}

// ParseFileWithOptions is ParseFile with explicit reader options.
func ParseFileWithOptions(name string, opts ReaderOptions) ([][]string, error) {
	data, cleanup, err := mmapFile(name)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return ParseWithOptions(data, opts)
}

// DecodeFile parses an entire CSV file into a slice of T, a struct type
// with csv tags, binding columns through the file's header row. The
// file is memory mapped on platforms that support it.
func DecodeFile[T any](name string) ([]T, error) {
	return DecodeFileWithOptions[T](name, DefaultReaderOptions())
}

// DecodeFileWithOptions is DecodeFile with explicit reader options.
// An empty file decodes to zero records.
func DecodeFileWithOptions[T any](name string, opts ReaderOptions) ([]T, error) {
	data, cleanup, err := mmapFile(name)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	r, err := newBufReader(data, opts)
	if err != nil {
		return nil, err
	}
	d, err := NewDecoder[T](r)
	if errors.Is(err, io.EOF) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	return d.DecodeAll()
}

// ValidateFile checks an entire CSV file without materializing records.
// In ModeCollect, recoverable errors are reported through opts.OnError.
func ValidateFile(name string, opts ReaderOptions) error {
	data, cleanup, err := mmapFile(name)
	if err != nil {
		return err
	}
	defer cleanup()
	return ValidateWithOptions(data, opts)
}
