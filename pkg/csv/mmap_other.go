//go:build !unix

package csv

import "os"

// mmapFile falls back to reading the whole file on platforms without
// mmap. The cleanup function exists for symmetry with the Unix version.
func mmapFile(name string) ([]byte, func(), error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, nil, err
	}
	return data, func() {}, nil
}
