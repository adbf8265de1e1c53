//go:build unix

package csv

import (
	"fmt"
	"os"
	"syscall"
)

// mmapFile maps the named file read-only and returns the mapping along
// with a cleanup function that unmaps it and closes the file. The OS
// pages data in as the parser walks the mapping, so huge files never
// occupy more than the working set.
//
// The data slice must not be used after cleanup runs.
func mmapFile(name string) ([]byte, func(), error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	size := stat.Size()
	if size == 0 {
		return nil, func() { f.Close() }, nil
	}
	if size != int64(int(size)) {
		f.Close()
		return nil, nil, fmt.Errorf("csv: %s too large to map", name)
	}
	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("csv: mmap %s: %w", name, err)
	}
	cleanup := func() {
		_ = syscall.Munmap(data)
		f.Close()
	}
	return data, cleanup, nil
}
