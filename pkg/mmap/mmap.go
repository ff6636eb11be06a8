//go:build unix

// Package mmap maps read-only files into memory. Rail stores are served from
// these mappings so concurrent readers share one copy in the page cache.
package mmap

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var ErrEmpty = errors.New("mmap: file is empty")

// File is a read-only memory mapping of a whole file.
type File struct {
	Data []byte
	f    *os.File
}

// Open maps the file at path read-only and shared.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	return &File{Data: data, f: f}, nil
}

// AdviseSequential hints the kernel that the mapping will be scanned front to
// back. Errors are ignored by callers; the hint is optional.
func (m *File) AdviseSequential() error {
	if m == nil || len(m.Data) == 0 {
		return nil
	}
	return unix.Madvise(m.Data, unix.MADV_SEQUENTIAL)
}

// Close unmaps the memory and closes the underlying file.
func (m *File) Close() error {
	if m == nil {
		return nil
	}
	var err error
	if m.Data != nil {
		err = unix.Munmap(m.Data)
		m.Data = nil
	}
	if m.f != nil {
		if closeErr := m.f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		m.f = nil
	}
	return err
}
