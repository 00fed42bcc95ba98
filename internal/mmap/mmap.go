// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package mmap memory-maps a read-only file for use as an image source.
package mmap

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// ReaderAt is a read-only view of a file, mapped into the process's
// address space. The mapping is torn down by Close.
type ReaderAt struct {
	data []byte
}

// Open maps the file at path for reading.
func Open(path string) (*ReaderAt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("f.Stat: %w", err)
	}

	size := fi.Size()
	if size == 0 {
		return &ReaderAt{data: []byte{}}, nil
	}
	if size < 0 || int64(int(size)) != size {
		return nil, fmt.Errorf("mmap: file %q too large to map", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("unix.Mmap(%s): %w", path, err)
	}

	r := &ReaderAt{data: data}
	runtime.SetFinalizer(r, (*ReaderAt).Close)
	return r, nil
}

// Data returns the mapped bytes. The returned slice is valid until Close.
func (r *ReaderAt) Data() []byte {
	return r.data
}

// Len returns the length in bytes of the mapped region.
func (r *ReaderAt) Len() int {
	return len(r.data)
}

// Advise hints to the kernel how the mapping will be accessed.
func (r *ReaderAt) Advise(advice int) error {
	if len(r.data) == 0 {
		return nil
	}
	if err := unix.Madvise(r.data, advice); err != nil {
		return fmt.Errorf("madvise: %w", err)
	}
	return nil
}

// Close unmaps the file. It is safe to call more than once.
func (r *ReaderAt) Close() error {
	if len(r.data) == 0 {
		return nil
	}
	data := r.data
	r.data = nil
	runtime.SetFinalizer(r, nil)
	return unix.Munmap(data)
}
