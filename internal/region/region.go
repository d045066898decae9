// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Package region manages anonymous memory mappings used as test
// regions.
package region

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// A Region is a private anonymous mapping. It owns the mapping until
// Release.
type Region struct {
	mem []byte
}

// New maps an anonymous read-write region of size bytes. The kernel
// does not commit physical memory until the region is touched.
func New(size int) (*Region, error) {
	if size <= 0 {
		return nil, errors.Errorf("bad region size %d", size)
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, errors.Wrap(err, "mmap failed")
	}
	return &Region{mem}, nil
}

// Addr returns the start address of r.
func (r *Region) Addr() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(r.mem)))
}

// End returns the address just past the end of r.
func (r *Region) End() uintptr {
	return r.Addr() + uintptr(len(r.mem))
}

// Len returns the size of r in bytes.
func (r *Region) Len() int {
	return len(r.mem)
}

// Bytes returns the region's memory. It must not be used after
// Release.
func (r *Region) Bytes() []byte {
	return r.mem
}

// madvise is replaced in tests.
var madvise = unix.Madvise

// AdviseHuge asks the kernel to back r with transparent huge pages.
// This must happen before Touch to affect the first faults.
func (r *Region) AdviseHuge() error {
	if err := madvise(r.mem, unix.MADV_HUGEPAGE); err != nil {
		return errors.Wrap(err, "madvise failed")
	}
	return nil
}

// Touch writes every byte of r to force the kernel to commit it, and
// returns the number of bytes written.
func (r *Region) Touch() int {
	for i := range r.mem {
		r.mem[i] = 0
	}
	return len(r.mem)
}

// Release unmaps r. It is safe to call more than once.
func (r *Region) Release() error {
	if r.mem == nil {
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	return errors.Wrap(err, "munmap failed")
}
