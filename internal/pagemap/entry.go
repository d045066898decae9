// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pagemap

import "fmt"

// Entry is one 64-bit entry of /proc/<pid>/pagemap, describing a
// single virtual page. See Documentation/admin-guide/mm/pagemap.rst.
type Entry uint64

const (
	pmPFNMask   = 1<<55 - 1
	pmSoftDirty = 1 << 55
	pmExclusive = 1 << 56
	pmFile      = 1 << 61
	pmSwap      = 1 << 62
	pmPresent   = 1 << 63
)

// Present reports whether the page is resident in RAM.
func (e Entry) Present() bool { return e&pmPresent != 0 }

// Swapped reports whether the page is in swap.
func (e Entry) Swapped() bool { return e&pmSwap != 0 }

// File reports whether the page is file-backed or shared anonymous.
func (e Entry) File() bool { return e&pmFile != 0 }

// Exclusive reports whether the page is mapped by exactly one process.
func (e Entry) Exclusive() bool { return e&pmExclusive != 0 }

// SoftDirty reports whether the page's soft-dirty bit is set.
func (e Entry) SoftDirty() bool { return e&pmSoftDirty != 0 }

// PFN returns the physical frame number of a present page. The
// kernel reports 0 here to readers without CAP_SYS_ADMIN.
func (e Entry) PFN() uint64 {
	if !e.Present() {
		return 0
	}
	return uint64(e & pmPFNMask)
}

// Letters returns the "sdpx" column printed in page tables: swapped,
// file (d for disk), present, exclusive.
func (e Entry) Letters() string {
	b := []byte("____")
	if e.Swapped() {
		b[0] = 's'
	}
	if e.File() {
		b[1] = 'd'
	}
	if e.Present() {
		b[2] = 'p'
	}
	if e.Exclusive() {
		b[3] = 'x'
	}
	return string(b)
}

func (e Entry) String() string {
	return fmt.Sprintf("%s pfn=%#x", e.Letters(), e.PFN())
}
