// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pageinfo classifies the pages of a virtual address range
// by their kernel page flags.
package pageinfo

import (
	"github.com/aclements/thptest/internal/pagemap"
	"github.com/pkg/errors"
)

const pageSize = pagemap.PageSize

// Record is the state of one page of a classified range.
type Record struct {
	// Index is the page's position in the range. The page starts
	// at Addr = start + Index*pageSize.
	Index int
	Addr  uintptr

	pagemap.Page
}

// NumPages returns the number of pages Classify reports for
// [start, end): the range length rounded up to whole pages.
func NumPages(start, end uintptr) int {
	if end <= start {
		return 0
	}
	return int((end - start + pageSize - 1) / pageSize)
}

// window is the number of pages Walk resolves at a time.
const window = 4096

// Walk resolves [start, end) using r in windows of at most 4096
// pages, calling fn with each window's records in ascending address
// order. The records slice is reused between calls, so fn must not
// retain it. Memory use does not depend on the size of the range.
//
// Walk stops at the first error from r or fn. Records resolved before
// an error from r are still passed to fn.
func Walk(r pagemap.Resolver, start, end uintptr, fn func(recs []Record) error) error {
	if end <= start {
		return errors.Errorf("empty range %#x-%#x", start, end)
	}
	n := NumPages(start, end)

	pages := make([]pagemap.Page, min(n, window))
	recs := make([]Record, 0, len(pages))
	for i := 0; i < n; i += len(pages) {
		pages = pages[:min(n-i, window)]
		addr := start + uintptr(i)*pageSize
		got, err := r.ResolveRange(uint64(addr/pageSize), pages)
		recs = recs[:0]
		for j, p := range pages[:got] {
			recs = append(recs, Record{
				Index: i + j,
				Addr:  addr + uintptr(j)*pageSize,
				Page:  p,
			})
		}
		if len(recs) > 0 {
			if err := fn(recs); err != nil {
				return err
			}
		}
		if err != nil {
			return errors.Wrapf(err, "classifying %#x-%#x", start, end)
		}
	}
	return nil
}

// Classify resolves every page of [start, end) using r and returns
// one Record per page in ascending address order. A trailing partial
// page counts as a whole page.
//
// If r fails partway through, Classify returns the records resolved
// so far along with the error.
func Classify(r pagemap.Resolver, start, end uintptr) ([]Record, error) {
	if end <= start {
		return nil, errors.Errorf("empty range %#x-%#x", start, end)
	}
	recs := make([]Record, 0, NumPages(start, end))
	err := Walk(r, start, end, func(w []Record) error {
		recs = append(recs, w...)
		return nil
	})
	return recs, err
}

// ClassifyPID classifies [start, end) in process pid and counts the
// pages that have flag bit set. The kernel files are opened for this
// call only.
func ClassifyPID(pid int, start, end uintptr, bit uint) ([]Record, Count, error) {
	r, err := pagemap.Open(pid)
	if err != nil {
		return nil, Count{}, err
	}
	defer r.Close()

	recs, err := Classify(r, start, end)
	return recs, CountFlag(recs, bit), err
}
