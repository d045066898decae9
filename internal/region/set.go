// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package region

import "github.com/pkg/errors"

// Set is an owned collection of equally sized regions.
type Set []*Region

// Alloc maps n regions of size bytes each. If any mapping fails, the
// regions already mapped are released.
func Alloc(n, size int) (Set, error) {
	s := make(Set, 0, n)
	for i := 0; i < n; i++ {
		r, err := New(size)
		if err != nil {
			s.Release()
			return nil, errors.Wrapf(err, "region %d", i)
		}
		s = append(s, r)
	}
	return s, nil
}

// AdviseHuge calls AdviseHuge on every region. If strict, the first
// failure is returned. Otherwise failures are passed to warn and the
// remaining regions are still advised.
func (s Set) AdviseHuge(strict bool, warn func(i int, err error)) error {
	for i, r := range s {
		if err := r.AdviseHuge(); err != nil {
			if strict {
				return errors.Wrapf(err, "region %d", i)
			}
			warn(i, err)
		}
	}
	return nil
}

// Touch touches every region and returns the total bytes written.
func (s Set) Touch() int {
	n := 0
	for _, r := range s {
		n += r.Touch()
	}
	return n
}

// Bytes returns the memory of every region.
func (s Set) Bytes() [][]byte {
	bs := make([][]byte, len(s))
	for i, r := range s {
		bs[i] = r.Bytes()
	}
	return bs
}

// Release unmaps every region and returns the first error.
func (s Set) Release() error {
	var first error
	for _, r := range s {
		if err := r.Release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
