// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pageinfo

// Count aggregates one flag over a set of pages.
//
// Available <= Total and Set <= Available always hold.
type Count struct {
	Total     int // pages considered
	Available int // pages whose flags could be read
	Set       int // available pages with the flag set
}

// CountFlag counts the records that have flag bit set.
func CountFlag(recs []Record, bit uint) Count {
	c := Count{Total: len(recs)}
	for _, r := range recs {
		if !r.Available {
			continue
		}
		c.Available++
		if r.Flags.Has(bit) {
			c.Set++
		}
	}
	return c
}

// Determined reports whether any page's flags could be read. If not,
// the percentages are meaningless.
func (c Count) Determined() bool {
	return c.Available > 0
}

// Percent returns the percentage of all pages that have the flag
// set. ok is false if no page's flags could be read.
func (c Count) Percent() (pct float64, ok bool) {
	if c.Available == 0 {
		return 0, false
	}
	return 100 * float64(c.Set) / float64(c.Total), true
}

// AvailablePercent returns the percentage of pages whose flags could
// be read.
func (c Count) AvailablePercent() float64 {
	if c.Total == 0 {
		return 0
	}
	return 100 * float64(c.Available) / float64(c.Total)
}

// Add returns the sum of c and o.
func (c Count) Add(o Count) Count {
	return Count{c.Total + o.Total, c.Available + o.Available, c.Set + o.Set}
}
