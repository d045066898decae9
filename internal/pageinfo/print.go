// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pageinfo

import (
	"fmt"
	"io"

	"github.com/aclements/thptest/internal/pagemap"
)

// FprintHeader writes the column header for FprintRecord.
func FprintHeader(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%-6s %-16s %-10s %-4s %s\n", "index", "address", "pfn", "sdpx", "flags")
	return err
}

// FprintRecord writes one page table row. Pages without flag data
// print "?" in place of flags.
func FprintRecord(w io.Writer, r Record) error {
	pfn := "-"
	if r.PFN() != 0 {
		pfn = fmt.Sprintf("%#x", r.PFN())
	}
	flags := "?"
	if r.Available {
		flags = r.Flags.Short() + " " + r.Flags.String()
	}
	_, err := fmt.Fprintf(w, "%-6d %016x %-10s %-4s %s\n", r.Index, r.Addr, pfn, r.Entry.Letters(), flags)
	return err
}

// PrintOptions controls Fprint.
type PrintOptions struct {
	// Prefix is written before every line.
	Prefix string

	// PresentOnly omits pages that are not resident.
	PresentOnly bool

	// SkipTHPTails prints only the head page of each transparent
	// huge page.
	SkipTHPTails bool
}

// Fprint writes a header and one row per record.
func Fprint(w io.Writer, recs []Record, opts PrintOptions) error {
	if _, err := io.WriteString(w, opts.Prefix); err != nil {
		return err
	}
	if err := FprintHeader(w); err != nil {
		return err
	}
	return FprintRecords(w, recs, opts)
}

// FprintRecords is Fprint without the header, for writing a range one
// Walk window at a time.
func FprintRecords(w io.Writer, recs []Record, opts PrintOptions) error {
	for _, r := range recs {
		if opts.PresentOnly && !r.Entry.Present() {
			continue
		}
		if opts.SkipTHPTails && r.Available && r.Flags.Has(pagemap.KPFThp) && r.Flags.Has(pagemap.KPFCompoundTail) {
			continue
		}
		if _, err := io.WriteString(w, opts.Prefix); err != nil {
			return err
		}
		if err := FprintRecord(w, r); err != nil {
			return err
		}
	}
	return nil
}
