// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"fmt"
	"io"

	"github.com/aclements/thptest/internal/pageinfo"
)

const (
	pageSize2M = 2 << 20
	pageSize4K = 4 << 10
)

// summary accumulates page counts across regions. Regions whose page
// flags could not be read contribute only to requestedBytes.
type summary struct {
	requestedBytes int
	num2M, num4K   int
	thp            pageinfo.Count
}

func (s *summary) add(c pageinfo.Count) {
	if !c.Determined() {
		return
	}
	s.num2M += c.Set / (pageSize2M / pageSize4K)
	s.num4K += c.Total - c.Set
	s.thp = s.thp.Add(c)
}

func (s *summary) bytes2M() int { return s.num2M * pageSize2M }

func (s *summary) bytes4K() int { return s.num4K * pageSize4K }

func (s *summary) allocatedBytes() int { return s.bytes2M() + s.bytes4K() }

// csv returns the summary line, without a newline.
func (s *summary) csv() string {
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", s.requestedBytes, s.allocatedBytes(), s.num2M, s.bytes2M(), s.num4K, s.bytes4K())
}

func (s *summary) fprint(w io.Writer) error {
	_, err := fmt.Fprintf(w, "================================= summary =======================================\n"+
		"%s\n"+
		"total requested bytes, total allocated bytes, total 2m pages,total bytes of 2m pages, total 4k pages, total bytes of 4k pages\n"+
		"%s\n"+
		"=================================================================================\n",
		hugeMessage(s.thp), s.csv())
	return err
}

// reportRegion writes the one-line huge page report for region i.
func reportRegion(w io.Writer, i int, addr uintptr, c pageinfo.Count) error {
	_, err := fmt.Fprintf(w, "[%08d %#x] %s\n", i, addr, hugeMessage(c))
	return err
}

func hugeMessage(c pageinfo.Count) string {
	pct, ok := c.Percent()
	if !ok {
		return "Couldn't determine hugepage info (you are probably not running as root)"
	}
	return fmt.Sprintf("Source pages allocated with transparent hugepages: %4.1f%% (%d total pages, %4.1f%% flagged)",
		pct, c.Total, c.AvailablePercent())
}
