// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"

	"github.com/aclements/thptest/internal/pageinfo"
	"github.com/aclements/thptest/internal/pagemap"
)

func TestParseFlags(t *testing.T) {
	for _, test := range []struct {
		args []string
		want options
	}{
		{
			[]string{"42"},
			options{pid: 42, bit: pagemap.KPFThp, print: pageinfo.PrintOptions{PresentOnly: true, SkipTHPTails: true}},
		},
		{
			[]string{"--thp-tails", "--count", "anonymous", "1"},
			options{pid: 1, bit: pagemap.KPFAnon, print: pageinfo.PrintOptions{PresentOnly: true}},
		},
		{
			[]string{"--all", "--anon-only", "--count=KPF_COMPOUND_HEAD", "7"},
			options{pid: 7, bit: pagemap.KPFCompoundHead, anonOnly: true, print: pageinfo.PrintOptions{SkipTHPTails: true}},
		},
	} {
		got, err := parseFlags(test.args)
		if err != nil {
			t.Errorf("parseFlags(%q): %v", test.args, err)
			continue
		}
		if diff := cmp.Diff(test.want, got, cmp.AllowUnexported(options{})); diff != "" {
			t.Errorf("parseFlags(%q) mismatch (-want +got):\n%s", test.args, diff)
		}
	}
}

func TestParseFlagsErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"1", "2"},
		{"pid"},
		{"0"},
		{"--count", "nosuchflag", "1"},
		// Single-dash long names are shorthand bundles in pflag.
		{"-thp-tails", "1"},
	} {
		if _, err := parseFlags(args); err == nil {
			t.Errorf("parseFlags(%q) succeeded; want error", args)
		}
	}
}

func TestScanSelf(t *testing.T) {
	var buf bytes.Buffer
	opts := options{pid: os.Getpid(), bit: pagemap.KPFThp, print: pageinfo.PrintOptions{PresentOnly: true}}
	if err := scan(&buf, opts); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"[stack]", "Size:", "index"} {
		if !strings.Contains(out, want) {
			t.Errorf("output has no %q", want)
		}
	}
}

func TestScanAnonOnly(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Skip(err)
	}
	opts := options{pid: os.Getpid(), bit: pagemap.KPFThp, anonOnly: true, print: pageinfo.PrintOptions{PresentOnly: true}}
	var buf bytes.Buffer
	if err := scan(&buf, opts); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "[stack]") {
		t.Errorf("anonymous [stack] mapping missing:\n%s", out)
	}
	if strings.Contains(out, exe) {
		t.Errorf("file mapping of %s printed with --anon-only", exe)
	}
}

func TestScanLargeMapping(t *testing.T) {
	// 16GiB of reserved, never-touched address space.
	const size = 16 << 30
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
	if err != nil {
		t.Skipf("cannot reserve %d bytes: %v", size, err)
	}
	defer unix.Munmap(mem)

	opts := options{pid: os.Getpid(), bit: pagemap.KPFThp, print: pageinfo.PrintOptions{PresentOnly: true, SkipTHPTails: true}}
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	err = scan(io.Discard, opts)
	runtime.ReadMemStats(&after)
	if err != nil {
		t.Fatal(err)
	}
	if alloc := after.TotalAlloc - before.TotalAlloc; alloc > 32<<20 {
		t.Errorf("scanning a %d byte mapping allocated %d bytes", size, alloc)
	}
}

func TestScanHeaderPerMapping(t *testing.T) {
	// A mapping spanning several windows still gets one header.
	const pages = 3*4096 + 5
	mem, err := unix.Mmap(-1, 0, pages*pagemap.PageSize, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
	if err != nil {
		t.Skip(err)
	}
	defer unix.Munmap(mem)
	start := uintptr(unsafe.Pointer(&mem[0]))
	vma := fmt.Sprintf("%x-%x ", start, start+pages*pagemap.PageSize)

	opts := options{pid: os.Getpid(), bit: pagemap.KPFThp}
	var buf bytes.Buffer
	if err := scan(&buf, opts); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	i := strings.Index(out, vma)
	if i < 0 {
		t.Skipf("mapping %s was merged with a neighbor", vma)
	}
	// The page table sits between the mapping's first line and its
	// smaps fields.
	table, _, ok := strings.Cut(out[i:], "\nSize:")
	if !ok {
		t.Fatalf("no smaps fields after %s", vma)
	}
	lines := strings.Split(table, "\n")[1:]
	var headers int
	for _, l := range lines {
		if strings.HasPrefix(l, "index") {
			headers++
		}
	}
	if headers != 1 || len(lines) != pages+1 {
		t.Errorf("got %d headers in %d lines; want 1 header and %d rows", headers, len(lines), pages)
	}
}
