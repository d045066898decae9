// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pagemap resolves the kernel page flags of virtual pages.
//
// Resolving a page is a two-step lookup. /proc/<pid>/pagemap maps
// each virtual page of a process to a physical frame number (PFN),
// and /proc/kpageflags maps each PFN to the flags of that physical
// page, including whether it is part of a transparent huge page.
//
// Reading PFNs and kpageflags requires CAP_SYS_ADMIN. Without it the
// resolver still works, but reports every page as unavailable.
package pagemap

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// PageSize is the granularity of pagemap and kpageflags entries.
const PageSize = 4096

// batch is the number of pagemap entries read per system call.
const batch = 1024

// Page is the resolved state of one virtual page.
type Page struct {
	// VPN is the virtual page number (address / PageSize).
	VPN uint64

	// Entry is the raw pagemap entry. It is zero if pagemap could
	// not be read.
	Entry Entry

	// Flags are the physical page's flags, expanded with the
	// pagemap bits. Valid only if Available.
	Flags Flags

	// Available is set if Flags could be read for this page.
	Available bool
}

// PFN returns the physical frame number of p, or 0 if unknown.
func (p Page) PFN() uint64 {
	return p.Entry.PFN()
}

// A Resolver looks up the flags of a process's virtual pages.
type Resolver interface {
	// ResolveRange fills pages[i] with the state of virtual page
	// vpn+i and returns the number of pages filled. Pages whose
	// flags cannot be determined are left with Available unset;
	// that is not an error. It returns a non-nil error if and
	// only if n < len(pages).
	ResolveRange(vpn uint64, pages []Page) (n int, err error)

	Close() error
}

// KernelResolver resolves pages of one process using the kernel's
// pagemap and kpageflags files. The files are opened once and shared
// by all lookups.
type KernelResolver struct {
	pid        int
	pagemap    *os.File
	kpageflags *os.File

	buf, flagBuf []byte
}

// Open returns a resolver for process pid.
//
// If the caller lacks permission to read pagemap or kpageflags, Open
// does not fail. The returned resolver is degraded and reports every
// page as unavailable.
func Open(pid int) (*KernelResolver, error) {
	if ps := unix.Getpagesize(); ps != PageSize {
		return nil, errors.Errorf("unsupported system page size %d", ps)
	}
	return open(pid, fmt.Sprintf("/proc/%d/pagemap", pid), "/proc/kpageflags")
}

func open(pid int, pagemapPath, kpageflagsPath string) (*KernelResolver, error) {
	r := &KernelResolver{
		pid:     pid,
		buf:     make([]byte, 8*batch),
		flagBuf: make([]byte, 8*batch),
	}

	pm, err := os.Open(pagemapPath)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return r, nil
		}
		return nil, errors.Wrap(err, "opening pagemap")
	}
	r.pagemap = pm

	kf, err := os.Open(kpageflagsPath)
	if err != nil {
		// kpageflags is root-only, and absent in some
		// containers.
		if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
			return r, nil
		}
		pm.Close()
		return nil, errors.Wrap(err, "opening kpageflags")
	}
	r.kpageflags = kf
	return r, nil
}

// Degraded reports whether r cannot read page flags at all.
func (r *KernelResolver) Degraded() bool {
	return r.pagemap == nil || r.kpageflags == nil
}

// Close releases the kernel files. It is safe to call more than once.
func (r *KernelResolver) Close() error {
	var err error
	if r.pagemap != nil {
		err = r.pagemap.Close()
		r.pagemap = nil
	}
	if r.kpageflags != nil {
		if err2 := r.kpageflags.Close(); err == nil {
			err = err2
		}
		r.kpageflags = nil
	}
	return err
}

// Resolve returns the state of virtual page vpn.
func (r *KernelResolver) Resolve(vpn uint64) (Page, error) {
	var p [1]Page
	_, err := r.ResolveRange(vpn, p[:])
	return p[0], err
}

func (r *KernelResolver) ResolveRange(vpn uint64, pages []Page) (int, error) {
	for i := range pages {
		pages[i] = Page{VPN: vpn + uint64(i)}
	}
	if r.pagemap == nil {
		return len(pages), nil
	}

	for off := 0; off < len(pages); off += batch {
		chunk := pages[off:min(off+batch, len(pages))]
		buf := r.buf[:8*len(chunk)]
		n, err := r.pagemap.ReadAt(buf, 8*int64(vpn+uint64(off)))
		for i := 0; i < n/8; i++ {
			chunk[i].Entry = Entry(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		r.lookupFlags(chunk[:n/8])
		if n < len(buf) {
			if err == nil || err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return off + n/8, errors.Wrapf(err, "reading pagemap of pid %d at page %#x", r.pid, vpn+uint64(off+n/8))
		}
	}
	return len(pages), nil
}

// lookupFlags reads kpageflags for the present pages in pages. Runs
// of consecutive PFNs, which is what a huge page looks like, are read
// with a single system call.
func (r *KernelResolver) lookupFlags(pages []Page) {
	if r.kpageflags == nil {
		return
	}
	for i := 0; i < len(pages); {
		pfn := pages[i].PFN()
		if pfn == 0 {
			// Not present, or PFNs are hidden from us.
			i++
			continue
		}
		j := i + 1
		for j < len(pages) && pages[j].PFN() == pfn+uint64(j-i) {
			j++
		}
		r.readRun(pages[i:j], pfn)
		i = j
	}
}

func (r *KernelResolver) readRun(run []Page, pfn uint64) {
	buf := r.flagBuf[:8*len(run)]
	if _, err := r.kpageflags.ReadAt(buf, 8*int64(pfn)); err != nil {
		if len(run) == 1 {
			return
		}
		// Isolate the PFN we can't read.
		for k := range run {
			r.readRun(run[k:k+1], pfn+uint64(k))
		}
		return
	}
	for k := range run {
		raw := Flags(binary.LittleEndian.Uint64(buf[k*8:]))
		run[k].Flags = Expand(raw, run[k].Entry)
		run[k].Available = true
	}
}

// Resolve opens a resolver for pid, resolves virtual page vpn, and
// closes the resolver.
func Resolve(pid int, vpn uint64) (Page, error) {
	r, err := Open(pid)
	if err != nil {
		return Page{}, err
	}
	defer r.Close()
	return r.Resolve(vpn)
}
