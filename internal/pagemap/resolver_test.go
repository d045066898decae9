// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pagemap

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
)

func writeTable(t *testing.T, path string, vals []uint64) {
	t.Helper()
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], v)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
}

const thpHead = 1<<KPFAnon | 1<<KPFCompoundHead | 1<<KPFThp
const thpTail = 1<<KPFAnon | 1<<KPFCompoundTail | 1<<KPFThp

// fakeTables writes a pagemap with 8 virtual pages and a kpageflags
// covering PFNs 0 through 15.
func fakeTables(t *testing.T) (pagemapPath, kpageflagsPath string) {
	dir := t.TempDir()
	pagemapPath = filepath.Join(dir, "pagemap")
	kpageflagsPath = filepath.Join(dir, "kpageflags")

	writeTable(t, pagemapPath, []uint64{
		0,               // not present
		pmPresent | 10,  // THP head
		pmPresent | 11,  // THP tail
		pmPresent | 12,  // THP tail
		pmPresent | 4,   // normal page, out of PFN order
		pmPresent,       // PFN hidden
		pmPresent | 100, // PFN past the end of kpageflags
		pmSwap | 7,      // swapped out
	})
	kpf := make([]uint64, 16)
	kpf[4] = 1 << KPFAnon
	kpf[10] = thpHead
	kpf[11] = thpTail
	kpf[12] = thpTail
	writeTable(t, kpageflagsPath, kpf)
	return
}

func TestResolveRange(t *testing.T) {
	pm, kpf := fakeTables(t)
	r, err := open(1, pm, kpf)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.Degraded() {
		t.Fatal("resolver is degraded")
	}

	got := make([]Page, 8)
	if n, err := r.ResolveRange(0, got); err != nil || n != len(got) {
		t.Fatalf("ResolveRange = %d, %v", n, err)
	}
	want := []Page{
		{VPN: 0},
		{VPN: 1, Entry: pmPresent | 10, Flags: thpHead, Available: true},
		{VPN: 2, Entry: pmPresent | 11, Flags: thpTail, Available: true},
		{VPN: 3, Entry: pmPresent | 12, Flags: thpTail, Available: true},
		{VPN: 4, Entry: pmPresent | 4, Flags: 1 << KPFAnon, Available: true},
		{VPN: 5, Entry: pmPresent},
		{VPN: 6, Entry: pmPresent | 100},
		{VPN: 7, Entry: pmSwap | 7},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveRange mismatch (-want +got):\n%s", diff)
	}

	p, err := r.Resolve(3)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want[3], p); diff != "" {
		t.Errorf("Resolve(3) mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveRangeShortRead(t *testing.T) {
	pm, kpf := fakeTables(t)
	r, err := open(1, pm, kpf)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	// Pages 8 and 9 are past the end of the fake pagemap.
	got := make([]Page, 8)
	n, err := r.ResolveRange(2, got)
	if err == nil {
		t.Fatal("want error reading past end of pagemap")
	}
	if n != 6 {
		t.Errorf("resolved %d pages; want 6", n)
	}
	if !got[0].Available || !got[1].Available {
		t.Errorf("pages before the error were not kept: %+v", got[:2])
	}
	if got[7].VPN != 9 || got[7].Available {
		t.Errorf("page past the error = %+v; want unavailable VPN 9", got[7])
	}
}

func TestDegraded(t *testing.T) {
	pm, _ := fakeTables(t)
	r, err := open(1, pm, filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if !r.Degraded() {
		t.Fatal("want degraded resolver without kpageflags")
	}

	got := make([]Page, 8)
	if _, err := r.ResolveRange(0, got); err != nil {
		t.Fatal(err)
	}
	for _, p := range got {
		if p.Available {
			t.Errorf("page %d available on degraded resolver", p.VPN)
		}
	}
	if !got[1].Entry.Present() {
		t.Errorf("pagemap entries should still be read")
	}
}

func TestCloseTwice(t *testing.T) {
	pm, kpf := fakeTables(t)
	r, err := open(1, pm, kpf)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestResolveSelf(t *testing.T) {
	buf := make([]byte, 4*PageSize)
	for i := range buf {
		buf[i] = 1
	}
	addr := uint64(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))

	r, err := Open(os.Getpid())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.pagemap == nil {
		t.Skip("pagemap not readable")
	}
	p, err := r.Resolve(addr/PageSize + 1)
	runtime.KeepAlive(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Entry.Present() {
		t.Errorf("touched page not present: %v", p.Entry)
	}
	if p.Available && !p.Flags.Has(KPFAnon) {
		t.Errorf("heap page flags %v lack anonymous", p.Flags)
	}
}

func TestResolveOneShot(t *testing.T) {
	var x [PageSize]byte
	x[0] = 1
	addr := uint64(uintptr(unsafe.Pointer(&x[0])))
	p, err := Resolve(os.Getpid(), addr/PageSize)
	runtime.KeepAlive(&x)
	if err != nil {
		t.Fatal(err)
	}
	if p.VPN != addr/PageSize {
		t.Errorf("VPN = %#x; want %#x", p.VPN, addr/PageSize)
	}
}

func TestOpenNoProcess(t *testing.T) {
	if _, err := Open(1 << 30); err == nil {
		t.Error("want error opening a nonexistent pid")
	}
}

func TestPagemapPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	pm, kpf := fakeTables(t)
	if err := os.Chmod(pm, 0); err != nil {
		t.Fatal(err)
	}
	r, err := open(1, pm, kpf)
	if err != nil {
		t.Fatalf("open with unreadable pagemap: %v", err)
	}
	defer r.Close()
	if !r.Degraded() || r.pagemap != nil {
		t.Fatal("resolver is not degraded")
	}

	pages := make([]Page, 4)
	n, err := r.ResolveRange(3, pages)
	if err != nil || n != len(pages) {
		t.Fatalf("ResolveRange = %d, %v; want %d, nil", n, err, len(pages))
	}
	for i, p := range pages {
		if want := (Page{VPN: 3 + uint64(i)}); p != want {
			t.Errorf("page %d = %+v; want %+v", i, p, want)
		}
	}
}

func TestRunPastKpageflagsEnd(t *testing.T) {
	dir := t.TempDir()
	pm := filepath.Join(dir, "pagemap")
	kpf := filepath.Join(dir, "kpageflags")
	// One run of PFNs 14-17 against a kpageflags that ends at 15.
	writeTable(t, pm, []uint64{pmPresent | 14, pmPresent | 15, pmPresent | 16, pmPresent | 17})
	flags := make([]uint64, 16)
	flags[14] = thpHead
	flags[15] = thpTail
	writeTable(t, kpf, flags)

	r, err := open(1, pm, kpf)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got := make([]Page, 4)
	if n, err := r.ResolveRange(0, got); err != nil || n != len(got) {
		t.Fatalf("ResolveRange = %d, %v", n, err)
	}
	want := []Page{
		{VPN: 0, Entry: pmPresent | 14, Flags: thpHead, Available: true},
		{VPN: 1, Entry: pmPresent | 15, Flags: thpTail, Available: true},
		{VPN: 2, Entry: pmPresent | 16},
		{VPN: 3, Entry: pmPresent | 17},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveRange mismatch (-want +got):\n%s", diff)
	}
}
