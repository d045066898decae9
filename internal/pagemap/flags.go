// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pagemap

import (
	"fmt"
	"strings"
)

// Bit positions in /proc/kpageflags, as published in
// include/uapi/linux/kernel-page-flags.h. Positions 32 and up are
// only reported by kernels built with CONFIG_PAGE_FLAGS_EXTENDED or
// are synthesized by Expand.
const (
	KPFLocked     = 0
	KPFError      = 1
	KPFReferenced = 2
	KPFUptodate   = 3
	KPFDirty      = 4
	KPFLRU        = 5
	KPFActive     = 6
	KPFSlab       = 7
	KPFWriteback  = 8
	KPFReclaim    = 9
	KPFBuddy      = 10

	KPFMmap         = 11
	KPFAnon         = 12
	KPFSwapcache    = 13
	KPFSwapbacked   = 14
	KPFCompoundHead = 15
	KPFCompoundTail = 16
	KPFHuge         = 17
	KPFUnevictable  = 18
	KPFHWPoison     = 19
	KPFNopage       = 20
	KPFKSM          = 21
	KPFThp          = 22
	KPFOffline      = 23
	KPFZeroPage     = 24
	KPFIdle         = 25
	KPFPgtable      = 26

	KPFReserved     = 32
	KPFMlocked      = 33
	KPFOwner2       = 34
	KPFPrivate      = 35
	KPFPrivate2     = 36
	KPFOwnerPrivate = 37
	KPFArch         = 38
	KPFUncached     = 39
	KPFSoftDirty    = 40
	KPFArch2        = 41

	KPFAnonExclusive = 47
	KPFReadahead     = 48
	KPFSlubFrozen    = 50
	KPFSlubDebug     = 51
	KPFFile          = 61
	KPFSwap          = 62
	KPFMmapExclusive = 63
)

type flagName struct {
	short byte
	long  string
}

var flagNames = [64]flagName{
	KPFLocked:     {'L', "locked"},
	KPFError:      {'E', "error"},
	KPFReferenced: {'R', "referenced"},
	KPFUptodate:   {'U', "uptodate"},
	KPFDirty:      {'D', "dirty"},
	KPFLRU:        {'l', "lru"},
	KPFActive:     {'A', "active"},
	KPFSlab:       {'S', "slab"},
	KPFWriteback:  {'W', "writeback"},
	KPFReclaim:    {'I', "reclaim"},
	KPFBuddy:      {'B', "buddy"},

	KPFMmap:         {'M', "mmap"},
	KPFAnon:         {'a', "anonymous"},
	KPFSwapcache:    {'s', "swapcache"},
	KPFSwapbacked:   {'b', "swapbacked"},
	KPFCompoundHead: {'H', "compound_head"},
	KPFCompoundTail: {'T', "compound_tail"},
	KPFHuge:         {'G', "huge"},
	KPFUnevictable:  {'u', "unevictable"},
	KPFHWPoison:     {'X', "hwpoison"},
	KPFNopage:       {'n', "nopage"},
	KPFKSM:          {'x', "ksm"},
	KPFThp:          {'t', "thp"},
	KPFOffline:      {'o', "offline"},
	KPFZeroPage:     {'z', "zero_page"},
	KPFIdle:         {'i', "idle_page"},
	KPFPgtable:      {'g', "pgtable"},

	KPFReserved:     {'r', "reserved"},
	KPFMlocked:      {'m', "mlocked"},
	KPFOwner2:       {'d', "owner_2"},
	KPFPrivate:      {'P', "private"},
	KPFPrivate2:     {'p', "private_2"},
	KPFOwnerPrivate: {'O', "owner_private"},
	KPFArch:         {'h', "arch"},
	KPFUncached:     {'c', "uncached"},
	KPFSoftDirty:    {'f', "softdirty"},
	KPFArch2:        {'H', "arch_2"},

	KPFAnonExclusive: {'d', "anon_exclusive"},
	KPFReadahead:     {'I', "readahead"},
	KPFSlubFrozen:    {'A', "slub_frozen"},
	KPFSlubDebug:     {'E', "slub_debug"},

	KPFFile:          {'F', "file"},
	KPFSwap:          {'w', "swap"},
	KPFMmapExclusive: {'1', "mmap_exclusive"},
}

var flagBits = func() map[string]uint {
	m := make(map[string]uint)
	for i, n := range flagNames {
		if n.long != "" {
			m[n.long] = uint(i)
		}
	}
	// Accept the kernel header's spelling too.
	m["transparent_hugepage"] = KPFThp
	return m
}()

// FlagBit returns the kpageflags bit position of the flag called
// name, using the long names printed by Flags.String (for example
// "thp" or "compound_head"). Names are case-insensitive and may carry
// a "kpf_" prefix.
func FlagBit(name string) (uint, bool) {
	name = strings.TrimPrefix(strings.ToLower(name), "kpf_")
	bit, ok := flagBits[name]
	return bit, ok
}

// Flags is a page's bitset from /proc/kpageflags, possibly extended
// with pagemap-derived bits by Expand.
type Flags uint64

// Has reports whether bit is set in p.
func (p Flags) Has(bit uint) bool {
	return bit < 64 && p&(1<<bit) != 0
}

// String returns the long names of the set flags joined by "|".
// Set bits without a name are appended in hex.
func (p Flags) String() string {
	var b strings.Builder
	for i, n := range flagNames {
		if n.long == "" || p&(1<<uint(i)) == 0 {
			continue
		}
		b.WriteString(n.long)
		b.WriteByte('|')
		p &^= 1 << uint(i)
	}
	if p != 0 {
		return fmt.Sprintf("%s%#x", b.String(), uint64(p))
	}
	if b.Len() == 0 {
		return "0"
	}
	s := b.String()
	return s[:len(s)-1]
}

// Short returns one character per named flag, in bit order, with '_'
// for flags that are not set.
func (p Flags) Short() string {
	var b strings.Builder
	for i, n := range flagNames {
		if n.long == "" {
			continue
		}
		if p&(1<<uint(i)) != 0 {
			b.WriteByte(n.short)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Expand folds the pagemap-only bits of e into their kpageflags
// positions and undoes the kernel's overloading of a few page flags,
// the way tools/mm/page-types does.
func Expand(flags Flags, e Entry) Flags {
	const (
		anon     = 1 << KPFAnon
		owner2   = 1 << KPFOwner2
		slab     = 1 << KPFSlab
		active   = 1 << KPFActive
		errFlag  = 1 << KPFError
		reclaim  = 1 << KPFReclaim
		writebck = 1 << KPFWriteback
	)

	// Anonymous pages use PG_owner_2 for anon_exclusive.
	if flags&anon != 0 && flags&owner2 != 0 {
		flags ^= owner2 | 1<<KPFAnonExclusive
	}

	// SLUB overloads several page flags.
	if flags&slab != 0 {
		if flags&active != 0 {
			flags ^= active | 1<<KPFSlubFrozen
		}
		if flags&errFlag != 0 {
			flags ^= errFlag | 1<<KPFSlubDebug
		}
	}

	// PG_reclaim is PG_readahead on the read path.
	if flags&(reclaim|writebck) == reclaim {
		flags ^= reclaim | 1<<KPFReadahead
	}

	if e.SoftDirty() {
		flags |= 1 << KPFSoftDirty
	}
	if e.File() {
		flags |= 1 << KPFFile
	}
	if e.Swapped() {
		flags |= 1 << KPFSwap
	}
	if e.Exclusive() {
		flags |= 1 << KPFMmapExclusive
	}
	return flags
}
