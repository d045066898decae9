// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package procmaps reads a process's memory map from
// /proc/<pid>/maps or /proc/<pid>/smaps.
package procmaps

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// VMA is one mapping of a process's address space.
type VMA struct {
	Start, End uint64
	Perms      string
	Offset     uint64
	Dev        string
	Inode      uint64
	Path       string
}

// Len returns the size of v in bytes.
func (v VMA) Len() uint64 {
	return v.End - v.Start
}

// Anonymous reports whether v is not backed by a file.
func (v VMA) Anonymous() bool {
	return v.Inode == 0
}

// 7d4337f0f000-7d4337f10000 rw-p 0002d000 00:2bc 42926480   /usr/lib/ld-2.31.so
var headerRe = regexp.MustCompile(`^([0-9a-f]+)-([0-9a-f]+) ([rwxps-]{4}) ([0-9a-f]+) ([0-9a-f]+:[0-9a-f]+) (\d+)(?:\s+(.*))?$`)

// ParseLine parses a maps header line. It returns false for other
// lines, such as the key-value lines of smaps.
func ParseLine(line string) (VMA, bool) {
	m := headerRe.FindStringSubmatch(line)
	if m == nil {
		return VMA{}, false
	}
	var v VMA
	var err error
	if v.Start, err = strconv.ParseUint(m[1], 16, 64); err != nil {
		return VMA{}, false
	}
	if v.End, err = strconv.ParseUint(m[2], 16, 64); err != nil {
		return VMA{}, false
	}
	v.Perms = m[3]
	if v.Offset, err = strconv.ParseUint(m[4], 16, 64); err != nil {
		return VMA{}, false
	}
	v.Dev = m[5]
	if v.Inode, err = strconv.ParseUint(m[6], 10, 64); err != nil {
		return VMA{}, false
	}
	v.Path = strings.TrimSpace(m[7])
	return v, true
}

// Parse reads maps or smaps text from r and returns its mappings in
// order.
func Parse(r io.Reader) ([]VMA, error) {
	var vmas []VMA
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if v, ok := ParseLine(scanner.Text()); ok {
			vmas = append(vmas, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading maps")
	}
	return vmas, nil
}

// Copy writes the raw contents of /proc/<pid>/maps to w.
func Copy(w io.Writer, pid int) error {
	f, err := os.Open(path(pid, "maps"))
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return errors.Wrap(err, "copying maps")
	}
	return nil
}

// OpenSmaps opens /proc/<pid>/smaps.
func OpenSmaps(pid int) (*os.File, error) {
	f, err := os.Open(path(pid, "smaps"))
	return f, errors.WithStack(err)
}

func path(pid int, name string) string {
	return fmt.Sprintf("/proc/%d/%s", pid, name)
}
