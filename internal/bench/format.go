// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Benchmark is the result of one timed access pattern, printed as a
// line of a Go benchmark results file.
//
// The format is specified at:
// https://github.com/golang/proposal/blob/master/design/14313-benchmark-format.md
type Benchmark struct {
	// Name is the benchmark name without the "Benchmark" prefix.
	Name string

	// Iterations is the number of passes over all regions.
	Iterations int

	// Config is printed as "key: value" lines before the
	// benchmark if InBlock, or as "/key:value" name suffixes
	// otherwise.
	Config map[string]*Config

	// Result maps units to values, such as "ns/op" to the mean
	// time of one pass.
	Result map[string]float64
}

// Config is one configuration key's value.
type Config struct {
	RawValue string
	InBlock  bool
}

func (b *Benchmark) configKeys(inBlock bool) []string {
	var keys []string
	for k, c := range b.Config {
		if c.InBlock == inBlock {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Fprint writes bs to w in Go benchmark format. Consecutive
// benchmarks with the same block configuration share one
// configuration block, and result columns are aligned within a
// block.
func Fprint(w io.Writer, bs []*Benchmark) error {
	var lines [][]string
	flush := func() error {
		if err := fprintAligned(w, lines); err != nil {
			return err
		}
		lines = nil
		return nil
	}

	last := map[string]string{}
	for i, b := range bs {
		var changed []string
		for _, k := range b.configKeys(true) {
			v := b.Config[k].RawValue
			if lv, ok := last[k]; ok && lv == v {
				continue
			}
			changed = append(changed, fmt.Sprintf("%s: %s\n", k, v))
			last[k] = v
		}
		if changed != nil || i == 0 {
			if err := flush(); err != nil {
				return err
			}
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if changed != nil {
				changed = append(changed, "\n")
				if _, err := io.WriteString(w, strings.Join(changed, "")); err != nil {
					return err
				}
			}
		}

		name := []string{"Benchmark" + b.Name}
		for _, k := range b.configKeys(false) {
			name = append(name, k+":"+b.Config[k].RawValue)
		}
		line := []string{strings.Join(name, "/"), fmt.Sprint(b.Iterations)}
		units := make([]string, 0, len(b.Result))
		for k := range b.Result {
			units = append(units, k)
		}
		sort.Slice(units, func(i, j int) bool {
			if fixedUnits[units[i]] != fixedUnits[units[j]] {
				return fixedUnits[units[i]] < fixedUnits[units[j]]
			}
			return units[i] < units[j]
		})
		for _, u := range units {
			line = append(line, fmt.Sprint(b.Result[u]), u)
		}
		lines = append(lines, line)
	}
	return flush()
}

// fixedUnits sort before all other units.
var fixedUnits = map[string]int{
	"ns/op": -2,
	"MB/s":  -1,
}

// fprintAligned writes lines with the name and unit columns left
// aligned and the numeric columns right aligned.
func fprintAligned(w io.Writer, lines [][]string) error {
	var widths []int
	for _, line := range lines {
		for i, elt := range line {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], len(elt))
		}
	}

	for _, line := range lines {
		var b strings.Builder
		for i, elt := range line {
			switch {
			case i == 1 || i >= 2 && i%2 == 0:
				fmt.Fprintf(&b, "%*s  ", widths[i], elt)
			case i < len(line)-1:
				fmt.Fprintf(&b, "%-*s  ", widths[i], elt)
			default:
				b.WriteString(elt)
			}
		}
		b.WriteString("\n")
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

// FormatSeconds formats d as seconds with nanosecond precision.
func FormatSeconds(d time.Duration) string {
	ns := d.Nanoseconds()
	return fmt.Sprintf("%d.%09d", ns/1e9, ns%1e9)
}
