// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Command scanpagemap prints the page flags of every mapping of a
// process.
//
// Usage:
//
//	scanpagemap [--thp-tails] [--all] [--anon-only] [--count flag] pid
//
// For each mapping in /proc/<pid>/smaps, scanpagemap prints the smaps
// lines followed by one row per resident page, giving its physical
// frame and kernel page flags. By default only the head page of each
// transparent huge page is printed. It ends with the percentage of
// pages that have the --count flag, "thp" by default. Must be run as
// root to see page flags.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/aclements/thptest/internal/pageinfo"
	"github.com/aclements/thptest/internal/pagemap"
	"github.com/aclements/thptest/internal/procmaps"
)

type options struct {
	pid      int
	bit      uint
	anonOnly bool
	print    pageinfo.PrintOptions
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("scanpagemap", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: scanpagemap [flags] pid\n")
		fs.PrintDefaults()
	}
	tails := fs.Bool("thp-tails", false, "print every page of transparent huge pages, not just the head")
	all := fs.Bool("all", false, "print non-resident pages too")
	fs.BoolVar(&opts.anonOnly, "anon-only", false, "skip file-backed mappings")
	count := fs.String("count", "thp", "page `flag` to total across all mappings")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return opts, errors.New("want exactly one pid")
	}

	pid, err := strconv.Atoi(fs.Arg(0))
	if err != nil || pid <= 0 {
		return opts, errors.Errorf("bad pid %q", fs.Arg(0))
	}
	bit, ok := pagemap.FlagBit(*count)
	if !ok {
		return opts, errors.Errorf("unknown page flag %q", *count)
	}
	opts.pid = pid
	opts.bit = bit
	opts.print = pageinfo.PrintOptions{PresentOnly: !*all, SkipTHPTails: !*tails}
	return opts, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	opts, err := parseFlags(os.Args[1:])
	if err == flag.ErrHelp {
		os.Exit(0)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	if err := scan(w, opts); err != nil {
		w.Flush()
		log.Fatal(err)
	}
}

// scan writes the page table of every mapping of opts.pid to w. Each
// mapping is resolved one window at a time, so memory use does not
// grow with the size of the mapping.
func scan(w io.Writer, opts options) error {
	smaps, err := procmaps.OpenSmaps(opts.pid)
	if err != nil {
		return err
	}
	defer smaps.Close()

	// One resolver serves every mapping.
	res, err := pagemap.Open(opts.pid)
	if err != nil {
		return err
	}
	defer res.Close()
	if res.Degraded() {
		log.Warn("cannot read page flags; run as root")
	}

	var total pageinfo.Count
	skip := false
	scanner := bufio.NewScanner(smaps)
	for scanner.Scan() {
		line := scanner.Text()
		vma, ok := procmaps.ParseLine(line)
		if ok {
			skip = opts.anonOnly && !vma.Anonymous()
		}
		if skip {
			continue
		}
		fmt.Fprintln(w, line)
		if !ok || vma.Len() == 0 {
			continue
		}

		if err := pageinfo.FprintHeader(w); err != nil {
			return err
		}
		var werr error
		err := pageinfo.Walk(res, uintptr(vma.Start), uintptr(vma.End), func(recs []pageinfo.Record) error {
			total = total.Add(pageinfo.CountFlag(recs, opts.bit))
			werr = pageinfo.FprintRecords(w, recs, opts.print)
			return werr
		})
		if werr != nil {
			return werr
		}
		if err != nil {
			// [vsyscall] and friends can't be read.
			log.WithField("vma", fmt.Sprintf("%x-%x", vma.Start, vma.End)).Debug(err)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "reading smaps")
	}

	if pct, ok := total.Percent(); ok {
		fmt.Fprintf(w, "%d pages, %d with flags, %.1f%% %s\n", total.Total, total.Available, pct, pagemap.Flags(1<<opts.bit))
	}
	return nil
}
