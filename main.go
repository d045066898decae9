// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Thptest measures whether anonymous memory is backed by transparent
// huge pages and how that affects memory access speed.
//
// Usage:
//
//	thptest [-s size] [-c count] [-i iterations] [--huge-page | -l bool]
//
// thptest maps <count> anonymous regions of <size> bytes, optionally
// asks for huge pages with madvise(MADV_HUGEPAGE), and writes every
// byte to fault the regions in. It then inspects each region's pages
// through /proc/self/pagemap and /proc/kpageflags and reports how
// much of it is backed by transparent huge pages, followed by a
// summary line of the form
//
//	requested_bytes,allocated_bytes,num_2m_pages,bytes_2m_pages,num_4k_pages,bytes_4k_pages
//
// Finally it times a stride access pattern, which reads the same
// offset of every region before moving to the next offset, against a
// sequential one, and dumps the process's memory map.
//
// The -l shorthand takes a value, as in "-l 1" or "-l false", and is
// also spelled --huage-page.
//
// Page flags can only be read as root. Otherwise the per-region
// report says so, and the benchmarks still run.
//
// Page tables, summaries and the memory map go to stderr. Progress
// and timings go to stdout. The exit status is the low byte of the
// sum of all bytes read, which keeps the reads from being optimized
// away; it does not indicate success. Bad flags exit with status 2.
// A failure to map a region, or to apply the huge page hint when
// --strict-hint is set, is logged and exits with status 1.
package main

import (
	"fmt"
	"io"
	"os"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/aclements/thptest/internal/bench"
	"github.com/aclements/thptest/internal/pageinfo"
	"github.com/aclements/thptest/internal/pagemap"
	"github.com/aclements/thptest/internal/procmaps"
	"github.com/aclements/thptest/internal/region"
)

type config struct {
	regionSize   int
	regionCount  int
	iterations   int
	hugePage     bool
	strictHint   bool
	pageTable    bool
	warmupPasses int
	verbose      bool
}

func parseFlags(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("thptest", flag.ContinueOnError)
	fs.IntVarP(&cfg.regionSize, "memory-region-size", "s", 4743168, "size in bytes of each memory region")
	fs.IntVarP(&cfg.regionCount, "memory-region-counts", "c", 174, "number of memory regions")
	fs.IntVarP(&cfg.iterations, "test-iterations", "i", 4, "iterations of each access benchmark")
	fs.BoolVar(&cfg.hugePage, "huge-page", false, "madvise(MADV_HUGEPAGE) each region")
	// The old spelling takes a value: -l 1, --huage-page=true.
	fs.BoolVarP(&cfg.hugePage, "huage-page", "l", false, "old spelling of --huge-page")
	fs.Lookup("huage-page").NoOptDefVal = ""
	fs.MarkHidden("huage-page")
	fs.BoolVar(&cfg.strictHint, "strict-hint", true, "treat a failed huge page hint as fatal instead of a warning")
	fs.BoolVar(&cfg.pageTable, "page-table", true, "print every page of every region")
	fs.IntVar(&cfg.warmupPasses, "warmup-passes", 2, "stride passes before timing")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log progress")
	// Parse reports its own errors.
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	var err error
	switch {
	case fs.NArg() > 0:
		err = errors.Errorf("unexpected arguments: %s", shellquote.Join(fs.Args()...))
	case cfg.regionSize <= 0:
		err = errors.New("--memory-region-size must be positive")
	case cfg.regionCount <= 0:
		err = errors.New("--memory-region-counts must be positive")
	case cfg.iterations < 0:
		err = errors.New("--test-iterations must not be negative")
	case cfg.warmupPasses < 0:
		err = errors.New("--warmup-passes must not be negative")
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return cfg, err
}

func main() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	cfg, err := parseFlags(os.Args[1:])
	if err == flag.ErrHelp {
		os.Exit(0)
	} else if err != nil {
		os.Exit(2)
	}
	if cfg.verbose {
		log.SetLevel(log.DebugLevel)
	}
	log.Debugf("running %s", shellquote.Join(os.Args...))

	sum, err := run(cfg, os.Stdout, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(int(sum & 0xff))
}

// run allocates, classifies and benchmarks the regions described by
// cfg, and returns the sum of every byte the benchmarks read.
func run(cfg config, stdout, stderr io.Writer) (uint64, error) {
	regions, err := region.Alloc(cfg.regionCount, cfg.regionSize)
	if err != nil {
		return 0, err
	}
	defer regions.Release()
	log.Debugf("mapped %d regions of %d bytes", len(regions), cfg.regionSize)

	if cfg.hugePage {
		err := regions.AdviseHuge(cfg.strictHint, func(i int, err error) {
			log.WithField("region", i).Warnf("%v; continuing without huge page hint", err)
		})
		if err != nil {
			return 0, err
		}
	}

	// Fault in every region before inspecting any of them.
	var s summary
	s.requestedBytes = regions.Touch()
	log.Debugf("touched %d bytes", s.requestedBytes)

	pid := os.Getpid()
	for i, r := range regions {
		recs, count, err := pageinfo.ClassifyPID(pid, r.Addr(), r.End(), pagemap.KPFThp)
		if err != nil {
			if recs == nil {
				return 0, err
			}
			log.WithField("region", i).Warnf("partial page information: %v", err)
		}
		s.add(count)
		if err := reportRegion(stderr, i, r.Addr(), count); err != nil {
			return 0, err
		}
		if cfg.pageTable {
			if err := pageinfo.Fprint(stderr, recs, pageinfo.PrintOptions{Prefix: "\t"}); err != nil {
				return 0, err
			}
		}
	}
	if err := s.fprint(stderr); err != nil {
		return 0, err
	}

	sum := benchmark(cfg, regions.Bytes(), stdout)

	fmt.Fprintf(stderr, "================================= VMAs =======================================\n")
	if err := procmaps.Copy(stderr, pid); err != nil {
		log.Warnf("dumping memory map: %v", err)
	}
	fmt.Fprintf(stderr, "================================= VMAs =======================================\n")

	return sum, nil
}

func benchmark(cfg config, mem [][]byte, w io.Writer) uint64 {
	fmt.Fprint(w, "Warmup ... ")
	sum := bench.Warmup(mem, cfg.regionSize, cfg.warmupPasses)
	fmt.Fprintln(w, "Done. ")

	var results []*bench.Benchmark
	for _, b := range []struct {
		desc, name string
		pattern    bench.Pattern
	}{
		{"stride", "Stride", bench.Stride},
		{"sequential", "Sequential", bench.Sequential},
	} {
		fmt.Fprintf(w, "Benchmarking %s access ... ", b.desc)
		elapsed, s, res := bench.Run(b.name, b.pattern, mem, cfg.regionSize, cfg.iterations)
		sum += s
		fmt.Fprintln(w, "Done. ")
		fmt.Fprintf(w, "Benchmark result in seconds: %s\n", bench.FormatSeconds(elapsed))

		res.Config["region-size"] = &bench.Config{RawValue: fmt.Sprint(cfg.regionSize), InBlock: true}
		res.Config["regions"] = &bench.Config{RawValue: fmt.Sprint(cfg.regionCount), InBlock: true}
		res.Config["huge-page"] = &bench.Config{RawValue: fmt.Sprint(cfg.hugePage), InBlock: true}
		results = append(results, res)
	}

	fmt.Fprintln(w)
	if err := bench.Fprint(w, results); err != nil {
		log.Warnf("writing benchmark results: %v", err)
	}
	return sum
}
