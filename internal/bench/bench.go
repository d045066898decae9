// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bench times stride and sequential access patterns over a
// set of equally sized memory regions.
//
// Every loop returns the sum of the bytes it read. Callers must use
// the sum so the compiler cannot drop the reads.
package bench

import "time"

// Stride reads byte j of every region before byte j+1 of any region,
// iters times. Consecutive reads land in different regions, so each
// one is likely a TLB miss unless the regions are backed by huge
// pages.
func Stride(regions [][]byte, size, iters int) uint64 {
	var sum uint64
	for i := 0; i < iters; i++ {
		for j := 0; j < size; j++ {
			for _, r := range regions {
				sum += uint64(r[j])
			}
		}
	}
	return sum
}

// Sequential reads each region from start to end before moving on to
// the next, iters times.
func Sequential(regions [][]byte, size, iters int) uint64 {
	var sum uint64
	for i := 0; i < iters; i++ {
		for _, r := range regions {
			for _, b := range r[:size] {
				sum += uint64(b)
			}
		}
	}
	return sum
}

// Warmup runs passes stride passes to populate caches and TLBs.
func Warmup(regions [][]byte, size, passes int) uint64 {
	return Stride(regions, size, passes)
}

// Pattern is an access pattern function such as Stride.
type Pattern func(regions [][]byte, size, iters int) uint64

// Run times iters iterations of pattern over regions using the
// monotonic clock. It returns the elapsed time, the byte sum, and a
// Benchmark recording ns/op and MB/s per iteration.
func Run(name string, pattern Pattern, regions [][]byte, size, iters int) (time.Duration, uint64, *Benchmark) {
	start := time.Now()
	sum := pattern(regions, size, iters)
	elapsed := time.Since(start)

	b := &Benchmark{
		Name:       name,
		Iterations: iters,
		Config:     map[string]*Config{},
		Result:     map[string]float64{},
	}
	if iters > 0 {
		nsPerOp := float64(elapsed.Nanoseconds()) / float64(iters)
		b.Result["ns/op"] = nsPerOp
		if nsPerOp > 0 {
			bytesPerOp := float64(size) * float64(len(regions))
			b.Result["MB/s"] = bytesPerOp / nsPerOp * 1e9 / 1e6
		}
	}
	return elapsed, sum, b
}
