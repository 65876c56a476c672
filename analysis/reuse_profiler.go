// Package analysis measures properties of access streams that the replacement
// policies try to predict.
package analysis

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sarchlab/rdpcache/mem/cache"
	"github.com/sarchlab/rdpcache/sim/hooking"
)

// A Bucket counts the reuses whose distance falls in [Low, High).
type Bucket struct {
	Low   uint64
	High  uint64
	Count uint64
}

// ReuseProfiler measures the exact reuse distance of cache lines: the number
// of accesses between two consecutive touches of the same line.
//
// Only the trackLimit most recently touched lines are remembered. A reuse of
// a line that was forgotten is counted as censored. Telling first touches
// from forgotten lines relies on a bloom filter, so the cold count may be
// slightly low once far more than trackLimit lines are touched.
type ReuseProfiler struct {
	lineMask    uint64
	bucketWidth uint64

	clock     uint64
	lastTouch *lru.Cache[uint64, uint64]
	seen      *bloom.BloomFilter
	buckets   map[uint64]uint64

	total    uint64
	cold     uint64
	censored uint64
}

// NewReuseProfiler creates a ReuseProfiler. The line size must be a power of
// 2.
func NewReuseProfiler(
	lineSize uint64,
	trackLimit int,
	bucketWidth uint64,
) *ReuseProfiler {
	if lineSize == 0 || lineSize&(lineSize-1) != 0 {
		panic(fmt.Sprintf("line size must be a power of 2, got %d", lineSize))
	}

	if bucketWidth == 0 {
		panic("bucket width must be positive")
	}

	lastTouch, err := lru.New[uint64, uint64](trackLimit)
	if err != nil {
		panic(err)
	}

	return &ReuseProfiler{
		lineMask:    ^(lineSize - 1),
		bucketWidth: bucketWidth,
		lastTouch:   lastTouch,
		seen:        bloom.NewWithEstimates(uint(trackLimit), 0.001),
		buckets:     make(map[uint64]uint64),
	}
}

// Func observes the address of every cache access.
func (p *ReuseProfiler) Func(ctx hooking.HookCtx) {
	detail, ok := ctx.Detail.(cache.AccessDetail)
	if !ok {
		return
	}

	p.Observe(detail.Req.Address)
}

// Observe records one access.
func (p *ReuseProfiler) Observe(address uint64) {
	line := address & p.lineMask

	p.total++

	if last, ok := p.lastTouch.Get(line); ok {
		distance := p.clock - last - 1
		p.buckets[distance/p.bucketWidth]++
	} else if p.firstTouch(line) {
		p.cold++
	} else {
		p.censored++
	}

	p.lastTouch.Add(line, p.clock)
	p.clock++
}

func (p *ReuseProfiler) firstTouch(line uint64) bool {
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], line)

	return !p.seen.TestAndAdd(buf[:])
}

// Histogram returns the non-empty buckets in increasing distance.
func (p *ReuseProfiler) Histogram() []Bucket {
	indices := make([]uint64, 0, len(p.buckets))
	for i := range p.buckets {
		indices = append(indices, i)
	}

	sort.Slice(indices, func(a, b int) bool {
		return indices[a] < indices[b]
	})

	histogram := make([]Bucket, 0, len(indices))
	for _, i := range indices {
		histogram = append(histogram, Bucket{
			Low:   i * p.bucketWidth,
			High:  (i + 1) * p.bucketWidth,
			Count: p.buckets[i],
		})
	}

	return histogram
}

// Total returns the number of accesses observed.
func (p *ReuseProfiler) Total() uint64 {
	return p.total
}

// Cold returns the number of first touches.
func (p *ReuseProfiler) Cold() uint64 {
	return p.cold
}

// Censored returns the number of reuses whose distance was not measured
// because the line had been forgotten.
func (p *ReuseProfiler) Censored() uint64 {
	return p.censored
}
