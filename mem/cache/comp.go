// Package cache provides a trace-driven model of a set-associative cache with
// pluggable replacement policies.
package cache

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/sarchlab/rdpcache/mem/cache/tagging"
	"github.com/sarchlab/rdpcache/sim/hooking"
)

// Size units.
const (
	KB uint64 = 1 << 10
	MB uint64 = 1 << 20
)

// Positions where the cache invokes hooks.
var (
	// HookPosAccess is invoked after every access. The detail is an
	// AccessDetail.
	HookPosAccess = &hooking.HookPos{Name: "Cache.Access"}

	// HookPosEvict is invoked when a valid line is replaced. The detail is
	// an EvictDetail.
	HookPosEvict = &hooking.HookPos{Name: "Cache.Evict"}
)

// A Request is one memory access presented to the cache.
type Request struct {
	PC      uint64
	Address uint64
	IsWrite bool
}

// A Result tells what the cache did with a request.
type Result struct {
	Hit   bool
	SetID int
	WayID int

	Evicted        bool
	EvictedAddress uint64
	WriteBack      bool
}

// AccessDetail is the hook detail of HookPosAccess.
type AccessDetail struct {
	Req    Request
	Result Result
}

// EvictDetail is the hook detail of HookPosEvict.
type EvictDetail struct {
	Address uint64
	SetID   int
	WayID   int
	Dirty   bool

	// PC is the instruction whose miss caused the eviction.
	PC uint64
}

// Stats counts what happened in a cache.
type Stats struct {
	Accesses   uint64
	Hits       uint64
	Misses     uint64
	ColdMisses uint64
	Evictions  uint64
	WriteBacks uint64
}

// HitRate returns the fraction of accesses that hit.
func (s Stats) HitRate() float64 {
	if s.Accesses == 0 {
		return 0
	}

	return float64(s.Hits) / float64(s.Accesses)
}

// Comp is a cache. It owns the tag array and drives the replacement policy on
// every access, fill and invalidation.
type Comp struct {
	hooking.HookableBase

	name          string
	log2BlockSize int
	tags          tagging.TagArray
	victimFinder  tagging.VictimFinder
	observer      tagging.AccessObserver
	touched       *bloom.BloomFilter
	stats         Stats
}

// Name returns the name of the cache.
func (c *Comp) Name() string {
	return c.name
}

// Tags returns the tag array of the cache.
func (c *Comp) Tags() tagging.TagArray {
	return c.tags
}

// ReplacementPolicy returns the victim finder of the cache.
func (c *Comp) ReplacementPolicy() tagging.VictimFinder {
	return c.victimFinder
}

// Stats returns the counters collected so far.
func (c *Comp) Stats() Stats {
	return c.stats
}

// Access looks up a request, and fills the line on a miss.
func (c *Comp) Access(req Request) Result {
	c.stats.Accesses++

	block, hit := c.tags.Lookup(req.Address)
	if hit {
		return c.handleHit(req, block)
	}

	return c.handleMiss(req)
}

func (c *Comp) handleHit(req Request, block *tagging.Block) Result {
	c.stats.Hits++

	if req.IsWrite {
		block.IsDirty = true
	}

	c.tags.Visit(block)
	c.observer.OnAccess(block, req.PC)

	result := Result{
		Hit:   true,
		SetID: block.SetID,
		WayID: block.WayID,
	}
	c.invokeAccessHook(req, result)

	return result
}

func (c *Comp) handleMiss(req Request) Result {
	c.stats.Misses++

	lineAddr := c.alignAddrToBlock(req.Address)
	if c.isFirstTouch(lineAddr) {
		c.stats.ColdMisses++
	}

	victim := c.victimFinder.FindVictim(c.tags, req.Address)
	result := Result{
		SetID: victim.SetID,
		WayID: victim.WayID,
	}

	if victim.IsValid {
		c.evict(req, victim, &result)
	}

	victim.Tag = lineAddr
	victim.IsValid = true
	victim.IsDirty = req.IsWrite

	c.tags.Visit(victim)
	c.observer.OnFill(victim, req.PC)
	c.invokeAccessHook(req, result)

	return result
}

func (c *Comp) evict(req Request, victim *tagging.Block, result *Result) {
	c.stats.Evictions++

	result.Evicted = true
	result.EvictedAddress = victim.Tag

	if victim.IsDirty {
		c.stats.WriteBacks++
		result.WriteBack = true
	}

	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosEvict,
		Item:   victim,
		Detail: EvictDetail{
			Address: victim.Tag,
			SetID:   victim.SetID,
			WayID:   victim.WayID,
			Dirty:   victim.IsDirty,
			PC:      req.PC,
		},
	})
}

// Invalidate drops the line that holds address. It returns false if the line
// is not in the cache.
func (c *Comp) Invalidate(address uint64) bool {
	block, hit := c.tags.Lookup(address)
	if !hit {
		return false
	}

	c.tags.Invalidate(block)
	c.observer.OnInvalidate(block)

	return true
}

func (c *Comp) invokeAccessHook(req Request, result Result) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosAccess,
		Item:   req,
		Detail: AccessDetail{Req: req, Result: result},
	})
}

func (c *Comp) isFirstTouch(lineAddr uint64) bool {
	if c.touched == nil {
		return false
	}

	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], lineAddr)

	return !c.touched.TestAndAdd(buf[:])
}

func (c *Comp) alignAddrToBlock(addr uint64) uint64 {
	return addr & ^((uint64(1) << c.log2BlockSize) - 1)
}

// noopObserver is the AccessObserver of policies that keep no per-block
// state beyond the LRU queue of the tag array.
type noopObserver struct{}

func (noopObserver) OnAccess(*tagging.Block, uint64) {}
func (noopObserver) OnFill(*tagging.Block, uint64)   {}
func (noopObserver) OnInvalidate(*tagging.Block)     {}
