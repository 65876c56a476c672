package cache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rdpcache/mem/cache/ibrdp"
	"github.com/sarchlab/rdpcache/sim/hooking"
)

type recordingHook struct {
	ctxs []hooking.HookCtx
}

func (h *recordingHook) Func(ctx hooking.HookCtx) {
	h.ctxs = append(h.ctxs, ctx)
}

func (h *recordingHook) at(pos *hooking.HookPos) []hooking.HookCtx {
	var out []hooking.HookCtx

	for _, ctx := range h.ctxs {
		if ctx.Pos == pos {
			out = append(out, ctx)
		}
	}

	return out
}

func read(pc, addr uint64) Request {
	return Request{PC: pc, Address: addr}
}

func write(pc, addr uint64) Request {
	return Request{PC: pc, Address: addr, IsWrite: true}
}

var _ = Describe("Builder", func() {
	It("should build a cache with the requested geometry", func() {
		c := MakeBuilder().
			WithByteSize(32 * KB).
			WithWayAssociativity(8).
			Build("L1")

		Expect(c.Name()).To(Equal("L1"))
		Expect(c.Tags().NumSets()).To(Equal(64))
		Expect(c.Tags().NumWays()).To(Equal(8))
		Expect(c.Tags().BlockSize()).To(Equal(64))
	})

	It("should panic if the sets are not full", func() {
		Expect(func() {
			MakeBuilder().WithByteSize(1000).Build("bad")
		}).To(Panic())
	})

	It("should panic on an unknown replace strategy", func() {
		Expect(func() {
			MakeBuilder().WithReplaceStrategy("fifo").Build("bad")
		}).To(Panic())
	})

	It("should use the ibrdp policy", func() {
		c := MakeBuilder().WithReplaceStrategy("ibrdp").Build("L2")

		_, ok := c.ReplacementPolicy().(*ibrdp.Policy)
		Expect(ok).To(BeTrue())
	})
})

var _ = Describe("Comp", func() {
	var (
		c    *Comp
		hook *recordingHook
	)

	// One set of four 64-byte ways.
	BeforeEach(func() {
		c = MakeBuilder().
			WithByteSize(256).
			WithWayAssociativity(4).
			WithColdMissTracking(1024).
			Build("Cache")
		hook = &recordingHook{}
		c.AcceptHook(hook)
	})

	It("should miss then hit", func() {
		r1 := c.Access(read(0x400, 0x1000))
		r2 := c.Access(read(0x404, 0x1010))

		Expect(r1.Hit).To(BeFalse())
		Expect(r2.Hit).To(BeTrue())
		Expect(r2.WayID).To(Equal(r1.WayID))
		Expect(c.Stats()).To(Equal(Stats{
			Accesses:   2,
			Hits:       1,
			Misses:     1,
			ColdMisses: 1,
		}))
		Expect(hook.at(HookPosAccess)).To(HaveLen(2))
	})

	It("should evict the least recently used line", func() {
		for i := uint64(0); i < 4; i++ {
			c.Access(read(0x400, i*64))
		}
		c.Access(read(0x400, 0))

		r := c.Access(read(0x400, 4*64))

		Expect(r.Evicted).To(BeTrue())
		Expect(r.EvictedAddress).To(Equal(uint64(64)))
		Expect(r.WriteBack).To(BeFalse())

		evicts := hook.at(HookPosEvict)
		Expect(evicts).To(HaveLen(1))
		Expect(evicts[0].Detail).To(Equal(EvictDetail{
			Address: 64,
			SetID:   0,
			WayID:   1,
			PC:      0x400,
		}))
	})

	It("should write back dirty lines", func() {
		c.Access(write(0x400, 0))
		for i := uint64(1); i < 5; i++ {
			c.Access(read(0x400, i*64))
		}

		Expect(c.Stats().Evictions).To(Equal(uint64(1)))
		Expect(c.Stats().WriteBacks).To(Equal(uint64(1)))
	})

	It("should mark lines dirty on write hits", func() {
		c.Access(read(0x400, 0))
		c.Access(write(0x400, 0))

		block, _ := c.Tags().Lookup(0)
		Expect(block.IsDirty).To(BeTrue())
	})

	It("should tell cold misses from capacity misses", func() {
		for i := uint64(0); i < 5; i++ {
			c.Access(read(0x400, i*64))
		}
		c.Access(read(0x400, 0))

		Expect(c.Stats().Misses).To(Equal(uint64(6)))
		Expect(c.Stats().ColdMisses).To(Equal(uint64(5)))
	})

	It("should invalidate lines", func() {
		c.Access(read(0x400, 0x80))

		Expect(c.Invalidate(0x80)).To(BeTrue())
		Expect(c.Invalidate(0x80)).To(BeFalse())
		Expect(c.Access(read(0x400, 0x80)).Hit).To(BeFalse())
	})

	It("should report the hit rate", func() {
		Expect(Stats{}.HitRate()).To(Equal(0.0))
		Expect(Stats{Accesses: 4, Hits: 1}.HitRate()).To(Equal(0.25))
	})
})

var _ = Describe("IBRDP cache", func() {
	// A loop over one more line than the set holds defeats LRU completely.
	loop := func(c *Comp) Stats {
		for i := 0; i < 1000; i++ {
			c.Access(read(0x400, uint64(i%5)*64))
		}

		return c.Stats()
	}

	It("should keep part of a loop that does not fit", func() {
		config := ibrdp.DefaultConfig()
		config.QuantumTimestamp = 1
		config.QuantumPrediction = 1
		config.SamplerPeriod = 1

		lru := MakeBuilder().
			WithByteSize(256).
			WithWayAssociativity(4).
			Build("LRU")
		rdp := MakeBuilder().
			WithByteSize(256).
			WithWayAssociativity(4).
			WithReplaceStrategy("ibrdp").
			WithIBRDPConfig(config).
			Build("IBRDP")

		Expect(loop(lru).Hits).To(BeZero())
		Expect(loop(rdp).HitRate()).To(BeNumerically(">", 0.5))
	})

	It("should be deterministic", func() {
		build := func() *Comp {
			return MakeBuilder().
				WithByteSize(1 * KB).
				WithWayAssociativity(4).
				WithReplaceStrategy("ibrdp").
				Build("IBRDP")
		}

		a, b := build(), build()
		for i := uint64(0); i < 5000; i++ {
			req := read(0x400+(i%7)*4, (i*i%97)*64)
			Expect(a.Access(req)).To(Equal(b.Access(req)))
		}
	})
})
