package tagging

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LRUVictimFinder", func() {
	var (
		tags   TagArray
		finder *LRUVictimFinder
	)

	BeforeEach(func() {
		tags = NewTagArray(16, 4, 64)
		finder = NewLRUVictimFinder()
	})

	It("should prefer an empty block", func() {
		set, _ := tags.GetSet(0x40)
		set.Blocks[0].IsValid = true
		set.Blocks[1].IsValid = true

		victim := finder.FindVictim(tags, 0x40)

		Expect(victim.WayID).To(Equal(2))
	})

	It("should evict the least recently used block when the set is full", func() {
		set, _ := tags.GetSet(0x40)
		for _, b := range set.Blocks {
			b.IsValid = true
		}
		tags.Visit(set.Blocks[0])
		tags.Visit(set.Blocks[2])

		victim := finder.FindVictim(tags, 0x40)

		Expect(victim.WayID).To(Equal(1))
	})
})
