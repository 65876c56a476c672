package ibrdp

import (
	"math/rand"
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func expectPermutation(positions []int) {
	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)

	for i, p := range sorted {
		ExpectWithOffset(1, p).To(Equal(i))
	}
}

var _ = Describe("Predictor", func() {
	var p *Predictor

	// Two sets of four ways. Even pcs map to set 0, odd pcs to set 1.
	BeforeEach(func() {
		p = NewPredictor(2, 4, 3, 1)
	})

	It("should panic if the number of sets is not a power of 2", func() {
		Expect(func() { NewPredictor(3, 4, 3, 1) }).To(Panic())
	})

	It("should start with ordered stack positions", func() {
		Expect(p.StackPositions(0)).To(Equal([]int{0, 1, 2, 3}))
		Expect(p.StackPositions(1)).To(Equal([]int{0, 1, 2, 3}))
	})

	It("should predict nothing for an unknown pc", func() {
		Expect(p.Lookup(10)).To(Equal(uint32(0)))

		_, found := p.Entry(10)
		Expect(found).To(BeFalse())
	})

	It("should not allocate on lookup", func() {
		p.Lookup(10)

		Expect(p.StackPositions(0)).To(Equal([]int{0, 1, 2, 3}))
	})

	It("should allocate with zero confidence", func() {
		p.Update(10, 5)

		entry, found := p.Entry(10)
		Expect(found).To(BeTrue())
		Expect(entry.Prediction).To(Equal(uint32(5)))
		Expect(entry.Confidence).To(Equal(uint32(0)))
		Expect(entry.Tag).To(Equal(uint32(5)))
		Expect(entry.StackPosition).To(Equal(0))
	})

	It("should allocate the LRU way", func() {
		p.Update(10, 5)

		Expect(p.StackPositions(0)).To(Equal([]int{1, 2, 3, 0}))
	})

	It("should panic if a set has no LRU entry", func() {
		for w := range p.table[0] {
			p.table[0][w].StackPosition = 0
		}

		Expect(func() { p.Update(0, 1) }).
			To(PanicWith("predictor set 0 has no LRU entry"))
	})

	It("should only train the other set when one set is corrupted", func() {
		for w := range p.table[0] {
			p.table[0][w].StackPosition = 0
		}

		p.Update(1, 1)

		Expect(p.StackPositions(1)).To(Equal([]int{1, 2, 3, 0}))
	})

	It("should only predict with enough confidence", func() {
		p.Update(10, 5)
		Expect(p.Lookup(10)).To(Equal(uint32(0)))

		p.Update(10, 5)
		Expect(p.Lookup(10)).To(Equal(uint32(5)))
	})

	It("should saturate confidence", func() {
		for i := 0; i < 10; i++ {
			p.Update(10, 5)
		}

		entry, _ := p.Entry(10)
		Expect(entry.Confidence).To(Equal(uint32(3)))
	})

	It("should lose confidence on disagreement", func() {
		p.Update(10, 5)
		p.Update(10, 5)
		p.Update(10, 5)

		p.Update(10, 9)

		entry, _ := p.Entry(10)
		Expect(entry.Prediction).To(Equal(uint32(5)))
		Expect(entry.Confidence).To(Equal(uint32(1)))
	})

	It("should not go below zero confidence", func() {
		p.Update(10, 5)
		p.Update(10, 9)
		p.Update(10, 2)

		entry, _ := p.Entry(10)
		Expect(entry.Confidence).To(Equal(uint32(0)))
	})

	It("should replace the prediction at zero confidence", func() {
		p.Update(10, 5)

		p.Update(10, 9)

		entry, _ := p.Entry(10)
		Expect(entry.Prediction).To(Equal(uint32(9)))
		Expect(entry.Confidence).To(Equal(uint32(0)))
	})

	It("should evict the least recently used entry", func() {
		p.Update(0, 1)
		p.Update(2, 1)
		p.Update(4, 1)
		p.Update(6, 1)

		p.Update(8, 1)

		_, found := p.Entry(0)
		Expect(found).To(BeFalse())
		_, found = p.Entry(2)
		Expect(found).To(BeTrue())
		_, found = p.Entry(8)
		Expect(found).To(BeTrue())
	})

	It("should refresh recency on lookup", func() {
		p.Update(0, 1)
		p.Update(2, 1)
		p.Update(4, 1)
		p.Update(6, 1)

		p.Lookup(0)
		p.Update(8, 1)

		_, found := p.Entry(0)
		Expect(found).To(BeTrue())
		_, found = p.Entry(2)
		Expect(found).To(BeFalse())
	})

	It("should keep sets independent", func() {
		p.Update(0, 1)
		p.Update(1, 2)

		Expect(p.StackPositions(0)).To(Equal([]int{1, 2, 3, 0}))
		Expect(p.StackPositions(1)).To(Equal([]int{1, 2, 3, 0}))
	})

	It("should keep stack positions a permutation", func() {
		p = NewPredictor(4, 8, 3, 1)
		r := rand.New(rand.NewSource(1))

		for i := 0; i < 5000; i++ {
			pc := uint32(r.Intn(96))
			if r.Intn(2) == 0 {
				p.Lookup(pc)
			} else {
				p.Update(pc, uint32(r.Intn(4)))
			}
		}

		for set := 0; set < p.NumSets(); set++ {
			expectPermutation(p.StackPositions(set))
		}
	})
})
