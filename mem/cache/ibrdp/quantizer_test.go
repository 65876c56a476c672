package ibrdp

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Quantizer", func() {
	var q Quantizer

	BeforeEach(func() {
		q = Quantizer{
			QuantumTimestamp:   16,
			MaxValueTimestamp:  15,
			QuantumPrediction:  8,
			MaxValuePrediction: 7,
			PCBits:             10,
			AddressBits:        12,
		}
	})

	It("should bucket timestamps", func() {
		Expect(q.QuantizeTimestamp(0)).To(Equal(uint32(0)))
		Expect(q.QuantizeTimestamp(15)).To(Equal(uint32(0)))
		Expect(q.QuantizeTimestamp(16)).To(Equal(uint32(1)))
		Expect(q.QuantizeTimestamp(100)).To(Equal(uint32(6)))
	})

	It("should saturate codes", func() {
		Expect(q.QuantizeTimestamp(1 << 40)).To(Equal(uint32(15)))
		Expect(q.QuantizePrediction(64)).To(Equal(uint32(7)))
	})

	It("should round trip within one quantum", func() {
		for v := uint64(0); v < 56; v++ {
			back := q.UnQuantizePrediction(q.QuantizePrediction(v))
			Expect(back).To(BeNumerically("<=", v))
			Expect(v - back).To(BeNumerically("<", 8))
		}
	})

	It("should not clamp when un-quantizing", func() {
		Expect(q.UnQuantizeTimestamp(31)).To(Equal(uint64(496)))
	})

	It("should reduce pcs and addresses to their widths", func() {
		for v := uint64(0); v < 1000; v++ {
			Expect(q.TransformPC(v * 4)).To(BeNumerically("<", 1<<10))
			Expect(q.TransformAddress(v * 64)).To(BeNumerically("<", 1<<12))
		}
	})

	It("should be deterministic", func() {
		Expect(q.TransformPC(0x400123)).To(Equal(q.TransformPC(0x400123)))
		Expect(q.TransformAddress(0x7fff0040)).
			To(Equal(q.TransformAddress(0x7fff0040)))
	})

	It("should spread nearby pcs", func() {
		seen := map[uint32]bool{}
		for v := uint64(0); v < 64; v++ {
			seen[q.TransformPC(0x400000+v*4)] = true
		}

		Expect(len(seen)).To(BeNumerically(">", 48))
	})
})
