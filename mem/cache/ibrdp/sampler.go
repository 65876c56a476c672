package ibrdp

import "fmt"

// A Trainer consumes reuse-distance observations.
type Trainer interface {
	Update(pc, observation uint32)
}

type samplerEntry struct {
	valid        bool
	address      uint32
	pc           uint32
	fifoPosition int
}

// A Sampler measures reuse distances of a sampled subset of the accesses.
// Every period accesses it starts tracking the current access in a FIFO. When
// a tracked address comes back, its FIFO position tells how many samples, and
// therefore roughly how many accesses, have passed. Samples that fall out of
// the FIFO are reported with the largest prediction code.
type Sampler struct {
	period          uint32
	size            int
	samplingCounter uint32
	quantizer       Quantizer
	trainer         Trainer
	entries         []samplerEntry
}

// NewSampler creates a sampler that can observe reuse distances up to
// maxReuseDistance accesses.
func NewSampler(
	period, maxReuseDistance uint32,
	quantizer Quantizer,
	trainer Trainer,
) *Sampler {
	if period == 0 {
		panic("sampler period must be positive")
	}

	size := int(maxReuseDistance / period)
	if size == 0 {
		panic(fmt.Sprintf(
			"max reuse distance %d is shorter than the sampling period %d",
			maxReuseDistance, period))
	}

	s := &Sampler{
		period:    period,
		size:      size,
		quantizer: quantizer,
		trainer:   trainer,
		entries:   make([]samplerEntry, size),
	}

	for i := range s.entries {
		s.entries[i].fifoPosition = i
	}

	return s
}

// Size returns the number of FIFO slots.
func (s *Sampler) Size() int {
	return s.size
}

// FIFOPositions returns the age rank of every slot.
func (s *Sampler) FIFOPositions() []int {
	positions := make([]int, s.size)
	for i, e := range s.entries {
		positions[i] = e.fifoPosition
	}

	return positions
}

// Update is called for every cache access, in access order.
func (s *Sampler) Update(address, pc uint32) {
	s.match(address)
	s.sample(address, pc)
}

func (s *Sampler) match(address uint32) {
	for i := range s.entries {
		e := &s.entries[i]
		if !e.valid || e.address != address {
			continue
		}

		e.valid = false
		distance := uint64(e.fifoPosition) * uint64(s.period)
		s.trainer.Update(e.pc, s.quantizer.QuantizePrediction(distance))

		return
	}
}

func (s *Sampler) sample(address, pc uint32) {
	if s.samplingCounter > 0 {
		s.samplingCounter--
		return
	}

	oldest := s.findOldest()
	if s.entries[oldest].valid {
		s.trainer.Update(s.entries[oldest].pc, s.quantizer.MaxValuePrediction)
	}

	for i := range s.entries {
		s.entries[i].fifoPosition++
	}

	s.entries[oldest] = samplerEntry{
		valid:        true,
		address:      address,
		pc:           pc,
		fifoPosition: 0,
	}

	s.samplingCounter = s.period - 1
}

func (s *Sampler) findOldest() int {
	for i := range s.entries {
		if s.entries[i].fifoPosition == s.size-1 {
			return i
		}
	}

	panic("sampler FIFO has no oldest entry")
}
