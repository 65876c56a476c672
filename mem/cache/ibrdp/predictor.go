package ibrdp

import (
	"fmt"
	"math/bits"
)

// PredictorEntry is a row of the predictor table.
type PredictorEntry struct {
	Valid         bool
	Tag           uint32
	Prediction    uint32
	Confidence    uint32
	StackPosition int
}

// A Predictor maps program counters to predicted reuse distances. It is a
// set-associative table with LRU replacement. Each entry carries a saturating
// confidence counter, and a prediction is only handed out once the counter
// reaches the safe level.
type Predictor struct {
	numSets  int
	assoc    int
	setMask  uint32
	setShift uint

	maxConfidence  uint32
	safeConfidence uint32

	table [][]PredictorEntry
}

// NewPredictor creates a predictor with numSets sets of assoc entries each.
// numSets must be a power of 2.
func NewPredictor(
	numSets, assoc int,
	maxConfidence, safeConfidence uint32,
) *Predictor {
	if numSets <= 0 || numSets&(numSets-1) != 0 {
		panic(fmt.Sprintf("predictor sets must be a power of 2, got %d",
			numSets))
	}

	if assoc <= 0 {
		panic(fmt.Sprintf("predictor ways must be positive, got %d", assoc))
	}

	p := &Predictor{
		numSets:        numSets,
		assoc:          assoc,
		setMask:        uint32(numSets - 1),
		setShift:       uint(bits.TrailingZeros(uint(numSets))),
		maxConfidence:  maxConfidence,
		safeConfidence: safeConfidence,
		table:          make([][]PredictorEntry, numSets),
	}

	for set := range p.table {
		p.table[set] = make([]PredictorEntry, assoc)
		for way := range p.table[set] {
			p.table[set][way].StackPosition = way
		}
	}

	return p
}

// Lookup returns the prediction for pc, or 0 if there is no entry for pc or
// the entry is not confident enough. A hit refreshes the recency of the entry.
func (p *Predictor) Lookup(pc uint32) uint32 {
	entry := p.findEntry(pc)
	if entry == nil || entry.Confidence < p.safeConfidence {
		return 0
	}

	return entry.Prediction
}

// Update trains the entry of pc with an observed reuse distance code,
// allocating the entry if pc has none.
func (p *Predictor) Update(pc, observation uint32) {
	entry := p.findEntry(pc)
	if entry == nil {
		entry = p.allocateEntry(pc)
		entry.Prediction = observation
		entry.Confidence = 0

		return
	}

	switch {
	case entry.Prediction == observation:
		if entry.Confidence < p.maxConfidence {
			entry.Confidence++
		}
	case entry.Confidence == 0:
		entry.Prediction = observation
	default:
		entry.Confidence--
	}
}

// Entry returns a copy of the entry that holds pc.
func (p *Predictor) Entry(pc uint32) (PredictorEntry, bool) {
	set := pc & p.setMask
	tag := pc >> p.setShift

	for _, entry := range p.table[set] {
		if entry.Valid && entry.Tag == tag {
			return entry, true
		}
	}

	return PredictorEntry{}, false
}

// StackPositions returns the recency rank of every way of a set.
func (p *Predictor) StackPositions(set int) []int {
	positions := make([]int, p.assoc)
	for way, entry := range p.table[set] {
		positions[way] = entry.StackPosition
	}

	return positions
}

// NumSets returns the number of predictor sets.
func (p *Predictor) NumSets() int {
	return p.numSets
}

// findEntry returns the entry that holds pc and makes it the MRU entry of its
// set, or nil if pc has no entry.
func (p *Predictor) findEntry(pc uint32) *PredictorEntry {
	tag := pc >> p.setShift
	entries := p.table[pc&p.setMask]

	for w := range entries {
		if entries[w].Valid && entries[w].Tag == tag {
			p.touch(entries, w)
			return &entries[w]
		}
	}

	return nil
}

func (p *Predictor) touch(entries []PredictorEntry, way int) {
	pos := entries[way].StackPosition
	for w := range entries {
		if entries[w].StackPosition < pos {
			entries[w].StackPosition++
		}
	}

	entries[way].StackPosition = 0
}

func (p *Predictor) allocateEntry(pc uint32) *PredictorEntry {
	set := pc & p.setMask
	entries := p.table[set]

	victim := -1
	for w := range entries {
		if entries[w].StackPosition == p.assoc-1 {
			victim = w
		} else {
			entries[w].StackPosition++
		}
	}

	if victim < 0 {
		panic(fmt.Sprintf("predictor set %d has no LRU entry", set))
	}

	entries[victim] = PredictorEntry{
		Valid:         true,
		Tag:           pc >> p.setShift,
		StackPosition: 0,
	}

	return &entries[victim]
}
