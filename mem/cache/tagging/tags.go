// Package tagging implements the tag array of a set-associative cache: which
// line lives in which way, and the per-line replacement metadata.
package tagging

import "fmt"

// TagArray stores the block metadata of a set-associative cache.
type TagArray interface {
	Lookup(reqAddr uint64) (*Block, bool)
	GetSet(reqAddr uint64) (set *Set, setID int)
	Set(setID int) *Set
	Block(setID, wayID int) *Block
	FindFreeBlock(setID int) (*Block, bool)
	IsEveryWayValid(setID int) bool
	Visit(block *Block)
	Invalidate(block *Block)
	NumSets() int
	NumWays() int
	BlockSize() int
	Reset()
}

// NewTagArray creates a tag array with every block invalid.
func NewTagArray(
	numSets int,
	numWays int,
	blockSize int,
) TagArray {
	mustBePowerOfTwo("block size", blockSize)

	t := &tagArrayImpl{
		numSets:   numSets,
		numWays:   numWays,
		blockSize: blockSize,
	}

	t.Reset()

	return t
}

// A Block of a cache is the information that is associated with a cache line
type Block struct {
	Tag          uint64
	WayID        int
	SetID        int
	CacheAddress uint64
	IsValid      bool
	IsDirty      bool

	// Timestamp is the quantized access count at the last touch.
	Timestamp uint32

	// PredictedReuse is the quantized reuse distance predicted at the last
	// touch.
	PredictedReuse uint32
}

// A Set is a list of blocks where a certain piece memory can be stored at.
type Set struct {
	Blocks   []*Block
	LRUQueue []int
}

type tagArrayImpl struct {
	numSets   int
	numWays   int
	blockSize int
	sets      []Set
}

func mustBePowerOfTwo(what string, n int) {
	if n <= 0 || n&(n-1) != 0 {
		panic(fmt.Sprintf("%s must be a power of 2, got %d", what, n))
	}
}

// TotalSize returns the maximum number of bytes can be stored in the cache
func (d *tagArrayImpl) TotalSize() uint64 {
	return uint64(d.numSets) * uint64(d.numWays) * uint64(d.blockSize)
}

func (d *tagArrayImpl) NumSets() int {
	return d.numSets
}

func (d *tagArrayImpl) NumWays() int {
	return d.numWays
}

func (d *tagArrayImpl) BlockSize() int {
	return d.blockSize
}

func (d *tagArrayImpl) lineAddr(reqAddr uint64) uint64 {
	return reqAddr &^ uint64(d.blockSize-1)
}

// GetSet returns the set that a certain address should store at
func (d *tagArrayImpl) GetSet(reqAddr uint64) (set *Set, setID int) {
	setID = int(reqAddr / uint64(d.blockSize) % uint64(d.numSets))
	set = &d.sets[setID]

	return
}

func (d *tagArrayImpl) Set(setID int) *Set {
	return &d.sets[setID]
}

func (d *tagArrayImpl) Block(setID, wayID int) *Block {
	return d.sets[setID].Blocks[wayID]
}

// Lookup finds the block that holds reqAddr. The second return value is false
// if the line is not in the cache.
func (d *tagArrayImpl) Lookup(reqAddr uint64) (*Block, bool) {
	set, _ := d.GetSet(reqAddr)
	tag := d.lineAddr(reqAddr)

	for _, block := range set.Blocks {
		if block.IsValid && block.Tag == tag {
			return block, true
		}
	}

	return nil, false
}

// FindFreeBlock returns the least recently used invalid block of a set.
func (d *tagArrayImpl) FindFreeBlock(setID int) (*Block, bool) {
	set := &d.sets[setID]

	for _, wayID := range set.LRUQueue {
		block := set.Blocks[wayID]
		if !block.IsValid {
			return block, true
		}
	}

	return nil, false
}

// IsEveryWayValid tells if a set is full.
func (d *tagArrayImpl) IsEveryWayValid(setID int) bool {
	for _, block := range d.sets[setID].Blocks {
		if !block.IsValid {
			return false
		}
	}

	return true
}

// Visit moves the block to the end of the LRUQueue
func (d *tagArrayImpl) Visit(block *Block) {
	set := &d.sets[block.SetID]
	newLRUQueue := make([]int, 0, len(set.LRUQueue))

	for _, b := range set.LRUQueue {
		if b != block.WayID {
			newLRUQueue = append(newLRUQueue, b)
		}
	}

	newLRUQueue = append(newLRUQueue, block.WayID)

	set.LRUQueue = newLRUQueue
}

// Invalidate drops the line held by the block. The block moves to the front
// of the LRUQueue so that it is the first one to be refilled.
func (d *tagArrayImpl) Invalidate(block *Block) {
	block.IsValid = false
	block.IsDirty = false

	set := &d.sets[block.SetID]
	newLRUQueue := make([]int, 0, len(set.LRUQueue))
	newLRUQueue = append(newLRUQueue, block.WayID)

	for _, b := range set.LRUQueue {
		if b != block.WayID {
			newLRUQueue = append(newLRUQueue, b)
		}
	}

	set.LRUQueue = newLRUQueue
}

// Reset will mark all the blocks in the directory invalid
func (d *tagArrayImpl) Reset() {
	d.sets = make([]Set, d.numSets)
	for i := 0; i < d.numSets; i++ {
		for j := 0; j < d.numWays; j++ {
			block := &Block{
				IsValid: false,
				SetID:   i,
				WayID:   j,
				CacheAddress: uint64(i)*uint64(d.numWays*d.blockSize) +
					uint64(j)*uint64(d.blockSize),
			}

			d.sets[i].Blocks = append(d.sets[i].Blocks, block)
			d.sets[i].LRUQueue = append(d.sets[i].LRUQueue, j)
		}
	}
}
