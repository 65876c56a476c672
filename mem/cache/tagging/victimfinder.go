package tagging

// A VictimFinder picks the block that a missing line is filled into. The
// block may still hold a valid line, which the caller evicts.
type VictimFinder interface {
	FindVictim(tags TagArray, address uint64) *Block
}

// An AccessObserver is told about every touch of a block so that it can keep
// the replacement metadata of the block up to date.
type AccessObserver interface {
	OnAccess(block *Block, pc uint64)
	OnFill(block *Block, pc uint64)
	OnInvalidate(block *Block)
}

// LRUVictimFinder replaces the least recently used block. It keeps no state
// of its own and relies on the LRU queue of the tag array.
type LRUVictimFinder struct{}

// NewLRUVictimFinder creates an LRUVictimFinder.
func NewLRUVictimFinder() *LRUVictimFinder {
	return &LRUVictimFinder{}
}

// FindVictim returns a free block of the set if there is one, and the least
// recently used block otherwise.
func (e *LRUVictimFinder) FindVictim(tags TagArray, address uint64) *Block {
	set, setID := tags.GetSet(address)

	if block, ok := tags.FindFreeBlock(setID); ok {
		return block
	}

	return set.Blocks[set.LRUQueue[0]]
}
