package cache

import (
	"fmt"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/sarchlab/rdpcache/mem/cache/ibrdp"
	"github.com/sarchlab/rdpcache/mem/cache/tagging"
)

// Builder can build caches.
type Builder struct {
	log2CacheLineSize int
	wayAssociativity  int
	cacheByteSize     uint64
	replaceStrategy   string
	ibrdpConfig       ibrdp.Config
	coldMissLines     uint
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		log2CacheLineSize: 6,
		wayAssociativity:  4,
		cacheByteSize:     16 * KB,
		replaceStrategy:   "lru",
		ibrdpConfig:       ibrdp.DefaultConfig(),
	}
}

// WithLog2CacheLineSize sets the log2 of the cache line size of the builder.
func (b Builder) WithLog2CacheLineSize(log2CacheLineSize int) Builder {
	b.log2CacheLineSize = log2CacheLineSize
	return b
}

// WithWayAssociativity sets the way associativity of the builder.
func (b Builder) WithWayAssociativity(wayAssociativity int) Builder {
	b.wayAssociativity = wayAssociativity
	return b
}

// WithByteSize sets the capacity of the cache.
func (b Builder) WithByteSize(byteSize uint64) Builder {
	b.cacheByteSize = byteSize
	return b
}

// WithReplaceStrategy selects the replacement policy, either "lru" or
// "ibrdp".
func (b Builder) WithReplaceStrategy(replaceStrategy string) Builder {
	b.replaceStrategy = replaceStrategy
	return b
}

// WithIBRDPConfig sets the tuning constants used by the "ibrdp" strategy.
func (b Builder) WithIBRDPConfig(config ibrdp.Config) Builder {
	b.ibrdpConfig = config
	return b
}

// WithColdMissTracking makes the cache tell first-touch misses apart, sizing
// the tracker for about expectedLines distinct lines. Counts are approximate
// once more lines than that are touched.
func (b Builder) WithColdMissTracking(expectedLines uint) Builder {
	b.coldMissLines = expectedLines
	return b
}

// Build builds a cache.
func (b Builder) Build(name string) *Comp {
	blockSize := 1 << b.log2CacheLineSize
	numWays := b.wayAssociativity
	b.mustBeFullSets(b.cacheByteSize, blockSize, numWays)
	setSize := uint64(blockSize * numWays)
	numSets := int(b.cacheByteSize / setSize)

	comp := &Comp{
		name:          name,
		log2BlockSize: b.log2CacheLineSize,
		tags:          tagging.NewTagArray(numSets, numWays, blockSize),
		observer:      noopObserver{},
	}

	comp.victimFinder = b.createVictimFinder()
	if observer, ok := comp.victimFinder.(tagging.AccessObserver); ok {
		comp.observer = observer
	}

	if b.coldMissLines > 0 {
		comp.touched = bloom.NewWithEstimates(b.coldMissLines, 0.001)
	}

	return comp
}

func (b Builder) createVictimFinder() tagging.VictimFinder {
	var victimFinder tagging.VictimFinder

	switch b.replaceStrategy {
	case "lru":
		victimFinder = tagging.NewLRUVictimFinder()
	case "ibrdp":
		victimFinder = ibrdp.NewPolicy(b.ibrdpConfig)
	default:
		panic("unknown replace strategy: " + b.replaceStrategy)
	}

	return victimFinder
}

func (b Builder) mustBeFullSets(cacheByteSize uint64, blockSize, numWays int) {
	if numWays <= 0 {
		panic(fmt.Sprintf("way associativity must be positive, got %d",
			numWays))
	}

	setSize := uint64(blockSize * numWays)
	if cacheByteSize == 0 || cacheByteSize%setSize != 0 {
		panic("cache must have a integer number of sets")
	}
}
