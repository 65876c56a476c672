package trace

import (
	"fmt"
	"math/rand"

	"github.com/sarchlab/rdpcache/mem/cache"
)

// Patterns that Generate knows.
const (
	PatternLoop   = "loop"
	PatternStream = "stream"
	PatternMixed  = "mixed"
)

const (
	lineSize     = 64
	loopLines    = 1024
	loopBase     = 0x1000_0000
	streamBase   = 0x8000_0000
	loopPC       = 0x400
	streamPC     = 0x800
	writeEvery   = 5
	mixedLoopPct = 70
)

// Generate creates a synthetic trace of n requests. The same seed always
// gives the same trace.
//
//   - loop walks the same lines over and over from one instruction.
//   - stream touches every line once.
//   - mixed interleaves a loop and a stream from two instructions at random.
func Generate(pattern string, n int, seed int64) ([]cache.Request, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative trace length %d", n)
	}

	rng := rand.New(rand.NewSource(seed))

	var loopPos, streamPos uint64

	nextLoop := func() cache.Request {
		req := cache.Request{
			PC:      loopPC,
			Address: loopBase + loopPos%loopLines*lineSize,
			IsWrite: loopPos%writeEvery == 0,
		}
		loopPos++

		return req
	}

	nextStream := func() cache.Request {
		req := cache.Request{
			PC:      streamPC,
			Address: streamBase + streamPos*lineSize,
		}
		streamPos++

		return req
	}

	var next func() cache.Request

	switch pattern {
	case PatternLoop:
		next = nextLoop
	case PatternStream:
		next = nextStream
	case PatternMixed:
		next = func() cache.Request {
			if rng.Intn(100) < mixedLoopPct {
				return nextLoop()
			}

			return nextStream()
		}
	default:
		return nil, fmt.Errorf("unknown pattern %q", pattern)
	}

	reqs := make([]cache.Request, 0, n)
	for i := 0; i < n; i++ {
		reqs = append(reqs, next())
	}

	return reqs, nil
}
