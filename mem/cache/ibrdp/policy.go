package ibrdp

import (
	"github.com/sarchlab/rdpcache/mem/cache/tagging"
	"github.com/sarchlab/rdpcache/sim/hooking"
)

var (
	_ tagging.VictimFinder   = (*Policy)(nil)
	_ tagging.AccessObserver = (*Policy)(nil)
)

// A Policy is the IBRDP replacement policy of one cache. It stamps every
// touched block with the current time and the predicted reuse distance of
// the touching instruction, and evicts the block that will be used farthest
// in the future or was used farthest in the past.
//
// A Policy is not safe for concurrent use.
type Policy struct {
	hooking.HookableBase

	config    Config
	quantizer Quantizer
	predictor *Predictor
	sampler   *Sampler

	counterLow  uint32
	counterHigh uint32
}

// NewPolicy creates a policy. It panics if the configuration is invalid.
func NewPolicy(config Config) *Policy {
	if err := config.Validate(); err != nil {
		panic(err)
	}

	p := &Policy{
		config:      config,
		quantizer:   config.Quantizer(),
		counterHigh: 1,
	}

	p.predictor = NewPredictor(
		config.PredictorSets,
		config.PredictorWays,
		config.MaxConfidence,
		config.SafeConfidence,
	)
	p.sampler = NewSampler(
		config.SamplerPeriod,
		uint32(config.MaxReuseDistance()),
		p.quantizer,
		policyTrainer{p},
	)

	return p
}

// Config returns the configuration of the policy.
func (p *Policy) Config() Config {
	return p.config
}

// Predictor returns the predictor table of the policy.
func (p *Policy) Predictor() *Predictor {
	return p.predictor
}

// Sampler returns the reuse-distance sampler of the policy.
func (p *Policy) Sampler() *Sampler {
	return p.sampler
}

// Now returns the quantized current time.
func (p *Policy) Now() uint32 {
	return p.counterHigh
}

// OnAccess updates the metadata of a block that hit.
func (p *Policy) OnAccess(block *tagging.Block, pc uint64) {
	p.update(block, pc)
}

// OnFill updates the metadata of a block that was just filled.
func (p *Policy) OnFill(block *tagging.Block, pc uint64) {
	p.update(block, pc)
}

// OnInvalidate does nothing. The metadata of an invalid block is not read.
func (p *Policy) OnInvalidate(_ *tagging.Block) {
}

func (p *Policy) update(block *tagging.Block, pc uint64) {
	myPC := p.quantizer.TransformPC(pc)
	myAddress := p.quantizer.TransformAddress(block.Tag)

	p.tick()
	p.sampler.Update(myAddress, myPC)

	prediction := p.predictor.Lookup(myPC)

	block.Timestamp = p.counterHigh
	block.PredictedReuse = prediction
}

func (p *Policy) tick() {
	p.counterLow++
	if p.counterLow < p.config.QuantumTimestamp {
		return
	}

	p.counterLow = 0
	p.counterHigh++

	if p.counterHigh > p.config.MaxValueTimestamp {
		p.counterHigh = 0
	}
}

// FindVictim returns a free block of the set that address maps to if there is
// one. Otherwise, it picks a victim with SelectVictim.
func (p *Policy) FindVictim(
	tags tagging.TagArray,
	address uint64,
) *tagging.Block {
	set, setID := tags.GetSet(address)

	if block, ok := tags.FindFreeBlock(setID); ok {
		return block
	}

	decision := p.selectVictim(set)
	decision.SetID = setID

	if p.NumHooks() > 0 {
		p.InvokeHook(hooking.HookCtx{
			Domain: p,
			Pos:    HookPosVictim,
			Item:   set.Blocks[decision.WayID],
			Detail: decision,
		})
	}

	return set.Blocks[decision.WayID]
}

// SelectVictim returns the way to evict from a set in which every block is
// valid.
func (p *Policy) SelectVictim(set *tagging.Set) int {
	return p.selectVictim(set).WayID
}

func (p *Policy) selectVictim(set *tagging.Set) VictimDecision {
	decision := VictimDecision{}

	for way, block := range set.Blocks {
		now := p.now(block.Timestamp)
		timestamp := p.quantizer.UnQuantizeTimestamp(uint64(block.Timestamp))
		prediction := p.quantizer.UnQuantizePrediction(block.PredictedReuse)

		var timeLeft uint64
		if timestamp+prediction > now {
			timeLeft = timestamp + prediction - now
		}

		if timeLeft > decision.VictimTime {
			decision.VictimTime = timeLeft
			decision.WayID = way
			decision.ByPrediction = true
		}

		timeIdle := now - timestamp
		if timeIdle > decision.VictimTime {
			decision.VictimTime = timeIdle
			decision.WayID = way
			decision.ByPrediction = false
		}
	}

	return decision
}

// now un-quantizes the current time as seen from a block. A timestamp ahead
// of the counter means the counter wrapped after the block was touched. The
// wrapped code can exceed 32 bits.
func (p *Policy) now(timestamp uint32) uint64 {
	counter := uint64(p.counterHigh)
	if timestamp > p.counterHigh {
		counter += uint64(p.config.MaxValueTimestamp) + 1
	}

	return p.quantizer.UnQuantizeTimestamp(counter)
}

func (p *Policy) train(pc, observation uint32) {
	p.predictor.Update(pc, observation)

	if p.NumHooks() == 0 {
		return
	}

	p.InvokeHook(hooking.HookCtx{
		Domain: p,
		Pos:    HookPosPredictorUpdate,
		Detail: PredictorUpdate{
			PC:          pc,
			Observation: observation,
			Saturated:   observation == p.config.MaxValuePrediction,
		},
	})
}

type policyTrainer struct {
	policy *Policy
}

func (t policyTrainer) Update(pc, observation uint32) {
	t.policy.train(pc, observation)
}
