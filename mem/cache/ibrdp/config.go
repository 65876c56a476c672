// Package ibrdp implements instruction-based reuse-distance prediction, a
// replacement policy that learns, per load/store instruction, how many
// accesses pass before a line it touched is touched again, and evicts the
// line whose next use is farthest away.
package ibrdp

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid ibrdp config")

// maxSamplerSize caps the number of sampler entries a config may ask for.
const maxSamplerSize = 1 << 20

// Config holds the tuning constants of the policy. Every stored code is bound
// by one of the MaxValue fields, so together they decide the width of the
// metadata fields in hardware.
type Config struct {
	PredictorSets  int
	PredictorWays  int
	MaxConfidence  uint32
	SafeConfidence uint32

	// SamplerPeriod is the number of accesses between two samples.
	SamplerPeriod uint32

	QuantumTimestamp   uint32
	MaxValueTimestamp  uint32
	QuantumPrediction  uint32
	MaxValuePrediction uint32

	// PCBits and AddressBits are the widths that program counters and line
	// addresses are reduced to before they key the predictor and the sampler.
	PCBits      uint
	AddressBits uint
}

// DefaultConfig returns a configuration with 10-bit timestamps and 7-bit
// predictions.
func DefaultConfig() Config {
	return Config{
		PredictorSets:      64,
		PredictorWays:      16,
		MaxConfidence:      3,
		SafeConfidence:     1,
		SamplerPeriod:      32,
		QuantumTimestamp:   32,
		MaxValueTimestamp:  1023,
		QuantumPrediction:  32,
		MaxValuePrediction: 127,
		PCBits:             16,
		AddressBits:        24,
	}
}

// MaxReuseDistance is one more than the longest reuse distance that can be
// stored without saturating the prediction field.
func (c Config) MaxReuseDistance() uint64 {
	return (uint64(c.MaxValuePrediction) + 1) * uint64(c.QuantumPrediction)
}

// TimestampSpan is the number of accesses the timestamp counter covers before
// it wraps.
func (c Config) TimestampSpan() uint64 {
	return (uint64(c.MaxValueTimestamp) + 1) * uint64(c.QuantumTimestamp)
}

// SamplerSize is the number of in-flight samples needed to observe every
// reuse distance below MaxReuseDistance.
func (c Config) SamplerSize() uint64 {
	if c.SamplerPeriod == 0 {
		return 0
	}

	return c.MaxReuseDistance() / uint64(c.SamplerPeriod)
}

// Quantizer returns the numeric utility configured by c.
func (c Config) Quantizer() Quantizer {
	return Quantizer{
		QuantumTimestamp:   c.QuantumTimestamp,
		MaxValueTimestamp:  c.MaxValueTimestamp,
		QuantumPrediction:  c.QuantumPrediction,
		MaxValuePrediction: c.MaxValuePrediction,
		PCBits:             c.PCBits,
		AddressBits:        c.AddressBits,
	}
}

// Validate reports the first problem found in c.
func (c Config) Validate() error {
	switch {
	case c.PredictorSets <= 0 || c.PredictorSets&(c.PredictorSets-1) != 0:
		return fmt.Errorf("%w: predictor sets must be a power of 2, got %d",
			ErrInvalidConfig, c.PredictorSets)
	case c.PredictorWays <= 0:
		return fmt.Errorf("%w: predictor ways must be positive, got %d",
			ErrInvalidConfig, c.PredictorWays)
	case c.SafeConfidence > c.MaxConfidence:
		return fmt.Errorf("%w: safe confidence %d above max confidence %d",
			ErrInvalidConfig, c.SafeConfidence, c.MaxConfidence)
	case c.QuantumTimestamp == 0 || c.QuantumPrediction == 0:
		return fmt.Errorf("%w: quanta must be positive", ErrInvalidConfig)
	case c.MaxValueTimestamp == 0 || c.MaxValuePrediction == 0:
		return fmt.Errorf("%w: max values must be positive", ErrInvalidConfig)
	case c.MaxReuseDistance() > math.MaxUint32:
		return fmt.Errorf("%w: reuse distance window %d does not fit 32 bits",
			ErrInvalidConfig, c.MaxReuseDistance())
	case c.TimestampSpan() > math.MaxUint64/2:
		return fmt.Errorf("%w: timestamp span %d is too wide",
			ErrInvalidConfig, c.TimestampSpan())
	case c.SamplerPeriod == 0 || c.SamplerSize() == 0:
		return fmt.Errorf("%w: sampler period %d leaves no sampler entries",
			ErrInvalidConfig, c.SamplerPeriod)
	case c.SamplerSize() > maxSamplerSize:
		return fmt.Errorf("%w: sampler needs %d entries, at most %d allowed",
			ErrInvalidConfig, c.SamplerSize(), maxSamplerSize)
	case c.PCBits == 0 || c.PCBits > 32:
		return fmt.Errorf("%w: pc bits must be in [1, 32], got %d",
			ErrInvalidConfig, c.PCBits)
	case c.AddressBits == 0 || c.AddressBits > 32:
		return fmt.Errorf("%w: address bits must be in [1, 32], got %d",
			ErrInvalidConfig, c.AddressBits)
	case c.PCBits < uint(bits.TrailingZeros(uint(c.PredictorSets))):
		return fmt.Errorf("%w: %d pc bits cannot index %d predictor sets",
			ErrInvalidConfig, c.PCBits, c.PredictorSets)
	}

	return nil
}
