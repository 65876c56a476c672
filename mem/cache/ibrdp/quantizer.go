package ibrdp

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// A Quantizer converts between real magnitudes (access counts, reuse
// distances) and the narrow codes that are stored in the cache metadata and
// the predictor. Bucketing is linear: a code stands for quantum accesses.
//
// Quantizing saturates at the max value. Un-quantizing does not, because the
// victim selection un-quantizes a wrapped "now" that is beyond the max
// timestamp.
type Quantizer struct {
	QuantumTimestamp   uint32
	MaxValueTimestamp  uint32
	QuantumPrediction  uint32
	MaxValuePrediction uint32
	PCBits             uint
	AddressBits        uint
}

// QuantizeTimestamp returns the timestamp code of an access count.
func (q Quantizer) QuantizeTimestamp(accesses uint64) uint32 {
	return quantize(accesses, q.QuantumTimestamp, q.MaxValueTimestamp)
}

// UnQuantizeTimestamp returns the first access count covered by a code.
func (q Quantizer) UnQuantizeTimestamp(code uint64) uint64 {
	return code * uint64(q.QuantumTimestamp)
}

// QuantizePrediction returns the prediction code of a reuse distance.
func (q Quantizer) QuantizePrediction(distance uint64) uint32 {
	return quantize(distance, q.QuantumPrediction, q.MaxValuePrediction)
}

// UnQuantizePrediction returns the reuse distance represented by a code.
func (q Quantizer) UnQuantizePrediction(code uint32) uint64 {
	return uint64(code) * uint64(q.QuantumPrediction)
}

// TransformPC reduces a program counter to PCBits bits.
func (q Quantizer) TransformPC(pc uint64) uint32 {
	return fold(pc, q.PCBits)
}

// TransformAddress reduces a line address to AddressBits bits.
func (q Quantizer) TransformAddress(addr uint64) uint32 {
	return fold(addr, q.AddressBits)
}

func quantize(value uint64, quantum, maxValue uint32) uint32 {
	code := value / uint64(quantum)
	if code > uint64(maxValue) {
		return maxValue
	}

	return uint32(code)
}

func fold(v uint64, width uint) uint32 {
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], v)
	h := xxhash.Sum64(buf[:])

	return uint32(h & (1<<width - 1))
}
