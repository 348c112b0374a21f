// Package entropy turns opaque external entropy into a reproducible seed and
// independent pseudo-random sub-streams. All arithmetic is integer-only so
// sequences are identical across platforms. Streams own their cursor; there
// is no shared generator state anywhere in the package.
package entropy

import (
	"strings"

	"evocore/pkg/domain"
)

// Seed is the fixed-width deterministic root of all randomness used to
// generate or evolve organisms. It is immutable once created.
type Seed uint64

// FNV-1a 64-bit parameters, used to fold arbitrary-length input.
const (
	fnvOffset64 = 0xcbf29ce484222325
	fnvPrime64  = 0x100000001b3
)

// SplitMix64 increment and finalizer constants (Steele et al.).
const (
	splitmixGamma = 0x9e3779b97f4a7c15
	mixMul1       = 0xbf58476d1ce4e5b9
	mixMul2       = 0x94d049bb133111eb
)

// NewSeed deterministically folds raw external entropy (for example a block
// hash concatenated with a nonce) into a fixed-width seed. Empty or
// whitespace-only input returns domain.InvalidSeedError; no fallback seed is
// ever substituted.
func NewSeed(raw []byte) (Seed, error) {
	if len(raw) == 0 {
		return 0, domain.InvalidSeedError{Reason: "empty entropy input"}
	}
	if strings.TrimSpace(string(raw)) == "" {
		return 0, domain.InvalidSeedError{Reason: "blank entropy input"}
	}
	h := fold(fnvOffset64, raw)
	return Seed(mix64(h)), nil
}

// SeedFromBlock folds block data into a seed via its documented entropy
// layout. A block without a hash carries no real entropy (the nonce digits
// alone would always pass the blank check), so it is rejected up front.
func SeedFromBlock(block domain.BlockData) (Seed, error) {
	if strings.TrimSpace(block.Hash) == "" {
		return 0, domain.InvalidSeedError{Reason: "block hash is empty"}
	}
	return NewSeed(block.SeedEntropy())
}

func fold(h uint64, data []byte) uint64 {
	for _, b := range data {
		h ^= uint64(b)
		h *= fnvPrime64
	}
	return h
}

// mix64 is the SplitMix64 finalizer. It is bijective, so distinct inputs
// never collide.
func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * mixMul1
	z = (z ^ (z >> 27)) * mixMul2
	return z ^ (z >> 31)
}

// Stream is an independent, ordered sequence of pseudo-random draws bound to
// a (seed, consumerKey) pair. The cursor is sequential and mutable: a single
// Stream must never be advanced concurrently from two call sites. Distinct
// streams are fully independent and may be advanced in parallel.
type Stream struct {
	state uint64
}

// DeriveStream returns the generator bound to (seed, consumerKey). The same
// pair always yields the same sequence; different keys yield uncorrelated
// sequences. Introducing a new consumer key never perturbs existing streams.
func DeriveStream(seed Seed, consumerKey string) *Stream {
	h := fold(fnvOffset64, []byte(consumerKey))
	return &Stream{state: mix64(uint64(seed) ^ h)}
}

// next advances the SplitMix64 cursor and returns the next 64-bit value.
func (s *Stream) next() uint64 {
	s.state += splitmixGamma
	return mix64(s.state)
}

// Float64 returns the next draw in [0,1). The top 53 bits of the generator
// output map exactly onto the float64 mantissa, so the conversion is
// platform-independent.
func (s *Stream) Float64() float64 {
	return float64(s.next()>>11) / (1 << 53)
}

// Uint64 returns the next raw 64-bit draw. Identifier minting uses it
// directly, without the float conversion.
func (s *Stream) Uint64() uint64 {
	return s.next()
}

// IntN returns the next integer draw in [min,max). It panics when max <= min,
// which is a programmer error rather than a data-dependent failure.
func (s *Stream) IntN(min, max int) int {
	if max <= min {
		panic("entropy: IntN requires max > min")
	}
	span := uint64(max - min)
	return min + int(s.next()%span)
}

// Clone returns a stream frozen at the same cursor position. Advancing the
// clone does not affect the original; both replay the identical sequence.
func (s *Stream) Clone() *Stream {
	return &Stream{state: s.state}
}
