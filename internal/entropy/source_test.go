package entropy_test

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"

	"evocore/internal/entropy"
	"evocore/pkg/domain"
)

func TestNewSeedRejectsEmptyInput(t *testing.T) {
	if _, err := entropy.NewSeed(nil); err == nil {
		t.Fatalf("expected error for nil entropy")
	}
	_, err := entropy.NewSeed([]byte("   "))
	var invalid domain.InvalidSeedError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidSeedError, got %v", err)
	}
}

func TestNewSeedIsDeterministic(t *testing.T) {
	raw := []byte("00000000000000000aaa-123456")
	a, err := entropy.NewSeed(raw)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	b, err := entropy.NewSeed(raw)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if a != b {
		t.Fatalf("same entropy produced different seeds: %d vs %d", a, b)
	}
	c, err := entropy.NewSeed([]byte("00000000000000000aaa-123457"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if a == c {
		t.Fatalf("distinct entropy collided on seed %d", a)
	}
}

func TestDeriveStreamReplaysIdenticalSequence(t *testing.T) {
	seed, err := entropy.NewSeed([]byte("determinism-check"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	first := drawN(entropy.DeriveStream(seed, "k"), 1000)
	second := drawN(entropy.DeriveStream(seed, "k"), 1000)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sequences diverge at draw %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestDeriveStreamKeysAreIndependent(t *testing.T) {
	seed, err := entropy.NewSeed([]byte("independence-check"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	a := drawN(entropy.DeriveStream(seed, "a"), 10000)
	b := drawN(entropy.DeriveStream(seed, "b"), 10000)

	// Statistical independence, not bit equality: correlation of two
	// uncorrelated uniform sequences of this length stays well inside ±0.05.
	if r := stat.Correlation(a, b, nil); math.Abs(r) > 0.05 {
		t.Fatalf("streams for distinct keys correlate: r=%v", r)
	}
}

func TestFloat64StaysInUnitInterval(t *testing.T) {
	seed, _ := entropy.NewSeed([]byte("bounds"))
	s := entropy.DeriveStream(seed, "f")
	for i := 0; i < 100000; i++ {
		v := s.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("draw %d out of [0,1): %v", i, v)
		}
	}
}

func TestIntNStaysInHalfOpenRange(t *testing.T) {
	seed, _ := entropy.NewSeed([]byte("intn"))
	s := entropy.DeriveStream(seed, "i")
	seen := make(map[int]bool)
	for i := 0; i < 10000; i++ {
		v := s.IntN(3, 9)
		if v < 3 || v >= 9 {
			t.Fatalf("draw %d out of [3,9): %d", i, v)
		}
		seen[v] = true
	}
	for want := 3; want < 9; want++ {
		if !seen[want] {
			t.Fatalf("value %d never drawn across 10000 draws", want)
		}
	}
}

func TestIntNPanicsOnInvertedRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for max <= min")
		}
	}()
	seed, _ := entropy.NewSeed([]byte("panic"))
	entropy.DeriveStream(seed, "p").IntN(5, 5)
}

func TestCloneFreezesCursor(t *testing.T) {
	seed, _ := entropy.NewSeed([]byte("clone"))
	s := entropy.DeriveStream(seed, "c")
	s.Float64()
	s.Float64()

	cp := s.Clone()
	fromOriginal := drawN(s, 32)
	fromClone := drawN(cp, 32)
	for i := range fromOriginal {
		if fromOriginal[i] != fromClone[i] {
			t.Fatalf("clone diverges at draw %d", i)
		}
	}
}

func TestSeedFromBlockMatchesRawEntropyFold(t *testing.T) {
	block := domain.BlockData{Hash: "00000000000000000aaa", Nonce: 123456, Height: 840000, Difficulty: 86.4e12}
	viaBlock, err := entropy.SeedFromBlock(block)
	if err != nil {
		t.Fatalf("seed from block: %v", err)
	}
	viaRaw, err := entropy.NewSeed([]byte("00000000000000000aaa123456"))
	if err != nil {
		t.Fatalf("seed from raw: %v", err)
	}
	if viaBlock != viaRaw {
		t.Fatalf("block entropy layout drifted: %d vs %d", viaBlock, viaRaw)
	}
}

func TestSeedFromBlockRejectsMissingHash(t *testing.T) {
	for _, block := range []domain.BlockData{
		{},
		{Hash: "   ", Nonce: 99, Height: 840000},
		{Nonce: 123456, Height: 840000, Difficulty: 86.4e12},
	} {
		_, err := entropy.SeedFromBlock(block)
		var invalid domain.InvalidSeedError
		if !errors.As(err, &invalid) {
			t.Fatalf("block %+v: expected InvalidSeedError, got %v", block, err)
		}
	}
}

func TestUint64Replays(t *testing.T) {
	seed, err := entropy.NewSeed([]byte("00000000000000000aaa123456"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	a := entropy.DeriveStream(seed, "ids")
	b := entropy.DeriveStream(seed, "ids")
	for i := 0; i < 64; i++ {
		if a.Uint64() != b.Uint64() {
			t.Fatalf("raw draw diverges at %d", i)
		}
	}
}

func drawN(s *entropy.Stream, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.Float64()
	}
	return out
}
