package formation_test

import (
	"math"
	"reflect"
	"testing"

	"evocore/internal/entropy"
	"evocore/internal/formation"
	"evocore/pkg/domain"
)

func testStream(t *testing.T, key string) *entropy.Stream {
	t.Helper()
	seed, err := entropy.NewSeed([]byte("00000000000000000aaa123456"))
	if err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
	return entropy.DeriveStream(seed, key)
}

func TestGenerateExactCardinality(t *testing.T) {
	gen := formation.NewGenerator()
	patterns := []string{
		formation.PatternFibonacciSpiral,
		formation.PatternCircle,
		formation.PatternGrid,
		formation.PatternLine,
		formation.PatternHelix,
		formation.PatternScatter,
		formation.PatternCluster,
		"no-such-pattern",
	}
	for _, id := range patterns {
		for _, count := range []int{0, 1, 7, 64} {
			p, err := gen.Generate(id, count, testStream(t, "cardinality"))
			if err != nil {
				t.Fatalf("Generate(%s, %d): %v", id, count, err)
			}
			if len(p.Positions) != count {
				t.Fatalf("Generate(%s, %d): got %d positions", id, count, len(p.Positions))
			}
			if p.ID != id {
				t.Fatalf("Generate(%s): pattern id %q", id, p.ID)
			}
		}
	}
}

func TestGenerateNegativeCount(t *testing.T) {
	gen := formation.NewGenerator()
	if _, err := gen.Generate(formation.PatternCircle, -1, nil); err == nil {
		t.Fatal("expected error for negative count")
	}
}

func TestFibonacciSpiralGeometry(t *testing.T) {
	gen := formation.NewGenerator()
	const count = 500
	p, err := gen.Generate(formation.PatternFibonacciSpiral, count, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	bound := gen.Bound()
	var centroid domain.Vector3
	for _, pos := range p.Positions {
		r := math.Hypot(pos.X, pos.Y)
		if r > bound+1e-9 {
			t.Fatalf("position outside bounding radius: r=%f bound=%f", r, bound)
		}
		if pos.Z != 0 {
			t.Fatalf("spiral position off the plane: %+v", pos)
		}
		centroid = centroid.Add(pos)
	}
	centroid = centroid.Scale(1 / float64(count))

	// The golden-angle layout distributes points evenly around the origin,
	// so the centroid lands close to it relative to the disc radius.
	if math.Hypot(centroid.X, centroid.Y) > bound*0.05 {
		t.Fatalf("spiral centroid drifted from origin: %+v", centroid)
	}

	if (p.Positions[0] != domain.Vector3{}) {
		t.Fatalf("first spiral position must be the origin, got %+v", p.Positions[0])
	}
}

func TestCircleLiesOnBound(t *testing.T) {
	gen := formation.NewGeneratorWithBound(4)
	p, err := gen.Generate(formation.PatternCircle, 12, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, pos := range p.Positions {
		if r := math.Hypot(pos.X, pos.Y); math.Abs(r-4) > 1e-9 {
			t.Fatalf("circle point off radius: r=%f", r)
		}
	}
}

func TestGridStaysInsideBoundingBox(t *testing.T) {
	gen := formation.NewGenerator()
	p, err := gen.Generate(formation.PatternGrid, 30, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	bound := gen.Bound()
	for _, pos := range p.Positions {
		if math.Abs(pos.X) > bound || math.Abs(pos.Y) > bound {
			t.Fatalf("grid point outside box: %+v", pos)
		}
	}
}

func TestLineEndpoints(t *testing.T) {
	gen := formation.NewGenerator()
	p, err := gen.Generate(formation.PatternLine, 5, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	bound := gen.Bound()
	if p.Positions[0].X != -bound || p.Positions[4].X != bound {
		t.Fatalf("line endpoints wrong: first=%+v last=%+v", p.Positions[0], p.Positions[4])
	}
}

func TestScatterIsDeterministicPerStream(t *testing.T) {
	gen := formation.NewGenerator()
	a, err := gen.Generate(formation.PatternScatter, 50, testStream(t, "scatter"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := gen.Generate(formation.PatternScatter, 50, testStream(t, "scatter"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("identical streams must replay identical scatter layouts")
	}
	c, err := gen.Generate(formation.PatternScatter, 50, testStream(t, "other"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if reflect.DeepEqual(a, c) {
		t.Fatal("distinct streams produced identical scatter layouts")
	}
}

func TestScatterStaysInsideBox(t *testing.T) {
	gen := formation.NewGeneratorWithBound(3)
	p, err := gen.Generate(formation.PatternScatter, 200, testStream(t, "box"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, pos := range p.Positions {
		if math.Abs(pos.X) > 3 || math.Abs(pos.Y) > 3 || math.Abs(pos.Z) > 3 {
			t.Fatalf("scatter point outside box: %+v", pos)
		}
	}
}

func TestStochasticPatternsRequireStream(t *testing.T) {
	gen := formation.NewGenerator()
	for _, id := range []string{formation.PatternScatter, formation.PatternCluster, "mystery"} {
		if _, err := gen.Generate(id, 3, nil); err == nil {
			t.Fatalf("Generate(%s) with nil stream must fail", id)
		}
	}
}

func TestUnknownPatternFallsBackToScatter(t *testing.T) {
	gen := formation.NewGenerator()
	unknown, err := gen.Generate("mystery", 20, testStream(t, "fallback"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	scatter, err := gen.Generate(formation.PatternScatter, 20, testStream(t, "fallback"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !reflect.DeepEqual(unknown.Positions, scatter.Positions) {
		t.Fatal("unknown pattern did not reuse the scatter layout")
	}
	if unknown.ID != "mystery" {
		t.Fatalf("fallback must keep the requested id, got %q", unknown.ID)
	}
}

func TestClusterConcentratesNearOrigin(t *testing.T) {
	gen := formation.NewGenerator()
	cluster, err := gen.Generate(formation.PatternCluster, 500, testStream(t, "density"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	scatter, err := gen.Generate(formation.PatternScatter, 500, testStream(t, "density"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if meanRadius(cluster.Positions) >= meanRadius(scatter.Positions) {
		t.Fatal("cluster layout is not denser around the origin than scatter")
	}
}

func meanRadius(positions []domain.Vector3) float64 {
	var sum float64
	for _, p := range positions {
		sum += math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
	}
	return sum / float64(len(positions))
}
