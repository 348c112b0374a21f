// Package formation produces ordered position layouts for groups. Closed-form
// patterns are pure functions of the requested count; stochastic patterns
// draw from a caller-supplied entropy stream. Either way the result always
// contains exactly the requested number of positions.
package formation

import (
	"fmt"
	"math"

	"evocore/internal/entropy"
	"evocore/pkg/domain"
)

// Canonical pattern identifiers.
const (
	PatternFibonacciSpiral = "fibonacci-spiral"
	PatternCircle          = "circle"
	PatternGrid            = "grid"
	PatternLine            = "line"
	PatternHelix           = "helix"
	PatternScatter         = "scatter"
	PatternCluster         = "cluster"
)

// goldenAngle is 2π(2-φ), the angular step of the fibonacci spiral.
const goldenAngle = 2.39996322972865332

// Generator lays out formation patterns within a bounding radius.
type Generator struct {
	bound float64
}

// DefaultBound is the bounding radius used when none is configured.
const DefaultBound = 10.0

// NewGenerator constructs a generator with the default bounding radius.
func NewGenerator() *Generator {
	return &Generator{bound: DefaultBound}
}

// NewGeneratorWithBound constructs a generator with an explicit bounding
// radius. Non-positive bounds fall back to the default.
func NewGeneratorWithBound(bound float64) *Generator {
	if bound <= 0 {
		bound = DefaultBound
	}
	return &Generator{bound: bound}
}

// Bound returns the configured bounding radius.
func (g *Generator) Bound() float64 {
	return g.bound
}

// Generate produces the named pattern with exactly count positions. Closed
// form patterns ignore the stream; stochastic ones require it. An unknown
// patternID degrades to the stochastic scatter layout rather than erroring,
// since no geometry is defined for it.
func (g *Generator) Generate(patternID string, count int, stream *entropy.Stream) (domain.FormationPattern, error) {
	if count < 0 {
		return domain.FormationPattern{}, fmt.Errorf("formation: negative count %d", count)
	}

	var positions []domain.Vector3
	switch patternID {
	case PatternFibonacciSpiral:
		positions = g.fibonacciSpiral(count)
	case PatternCircle:
		positions = g.circle(count)
	case PatternGrid:
		positions = g.grid(count)
	case PatternLine:
		positions = g.line(count)
	case PatternHelix:
		positions = g.helix(count)
	case PatternCluster:
		if stream == nil {
			return domain.FormationPattern{}, fmt.Errorf("formation: pattern %s requires a stream", patternID)
		}
		positions = g.cluster(count, stream)
	case PatternScatter:
		if stream == nil {
			return domain.FormationPattern{}, fmt.Errorf("formation: pattern %s requires a stream", patternID)
		}
		positions = g.scatter(count, stream)
	default:
		// Documented fallback: unknown ids scatter instead of failing.
		if stream == nil {
			return domain.FormationPattern{}, fmt.Errorf("formation: unknown pattern %s requires a stream for scatter fallback", patternID)
		}
		positions = g.scatter(count, stream)
	}

	return domain.FormationPattern{ID: patternID, Positions: positions}, nil
}

// fibonacciSpiral spreads points on a golden-angle disc centered on the
// origin, radius growing with √i so density stays uniform.
func (g *Generator) fibonacciSpiral(count int) []domain.Vector3 {
	positions := make([]domain.Vector3, count)
	if count == 0 {
		return positions
	}
	scale := g.bound / math.Sqrt(float64(count))
	for i := range positions {
		r := scale * math.Sqrt(float64(i))
		theta := goldenAngle * float64(i)
		positions[i] = domain.Vector3{
			X: r * math.Cos(theta),
			Y: r * math.Sin(theta),
		}
	}
	return positions
}

func (g *Generator) circle(count int) []domain.Vector3 {
	positions := make([]domain.Vector3, count)
	if count == 0 {
		return positions
	}
	step := 2 * math.Pi / float64(count)
	for i := range positions {
		theta := step * float64(i)
		positions[i] = domain.Vector3{
			X: g.bound * math.Cos(theta),
			Y: g.bound * math.Sin(theta),
		}
	}
	return positions
}

// grid fills the smallest square that holds count points, centered on the
// origin and scaled into the bounding box.
func (g *Generator) grid(count int) []domain.Vector3 {
	positions := make([]domain.Vector3, count)
	if count == 0 {
		return positions
	}
	side := int(math.Ceil(math.Sqrt(float64(count))))
	spacing := 2 * g.bound / float64(side)
	offset := g.bound - spacing/2
	for i := range positions {
		row := i / side
		col := i % side
		positions[i] = domain.Vector3{
			X: float64(col)*spacing - offset,
			Y: float64(row)*spacing - offset,
		}
	}
	return positions
}

func (g *Generator) line(count int) []domain.Vector3 {
	positions := make([]domain.Vector3, count)
	if count <= 1 {
		return positions
	}
	step := 2 * g.bound / float64(count-1)
	for i := range positions {
		positions[i] = domain.Vector3{X: -g.bound + step*float64(i)}
	}
	return positions
}

// helix winds upward around the Z axis, one full turn per eight points.
func (g *Generator) helix(count int) []domain.Vector3 {
	positions := make([]domain.Vector3, count)
	if count == 0 {
		return positions
	}
	const pointsPerTurn = 8
	rise := 2 * g.bound / float64(count)
	for i := range positions {
		theta := 2 * math.Pi * float64(i) / pointsPerTurn
		positions[i] = domain.Vector3{
			X: g.bound * math.Cos(theta) / 2,
			Y: g.bound * math.Sin(theta) / 2,
			Z: -g.bound + rise*float64(i),
		}
	}
	return positions
}

// scatter draws independent uniform points inside the bounding box. Draw
// order is X, Y, Z per point.
func (g *Generator) scatter(count int, stream *entropy.Stream) []domain.Vector3 {
	positions := make([]domain.Vector3, count)
	for i := range positions {
		positions[i] = domain.Vector3{
			X: (stream.Float64()*2 - 1) * g.bound,
			Y: (stream.Float64()*2 - 1) * g.bound,
			Z: (stream.Float64()*2 - 1) * g.bound,
		}
	}
	return positions
}

// cluster concentrates points near the origin by averaging two uniform draws
// per axis, giving a triangular density profile inside the bound.
func (g *Generator) cluster(count int, stream *entropy.Stream) []domain.Vector3 {
	positions := make([]domain.Vector3, count)
	for i := range positions {
		positions[i] = domain.Vector3{
			X: g.triangular(stream),
			Y: g.triangular(stream),
			Z: g.triangular(stream),
		}
	}
	return positions
}

func (g *Generator) triangular(stream *entropy.Stream) float64 {
	a := stream.Float64()*2 - 1
	b := stream.Float64()*2 - 1
	return (a + b) / 2 * g.bound
}
