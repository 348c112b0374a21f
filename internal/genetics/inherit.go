package genetics

import (
	"fmt"
	"time"

	"evocore/internal/entropy"
	"evocore/internal/genesis"
	"evocore/pkg/domain"
)

// MutationCause labels mutation events produced during inheritance.
const MutationCause = "inheritance_mutation"

// Engine derives child trait records from two parents. Trait selection is a
// pure 50/50 pick per field, never a numeric blend; mutations independently
// redraw single fields via the genesis engine's primitive.
type Engine struct {
	genesis *genesis.Engine
	rates   *RateCalculator
	nowFn   func() time.Time
}

// Option customises engine construction.
type Option func(*Engine)

// WithNowFunc overrides the clock used for GeneratedAt stamps.
func WithNowFunc(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.nowFn = fn
		}
	}
}

// NewEngine constructs an inheritance engine around the supplied genesis
// engine and rate calculator.
func NewEngine(genesisEngine *genesis.Engine, rates *RateCalculator, opts ...Option) *Engine {
	e := &Engine{
		genesis: genesisEngine,
		rates:   rates,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Inherit combines two parent records into a child. Per trait field, in
// canonical schema order: one draw selects the parent (<0.5 takes parentA),
// a second draw below the effective mutation rate triggers an independent
// redraw of that field and appends a MutationEvent. Draw order and count per
// field are part of the determinism contract.
func (e *Engine) Inherit(childID string, parentA, parentB domain.Organism, rctx RateContext, stream *entropy.Stream) (domain.Organism, error) {
	if stream == nil {
		return domain.Organism{}, fmt.Errorf("genetics: nil stream for child %s", childID)
	}
	if parentA.SchemaVersion != parentB.SchemaVersion {
		return domain.Organism{}, domain.InheritanceMismatchError{
			ParentA:        parentA.ID,
			ParentB:        parentB.ID,
			SchemaVersionA: parentA.SchemaVersion,
			SchemaVersionB: parentB.SchemaVersion,
		}
	}

	rate := e.rates.Rate(rctx)

	child := domain.Organism{
		Base:            domain.Base{ID: childID},
		ParentIDs:       []string{parentA.ID, parentB.ID},
		Generation:      maxGeneration(parentA, parentB) + 1,
		MutationHistory: []domain.MutationEvent{},
		GeneratedAt:     e.nowFn(),
		SchemaVersion:   parentA.SchemaVersion,
	}

	for _, spec := range genesis.Fields() {
		source := &parentA.Traits
		if stream.Float64() >= 0.5 {
			source = &parentB.Traits
		}
		if err := genesis.CopyField(&child.Traits, source, spec); err != nil {
			return domain.Organism{}, err
		}

		if stream.Float64() < rate {
			oldValue, newValue, err := e.genesis.MutateField(&child.Traits, spec.TraitKey(), stream)
			if err != nil {
				return domain.Organism{}, err
			}
			child.MutationHistory = append(child.MutationHistory, domain.MutationEvent{
				TraitKey: spec.TraitKey(),
				OldValue: oldValue,
				NewValue: newValue,
				Cause:    MutationCause,
			})
		}
	}

	return child, nil
}

func maxGeneration(a, b domain.Organism) int {
	if a.Generation > b.Generation {
		return a.Generation
	}
	return b.Generation
}
