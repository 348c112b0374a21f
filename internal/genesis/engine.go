package genesis

import (
	"fmt"
	"time"

	"evocore/internal/entropy"
	"evocore/pkg/domain"
)

// Engine generates trait records. It is stateless apart from the injected
// clock; all randomness comes from the caller-supplied stream.
type Engine struct {
	nowFn func() time.Time
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

// NewEngine constructs a genesis engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{nowFn: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate draws a complete trait record for a new organism. Fields are
// drawn in canonical schema order, one draw each, so a stream cloned at the
// same cursor position reproduces the identical record.
func (e *Engine) Generate(organismID string, stream *entropy.Stream) (domain.Organism, error) {
	if stream == nil {
		return domain.Organism{}, fmt.Errorf("genesis: nil stream for organism %s", organismID)
	}

	var traits domain.TraitSet
	for _, spec := range fields {
		if err := assign(&traits, spec, draw(spec, stream)); err != nil {
			return domain.Organism{}, err
		}
	}

	return domain.Organism{
		Base:            domain.Base{ID: organismID},
		ParentIDs:       nil,
		Generation:      0,
		Traits:          traits,
		MutationHistory: []domain.MutationEvent{},
		GeneratedAt:     e.nowFn(),
		SchemaVersion:   domain.TraitSchemaVersion,
	}, nil
}

// MutateField redraws a single trait field independently, returning the old
// and new values. It is the mutation primitive used by inheritance; exactly
// one draw is consumed from the stream.
func (e *Engine) MutateField(traits *domain.TraitSet, traitKey string, stream *entropy.Stream) (oldValue, newValue any, err error) {
	spec, ok := FieldByKey(traitKey)
	if !ok {
		return nil, nil, fmt.Errorf("genesis: unknown trait key %s", traitKey)
	}
	oldValue = value(traits, spec)
	newValue = draw(spec, stream)
	if err := assign(traits, spec, newValue); err != nil {
		return nil, nil, err
	}
	return oldValue, newValue, nil
}
