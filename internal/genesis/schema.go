// Package genesis builds complete organism trait records from entropy
// streams. The field schema below is the single source of truth for trait
// bounds and, critically, for draw order: generation and inheritance both
// walk Fields() front to back, one draw per field, and that order is part of
// the determinism contract. Reordering or inserting fields changes every
// derived organism and must be treated as a schema version bump.
package genesis

import (
	"fmt"

	"evocore/internal/entropy"
	"evocore/pkg/domain"
)

// FieldKind distinguishes continuous numeric traits from categorical ones.
type FieldKind int

// Supported trait field kinds.
const (
	KindFloat FieldKind = iota
	KindEnum
)

// FieldSpec describes one trait field: its category, key, and the range (or
// option list) its draws map into.
type FieldSpec struct {
	Category string
	Key      string
	Kind     FieldKind
	Min      float64  // inclusive, KindFloat only
	Max      float64  // exclusive, KindFloat only
	Options  []string // KindEnum only
}

// TraitKey returns the fully qualified "category.key" name used in mutation
// events.
func (f FieldSpec) TraitKey() string {
	return f.Category + "." + f.Key
}

// VisualPatterns is the closed option list for the visual pattern trait.
var VisualPatterns = []string{"solid", "striped", "spotted", "gradient", "iridescent"}

// fields is the canonical schema in draw order.
var fields = []FieldSpec{
	{Category: "visual", Key: "hue", Kind: KindFloat, Min: 0, Max: 360},
	{Category: "visual", Key: "saturation", Kind: KindFloat, Min: 0.2, Max: 1},
	{Category: "visual", Key: "brightness", Kind: KindFloat, Min: 0.2, Max: 1},
	{Category: "visual", Key: "size", Kind: KindFloat, Min: 0.5, Max: 3},
	{Category: "visual", Key: "glow", Kind: KindFloat, Min: 0, Max: 1},
	{Category: "visual", Key: "pattern", Kind: KindEnum, Options: VisualPatterns},
	{Category: "behavioral", Key: "aggressiveness", Kind: KindFloat, Min: 1, Max: 10},
	{Category: "behavioral", Key: "sociability", Kind: KindFloat, Min: 1, Max: 10},
	{Category: "behavioral", Key: "curiosity", Kind: KindFloat, Min: 1, Max: 10},
	{Category: "behavioral", Key: "activity", Kind: KindFloat, Min: 0.1, Max: 2},
	{Category: "physical", Key: "mass", Kind: KindFloat, Min: 0.1, Max: 50},
	{Category: "physical", Key: "speed", Kind: KindFloat, Min: 0.5, Max: 10},
	{Category: "physical", Key: "strength", Kind: KindFloat, Min: 1, Max: 100},
	{Category: "physical", Key: "resilience", Kind: KindFloat, Min: 0, Max: 1},
	{Category: "evolutionary", Key: "adaptability", Kind: KindFloat, Min: 0, Max: 1},
	{Category: "evolutionary", Key: "fertility", Kind: KindFloat, Min: 0, Max: 1},
	{Category: "evolutionary", Key: "longevity", Kind: KindFloat, Min: 50, Max: 500},
	{Category: "evolutionary", Key: "dominance", Kind: KindFloat, Min: 1, Max: 10},
}

// Fields returns the schema in canonical draw order. The returned slice is a
// copy; callers may not reorder the canonical schema.
func Fields() []FieldSpec {
	out := make([]FieldSpec, len(fields))
	copy(out, fields)
	return out
}

// FieldByKey resolves a fully qualified trait key to its spec.
func FieldByKey(traitKey string) (FieldSpec, bool) {
	for _, f := range fields {
		if f.TraitKey() == traitKey {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// CopyField transfers one field's value from src into dst, re-validating its
// bounds on the way. Inheritance uses it for parent-trait selection.
func CopyField(dst, src *domain.TraitSet, spec FieldSpec) error {
	return assign(dst, spec, value(src, spec))
}

// draw produces the field's next value from the stream. Floats consume one
// Float64 draw, enums one IntN draw.
func draw(spec FieldSpec, stream *entropy.Stream) any {
	switch spec.Kind {
	case KindEnum:
		return spec.Options[stream.IntN(0, len(spec.Options))]
	default:
		f := stream.Float64()
		return spec.Min + f*(spec.Max-spec.Min)
	}
}

// value reads the field's current value out of a trait set.
func value(ts *domain.TraitSet, spec FieldSpec) any {
	switch spec.TraitKey() {
	case "visual.hue":
		return ts.Visual.Hue
	case "visual.saturation":
		return ts.Visual.Saturation
	case "visual.brightness":
		return ts.Visual.Brightness
	case "visual.size":
		return ts.Visual.Size
	case "visual.glow":
		return ts.Visual.Glow
	case "visual.pattern":
		return ts.Visual.Pattern
	case "behavioral.aggressiveness":
		return ts.Behavioral.Aggressiveness
	case "behavioral.sociability":
		return ts.Behavioral.Sociability
	case "behavioral.curiosity":
		return ts.Behavioral.Curiosity
	case "behavioral.activity":
		return ts.Behavioral.Activity
	case "physical.mass":
		return ts.Physical.Mass
	case "physical.speed":
		return ts.Physical.Speed
	case "physical.strength":
		return ts.Physical.Strength
	case "physical.resilience":
		return ts.Physical.Resilience
	case "evolutionary.adaptability":
		return ts.Evolutionary.Adaptability
	case "evolutionary.fertility":
		return ts.Evolutionary.Fertility
	case "evolutionary.longevity":
		return ts.Evolutionary.Longevity
	case "evolutionary.dominance":
		return ts.Evolutionary.Dominance
	}
	panic(fmt.Sprintf("genesis: unknown trait key %s", spec.TraitKey()))
}

// assign writes a drawn value into a trait set after validating its bounds.
func assign(ts *domain.TraitSet, spec FieldSpec, v any) error {
	if spec.Kind == KindEnum {
		s, ok := v.(string)
		if !ok || !containsOption(spec.Options, s) {
			return domain.OutOfRangeError{TraitKey: spec.TraitKey()}
		}
		setString(ts, spec, s)
		return nil
	}
	f, ok := v.(float64)
	if !ok || f < spec.Min || f >= spec.Max {
		return domain.OutOfRangeError{TraitKey: spec.TraitKey(), Value: asFloat(v), Min: spec.Min, Max: spec.Max}
	}
	setFloat(ts, spec, f)
	return nil
}

func asFloat(v any) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}

func containsOption(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

func setString(ts *domain.TraitSet, spec FieldSpec, v string) {
	switch spec.TraitKey() {
	case "visual.pattern":
		ts.Visual.Pattern = v
	default:
		panic(fmt.Sprintf("genesis: unknown enum trait key %s", spec.TraitKey()))
	}
}

func setFloat(ts *domain.TraitSet, spec FieldSpec, v float64) {
	switch spec.TraitKey() {
	case "visual.hue":
		ts.Visual.Hue = v
	case "visual.saturation":
		ts.Visual.Saturation = v
	case "visual.brightness":
		ts.Visual.Brightness = v
	case "visual.size":
		ts.Visual.Size = v
	case "visual.glow":
		ts.Visual.Glow = v
	case "behavioral.aggressiveness":
		ts.Behavioral.Aggressiveness = v
	case "behavioral.sociability":
		ts.Behavioral.Sociability = v
	case "behavioral.curiosity":
		ts.Behavioral.Curiosity = v
	case "behavioral.activity":
		ts.Behavioral.Activity = v
	case "physical.mass":
		ts.Physical.Mass = v
	case "physical.speed":
		ts.Physical.Speed = v
	case "physical.strength":
		ts.Physical.Strength = v
	case "physical.resilience":
		ts.Physical.Resilience = v
	case "evolutionary.adaptability":
		ts.Evolutionary.Adaptability = v
	case "evolutionary.fertility":
		ts.Evolutionary.Fertility = v
	case "evolutionary.longevity":
		ts.Evolutionary.Longevity = v
	case "evolutionary.dominance":
		ts.Evolutionary.Dominance = v
	default:
		panic(fmt.Sprintf("genesis: unknown float trait key %s", spec.TraitKey()))
	}
}
