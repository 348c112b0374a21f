// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by evocore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityOrganism identifies an individual organism record.
	EntityOrganism EntityType = "organism"
	// EntityGroup identifies a group record.
	EntityGroup EntityType = "group"
)

// GroupBehavior enumerates the closed set of collective behaviors a group may
// be assigned. Values outside this set are rejected at construction.
type GroupBehavior string

// Canonical group behaviors.
const (
	BehaviorFlock     GroupBehavior = "flock"
	BehaviorSwarm     GroupBehavior = "swarm"
	BehaviorFormation GroupBehavior = "formation"
	BehaviorCustom    GroupBehavior = "custom"
)

// Valid reports whether the behavior is one of the canonical values.
func (b GroupBehavior) Valid() bool {
	switch b {
	case BehaviorFlock, BehaviorSwarm, BehaviorFormation, BehaviorCustom:
		return true
	}
	return false
}

// GroupState represents the lifecycle of a group record.
type GroupState string

// Group lifecycle states. Dissolved is terminal.
const (
	GroupActive    GroupState = "active"
	GroupDissolved GroupState = "dissolved"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TraitSchemaVersion identifies the trait schema an organism was generated
// under. Inheritance refuses to combine parents from different versions.
const TraitSchemaVersion = 1

// VisualTraits describe how an organism is rendered. Bounds are enforced by
// the genesis engine; see internal/genesis for the canonical field order.
type VisualTraits struct {
	Hue        float64 `json:"hue"`        // [0,360)
	Saturation float64 `json:"saturation"` // [0.2,1)
	Brightness float64 `json:"brightness"` // [0.2,1)
	Size       float64 `json:"size"`       // [0.5,3)
	Glow       float64 `json:"glow"`       // [0,1)
	Pattern    string  `json:"pattern"`    // one of the canonical pattern names
}

// BehavioralTraits drive movement and social decisions.
type BehavioralTraits struct {
	Aggressiveness float64 `json:"aggressiveness"` // [1,10)
	Sociability    float64 `json:"sociability"`    // [1,10)
	Curiosity      float64 `json:"curiosity"`      // [1,10)
	Activity       float64 `json:"activity"`       // [0.1,2)
}

// PhysicalTraits feed the physics collaborator.
type PhysicalTraits struct {
	Mass       float64 `json:"mass"`       // [0.1,50)
	Speed      float64 `json:"speed"`      // [0.5,10)
	Strength   float64 `json:"strength"`   // [1,100)
	Resilience float64 `json:"resilience"` // [0,1)
}

// EvolutionaryTraits influence inheritance outcomes in downstream systems.
type EvolutionaryTraits struct {
	Adaptability float64 `json:"adaptability"` // [0,1)
	Fertility    float64 `json:"fertility"`    // [0,1)
	Longevity    float64 `json:"longevity"`    // [50,500)
	Dominance    float64 `json:"dominance"`    // [1,10)
}

// TraitSet groups the four trait categories that fully describe an organism.
type TraitSet struct {
	Visual       VisualTraits       `json:"visual"`
	Behavioral   BehavioralTraits   `json:"behavioral"`
	Physical     PhysicalTraits     `json:"physical"`
	Evolutionary EvolutionaryTraits `json:"evolutionary"`
}

// MutationEvent records a single trait replacement applied during
// inheritance. Events are append-only and never mutated after creation.
type MutationEvent struct {
	TraitKey string `json:"trait_key"` // e.g. "physical.mass"
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
	Cause    string `json:"cause"`
}

// Organism is the externally visible trait record for a simulated entity.
// All trait values are deterministically derived from a seed stream.
type Organism struct {
	Base
	ParentIDs       []string        `json:"parent_ids"`
	Generation      int             `json:"generation"`
	Traits          TraitSet        `json:"traits"`
	MutationHistory []MutationEvent `json:"mutation_history"`
	GeneratedAt     time.Time       `json:"generated_at"`
	SchemaVersion   int             `json:"schema_version"`
}

// Vector3 is a point in the simulation space.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns the component-wise sum of two vectors.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Scale returns the vector multiplied by a scalar.
func (v Vector3) Scale(f float64) Vector3 {
	return Vector3{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

// FormationPattern is an ordered spatial layout produced on demand. It is not
// persisted by the core; consumers own the returned value.
type FormationPattern struct {
	ID        string    `json:"id"`
	Positions []Vector3 `json:"positions"`
}

// Group is a named collection of entity references sharing a behavior tag.
// Membership is exclusive: an entity belongs to at most one active group.
type Group struct {
	Base
	Members     []string      `json:"members"`
	Behavior    GroupBehavior `json:"behavior"`
	State       GroupState    `json:"state"`
	Center      Vector3       `json:"center"`
	FormationID *string       `json:"formation_id,omitempty"`
}

// HasMember reports whether the entity reference is part of the group.
func (g Group) HasMember(id string) bool {
	for _, m := range g.Members {
		if m == id {
			return true
		}
	}
	return false
}

// BlockData is the inbound collaborator value carrying external blockchain
// entropy. Validation of chain-specific semantics happens upstream; the core
// only requires stable, non-empty hash and nonce material.
type BlockData struct {
	Hash       string  `json:"hash"`
	Height     int64   `json:"height"`
	Nonce      uint64  `json:"nonce"`
	Difficulty float64 `json:"difficulty"`
}

// SeedEntropy folds the block fields into the raw byte material consumed by
// the entropy source. The layout (hash bytes, then the decimal nonce) is part
// of the determinism contract and must not change between releases.
func (b BlockData) SeedEntropy() []byte {
	buf := make([]byte, 0, len(b.Hash)+20)
	buf = append(buf, b.Hash...)
	buf = appendUint(buf, b.Nonce)
	return buf
}

func appendUint(buf []byte, v uint64) []byte {
	if v == 0 {
		return append(buf, '0')
	}
	var tmp [20]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	return append(buf, tmp[i:]...)
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
