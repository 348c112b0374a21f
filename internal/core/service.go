package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"evocore/internal/entropy"
	"evocore/internal/formation"
	"evocore/internal/genesis"
	"evocore/internal/genetics"
	"evocore/internal/infra/persistence/memory"
	"evocore/pkg/domain"
)

// ErrNoBlockRegistered is returned by operations that need seed entropy
// before any block has been registered.
var ErrNoBlockRegistered = errors.New("no block registered")

// Service is the facade over organism generation, inheritance, and group
// coordination. All entropy flows from the registered block seed, so the same
// block and the same call sequence reproduce the same population.
type Service struct {
	store    domain.PersistentStore
	genesis  *genesis.Engine
	genetics *genetics.Engine
	patterns *formation.Generator

	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	nowFn   func() time.Time

	mu     sync.RWMutex
	seeded bool
	seed   entropy.Seed
	block  domain.BlockData
	groups *GroupCoordinator
}

// NewService builds a service over an existing persistent store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	genesisEngine := genesis.NewEngine()
	svc := &Service{
		store:    store,
		genesis:  genesisEngine,
		genetics: genetics.NewEngine(genesisEngine, genetics.NewRateCalculator()),
		patterns: formation.NewGenerator(),
		logger:   noopLogger{},
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// NewInMemoryService builds a service over a fresh in-memory store guarded by
// the supplied rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store exposes the underlying persistent store.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// RegisterBlock derives the seed from block and makes it the entropy root for
// all subsequent operations. Registering a new block replaces the previous
// seed and resets the group identifier sequence.
func (s *Service) RegisterBlock(ctx context.Context, block domain.BlockData) (entropy.Seed, error) {
	ctx, done := s.instrument(ctx, "register_block", "")
	seed, err := entropy.SeedFromBlock(block)
	if err != nil {
		done(block.Hash, err)
		return 0, err
	}

	s.mu.Lock()
	s.seed = seed
	s.block = block
	s.seeded = true
	s.groups = NewGroupCoordinator(s.store, s.patterns, seed)
	s.mu.Unlock()

	s.logger.Info("block registered", "hash", block.Hash, "height", block.Height)
	done(block.Hash, nil)
	return seed, nil
}

// Block returns the registered block, if any.
func (s *Service) Block() (domain.BlockData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.block, s.seeded
}

// Seed returns the derived seed, if a block has been registered.
func (s *Service) Seed() (entropy.Seed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seed, s.seeded
}

func (s *Service) currentSeed() (entropy.Seed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.seeded {
		return 0, ErrNoBlockRegistered
	}
	return s.seed, nil
}

func (s *Service) coordinator() (*GroupCoordinator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.groups == nil {
		return nil, ErrNoBlockRegistered
	}
	return s.groups, nil
}

// SpawnOrganism deterministically generates a generation-zero organism from
// the registered seed. Spawning an ID that already exists returns the stored
// organism unchanged, so replays are harmless.
func (s *Service) SpawnOrganism(ctx context.Context, organismID string) (domain.Organism, domain.Result, error) {
	ctx, done := s.instrument(ctx, "spawn_organism", EntityOrganism)

	seed, err := s.currentSeed()
	if err != nil {
		done(organismID, err)
		return domain.Organism{}, domain.Result{}, err
	}
	if organismID == "" {
		err := fmt.Errorf("spawn organism: empty id")
		done(organismID, err)
		return domain.Organism{}, domain.Result{}, err
	}
	if existing, ok := s.store.GetOrganism(organismID); ok {
		done(organismID, nil)
		return existing, domain.Result{}, nil
	}

	organism, err := s.genesis.Generate(organismID, entropy.DeriveStream(seed, organismID))
	if err != nil {
		done(organismID, err)
		return domain.Organism{}, domain.Result{}, err
	}

	var created domain.Organism
	result, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		out, err := tx.CreateOrganism(organism)
		if err != nil {
			return err
		}
		created = out
		return nil
	})
	if err != nil {
		done(organismID, err)
		return domain.Organism{}, result, err
	}
	done(organismID, nil)
	return created, result, nil
}

// BreedOrganisms produces a child from two stored parents. Trait selection
// and mutation draw from a stream keyed by the child ID, so the same parents
// and child ID always yield the same offspring. Breeding an existing child ID
// returns the stored organism unchanged.
func (s *Service) BreedOrganisms(ctx context.Context, childID, parentAID, parentBID string) (domain.Organism, domain.Result, error) {
	ctx, done := s.instrument(ctx, "breed_organisms", EntityOrganism)

	seed, err := s.currentSeed()
	if err != nil {
		done(childID, err)
		return domain.Organism{}, domain.Result{}, err
	}
	if childID == "" {
		err := fmt.Errorf("breed organisms: empty child id")
		done(childID, err)
		return domain.Organism{}, domain.Result{}, err
	}
	if existing, ok := s.store.GetOrganism(childID); ok {
		done(childID, nil)
		return existing, domain.Result{}, nil
	}

	parentA, ok := s.store.GetOrganism(parentAID)
	if !ok {
		err := domain.ErrNotFound{Entity: domain.EntityOrganism, ID: parentAID}
		done(childID, err)
		return domain.Organism{}, domain.Result{}, err
	}
	parentB, ok := s.store.GetOrganism(parentBID)
	if !ok {
		err := domain.ErrNotFound{Entity: domain.EntityOrganism, ID: parentBID}
		done(childID, err)
		return domain.Organism{}, domain.Result{}, err
	}

	// Difficulty does not yet feed the mutation rate; the multiplier stays
	// at its neutral value until rate scaling is settled.
	rctx := genetics.RateContext{DifficultyMultiplier: 1.0}
	stream := entropy.DeriveStream(seed, "inherit:"+childID)
	child, err := s.genetics.Inherit(childID, parentA, parentB, rctx, stream)
	if err != nil {
		done(childID, err)
		return domain.Organism{}, domain.Result{}, err
	}

	var created domain.Organism
	result, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		out, err := tx.CreateOrganism(child)
		if err != nil {
			return err
		}
		created = out
		return nil
	})
	if err != nil {
		done(childID, err)
		return domain.Organism{}, result, err
	}
	done(childID, nil)
	return created, result, nil
}

// GetOrganism returns a stored organism by ID.
func (s *Service) GetOrganism(id string) (domain.Organism, bool) {
	return s.store.GetOrganism(id)
}

// ListOrganisms returns all stored organisms.
func (s *Service) ListOrganisms() []domain.Organism {
	return s.store.ListOrganisms()
}

// FormGroup creates a group of stored organisms with the given behavior.
func (s *Service) FormGroup(ctx context.Context, behavior domain.GroupBehavior, memberIDs []string) (domain.Group, domain.Result, error) {
	ctx, done := s.instrument(ctx, "form_group", EntityGroup)
	coord, err := s.coordinator()
	if err != nil {
		done("", err)
		return domain.Group{}, domain.Result{}, err
	}
	group, result, err := coord.FormGroup(ctx, behavior, memberIDs)
	done(group.ID, err)
	return group, result, err
}

// GetGroup returns a stored group by ID.
func (s *Service) GetGroup(id string) (domain.Group, bool) {
	return s.store.GetGroup(id)
}

// ListGroups returns all stored groups.
func (s *Service) ListGroups() []domain.Group {
	return s.store.ListGroups()
}

// ListGroupsByBehavior returns stored groups with the given behavior.
func (s *Service) ListGroupsByBehavior(behavior domain.GroupBehavior) []domain.Group {
	groups := s.store.ListGroups()
	out := groups[:0:0]
	for _, g := range groups {
		if g.Behavior == behavior {
			out = append(out, g)
		}
	}
	return out
}

// DissolveGroup marks a group dissolved, reporting whether this call changed
// its state.
func (s *Service) DissolveGroup(ctx context.Context, id string) (bool, error) {
	ctx, done := s.instrument(ctx, "dissolve_group", EntityGroup)
	coord, err := s.coordinator()
	if err != nil {
		done(id, err)
		return false, err
	}
	dissolved, err := coord.DissolveGroup(ctx, id)
	done(id, err)
	return dissolved, err
}

// ApplyFormationToGroup assigns a spatial formation pattern to a group.
func (s *Service) ApplyFormationToGroup(ctx context.Context, groupID, patternID string) (bool, error) {
	ctx, done := s.instrument(ctx, "apply_formation", EntityGroup)
	coord, err := s.coordinator()
	if err != nil {
		done(groupID, err)
		return false, err
	}
	applied, err := coord.ApplyFormationToGroup(ctx, groupID, patternID)
	done(groupID, err)
	return applied, err
}

// FormationLayout regenerates the member positions for a group's assigned
// formation. Repeated calls with unchanged membership return identical
// positions.
func (s *Service) FormationLayout(groupID string) (domain.FormationPattern, bool, error) {
	coord, err := s.coordinator()
	if err != nil {
		return domain.FormationPattern{}, false, err
	}
	return coord.FormationLayout(groupID)
}

// UpdateGroupCenter recomputes a group's center from resolved member
// positions.
func (s *Service) UpdateGroupCenter(ctx context.Context, id string, resolve func(organismID string) (domain.Vector3, bool)) (domain.Vector3, bool, error) {
	ctx, done := s.instrument(ctx, "update_group_center", EntityGroup)
	coord, err := s.coordinator()
	if err != nil {
		done(id, err)
		return domain.Vector3{}, false, err
	}
	center, updated, err := coord.UpdateGroupCenter(ctx, id, resolve)
	done(id, err)
	return center, updated, err
}

// GroupMetrics aggregates counts over stored groups.
func (s *Service) GroupMetrics() (GroupMetrics, error) {
	coord, err := s.coordinator()
	if err != nil {
		return GroupMetrics{}, err
	}
	return coord.Metrics(), nil
}

// PopulationMetrics summarizes the stored organism population.
type PopulationMetrics struct {
	TotalOrganisms int     `json:"total_organisms"`
	MaxGeneration  int     `json:"max_generation"`
	MeanGeneration float64 `json:"mean_generation"`
	MutationEvents int     `json:"mutation_events"`
}

// Metrics computes population statistics from committed state.
func (s *Service) Metrics() PopulationMetrics {
	organisms := s.store.ListOrganisms()
	metrics := PopulationMetrics{TotalOrganisms: len(organisms)}
	if len(organisms) == 0 {
		return metrics
	}
	generations := make([]float64, 0, len(organisms))
	for _, o := range organisms {
		generations = append(generations, float64(o.Generation))
		if o.Generation > metrics.MaxGeneration {
			metrics.MaxGeneration = o.Generation
		}
		metrics.MutationEvents += len(o.MutationHistory)
	}
	metrics.MeanGeneration = stat.Mean(generations, nil)
	return metrics
}
