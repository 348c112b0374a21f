package core

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"evocore/internal/entropy"
	"evocore/internal/formation"
	"evocore/pkg/domain"
)

// GroupCoordinator manages organism groups on top of a persistent store.
// Group identifiers are minted from a dedicated entropy stream so the same
// block seed always yields the same sequence of group IDs.
type GroupCoordinator struct {
	store        domain.PersistentStore
	patterns     *formation.Generator
	idStream     *entropy.Stream
	layoutStream *entropy.Stream
}

// NewGroupCoordinator builds a coordinator bound to store and seeded by seed.
// The formation generator may be nil, in which case formation assignment is
// unavailable.
func NewGroupCoordinator(store domain.PersistentStore, patterns *formation.Generator, seed entropy.Seed) *GroupCoordinator {
	return &GroupCoordinator{
		store:        store,
		patterns:     patterns,
		idStream:     entropy.DeriveStream(seed, "group-id"),
		layoutStream: entropy.DeriveStream(seed, "group-formation"),
	}
}

// FormGroup creates a group with the given behavior and members. Member IDs
// are deduplicated in order. Every member must reference an existing organism.
// An organism already belonging to another active group is moved into the new
// group without error; donor groups left empty are dissolved.
func (c *GroupCoordinator) FormGroup(ctx context.Context, behavior domain.GroupBehavior, memberIDs []string) (domain.Group, domain.Result, error) {
	if !behavior.Valid() {
		return domain.Group{}, domain.Result{}, fmt.Errorf("form group: unknown behavior %q", behavior)
	}

	members := dedupe(memberIDs)
	id := fmt.Sprintf("group-%016x", c.idStream.Uint64())

	var created domain.Group
	result, err := c.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, memberID := range members {
			if _, ok := tx.FindOrganism(memberID); !ok {
				return domain.ErrNotFound{Entity: domain.EntityOrganism, ID: memberID}
			}
		}
		if err := evictFromActiveGroups(tx, members); err != nil {
			return err
		}

		group := domain.Group{
			Base:     domain.Base{ID: id},
			Members:  members,
			Behavior: behavior,
			State:    domain.GroupActive,
			Center:   domain.Vector3{},
		}
		out, err := tx.CreateGroup(group)
		if err != nil {
			return err
		}
		created = out
		return nil
	})
	if err != nil {
		return domain.Group{}, result, err
	}
	return created, result, nil
}

// evictFromActiveGroups removes the given organisms from every active group
// they currently belong to. Groups emptied by the eviction are dissolved.
func evictFromActiveGroups(tx domain.Transaction, memberIDs []string) error {
	moving := make(map[string]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		moving[id] = struct{}{}
	}
	for _, group := range tx.Snapshot().ListGroups() {
		if group.State != domain.GroupActive {
			continue
		}
		kept := group.Members[:0:0]
		for _, m := range group.Members {
			if _, gone := moving[m]; !gone {
				kept = append(kept, m)
			}
		}
		if len(kept) == len(group.Members) {
			continue
		}
		_, err := tx.UpdateGroup(group.ID, func(g *domain.Group) error {
			g.Members = kept
			if len(kept) == 0 {
				g.State = domain.GroupDissolved
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// GetGroup returns a group from committed state.
func (c *GroupCoordinator) GetGroup(id string) (domain.Group, bool) {
	return c.store.GetGroup(id)
}

// ListGroups returns all groups from committed state.
func (c *GroupCoordinator) ListGroups() []domain.Group {
	return c.store.ListGroups()
}

// ListGroupsByBehavior filters committed groups by behavior.
func (c *GroupCoordinator) ListGroupsByBehavior(behavior domain.GroupBehavior) []domain.Group {
	groups := c.store.ListGroups()
	out := groups[:0:0]
	for _, g := range groups {
		if g.Behavior == behavior {
			out = append(out, g)
		}
	}
	return out
}

// DissolveGroup marks a group dissolved. It reports false without error when
// the group does not exist or is already dissolved, so repeated calls are
// safe.
func (c *GroupCoordinator) DissolveGroup(ctx context.Context, id string) (bool, error) {
	dissolved := false
	_, err := c.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		group, ok := tx.FindGroup(id)
		if !ok || group.State == domain.GroupDissolved {
			return nil
		}
		_, err := tx.UpdateGroup(id, func(g *domain.Group) error {
			g.State = domain.GroupDissolved
			return nil
		})
		if err != nil {
			return err
		}
		dissolved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return dissolved, nil
}

// ApplyFormationToGroup assigns a spatial formation pattern to a group and
// switches its behavior to formation. It reports false without error when the
// group does not exist or no generator is configured, and errors when the
// pattern cannot produce a layout for the group's size. Validation runs on a
// clone of the layout stream, so the stored assignment can later be
// regenerated to identical positions via FormationLayout.
func (c *GroupCoordinator) ApplyFormationToGroup(ctx context.Context, groupID, patternID string) (bool, error) {
	if c.patterns == nil {
		return false, nil
	}

	applied := false
	_, err := c.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		group, ok := tx.FindGroup(groupID)
		if !ok {
			return nil
		}
		if _, err := c.patterns.Generate(patternID, len(group.Members), c.layoutStream.Clone()); err != nil {
			return fmt.Errorf("apply formation %q to group %s: %w", patternID, groupID, err)
		}
		_, err := tx.UpdateGroup(groupID, func(g *domain.Group) error {
			pattern := patternID
			g.FormationID = &pattern
			g.Behavior = domain.BehaviorFormation
			return nil
		})
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// FormationLayout regenerates the member positions for a group's assigned
// formation. Generation always runs on a clone of the layout stream, so every
// call for the same group and membership yields the same positions. It
// reports false without error when the group does not exist, has no
// formation assigned, or no generator is configured.
func (c *GroupCoordinator) FormationLayout(groupID string) (domain.FormationPattern, bool, error) {
	if c.patterns == nil {
		return domain.FormationPattern{}, false, nil
	}
	group, ok := c.store.GetGroup(groupID)
	if !ok || group.FormationID == nil {
		return domain.FormationPattern{}, false, nil
	}
	pattern, err := c.patterns.Generate(*group.FormationID, len(group.Members), c.layoutStream.Clone())
	if err != nil {
		return domain.FormationPattern{}, false, fmt.Errorf("formation layout for group %s: %w", groupID, err)
	}
	return pattern, true, nil
}

// UpdateGroupCenter recomputes a group's center as the mean of the member
// positions supplied by resolver. Members the resolver cannot place are
// skipped. It reports false without error when the group does not exist or no
// member resolved to a position.
func (c *GroupCoordinator) UpdateGroupCenter(ctx context.Context, id string, resolve func(organismID string) (domain.Vector3, bool)) (domain.Vector3, bool, error) {
	if resolve == nil {
		return domain.Vector3{}, false, fmt.Errorf("update group center: nil resolver")
	}

	var center domain.Vector3
	updated := false
	_, err := c.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		group, ok := tx.FindGroup(id)
		if !ok {
			return nil
		}
		var sum domain.Vector3
		resolved := 0
		for _, memberID := range group.Members {
			pos, ok := resolve(memberID)
			if !ok {
				continue
			}
			sum = sum.Add(pos)
			resolved++
		}
		if resolved == 0 {
			return nil
		}
		center = sum.Scale(1 / float64(resolved))
		_, err := tx.UpdateGroup(id, func(g *domain.Group) error {
			g.Center = center
			return nil
		})
		if err != nil {
			return err
		}
		updated = true
		return nil
	})
	if err != nil {
		return domain.Vector3{}, false, err
	}
	return center, updated, nil
}

// GroupMetrics summarizes the committed group population.
type GroupMetrics struct {
	TotalGroups     int                          `json:"total_groups"`
	ActiveGroups    int                          `json:"active_groups"`
	DissolvedGroups int                          `json:"dissolved_groups"`
	PerBehavior     map[domain.GroupBehavior]int `json:"per_behavior"`
	AverageSize     float64                      `json:"average_size"`
}

// Metrics aggregates counts and the mean active group size.
func (c *GroupCoordinator) Metrics() GroupMetrics {
	groups := c.store.ListGroups()
	metrics := GroupMetrics{
		TotalGroups: len(groups),
		PerBehavior: make(map[domain.GroupBehavior]int),
	}
	var sizes []float64
	for _, g := range groups {
		metrics.PerBehavior[g.Behavior]++
		if g.State == domain.GroupActive {
			metrics.ActiveGroups++
			sizes = append(sizes, float64(len(g.Members)))
		} else {
			metrics.DissolvedGroups++
		}
	}
	if len(sizes) > 0 {
		metrics.AverageSize = stat.Mean(sizes, nil)
	}
	return metrics
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
