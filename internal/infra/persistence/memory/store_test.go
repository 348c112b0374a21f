package memory

import (
	"context"
	"errors"
	"testing"

	"evocore/pkg/domain"
)

func newOrganism(id string) domain.Organism {
	o := domain.Organism{Generation: 0, SchemaVersion: domain.TraitSchemaVersion}
	o.ID = id
	return o
}

func newGroup(id string, members ...string) domain.Group {
	g := domain.Group{
		Members:  members,
		Behavior: domain.BehaviorFlock,
		State:    domain.GroupActive,
	}
	g.ID = id
	return g
}

func TestCreateAndGetOrganism(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var created domain.Organism
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateOrganism(newOrganism("org-1"))
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatal("timestamps not assigned")
	}

	got, ok := store.GetOrganism("org-1")
	if !ok {
		t.Fatal("organism not found after commit")
	}
	if got.ID != "org-1" {
		t.Fatalf("unexpected id %q", got.ID)
	}
}

func TestCreateOrganismGeneratesID(t *testing.T) {
	store := NewStore(nil)
	var created domain.Organism
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		created, err = tx.CreateOrganism(domain.Organism{})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestDuplicateOrganismRejected(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateOrganism(newOrganism("dup")); err != nil {
			return err
		}
		_, err := tx.CreateOrganism(newOrganism("dup"))
		return err
	})
	if err == nil {
		t.Fatal("expected duplicate id rejection")
	}
	if _, ok := store.GetOrganism("dup"); ok {
		t.Fatal("failed transaction must not commit")
	}
}

func TestUpdateOrganismNotFound(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateOrganism("missing", func(*domain.Organism) error { return nil })
		return err
	})
	var notFound domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteOrganismBlockedByActiveGroup(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateOrganism(newOrganism("member")); err != nil {
			return err
		}
		_, err := tx.CreateGroup(newGroup("grp", "member"))
		return err
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteOrganism("member")
	}); err == nil {
		t.Fatal("expected delete to be blocked while group is active")
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.UpdateGroup("grp", func(g *domain.Group) error {
			g.State = domain.GroupDissolved
			return nil
		}); err != nil {
			return err
		}
		return tx.DeleteOrganism("member")
	}); err != nil {
		t.Fatalf("delete after dissolve: %v", err)
	}
}

func TestGroupBehaviorValidatedOnCreateAndUpdate(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		g := newGroup("bad")
		g.Behavior = "stampede"
		_, err := tx.CreateGroup(g)
		return err
	}); err == nil {
		t.Fatal("expected unknown behavior rejection on create")
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateGroup(newGroup("grp"))
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateGroup("grp", func(g *domain.Group) error {
			g.Behavior = "stampede"
			return nil
		})
		return err
	}); err == nil {
		t.Fatal("expected unknown behavior rejection on update")
	}
}

func TestTransactionIsolation(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	sentinel := errors.New("abort")
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateOrganism(newOrganism("ghost")); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if _, ok := store.GetOrganism("ghost"); ok {
		t.Fatal("aborted transaction leaked state")
	}
}

func TestBlockingRulePreventsCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockEverything{})
	store := NewStore(engine)

	res, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateOrganism(newOrganism("org"))
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatal("result must carry the blocking violation")
	}
	if _, ok := store.GetOrganism("org"); ok {
		t.Fatal("blocked transaction committed")
	}
}

type blockEverything struct{}

func (blockEverything) Name() string { return "block_everything" }
func (blockEverything) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for range changes {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "block_everything",
			Severity: domain.SeverityBlock,
			Message:  "blocked",
		})
	}
	return res, nil
}

func TestCommittedStateIsCloned(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		o := newOrganism("org")
		o.ParentIDs = []string{"a", "b"}
		_, err := tx.CreateOrganism(o)
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := store.GetOrganism("org")
	got.ParentIDs[0] = "mutated"

	fresh, _ := store.GetOrganism("org")
	if fresh.ParentIDs[0] != "a" {
		t.Fatal("caller mutation reached committed state")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateOrganism(newOrganism("org-1")); err != nil {
			return err
		}
		_, err := tx.CreateGroup(newGroup("grp-1", "org-1"))
		return err
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	restored := NewStore(nil)
	restored.ImportState(store.ExportState())

	if _, ok := restored.GetOrganism("org-1"); !ok {
		t.Fatal("organism lost in round trip")
	}
	group, ok := restored.GetGroup("grp-1")
	if !ok {
		t.Fatal("group lost in round trip")
	}
	if !group.HasMember("org-1") {
		t.Fatal("group membership lost in round trip")
	}
}

func TestMigrateSnapshotDropsDanglingMembers(t *testing.T) {
	store := NewStore(nil)
	group := newGroup("grp", "present", "missing", "present")
	store.ImportState(Snapshot{
		Organisms: map[string]Organism{"present": newOrganism("present")},
		Groups:    map[string]Group{"grp": group},
	})

	got, ok := store.GetGroup("grp")
	if !ok {
		t.Fatal("group missing after import")
	}
	if len(got.Members) != 1 || got.Members[0] != "present" {
		t.Fatalf("unexpected members after migration: %v", got.Members)
	}
}

func TestMigrateSnapshotHandlesNilMaps(t *testing.T) {
	store := NewStore(nil)
	store.ImportState(Snapshot{})
	if n := len(store.ListOrganisms()); n != 0 {
		t.Fatalf("expected empty store, got %d organisms", n)
	}
	if n := len(store.ListGroups()); n != 0 {
		t.Fatalf("expected empty store, got %d groups", n)
	}
}

func TestViewSeesCommittedState(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateOrganism(newOrganism("org"))
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.View(ctx, func(v TransactionView) error {
		if _, ok := v.FindOrganism("org"); !ok {
			t.Fatal("organism not visible in view")
		}
		if got := len(v.ListOrganisms()); got != 1 {
			t.Fatalf("expected 1 organism, got %d", got)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}
