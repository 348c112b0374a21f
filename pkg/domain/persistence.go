package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateOrganism(Organism) (Organism, error)
	UpdateOrganism(id string, mutator func(*Organism) error) (Organism, error)
	DeleteOrganism(id string) error
	CreateGroup(Group) (Group, error)
	UpdateGroup(id string, mutator func(*Group) error) (Group, error)
	DeleteGroup(id string) error
	FindOrganism(id string) (Organism, bool)
	FindGroup(id string) (Group, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListOrganisms() []Organism
	ListGroups() []Group
	FindOrganism(id string) (Organism, bool)
	FindGroup(id string) (Group, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetOrganism(id string) (Organism, bool)
	ListOrganisms() []Organism
	GetGroup(id string) (Group, bool)
	ListGroups() []Group
}
