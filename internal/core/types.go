package core

import "evocore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Organism           = domain.Organism
	Group              = domain.Group
	GroupBehavior      = domain.GroupBehavior
	BlockData          = domain.BlockData
	Vector3            = domain.Vector3
	FormationPattern   = domain.FormationPattern
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	ErrNotFound        = domain.ErrNotFound
)

const (
	EntityOrganism = domain.EntityOrganism
	EntityGroup    = domain.EntityGroup
)

const (
	BehaviorFlock     = domain.BehaviorFlock
	BehaviorSwarm     = domain.BehaviorSwarm
	BehaviorFormation = domain.BehaviorFormation
	BehaviorCustom    = domain.BehaviorCustom
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine re-exports the domain constructor for callers that only
// import core.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
