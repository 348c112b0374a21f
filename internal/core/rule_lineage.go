package core

import (
	"context"
	"fmt"

	"evocore/pkg/domain"
)

// LineageIntegrityRule enforces parent references and generation numbering on
// organism creation. Violations are blocking: a child may not reference
// itself or a missing parent, may not list a parent twice, and its generation
// must be exactly one past its furthest parent.
func LineageIntegrityRule() domain.Rule {
	return lineageIntegrityRule{}
}

type lineageIntegrityRule struct{}

func (lineageIntegrityRule) Name() string { return "lineage_integrity" }

func (lineageIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	for _, change := range changes {
		if change.Entity != domain.EntityOrganism || change.Action != domain.ActionCreate || change.After == nil {
			continue
		}
		child, ok := change.After.(domain.Organism)
		if !ok {
			continue
		}
		evaluateLineage(&res, child, view)
	}

	return res, nil
}

func evaluateLineage(res *domain.Result, child domain.Organism, view domain.RuleView) {
	if len(child.ParentIDs) == 0 {
		if child.Generation != 0 {
			res.Violations = append(res.Violations, lineageViolation(child.ID,
				fmt.Sprintf("organism %s has no parents but generation %d", child.ID, child.Generation)))
		}
		return
	}

	seen := make(map[string]struct{}, len(child.ParentIDs))
	maxParentGen := -1
	for _, parentID := range child.ParentIDs {
		if parentID == "" {
			res.Violations = append(res.Violations, lineageViolation(child.ID,
				fmt.Sprintf("organism %s lists an empty parent id", child.ID)))
			continue
		}
		if parentID == child.ID {
			res.Violations = append(res.Violations, lineageViolation(child.ID,
				fmt.Sprintf("organism %s references itself as a parent", child.ID)))
			continue
		}
		if _, dup := seen[parentID]; dup {
			res.Violations = append(res.Violations, lineageViolation(child.ID,
				fmt.Sprintf("organism %s lists parent %s multiple times", child.ID, parentID)))
			continue
		}
		seen[parentID] = struct{}{}

		parent, ok := view.FindOrganism(parentID)
		if !ok {
			res.Violations = append(res.Violations, lineageViolation(child.ID,
				fmt.Sprintf("organism %s references missing parent %s", child.ID, parentID)))
			continue
		}
		if parent.Generation > maxParentGen {
			maxParentGen = parent.Generation
		}
	}

	if maxParentGen >= 0 && child.Generation != maxParentGen+1 {
		res.Violations = append(res.Violations, lineageViolation(child.ID,
			fmt.Sprintf("organism %s has generation %d, expected %d", child.ID, child.Generation, maxParentGen+1)))
	}
}

func lineageViolation(entityID, message string) domain.Violation {
	return domain.Violation{
		Rule:     "lineage_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityOrganism,
		EntityID: entityID,
	}
}
