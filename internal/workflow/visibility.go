package workflow

import (
	"github.com/managebug/managebug/internal/rbac"
	"github.com/managebug/managebug/internal/types"
)

// ProjectManagers maps project IDs to the owning manager's user ID.
// Visibility decisions for managers need it because a bug record only
// carries its project ID, not the project's owner.
type ProjectManagers map[string]string

// CanSee is the single visibility predicate shared by every list view.
// It never errors: a nil caller, an unknown role, or a project missing
// from the managers map all deny (fail closed, never fail open).
func CanSee(caller *types.User, bug *types.Bug, managers ProjectManagers) bool {
	if caller == nil || bug == nil {
		return false
	}
	switch {
	case rbac.Has(caller.Role, rbac.ViewAllProjectBugs):
		managerID, ok := managers[bug.ProjectID]
		return ok && managerID == caller.ID
	case rbac.Has(caller.Role, rbac.ViewAssignedBugs):
		return bug.AssignedTo(caller.ID)
	case rbac.Has(caller.Role, rbac.ViewCreatedBugs):
		return bug.CreatorID == caller.ID
	}
	return false
}

// Filter returns the subset of bugs the caller is authorized to see,
// preserving relative order. Deterministic for identical inputs.
func Filter(caller *types.User, bugs []*types.Bug, managers ProjectManagers) []*types.Bug {
	out := make([]*types.Bug, 0, len(bugs))
	for _, b := range bugs {
		if CanSee(caller, b, managers) {
			out = append(out, b)
		}
	}
	return out
}
