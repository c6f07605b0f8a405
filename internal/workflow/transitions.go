package workflow

import (
	"fmt"

	"github.com/managebug/managebug/internal/rbac"
	"github.com/managebug/managebug/internal/types"
)

// ValidateTransition checks whether actingRole may move the bug to the
// requested status.
//
// The transition relation is deliberately permissive: within a type's
// vocabulary any state may move to any other state in one step,
// including back out of resolved/completed and including no-op
// transitions to the current state. There is no terminal state.
//
// The vocabulary check runs first so an out-of-vocabulary status is
// rejected as such regardless of the acting role.
func ValidateTransition(bug *types.Bug, requested types.Status, actingRole types.Role) error {
	if !requested.ValidFor(bug.Type) {
		return fmt.Errorf("%w: %q for type %q", ErrStatusNotInVocabulary, requested, bug.Type)
	}
	if !rbac.Has(actingRole, rbac.ChangeStatus) {
		return fmt.Errorf("%w: role %q cannot change status", ErrForbidden, actingRole)
	}
	return nil
}
