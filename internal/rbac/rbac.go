// Package rbac holds the canonical role-to-capability table.
//
// The table is fixed at compile time and never mutated at runtime. Every
// other permission decision in the engine (visibility, transitions,
// field gates) bottoms out in a capability lookup here.
package rbac

import (
	"errors"
	"fmt"

	"github.com/managebug/managebug/internal/types"
)

// ErrUnknownRole is returned for any role outside the closed role set.
var ErrUnknownRole = errors.New("unknown role")

// Capability is a named permission granted to a role.
type Capability string

// Capability constants
const (
	ViewAllProjectBugs Capability = "view_all_project_bugs"
	ViewAssignedBugs   Capability = "view_assigned_bugs"
	ViewCreatedBugs    Capability = "view_created_bugs"
	ChangeStatus       Capability = "change_status"
	EditDetail         Capability = "edit_detail"
	UploadAttachment   Capability = "upload_attachment"
	CreateBug          Capability = "create_bug"
	AddProjectMember   Capability = "add_project_member"
)

// capabilities maps each role to its fixed capability set.
var capabilities = map[types.Role][]Capability{
	types.RoleManager: {
		ViewAllProjectBugs,
		AddProjectMember,
	},
	types.RoleDeveloper: {
		ViewAssignedBugs,
		ChangeStatus,
		EditDetail,
		UploadAttachment,
	},
	types.RoleQA: {
		ViewCreatedBugs,
		CreateBug,
		UploadAttachment,
	},
}

// Capabilities returns the capability set for a role. The returned slice
// is a copy; callers may not mutate the table through it.
func Capabilities(role types.Role) ([]Capability, error) {
	caps, ok := capabilities[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out, nil
}

// Has reports whether the role holds the capability. Unknown roles hold
// nothing (fail closed).
func Has(role types.Role, cap Capability) bool {
	for _, c := range capabilities[role] {
		if c == cap {
			return true
		}
	}
	return false
}
