package workflow

import (
	"fmt"

	"github.com/managebug/managebug/internal/rbac"
	"github.com/managebug/managebug/internal/types"
)

// Field names a mutable attribute of a bug for permission gating.
type Field string

// Field constants
const (
	FieldStatus     Field = "status"
	FieldDetail     Field = "detail"
	FieldAttachment Field = "attachment"
	FieldAssignee   Field = "assignee"
	FieldTitle      Field = "title"
	FieldType       Field = "type"
	FieldDeadline   Field = "deadline"
)

// IsValid checks if the field name is known to the gate.
func (f Field) IsValid() bool {
	switch f {
	case FieldStatus, FieldDetail, FieldAttachment, FieldAssignee, FieldTitle, FieldType, FieldDeadline:
		return true
	}
	return false
}

// CanWrite reports whether actingRole may mutate the field on an
// existing bug. Assignee, title, type and deadline are creation-time
// fields and immutable afterwards, so they deny here for every role.
// Unknown fields and unknown roles deny.
func CanWrite(actingRole types.Role, field Field) bool {
	switch field {
	case FieldStatus:
		return rbac.Has(actingRole, rbac.ChangeStatus)
	case FieldDetail:
		return rbac.Has(actingRole, rbac.EditDetail)
	case FieldAttachment:
		return rbac.Has(actingRole, rbac.UploadAttachment)
	}
	return false
}

// CanWriteAtCreation reports whether actingRole may supply the field in
// a bug draft. The creator is always QA; managers only ever touch the
// assignee, and they do that through QA-submitted drafts in practice.
func CanWriteAtCreation(actingRole types.Role, field Field) bool {
	switch field {
	case FieldAssignee:
		return actingRole == types.RoleManager || actingRole == types.RoleQA
	case FieldTitle, FieldType, FieldDeadline, FieldDetail:
		return actingRole == types.RoleQA
	}
	return false
}

// ApplyEdit returns a copy of the bug with the field set to newValue,
// or a rejection. The caller persists the result; ApplyEdit itself
// never mutates its input and never touches storage.
//
// Status edits run through ValidateTransition so the field gate cannot
// be used to smuggle a status outside the type's vocabulary.
func ApplyEdit(bug *types.Bug, field Field, newValue any, actingRole types.Role) (*types.Bug, error) {
	if !CanWrite(actingRole, field) {
		return nil, fmt.Errorf("%w: role %q cannot write field %q", ErrForbidden, actingRole, field)
	}

	out := bug.Clone()
	switch field {
	case FieldStatus:
		status, err := statusValue(newValue)
		if err != nil {
			return nil, err
		}
		if err := ValidateTransition(bug, status, actingRole); err != nil {
			return nil, err
		}
		out.Status = status
	case FieldDetail:
		detail, err := stringValue(field, newValue)
		if err != nil {
			return nil, err
		}
		out.Detail = detail
	case FieldAttachment:
		ref, err := stringValue(field, newValue)
		if err != nil {
			return nil, err
		}
		out.Attachment = ref
	default:
		// CanWrite already denied everything else; unreachable.
		return nil, fmt.Errorf("%w: field %q is not editable", ErrForbidden, field)
	}
	return out, nil
}

func statusValue(v any) (types.Status, error) {
	switch s := v.(type) {
	case types.Status:
		return s, nil
	case string:
		return types.Status(s), nil
	}
	return "", fmt.Errorf("status value must be a string, got %T", v)
}

func stringValue(field Field, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s value must be a string, got %T", field, v)
	}
	return s, nil
}
