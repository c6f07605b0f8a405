// Package workflow implements the bug workflow and access control
// engine: visibility filtering, status transition validation,
// field-level write gating, and the orchestrating engine that services
// list/create/update intents.
//
// The engine is stateless between calls. Each operation reads a
// snapshot from the storage collaborator, computes a decision, and
// emits at most one write. It never logs and never renders UI text;
// rejections are typed errors for the caller to translate.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/managebug/managebug/internal/events"
	"github.com/managebug/managebug/internal/rbac"
	"github.com/managebug/managebug/internal/storage"
	"github.com/managebug/managebug/internal/types"
)

// Engine orchestrates the role registry, visibility filter, transition
// validator and field gate over a storage collaborator. The event bus
// is optional; a nil bus disables notifications.
type Engine struct {
	store storage.Storage
	bus   *events.Bus
}

// New creates an engine over the given store. bus may be nil.
func New(store storage.Storage, bus *events.Bus) *Engine {
	return &Engine{store: store, bus: bus}
}

// ListVisibleBugs fetches candidate bugs, optionally narrowed to one
// project, and returns the subset the caller may see. An unknown or
// missing role yields an empty result, not an error: read-path denial
// must never crash a listing screen.
func (e *Engine) ListVisibleBugs(ctx context.Context, caller *types.User, projectID string) ([]*types.Bug, error) {
	if caller == nil || !caller.Role.IsValid() {
		return []*types.Bug{}, nil
	}

	var bugs []*types.Bug
	var err error
	if projectID != "" {
		bugs, err = e.store.GetBugsByProject(ctx, projectID)
	} else {
		bugs, err = e.store.GetAllBugs(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list bugs: %w", err)
	}

	managers, err := e.managersFor(ctx, caller, bugs)
	if err != nil {
		return nil, err
	}
	return Filter(caller, bugs, managers), nil
}

// managersFor resolves the owning manager of every project referenced
// by the candidate bugs. Only manager callers need the map; other
// roles get an empty one. A project that has vanished is simply left
// out, which denies visibility into it.
func (e *Engine) managersFor(ctx context.Context, caller *types.User, bugs []*types.Bug) (ProjectManagers, error) {
	managers := ProjectManagers{}
	if !rbac.Has(caller.Role, rbac.ViewAllProjectBugs) {
		return managers, nil
	}
	for _, b := range bugs {
		if _, seen := managers[b.ProjectID]; seen {
			continue
		}
		project, err := e.store.GetProject(ctx, b.ProjectID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("resolve project %s: %w", b.ProjectID, err)
		}
		managers[project.ID] = project.ManagerID
	}
	return managers, nil
}

// CreateBug validates a draft and persists a new bug with the caller as
// creator and the type's initial status. The caller must hold the
// CreateBug capability and be a member of the target project. An
// assignee, when supplied, must be an existing developer.
func (e *Engine) CreateBug(ctx context.Context, caller *types.User, draft types.Draft) (*types.Bug, error) {
	if caller == nil || !rbac.Has(caller.Role, rbac.CreateBug) {
		return nil, fmt.Errorf("%w: only QA can create bugs", ErrForbidden)
	}
	if strings.TrimSpace(draft.Title) == "" {
		return nil, ErrMissingTitle
	}

	project, err := e.store.GetProject(ctx, draft.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", draft.ProjectID, err)
	}
	member, err := e.store.IsProjectMember(ctx, project.ID, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, fmt.Errorf("%w: not a member of project %s", ErrForbidden, project.ID)
	}

	bugType := draft.Type
	if bugType == "" {
		bugType = types.TypeBug
	}

	var assignee *types.User
	if draft.AssigneeID != nil && *draft.AssigneeID != "" {
		assignee, err = e.store.GetUser(ctx, *draft.AssigneeID)
		if err != nil {
			return nil, fmt.Errorf("assignee %s: %w", *draft.AssigneeID, err)
		}
		if assignee.Role != types.RoleDeveloper {
			return nil, fmt.Errorf("assignee must be a developer, got role %q", assignee.Role)
		}
	}

	now := time.Now()
	bug := &types.Bug{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		Type:      bugType,
		Title:     strings.TrimSpace(draft.Title),
		Detail:    draft.Detail,
		Status:    types.InitialStatus(bugType),
		CreatorID: caller.ID,
		Deadline:  draft.Deadline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if assignee != nil {
		id := assignee.ID
		bug.AssigneeID = &id
	}
	if err := bug.Validate(); err != nil {
		return nil, err
	}
	if err := e.store.CreateBug(ctx, bug); err != nil {
		return nil, fmt.Errorf("create bug: %w", err)
	}

	e.dispatch(ctx, &events.Event{Type: events.EventBugCreated, Actor: caller, Bug: bug, Project: project})
	if assignee != nil {
		e.dispatch(ctx, &events.Event{
			Type:        events.EventBugAssigned,
			Actor:       caller,
			Bug:         bug,
			Project:     project,
			RecipientID: assignee.ID,
		})
	}
	return bug, nil
}

// ChangeStatus validates and persists a status transition. Beyond the
// role gate, the acting developer must be the bug's assignee; being a
// developer somewhere in the project is not enough.
func (e *Engine) ChangeStatus(ctx context.Context, caller *types.User, bugID string, newStatus types.Status) (*types.Bug, error) {
	if caller == nil {
		return nil, fmt.Errorf("%w: no caller", ErrForbidden)
	}
	bug, err := e.store.GetBug(ctx, bugID)
	if err != nil {
		return nil, fmt.Errorf("bug %s: %w", bugID, err)
	}
	if err := ValidateTransition(bug, newStatus, caller.Role); err != nil {
		return nil, err
	}
	if !bug.AssignedTo(caller.ID) {
		return nil, fmt.Errorf("%w: bug %s is not assigned to you", ErrForbidden, bugID)
	}

	updated := bug.Clone()
	updated.Status = newStatus
	saved, err := e.store.SaveBug(ctx, updated)
	if err != nil {
		return nil, fmt.Errorf("save bug: %w", err)
	}

	if recipient := saved.CreatorID; recipient != caller.ID {
		e.dispatch(ctx, &events.Event{
			Type:        events.EventStatusChanged,
			Actor:       caller,
			Bug:         saved,
			RecipientID: recipient,
			NewStatus:   newStatus,
		})
	}
	return saved, nil
}

// EditField applies a gated single-field mutation and persists it.
// Developers may only touch bugs assigned to them; QA may only touch
// the attachment of bugs they created.
func (e *Engine) EditField(ctx context.Context, caller *types.User, bugID string, field Field, newValue any) (*types.Bug, error) {
	if caller == nil {
		return nil, fmt.Errorf("%w: no caller", ErrForbidden)
	}
	bug, err := e.store.GetBug(ctx, bugID)
	if err != nil {
		return nil, fmt.Errorf("bug %s: %w", bugID, err)
	}

	updated, err := ApplyEdit(bug, field, newValue, caller.Role)
	if err != nil {
		return nil, err
	}
	if err := e.checkRecordScope(caller, bug); err != nil {
		return nil, err
	}

	saved, err := e.store.SaveBug(ctx, updated)
	if err != nil {
		return nil, fmt.Errorf("save bug: %w", err)
	}
	return saved, nil
}

// checkRecordScope narrows a role's field grant to the records that
// role works: developers to their assigned bugs, QA to their created
// bugs.
func (e *Engine) checkRecordScope(caller *types.User, bug *types.Bug) error {
	switch caller.Role {
	case types.RoleDeveloper:
		if !bug.AssignedTo(caller.ID) {
			return fmt.Errorf("%w: bug %s is not assigned to you", ErrForbidden, bug.ID)
		}
	case types.RoleQA:
		if bug.CreatorID != caller.ID {
			return fmt.Errorf("%w: bug %s was not created by you", ErrForbidden, bug.ID)
		}
	}
	return nil
}

// CreateProject persists a new project owned by the calling manager
// and enrolls the manager as its first member. logo is an upload
// reference and may be empty.
func (e *Engine) CreateProject(ctx context.Context, caller *types.User, name, detail, logo string) (*types.Project, error) {
	if caller == nil || caller.Role != types.RoleManager {
		return nil, fmt.Errorf("%w: only managers can create projects", ErrForbidden)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("project name is required")
	}

	now := time.Now()
	project := &types.Project{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Detail:    detail,
		ManagerID: caller.ID,
		Logo:      logo,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}
	if err := e.store.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	if err := e.store.AddProjectMember(ctx, project.ID, caller.ID); err != nil {
		return nil, fmt.Errorf("enroll manager: %w", err)
	}
	return project, nil
}

// AddMember adds a user to a project. The caller must hold the
// AddProjectMember capability and own the project. Duplicate members
// surface storage.ErrDuplicate.
func (e *Engine) AddMember(ctx context.Context, caller *types.User, projectID, userID string) error {
	if caller == nil || !rbac.Has(caller.Role, rbac.AddProjectMember) {
		return fmt.Errorf("%w: only managers can add members", ErrForbidden)
	}
	project, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("project %s: %w", projectID, err)
	}
	if project.ManagerID != caller.ID {
		return fmt.Errorf("%w: you are not the manager of project %s", ErrForbidden, projectID)
	}
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("user %s: %w", userID, err)
	}
	if err := e.store.AddProjectMember(ctx, projectID, userID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}

	e.dispatch(ctx, &events.Event{
		Type:        events.EventMemberAdded,
		Actor:       caller,
		Project:     project,
		RecipientID: user.ID,
	})
	return nil
}

// ListVisibleProjects returns the projects the caller may see: their
// own for managers, their memberships for developers and QA, nothing
// for anyone else.
func (e *Engine) ListVisibleProjects(ctx context.Context, caller *types.User) ([]*types.Project, error) {
	if caller == nil {
		return []*types.Project{}, nil
	}
	switch caller.Role {
	case types.RoleManager:
		return e.store.GetProjectsByManager(ctx, caller.ID)
	case types.RoleDeveloper, types.RoleQA:
		return e.store.GetProjectsForMember(ctx, caller.ID)
	}
	return []*types.Project{}, nil
}

// dispatch emits an event when a bus is configured. Dispatch failures
// are swallowed here as well: notification delivery is best-effort and
// must never fail the underlying operation.
func (e *Engine) dispatch(ctx context.Context, event *events.Event) {
	if e.bus == nil {
		return
	}
	_ = e.bus.Dispatch(ctx, event)
}
