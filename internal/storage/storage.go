// Package storage provides shared types for tracker storage.
//
// The concrete implementations live in the sqlite and memory
// sub-packages. This package holds the interface and sentinel errors
// that are referenced by both the implementations and their consumers
// (the workflow engine, the HTTP API, cmd/mb).
package storage

import (
	"context"
	"errors"

	"github.com/managebug/managebug/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a uniqueness constraint is violated:
// a second user with the same email, a second member row for the same
// (project, user) pair, or a second bug with the same title inside one
// project.
var ErrDuplicate = errors.New("already exists")

// Storage is the persistence collaborator consumed by the workflow
// engine. Reads are atomic per record: a concurrent reader never
// observes a partially written bug. Writes are last-write-wins.
//
// Consumers depend on this interface rather than on a concrete type so
// that the memory implementation can stand in during tests.
type Storage interface {
	// Users
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, id string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	ListUsers(ctx context.Context) ([]*types.User, error)
	SetUserPicture(ctx context.Context, userID, ref string) error

	// Projects and membership
	CreateProject(ctx context.Context, project *types.Project) error
	GetProject(ctx context.Context, id string) (*types.Project, error)
	GetProjectsByManager(ctx context.Context, managerID string) ([]*types.Project, error)
	GetProjectsForMember(ctx context.Context, userID string) ([]*types.Project, error)
	AddProjectMember(ctx context.Context, projectID, userID string) error
	GetProjectMembers(ctx context.Context, projectID string) ([]*types.User, error)
	IsProjectMember(ctx context.Context, projectID, userID string) (bool, error)

	// Bugs
	CreateBug(ctx context.Context, bug *types.Bug) error
	GetBug(ctx context.Context, id string) (*types.Bug, error)
	GetBugsByProject(ctx context.Context, projectID string) ([]*types.Bug, error)
	GetAllBugs(ctx context.Context) ([]*types.Bug, error)
	SaveBug(ctx context.Context, bug *types.Bug) (*types.Bug, error)

	// Sessions (identity collaborator state)
	CreateSession(ctx context.Context, session *types.Session) error
	GetSession(ctx context.Context, token string) (*types.Session, error)
	DeleteSession(ctx context.Context, token string) error

	// Notifications
	AddNotification(ctx context.Context, n *types.Notification) error
	GetNotifications(ctx context.Context, userID string, limit int) ([]*types.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error

	// Lifecycle
	Close() error
}
