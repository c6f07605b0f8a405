// Package memory implements the storage interface with in-process
// maps. It backs tests and ephemeral usage; semantics mirror the
// sqlite backend, including newest-first list ordering and per-record
// atomic reads (every getter returns a copy).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/managebug/managebug/internal/storage"
	"github.com/managebug/managebug/internal/types"
)

// Store is a map-backed storage implementation. Safe for concurrent
// use.
type Store struct {
	mu sync.RWMutex

	users         map[string]*types.User
	usersByEmail  map[string]string
	projects      map[string]*types.Project
	members       map[string]map[string]time.Time // projectID -> userID -> added at
	bugs          map[string]*types.Bug
	bugOrder      []string // insertion order; lists return newest first
	sessions      map[string]*types.Session
	notifications map[string]*types.Notification
	notifOrder    []string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]*types.User),
		usersByEmail:  make(map[string]string),
		projects:      make(map[string]*types.Project),
		members:       make(map[string]map[string]time.Time),
		bugs:          make(map[string]*types.Bug),
		sessions:      make(map[string]*types.Session),
		notifications: make(map[string]*types.Notification),
	}
}

var _ storage.Storage = (*Store)(nil)

// CreateUser implements storage.Storage.
func (s *Store) CreateUser(ctx context.Context, user *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("user %s: %w", user.ID, storage.ErrDuplicate)
	}
	if _, ok := s.usersByEmail[user.Email]; ok {
		return fmt.Errorf("email %s: %w", user.Email, storage.ErrDuplicate)
	}
	u := *user
	s.users[u.ID] = &u
	s.usersByEmail[u.Email] = u.ID
	return nil
}

// GetUser implements storage.Storage.
func (s *Store) GetUser(ctx context.Context, id string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	out := *u
	return &out, nil
}

// GetUserByEmail implements storage.Storage.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, fmt.Errorf("email %s: %w", email, storage.ErrNotFound)
	}
	out := *s.users[id]
	return &out, nil
}

// ListUsers implements storage.Storage.
func (s *Store) ListUsers(ctx context.Context) ([]*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.User, 0, len(s.users))
	for _, u := range s.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// SetUserPicture implements storage.Storage.
func (s *Store) SetUserPicture(ctx context.Context, userID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	u.ProfilePicture = ref
	u.UpdatedAt = time.Now()
	return nil
}

// CreateProject implements storage.Storage.
func (s *Store) CreateProject(ctx context.Context, project *types.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[project.ID]; ok {
		return fmt.Errorf("project %s: %w", project.ID, storage.ErrDuplicate)
	}
	p := *project
	s.projects[p.ID] = &p
	s.members[p.ID] = make(map[string]time.Time)
	return nil
}

// GetProject implements storage.Storage.
func (s *Store) GetProject(ctx context.Context, id string) (*types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, storage.ErrNotFound)
	}
	out := *p
	return &out, nil
}

// GetProjectsByManager implements storage.Storage.
func (s *Store) GetProjectsByManager(ctx context.Context, managerID string) ([]*types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Project
	for _, p := range s.projects {
		if p.ManagerID == managerID {
			c := *p
			out = append(out, &c)
		}
	}
	sortProjects(out)
	return out, nil
}

// GetProjectsForMember implements storage.Storage.
func (s *Store) GetProjectsForMember(ctx context.Context, userID string) ([]*types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Project
	for projectID, members := range s.members {
		if _, ok := members[userID]; ok {
			c := *s.projects[projectID]
			out = append(out, &c)
		}
	}
	sortProjects(out)
	return out, nil
}

// AddProjectMember implements storage.Storage.
func (s *Store) AddProjectMember(ctx context.Context, projectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.members[projectID]
	if !ok {
		return fmt.Errorf("project %s: %w", projectID, storage.ErrNotFound)
	}
	if _, ok := s.users[userID]; !ok {
		return fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if _, ok := members[userID]; ok {
		return fmt.Errorf("member %s in project %s: %w", userID, projectID, storage.ErrDuplicate)
	}
	members[userID] = time.Now()
	return nil
}

// GetProjectMembers implements storage.Storage.
func (s *Store) GetProjectMembers(ctx context.Context, projectID string) ([]*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members, ok := s.members[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, storage.ErrNotFound)
	}
	out := make([]*types.User, 0, len(members))
	for userID := range members {
		c := *s.users[userID]
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// IsProjectMember implements storage.Storage.
func (s *Store) IsProjectMember(ctx context.Context, projectID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members, ok := s.members[projectID]
	if !ok {
		return false, fmt.Errorf("project %s: %w", projectID, storage.ErrNotFound)
	}
	_, member := members[userID]
	return member, nil
}

// CreateBug implements storage.Storage.
func (s *Store) CreateBug(ctx context.Context, bug *types.Bug) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bugs[bug.ID]; ok {
		return fmt.Errorf("bug %s: %w", bug.ID, storage.ErrDuplicate)
	}
	if s.titleTaken(bug.ProjectID, bug.Title, bug.ID) {
		return fmt.Errorf("title %q in project %s: %w", bug.Title, bug.ProjectID, storage.ErrDuplicate)
	}
	s.bugs[bug.ID] = bug.Clone()
	s.bugOrder = append(s.bugOrder, bug.ID)
	return nil
}

// GetBug implements storage.Storage.
func (s *Store) GetBug(ctx context.Context, id string) (*types.Bug, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bugs[id]
	if !ok {
		return nil, fmt.Errorf("bug %s: %w", id, storage.ErrNotFound)
	}
	return b.Clone(), nil
}

// GetBugsByProject implements storage.Storage.
func (s *Store) GetBugsByProject(ctx context.Context, projectID string) ([]*types.Bug, error) {
	return s.listBugs(func(b *types.Bug) bool { return b.ProjectID == projectID }), nil
}

// GetAllBugs implements storage.Storage.
func (s *Store) GetAllBugs(ctx context.Context) ([]*types.Bug, error) {
	return s.listBugs(func(b *types.Bug) bool { return true }), nil
}

// listBugs returns matching bugs newest first.
func (s *Store) listBugs(match func(*types.Bug) bool) []*types.Bug {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Bug, 0, len(s.bugOrder))
	for i := len(s.bugOrder) - 1; i >= 0; i-- {
		b := s.bugs[s.bugOrder[i]]
		if match(b) {
			out = append(out, b.Clone())
		}
	}
	return out
}

// SaveBug implements storage.Storage. Last write wins.
func (s *Store) SaveBug(ctx context.Context, bug *types.Bug) (*types.Bug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bugs[bug.ID]; !ok {
		return nil, fmt.Errorf("bug %s: %w", bug.ID, storage.ErrNotFound)
	}
	if s.titleTaken(bug.ProjectID, bug.Title, bug.ID) {
		return nil, fmt.Errorf("title %q in project %s: %w", bug.Title, bug.ProjectID, storage.ErrDuplicate)
	}
	saved := bug.Clone()
	saved.UpdatedAt = time.Now()
	s.bugs[saved.ID] = saved
	return saved.Clone(), nil
}

// titleTaken reports whether another bug in the project already uses
// the title. Must be called with the lock held.
func (s *Store) titleTaken(projectID, title, excludeID string) bool {
	for _, b := range s.bugs {
		if b.ID != excludeID && b.ProjectID == projectID && b.Title == title {
			return true
		}
	}
	return false
}

// CreateSession implements storage.Storage.
func (s *Store) CreateSession(ctx context.Context, session *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.Token]; ok {
		return fmt.Errorf("session: %w", storage.ErrDuplicate)
	}
	c := *session
	s.sessions[c.Token] = &c
	return nil
}

// GetSession implements storage.Storage.
func (s *Store) GetSession(ctx context.Context, token string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	out := *sess
	return &out, nil
}

// DeleteSession implements storage.Storage.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// AddNotification implements storage.Storage.
func (s *Store) AddNotification(ctx context.Context, n *types.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; ok {
		return fmt.Errorf("notification %s: %w", n.ID, storage.ErrDuplicate)
	}
	c := *n
	s.notifications[c.ID] = &c
	s.notifOrder = append(s.notifOrder, c.ID)
	return nil
}

// GetNotifications implements storage.Storage. Newest first.
func (s *Store) GetNotifications(ctx context.Context, userID string, limit int) ([]*types.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Notification
	for i := len(s.notifOrder) - 1; i >= 0; i-- {
		n := s.notifications[s.notifOrder[i]]
		if n.UserID != userID {
			continue
		}
		c := *n
		out = append(out, &c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MarkNotificationRead implements storage.Storage. The notification
// must belong to the given user.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return fmt.Errorf("notification %s: %w", id, storage.ErrNotFound)
	}
	n.Read = true
	return nil
}

// Close implements storage.Storage.
func (s *Store) Close() error { return nil }

func sortProjects(projects []*types.Project) {
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].ID < projects[j].ID
		}
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
}
