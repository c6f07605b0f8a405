// Package types defines core data structures for the managebug tracker.
package types

import (
	"fmt"
	"time"
)

// Role determines which capabilities a user holds.
type Role string

// Role constants
const (
	RoleManager   Role = "manager"
	RoleDeveloper Role = "developer"
	RoleQA        Role = "qa"
)

// IsValid checks if the role value is a member of the closed role set.
func (r Role) IsValid() bool {
	switch r {
	case RoleManager, RoleDeveloper, RoleQA:
		return true
	}
	return false
}

// User represents an account in the tracker. Identity is compared by ID
// only; callers must never compare users structurally.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           Role      `json:"role"`
	ProfilePicture string    `json:"profile_picture,omitempty"` // upload reference, never raw bytes
	PasswordHash   string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks if the user has valid field values.
func (u *User) Validate() error {
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !u.Role.IsValid() {
		return fmt.Errorf("invalid role: %s", u.Role)
	}
	return nil
}

// Project represents a container of bugs owned by exactly one manager.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Detail    string    `json:"detail,omitempty"`
	ManagerID string    `json:"manager_id"`
	Logo      string    `json:"logo,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the project has valid field values.
func (p *Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.ManagerID == "" {
		return fmt.Errorf("manager is required")
	}
	return nil
}

// ProjectMember links a user to a project. The (project, user) pair is
// unique; the owning manager is always a member of their own project.
type ProjectMember struct {
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	AddedAt   time.Time `json:"added_at"`
}

// BugType categorizes a trackable record and scopes its status vocabulary.
type BugType string

// Bug type constants
const (
	TypeBug     BugType = "bug"
	TypeFeature BugType = "feature"
)

// IsValid checks if the bug type value is valid.
func (t BugType) IsValid() bool {
	switch t {
	case TypeBug, TypeFeature:
		return true
	}
	return false
}

// Status represents the current state of a bug. Which statuses are legal
// depends on the bug's type: bugs resolve, features complete.
type Status string

// Status constants
const (
	StatusNew       Status = "new"
	StatusStarted   Status = "started"
	StatusResolved  Status = "resolved"  // bugs only
	StatusCompleted Status = "completed" // features only
)

// ValidFor reports whether the status is in the vocabulary of the given
// bug type. The vocabularies overlap on new/started and diverge on the
// terminal-looking states (nothing is actually terminal; any state may
// move to any other within the same vocabulary).
func (s Status) ValidFor(t BugType) bool {
	switch s {
	case StatusNew, StatusStarted:
		return t.IsValid()
	case StatusResolved:
		return t == TypeBug
	case StatusCompleted:
		return t == TypeFeature
	}
	return false
}

// StatusesFor returns the full status vocabulary for a bug type, in
// workflow order. Returns nil for an invalid type.
func StatusesFor(t BugType) []Status {
	switch t {
	case TypeBug:
		return []Status{StatusNew, StatusStarted, StatusResolved}
	case TypeFeature:
		return []Status{StatusNew, StatusStarted, StatusCompleted}
	}
	return nil
}

// InitialStatus returns the status a freshly created bug starts in.
func InitialStatus(t BugType) Status {
	return StatusNew
}

// Bug represents a trackable defect or feature request. The parent
// project and the creator are fixed at creation and never change.
type Bug struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Type       BugType    `json:"type"`
	Title      string     `json:"title"`
	Detail     string     `json:"detail,omitempty"`
	Status     Status     `json:"status"`
	CreatorID  string     `json:"creator_id"`
	AssigneeID *string    `json:"assignee_id,omitempty"`
	Deadline   *string    `json:"deadline,omitempty"` // calendar date, YYYY-MM-DD, no timezone semantics
	Attachment string     `json:"attachment,omitempty"` // stable upload reference, never raw bytes
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Assigned reports whether the bug has an assignee.
func (b *Bug) Assigned() bool {
	return b.AssigneeID != nil && *b.AssigneeID != ""
}

// AssignedTo reports whether the bug is assigned to the given user.
func (b *Bug) AssignedTo(userID string) bool {
	return b.AssigneeID != nil && *b.AssigneeID == userID
}

// Clone returns a deep copy of the bug. Editing operations return copies
// so a rejected write never mutates the caller's snapshot.
func (b *Bug) Clone() *Bug {
	out := *b
	if b.AssigneeID != nil {
		v := *b.AssigneeID
		out.AssigneeID = &v
	}
	if b.Deadline != nil {
		v := *b.Deadline
		out.Deadline = &v
	}
	return &out
}

// Validate checks if the bug has valid field values.
func (b *Bug) Validate() error {
	if len(b.Title) == 0 {
		return fmt.Errorf("title is required")
	}
	if len(b.Title) > 255 {
		return fmt.Errorf("title must be 255 characters or less (got %d)", len(b.Title))
	}
	if b.ProjectID == "" {
		return fmt.Errorf("project is required")
	}
	if b.CreatorID == "" {
		return fmt.Errorf("creator is required")
	}
	if !b.Type.IsValid() {
		return fmt.Errorf("invalid bug type: %s", b.Type)
	}
	if !b.Status.ValidFor(b.Type) {
		return fmt.Errorf("invalid status %q for type %q", b.Status, b.Type)
	}
	if b.Deadline != nil {
		if _, err := time.Parse("2006-01-02", *b.Deadline); err != nil {
			return fmt.Errorf("invalid deadline: %s", *b.Deadline)
		}
	}
	return nil
}

// Draft carries the caller-supplied fields for bug creation. Creator and
// initial status are filled in by the engine, never by the caller.
type Draft struct {
	ProjectID  string  `json:"project_id"`
	Type       BugType `json:"type"`
	Title      string  `json:"title"`
	Detail     string  `json:"detail,omitempty"`
	AssigneeID *string `json:"assignee_id,omitempty"`
	Deadline   *string `json:"deadline,omitempty"`
}

// NotificationKind categorizes in-app notifications.
type NotificationKind string

// Notification kind constants
const (
	NotifyProjectAddition NotificationKind = "project_addition"
	NotifyBugAssignment   NotificationKind = "bug_assignment"
	NotifyStatusChange    NotificationKind = "status_change"
)

// IsValid checks if the notification kind is valid.
func (k NotificationKind) IsValid() bool {
	switch k {
	case NotifyProjectAddition, NotifyBugAssignment, NotifyStatusChange:
		return true
	}
	return false
}

// Notification is an in-app message delivered to a single user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// Session is an opaque credential binding a token to a user for a
// limited time. Roles live on the user record, never on the session:
// every call re-derives the caller's role from the current user row.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
