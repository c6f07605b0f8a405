package events

import (
	"time"

	"github.com/managebug/managebug/internal/types"
)

// EventType identifies an event flowing through the bus.
type EventType string

const (
	// Bug lifecycle events.
	EventBugCreated    EventType = "BugCreated"
	EventBugAssigned   EventType = "BugAssigned"
	EventStatusChanged EventType = "StatusChanged"

	// Project events.
	EventMemberAdded EventType = "MemberAdded"
)

// Event is the payload dispatched to handlers. Fields are populated per
// event type; handlers must tolerate absent optional fields.
type Event struct {
	Type EventType
	Time time.Time

	// Actor is the user whose operation produced the event.
	Actor *types.User

	// Bug is set for bug lifecycle events.
	Bug *types.Bug

	// Project is set for project events and, when cheaply available,
	// for bug events too.
	Project *types.Project

	// RecipientID is the user the event is about (assignee, new member).
	RecipientID string

	// NewStatus is set for StatusChanged.
	NewStatus types.Status
}
