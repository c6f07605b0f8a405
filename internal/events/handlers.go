package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/managebug/managebug/internal/storage"
	"github.com/managebug/managebug/internal/types"
)

// NotifyHandler writes in-app notification records for events that have
// a recipient.
type NotifyHandler struct {
	store storage.Storage
}

// NewNotifyHandler creates a handler backed by the given store.
func NewNotifyHandler(store storage.Storage) *NotifyHandler {
	return &NotifyHandler{store: store}
}

// ID implements Handler.
func (h *NotifyHandler) ID() string { return "notify" }

// Handles implements Handler.
func (h *NotifyHandler) Handles() []EventType {
	return []EventType{EventBugAssigned, EventMemberAdded, EventStatusChanged}
}

// Handle implements Handler.
func (h *NotifyHandler) Handle(ctx context.Context, event *Event) error {
	n := notificationFor(event)
	if n == nil {
		return nil
	}
	n.ID = uuid.NewString()
	if err := h.store.AddNotification(ctx, n); err != nil {
		return fmt.Errorf("add notification: %w", err)
	}
	return nil
}

// notificationFor maps an event to the notification record it produces,
// or nil when the event carries no recipient.
func notificationFor(event *Event) *types.Notification {
	if event.RecipientID == "" {
		return nil
	}
	switch event.Type {
	case EventBugAssigned:
		return &types.Notification{
			UserID:    event.RecipientID,
			Kind:      types.NotifyBugAssignment,
			Title:     "New Bug Assigned",
			Message:   fmt.Sprintf("You have been assigned a new bug: %s", event.Bug.Title),
			Link:      "/projects/" + event.Bug.ProjectID,
			CreatedAt: event.Time,
		}
	case EventMemberAdded:
		return &types.Notification{
			UserID:    event.RecipientID,
			Kind:      types.NotifyProjectAddition,
			Title:     "Added to New Project",
			Message:   fmt.Sprintf("You have been added to project %q", event.Project.Name),
			Link:      "/projects/" + event.Project.ID,
			CreatedAt: event.Time,
		}
	case EventStatusChanged:
		return &types.Notification{
			UserID:    event.RecipientID,
			Kind:      types.NotifyStatusChange,
			Title:     "Bug Status Changed",
			Message:   fmt.Sprintf("%q moved to %s", event.Bug.Title, event.NewStatus),
			Link:      "/projects/" + event.Bug.ProjectID,
			CreatedAt: event.Time,
		}
	}
	return nil
}
