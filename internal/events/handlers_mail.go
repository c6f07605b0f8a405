package events

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	"github.com/managebug/managebug/internal/storage"
)

// SMTPConfig holds the mail relay settings for the mail handler.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Configured reports whether a relay host is set. Without one the mail
// handler logs and drops.
func (c SMTPConfig) Configured() bool { return c.Host != "" }

// MailHandler emails the recipient of assignment and membership events.
// Sends are best-effort like everything else on the bus.
type MailHandler struct {
	cfg   SMTPConfig
	store storage.Storage

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailHandler creates a mail handler. The store is used to resolve
// recipient IDs to email addresses.
func NewMailHandler(cfg SMTPConfig, store storage.Storage) *MailHandler {
	return &MailHandler{cfg: cfg, store: store, send: smtp.SendMail}
}

// ID implements Handler.
func (h *MailHandler) ID() string { return "mail" }

// Handles implements Handler.
func (h *MailHandler) Handles() []EventType {
	return []EventType{EventBugAssigned, EventMemberAdded}
}

// Handle implements Handler.
func (h *MailHandler) Handle(ctx context.Context, event *Event) error {
	if event.RecipientID == "" {
		return nil
	}
	subject, body := h.compose(event)
	if subject == "" {
		return nil
	}
	recipient, err := h.store.GetUser(ctx, event.RecipientID)
	if err != nil {
		return fmt.Errorf("resolve recipient %s: %w", event.RecipientID, err)
	}
	if !h.cfg.Configured() {
		log.Printf("events: smtp not configured, dropping mail %q to %s", subject, recipient.Email)
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		h.cfg.From, recipient.Email, subject, body)
	var auth smtp.Auth
	if h.cfg.User != "" {
		auth = smtp.PlainAuth("", h.cfg.User, h.cfg.Pass, h.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", h.cfg.Host, h.cfg.Port)
	if err := h.send(addr, auth, h.cfg.From, []string{recipient.Email}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", recipient.Email, err)
	}
	return nil
}

func (h *MailHandler) compose(event *Event) (subject, body string) {
	actor := ""
	if event.Actor != nil {
		actor = event.Actor.Name
	}
	switch event.Type {
	case EventBugAssigned:
		return "New Bug Assigned",
			fmt.Sprintf("You have been assigned a new bug: %s by QA %q", event.Bug.Title, actor)
	case EventMemberAdded:
		return "You are added to a New Project",
			fmt.Sprintf("You have been added to project %q by Manager %q", event.Project.Name, actor)
	}
	return "", ""
}
