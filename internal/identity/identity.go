// Package identity resolves caller credentials to users.
//
// The engine never caches a caller's role: every operation goes back
// through CurrentUser so a role change (which requires
// re-authentication) can never leave a stale privilege lying around in
// process memory.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/managebug/managebug/internal/storage"
	"github.com/managebug/managebug/internal/types"
)

// ErrInvalidCredential is returned for unknown, malformed or expired
// session tokens.
var ErrInvalidCredential = errors.New("invalid or expired credential")

// DefaultSessionTTL is how long an issued session stays valid.
const DefaultSessionTTL = 30 * 24 * time.Hour

// Provider supplies the current user for a caller credential. The
// workflow engine consumes this interface and nothing else from the
// auth world.
type Provider interface {
	CurrentUser(ctx context.Context, token string) (*types.User, error)
}

// Service is the session-token Provider backed by storage.
type Service struct {
	store storage.Storage
	ttl   time.Duration
}

var _ Provider = (*Service)(nil)

// NewService creates a session service. ttl <= 0 uses DefaultSessionTTL.
func NewService(store storage.Storage, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{store: store, ttl: ttl}
}

// Login verifies the password against the stored hash and issues a
// session. Unknown emails and bad passwords return the same error so
// callers cannot enumerate accounts. An account with no stored hash
// cannot log in at all.
func (s *Service) Login(ctx context.Context, email, password string) (*types.Session, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: bad email or password", ErrInvalidCredential)
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, fmt.Errorf("%w: bad email or password", ErrInvalidCredential)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: bad email or password", ErrInvalidCredential)
	}

	now := time.Now()
	session := &types.Session{
		Token:     generateToken(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// CurrentUser implements Provider. Expired sessions are deleted on
// sight.
func (s *Service) CurrentUser(ctx context.Context, token string) (*types.User, error) {
	if token == "" {
		return nil, ErrInvalidCredential
	}
	session, err := s.store.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}
	if session.Expired(time.Now()) {
		_ = s.store.DeleteSession(ctx, token)
		return nil, ErrInvalidCredential
	}
	user, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}
	return user, nil
}

// Logout deletes the session for a token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.DeleteSession(ctx, token)
}

func generateToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// HashPassword produces the stored form of a password. Registration and
// seeding go through here so the cost factor lives in one place.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
