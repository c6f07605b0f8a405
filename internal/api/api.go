// Package api exposes the workflow engine over a thin JSON transport.
//
// Handlers translate typed engine rejections into HTTP statuses and
// user-facing messages; the engine itself stays silent. Every request
// resolves the caller through the identity provider, never from
// anything cached on the connection.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/managebug/managebug/internal/describe"
	"github.com/managebug/managebug/internal/identity"
	"github.com/managebug/managebug/internal/storage"
	"github.com/managebug/managebug/internal/types"
	"github.com/managebug/managebug/internal/upload"
	"github.com/managebug/managebug/internal/workflow"
)

// Server bundles the engine and its collaborators behind HTTP.
type Server struct {
	engine  *workflow.Engine
	ident   *identity.Service
	uploads *upload.Store
	store   storage.Storage
	descgen describe.Generator
}

// NewServer creates an API server. uploads may be nil to disable the
// upload endpoint; descgen may be nil to disable description
// generation.
func NewServer(engine *workflow.Engine, ident *identity.Service, uploads *upload.Store, store storage.Storage, descgen describe.Generator) *Server {
	return &Server{engine: engine, ident: ident, uploads: uploads, store: store, descgen: descgen}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /api/login", s.handleLogin)

	// Authenticated routes
	app := http.NewServeMux()
	app.HandleFunc("POST /api/logout", s.handleLogout)
	app.HandleFunc("GET /api/me", s.handleMe)
	app.HandleFunc("PATCH /api/me", s.handleUpdateMe)
	app.HandleFunc("GET /api/users", s.handleListUsers)
	app.HandleFunc("GET /api/projects", s.handleListProjects)
	app.HandleFunc("POST /api/projects", s.handleCreateProject)
	app.HandleFunc("POST /api/projects/describe", s.handleDescribeProject)
	app.HandleFunc("GET /api/projects/{id}/bugs", s.handleListProjectBugs)
	app.HandleFunc("GET /api/projects/{id}/members", s.handleListMembers)
	app.HandleFunc("POST /api/projects/{id}/members", s.handleAddMember)
	app.HandleFunc("GET /api/bugs", s.handleListBugs)
	app.HandleFunc("POST /api/bugs", s.handleCreateBug)
	app.HandleFunc("POST /api/bugs/{id}/status", s.handleChangeStatus)
	app.HandleFunc("PATCH /api/bugs/{id}", s.handleEditField)
	app.HandleFunc("POST /api/uploads", s.handleUpload)
	app.HandleFunc("GET /api/notifications", s.handleListNotifications)
	app.HandleFunc("POST /api/notifications/{id}/read", s.handleMarkRead)

	mux.Handle("/api/", s.authMiddleware(app))
	return mux
}

type contextKey string

const userKey contextKey = "user"

// currentUser returns the authenticated user from the request context.
func currentUser(r *http.Request) *types.User {
	if u, ok := r.Context().Value(userKey).(*types.User); ok {
		return u
	}
	return nil
}

// authMiddleware resolves the bearer token to a user on every request.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.ident.CurrentUser(r.Context(), bearerToken(r))
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return after
	}
	if c, err := r.Cookie("session"); err == nil {
		return c.Value
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}
