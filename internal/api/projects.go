package api

import (
	"net/http"
)

type createProjectRequest struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
	Logo   string `json:"logo"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.engine.ListVisibleProjects(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	project, err := s.engine.CreateProject(r.Context(), currentUser(r), req.Name, req.Detail, req.Logo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

type describeProjectRequest struct {
	Name string `json:"name"`
}

type describeProjectResponse struct {
	Description string `json:"description"`
}

// handleDescribeProject drafts a project description from its name.
// Returns 503 when no generator is configured.
func (s *Server) handleDescribeProject(w http.ResponseWriter, r *http.Request) {
	if s.descgen == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "description generation is not configured"})
		return
	}
	var req describeProjectRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}
	description, err := s.descgen.ProjectDescription(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describeProjectResponse{Description: description})
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id is required"})
		return
	}
	if err := s.engine.AddMember(r.Context(), currentUser(r), r.PathValue("id"), req.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.store.GetProjectMembers(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}
