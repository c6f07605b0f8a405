package api

import (
	"net/http"

	"github.com/managebug/managebug/internal/types"
	"github.com/managebug/managebug/internal/workflow"
)

func (s *Server) handleListBugs(w http.ResponseWriter, r *http.Request) {
	bugs, err := s.engine.ListVisibleBugs(r.Context(), currentUser(r), "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bugs)
}

func (s *Server) handleListProjectBugs(w http.ResponseWriter, r *http.Request) {
	bugs, err := s.engine.ListVisibleBugs(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bugs)
}

func (s *Server) handleCreateBug(w http.ResponseWriter, r *http.Request) {
	var draft types.Draft
	if err := decodeJSON(r, &draft); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	bug, err := s.engine.CreateBug(r.Context(), currentUser(r), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bug)
}

type changeStatusRequest struct {
	Status types.Status `json:"status"`
}

func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	bug, err := s.engine.ChangeStatus(r.Context(), currentUser(r), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bug)
}

type editFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) handleEditField(w http.ResponseWriter, r *http.Request) {
	var req editFieldRequest
	if err := decodeJSON(r, &req); err != nil || req.Field == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "field is required"})
		return
	}
	bug, err := s.engine.EditField(r.Context(), currentUser(r), r.PathValue("id"), workflow.Field(req.Field), req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bug)
}
