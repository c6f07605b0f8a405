package api

import (
	"net/http"

	"github.com/managebug/managebug/internal/rbac"
	"github.com/managebug/managebug/internal/upload"
	"github.com/managebug/managebug/internal/workflow"
)

type uploadResponse struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "uploads disabled"})
		return
	}
	user := currentUser(r)
	kind := upload.Kind(r.FormValue("type"))
	if kind == "" {
		kind = upload.KindBugAttachment
	}
	// Only roles that can attach files to records may upload them.
	if kind == upload.KindBugAttachment && !rbac.Has(user.Role, rbac.UploadAttachment) {
		writeError(w, workflow.ErrForbidden)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no file provided"})
		return
	}
	defer func() { _ = file.Close() }()

	ref, err := s.uploads.Save(kind, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Path: ref, Filename: header.Filename})
}
