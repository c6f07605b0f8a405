package api

import (
	"errors"
	"net/http"

	"github.com/managebug/managebug/internal/identity"
	"github.com/managebug/managebug/internal/rbac"
	"github.com/managebug/managebug/internal/storage"
	"github.com/managebug/managebug/internal/upload"
	"github.com/managebug/managebug/internal/workflow"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps typed rejections from the engine and collaborators
// to HTTP statuses. Anything unrecognized is a 500 with a generic
// message so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, identity.ErrInvalidCredential):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, workflow.ErrForbidden), errors.Is(err, rbac.ErrUnknownRole):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, storage.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, storage.ErrDuplicate):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, workflow.ErrMissingTitle),
		errors.Is(err, workflow.ErrStatusNotInVocabulary),
		errors.Is(err, upload.ErrTooLarge),
		errors.Is(err, upload.ErrBadType),
		errors.Is(err, upload.ErrUnknownKind):
		status, message = http.StatusBadRequest, err.Error()
	}

	writeJSON(w, status, errorResponse{Error: message})
}
