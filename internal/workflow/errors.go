package workflow

import "errors"

// Rejection sentinels. Callers match with errors.Is; the engine never
// logs and never produces user-facing text, it only wraps these with
// context. NotFound and duplicate conditions surface the storage
// sentinels (storage.ErrNotFound, storage.ErrDuplicate) unchanged, and
// unknown roles surface rbac.ErrUnknownRole.
var (
	// ErrForbidden is returned when a capability or field-level write
	// check denies the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrStatusNotInVocabulary is returned when a requested status is
	// outside the vocabulary of the bug's type.
	ErrStatusNotInVocabulary = errors.New("status not in vocabulary")

	// ErrMissingTitle is returned when a bug draft has an empty title.
	ErrMissingTitle = errors.New("missing title")
)
