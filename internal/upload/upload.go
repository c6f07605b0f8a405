// Package upload resolves submitted files to stable path references.
//
// The engine only ever stores and compares the returned reference; raw
// bytes never flow through the workflow layer.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxFileSize is the upload size ceiling.
const MaxFileSize = 5 * 1024 * 1024

// Kind scopes validation rules and the destination subdirectory.
type Kind string

// Upload kind constants
const (
	KindBugAttachment  Kind = "bug_attachment"
	KindProfilePicture Kind = "profile_picture"
	KindProjectLogo    Kind = "project_logo"
)

var kindDirs = map[Kind]string{
	KindBugAttachment:  "bug_attachments",
	KindProfilePicture: "profile_pictures",
	KindProjectLogo:    "project_logos",
}

// Validation errors, matchable with errors.Is.
var (
	ErrTooLarge    = errors.New("file size should be less than 5MB")
	ErrBadType     = errors.New("file type not allowed")
	ErrUnknownKind = errors.New("invalid upload type")
)

// Store saves uploads under a base directory and hands back stable
// references of the form "<kind dir>/<uuid>_<name>".
type Store struct {
	baseDir string
}

// NewStore creates a store rooted at baseDir, creating the kind
// subdirectories as needed.
func NewStore(baseDir string) (*Store, error) {
	for _, dir := range kindDirs {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0o750); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &Store{baseDir: baseDir}, nil
}

// Save validates and writes one upload, returning its stable reference.
// Bug attachments must be PNG or GIF images; profile pictures and
// project logos accept any image content type.
func (s *Store) Save(kind Kind, name, contentType string, size int64, r io.Reader) (string, error) {
	dir, ok := kindDirs[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if size > MaxFileSize {
		return "", ErrTooLarge
	}
	if err := checkContentType(kind, contentType); err != nil {
		return "", err
	}

	ref := filepath.ToSlash(filepath.Join(dir, uuid.NewString()+"_"+filepath.Base(name)))
	dst, err := os.Create(filepath.Join(s.baseDir, filepath.FromSlash(ref)))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer func() { _ = dst.Close() }()

	// The size header is advisory; enforce the cap on actual bytes too.
	n, err := io.Copy(dst, io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if n > MaxFileSize {
		_ = os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(ref)))
		return "", ErrTooLarge
	}
	return ref, nil
}

// Path maps a reference back to the absolute file path.
func (s *Store) Path(ref string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(ref))
}

func checkContentType(kind Kind, contentType string) error {
	switch kind {
	case KindBugAttachment:
		if contentType != "image/png" && contentType != "image/gif" {
			return fmt.Errorf("%w: only PNG and GIF files are allowed for bug attachments", ErrBadType)
		}
	case KindProfilePicture, KindProjectLogo:
		if !strings.HasPrefix(contentType, "image/") {
			return fmt.Errorf("%w: only image files are allowed", ErrBadType)
		}
	}
	return nil
}
