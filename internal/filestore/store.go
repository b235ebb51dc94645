// Package filestore stages harvested batches and identifier files.
//
// Files are addressed by an opaque id. Jobs reference a staged batch as
// "urn:dataio-fs:<id>".
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// URNPrefix prefixes file ids when referenced from a job specification.
const URNPrefix = "urn:dataio-fs:"

// Store is the file store collaborator.
type Store interface {
	// AddFile uploads r and returns the new file id. size may be -1 when
	// unknown.
	AddFile(ctx context.Context, r io.Reader, size int64) (string, error)
	// GetFile opens a previously added file.
	GetFile(ctx context.Context, fileID string) (io.ReadCloser, error)
	// DeleteFile removes a file. Deleting a missing file is not an error.
	DeleteFile(ctx context.Context, fileID string) error
}

// URN returns the job specification reference for fileID.
func URN(fileID string) string { return URNPrefix + fileID }

// newFileID allocates a file id.
func newFileID() string { return uuid.NewString() }

func validFileID(fileID string) error {
	fileID = strings.TrimPrefix(fileID, URNPrefix)
	if _, err := uuid.Parse(fileID); err != nil {
		return wrapError(CodeFileNotFound, false, fmt.Errorf("invalid file id %q", fileID))
	}
	return nil
}

// =============================================================================
// LOCAL STORE
// =============================================================================

// LocalStore keeps files on disk. It backs single-node deployments and tests.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "harvester-files")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, wrapError(CodePermissionDenied, false, err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) AddFile(ctx context.Context, r io.Reader, _ int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := newFileID()
	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", wrapError(CodeUploadFailed, true, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", wrapError(CodeUploadFailed, true, err)
	}
	if err := tmp.Close(); err != nil {
		return "", wrapError(CodeUploadFailed, true, err)
	}
	if err := os.Rename(tmp.Name(), s.path(id)); err != nil {
		return "", wrapError(CodeUploadFailed, true, err)
	}
	return id, nil
}

func (s *LocalStore) GetFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validFileID(fileID); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(strings.TrimPrefix(fileID, URNPrefix)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, wrapError(CodeFileNotFound, false, err)
		}
		return nil, wrapError(CodeDownloadFailed, true, err)
	}
	return f, nil
}

func (s *LocalStore) DeleteFile(ctx context.Context, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validFileID(fileID); err != nil {
		return err
	}
	err := os.Remove(s.path(strings.TrimPrefix(fileID, URNPrefix)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return wrapError(CodePermissionDenied, false, err)
	}
	return nil
}

func (s *LocalStore) path(id string) string {
	return filepath.Join(s.root, id)
}
