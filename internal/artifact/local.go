package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ocabr/observatory/internal/domain"
)

// LocalStore keeps archives on the local filesystem under a media root.
type LocalStore struct {
	root   string
	logger zerolog.Logger
}

// NewLocalStore creates a store rooted at root, creating it if needed.
func NewLocalStore(root string, logger zerolog.Logger) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("media root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating media root: %w", err)
	}
	return &LocalStore{
		root:   root,
		logger: logger.With().Str("component", "artifact-local").Logger(),
	}, nil
}

// Save writes the archive to a temporary file and renames it into
// place, so readers never observe a partial archive.
func (s *LocalStore) Save(_ context.Context, name string, r io.Reader) (string, error) {
	target := filepath.Join(s.root, filepath.Base(name))

	tmp, err := os.CreateTemp(s.root, ".artifact-*")
	if err != nil {
		return "", fmt.Errorf("creating temporary artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("placing artifact: %w", err)
	}

	s.logger.Debug().Str("path", target).Msg("artifact saved")
	return target, nil
}

// Open streams a saved archive.
func (s *LocalStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.NewNotFoundError("artifact", path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening artifact: %w", err)
	}
	return f, nil
}

// Delete removes a saved archive.
func (s *LocalStore) Delete(_ context.Context, path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	return nil
}
