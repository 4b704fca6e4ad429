package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"enhancebot/internal/domain"
)

const assetExt = ".jpg"

// Spool hands out one local file per job and removes it when the job is over.
// The same photo sent twice yields two distinct files.
type Spool struct {
	dir string
}

// NewSpool ensures dir exists and returns a spool rooted there.
func NewSpool(dir string) (*Spool, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage: spool directory is required")
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure spool directory: %w", err)
	}
	return &Spool{dir: dir}, nil
}

// Dir returns the spool root.
func (s *Spool) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Acquire creates an empty file named after identifier plus a random suffix
// and returns its path. The caller populates it and owns it until Release.
func (s *Spool) Acquire(identifier string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no spool configured")
	}
	name, err := sanitizeIdentifier(identifier)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp(s.dir, name+"-*"+assetExt)
	if err != nil {
		return "", fmt.Errorf("storage: create asset: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("storage: create asset: %w", err)
	}
	return path, nil
}

// Release deletes the file at path. A missing file is not an error, so Release
// may be called any number of times.
func (s *Spool) Release(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.AssetCleanupError{Path: path, Err: err}
	}
	return nil
}

// sanitizeIdentifier keeps identifiers to a single path element.
func sanitizeIdentifier(identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || identifier == "." || identifier == ".." {
		return "", fmt.Errorf("storage: %w: %q", domain.ErrInvalidIdentifier, identifier)
	}
	if strings.ContainsAny(identifier, `/\*`) || strings.ContainsRune(identifier, 0) {
		return "", fmt.Errorf("storage: %w: %q", domain.ErrInvalidIdentifier, identifier)
	}
	return identifier, nil
}
