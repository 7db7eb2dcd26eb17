// Package bundle provides the content-addressed store for post bundles.
// A bundle on disk is a directory: bundle.json (metadata), content.html
// (UTF-8 body), and an images/ subdirectory with raw image bytes.
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gopost/publisher/internal/domain"
)

const (
	metadataFile = "bundle.json"
	contentFile  = "content.html"
	imagesDir    = "images"
)

// Store reads and writes bundles under a base directory. Bundles are
// immutable once written; the store never mutates an existing bundle.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bundles dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) bundleDir(id string) string {
	return filepath.Join(s.dir, id)
}

// Load reads a bundle by id. Returns domain.ErrNotFound if absent.
func (s *Store) Load(id string) (*domain.Bundle, error) {
	raw, err := os.ReadFile(filepath.Join(s.bundleDir(id), metadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("bundle %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read bundle metadata: %w", err)
	}

	var b domain.Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("parse bundle %s metadata: %w", id, err)
	}
	b.ID = id

	content, err := os.ReadFile(filepath.Join(s.bundleDir(id), contentFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("bundle %s content: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read bundle content: %w", err)
	}
	b.Content = string(content)

	return &b, nil
}

// Save writes a bundle to disk. Used by the packaging collaborator and by
// tests; the publishing core itself only reads.
func (s *Store) Save(b *domain.Bundle) error {
	if b.ID == "" {
		return fmt.Errorf("%w: bundle id is required", domain.ErrInvalidRequest)
	}

	dir := s.bundleDir(b.ID)
	if err := os.MkdirAll(filepath.Join(dir, imagesDir), 0o755); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}

	meta, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bundle metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), meta, 0o644); err != nil {
		return fmt.Errorf("write bundle metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, contentFile), []byte(b.Content), 0o644); err != nil {
		return fmt.Errorf("write bundle content: %w", err)
	}
	return nil
}

// ImageBytes reads the raw bytes of a bundle image by its relative path.
func (s *Store) ImageBytes(bundleID, path string) ([]byte, error) {
	full := filepath.Join(s.bundleDir(bundleID), imagesDir, filepath.Clean(path))
	raw, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("image %s in bundle %s: %w", path, bundleID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return raw, nil
}

// WriteImage stores raw image bytes under the bundle's images directory.
func (s *Store) WriteImage(bundleID, path string, data []byte) error {
	full := filepath.Join(s.bundleDir(bundleID), imagesDir, filepath.Clean(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write image %s: %w", path, err)
	}
	return nil
}

// List returns all bundle ids, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dir, entry.Name(), metadataFile)); err == nil {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a bundle. Returns domain.ErrNotFound if absent.
func (s *Store) Delete(id string) error {
	dir := s.bundleDir(id)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("bundle %s: %w", id, domain.ErrNotFound)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete bundle %s: %w", id, err)
	}
	return nil
}
