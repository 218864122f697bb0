// Package store persists schema documents as canonical JSON blobs, one file
// per resource type, and reports whether a write changed stored content.
package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schemadrift/schemadrift/internal/schema"
)

// Store is a directory of canonical schema blobs. The blob for a type lives
// at dir/FileName(typeName); the mapping is reversible, so List can recover
// type names from the directory alone.
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create schema directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the blob path for a type name.
func (s *Store) Path(typeName string) string {
	return filepath.Join(s.dir, schema.FileName(typeName))
}

// Write canonicalizes raw and persists it as the blob for typeName.
//
// The returned changed flag is true when no prior blob existed or the prior
// canonical content differs. Comparison happens on canonical bytes only, so
// key reordering in the fetched document never reads as a change. The blob
// is rewritten even when unchanged, so the store always reflects the latest
// fetch.
func (s *Store) Write(typeName string, raw []byte) (changed bool, err error) {
	canonical, err := schema.Canonicalize(raw)
	if err != nil {
		return false, fmt.Errorf("failed to canonicalize %s: %w", typeName, err)
	}

	path := s.Path(typeName)
	changed = true
	if existing, err := os.ReadFile(path); err == nil {
		changed = !bytes.Equal(existing, canonical)
	}

	if err := writeAtomic(path, canonical); err != nil {
		return false, fmt.Errorf("failed to write schema %s: %w", typeName, err)
	}

	return changed, nil
}

// Read returns the stored canonical blob for typeName.
func (s *Store) Read(typeName string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(typeName))
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", typeName, err)
	}
	return data, nil
}

// List returns the type names of all stored blobs, sorted. Files that are
// not schema blobs are ignored.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read schema directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), schema.FileExt) {
			continue
		}
		name, err := schema.TypeNameFromFile(entry.Name())
		if err != nil {
			continue
		}
		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}

// writeAtomic writes data via a temp file and rename so readers never see a
// partial blob.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
