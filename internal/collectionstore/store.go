// Package collectionstore loads and saves the persisted collection list.
//
// The file is read fresh on every Load; nothing is cached between calls.
package collectionstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/starford/munchie/internal/models"
	"github.com/starford/munchie/internal/storage"
)

// Store is a handle on the persisted collection list.
type Store interface {
	Load() ([]models.Collection, error)
	Save(cols []models.Collection) error
}

// File is a Store backed by a single JSON document.
type File struct {
	path string
}

// NewFile returns a handle on the collection file at path. The file need not
// exist yet.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the location of the collection file.
func (f *File) Path() string { return f.path }

// Load reads the collection list. A missing or empty file is an empty list.
// Both the bare array form and the legacy {"collections": [...]} object form
// are accepted.
func (f *File) Load() ([]models.Collection, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.Collection{}, nil
		}
		return nil, fmt.Errorf("collectionstore: read: %w", err)
	}
	cols, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("collectionstore: %s: %w", f.path, err)
	}
	return cols, nil
}

// Save writes the list in array form via temp file and rename.
func (f *File) Save(cols []models.Collection) error {
	data, err := Encode(cols)
	if err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(f.path, data); err != nil {
		return fmt.Errorf("collectionstore: save: %w", err)
	}
	return nil
}

// Decode parses either accepted document form.
func Decode(data []byte) ([]models.Collection, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []models.Collection{}, nil
	}
	var cols []models.Collection
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &cols); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
	case '{':
		var wrapped struct {
			Collections []models.Collection `json:"collections"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		cols = wrapped.Collections
	default:
		return nil, fmt.Errorf("unexpected document start %q", trimmed[0])
	}
	if cols == nil {
		cols = []models.Collection{}
	}
	return cols, nil
}

// Encode renders the array form.
func Encode(cols []models.Collection) ([]byte, error) {
	if cols == nil {
		cols = []models.Collection{}
	}
	data, err := json.MarshalIndent(cols, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("collectionstore: encode: %w", err)
	}
	return append(data, '\n'), nil
}
