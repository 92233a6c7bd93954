// Package storage defines the library file-system abstraction.
package storage

import (
	"io/fs"
	"time"

	"github.com/starford/munchie/internal/apperr"
)

// FileInfo describes one regular file found under the library root.
type FileInfo struct {
	Path    string // relative to root, slash separated
	Size    int64
	ModTime time.Time
}

// MatchFunc selects files by base name.
type MatchFunc func(name string) bool

// Provider is the interface for library file operations. All paths are
// relative to the library root and may use either separator.
type Provider interface {
	// Root returns the absolute library root.
	Root() string
	// Abs resolves path against the root, rejecting traversal.
	Abs(path string) (string, error)
	// Files walks dir and returns every regular file accepted by match.
	// Directories whose name starts with a dot are skipped; unreadable
	// entries are reported per path and skipped.
	Files(dir string, match MatchFunc) ([]FileInfo, []apperr.FileError, error)
	// ReadDir lists the direct entries of dir, sorted by name.
	ReadDir(dir string) ([]fs.DirEntry, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
}
