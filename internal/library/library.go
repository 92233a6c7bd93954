// Package library reads and patches the model sidecars of a models directory.
package library

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/munchie/internal/apperr"
	"github.com/starford/munchie/internal/models"
	"github.com/starford/munchie/internal/sidecar"
	"github.com/starford/munchie/internal/storage"
)

// Scanner produces the model records of a library.
type Scanner interface {
	Scan(ctx context.Context) ([]models.ModelRecord, []apperr.FileError)
}

// Library exposes sidecar operations over a storage.Provider.
type Library struct {
	store  storage.Provider
	logger *slog.Logger
}

// New creates a Library rooted at store.
func New(store storage.Provider, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{store: store, logger: logger}
}

// Store returns the underlying storage provider.
func (l *Library) Store() storage.Provider { return l.store }

// Sidecars lists every sidecar file under the library root. Unreadable
// directories are reported and skipped.
func (l *Library) Sidecars() ([]storage.FileInfo, []apperr.FileError, error) {
	return l.store.Files("", IsSidecar)
}

// Scan reads every sidecar. Unreadable files are reported and skipped.
func (l *Library) Scan(ctx context.Context) ([]models.ModelRecord, []apperr.FileError) {
	files, errs, err := l.Sidecars()
	if err != nil {
		return nil, []apperr.FileError{{Path: ".", Err: err}}
	}
	for _, fe := range errs {
		l.logger.Warn("library: walk failed", slog.String("path", fe.Path), slog.String("error", fe.Err.Error()))
	}
	var out []models.ModelRecord
	for _, f := range files {
		if ctx.Err() != nil {
			errs = append(errs, apperr.FileError{Path: f.Path, Err: ctx.Err()})
			break
		}
		rec, err := l.Record(f.Path)
		if err != nil {
			l.logger.Warn("library: read sidecar failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			errs = append(errs, apperr.FileError{Path: f.Path, Err: err})
			continue
		}
		out = append(out, rec)
	}
	return out, errs
}

// Record reads the sidecar at rel.
func (l *Library) Record(rel string) (models.ModelRecord, error) {
	doc, err := l.document(rel)
	if err != nil {
		return models.ModelRecord{}, err
	}
	return models.ModelRecord{
		ID:           doc.ID(),
		Tags:         nonNil(doc.Tags()),
		Hidden:       doc.Hidden(),
		Hash:         doc.Hash(),
		RelativePath: rel,
	}, nil
}

// Patch applies fn to the sidecar at rel and writes it back atomically when fn
// reports a change. It returns whether a write happened.
func (l *Library) Patch(rel string, fn func(doc *sidecar.Document) bool) (bool, error) {
	doc, err := l.document(rel)
	if err != nil {
		return false, err
	}
	if !fn(doc) {
		return false, nil
	}
	data, err := doc.Encode()
	if err != nil {
		return false, err
	}
	if err := l.store.Write(RemapWriteTarget(rel), data); err != nil {
		return false, fmt.Errorf("library: write %s: %w", rel, err)
	}
	return true, nil
}

func (l *Library) document(rel string) (*sidecar.Document, error) {
	data, err := l.store.Read(rel)
	if err != nil {
		return nil, err
	}
	doc, err := sidecar.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("library: %s: %w", rel, err)
	}
	return doc, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
