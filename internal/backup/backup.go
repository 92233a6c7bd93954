// Package backup snapshots model sidecars and the collection store, and
// restores them by content hash, by path, or unconditionally.
package backup

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/munchie/internal/apperr"
	"github.com/starford/munchie/internal/collectionstore"
	"github.com/starford/munchie/internal/library"
	"github.com/starford/munchie/internal/models"
	"github.com/starford/munchie/internal/queue"
	"github.com/starford/munchie/internal/sidecar"
	"github.com/starford/munchie/internal/storage"
)

// Manager produces and applies backup envelopes.
type Manager struct {
	store  storage.Provider
	hasher *Hasher
	cols   collectionstore.Store
	queue  *queue.Queue
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Manager. Collection changes made by Restore run through q;
// snapshots are read from cols directly.
func New(store storage.Provider, hasher *Hasher, cols collectionstore.Store, q *queue.Queue, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, hasher: hasher, cols: cols, queue: q, logger: logger, now: time.Now}
}

// Backup bundles every sidecar plus the current collection store. Unreadable
// sidecars are reported and left out.
func (m *Manager) Backup(ctx context.Context) (*models.BackupEnvelope, []apperr.FileError, error) {
	files, errs, err := m.store.Files("", library.IsSidecar)
	if err != nil {
		return nil, nil, err
	}

	env := &models.BackupEnvelope{
		Timestamp: m.now().UTC(),
		Version:   models.BackupVersion,
		Files:     make([]models.BackupFile, 0, len(files)),
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, errs, err
		}
		content, err := m.store.Read(f.Path)
		if err != nil {
			errs = append(errs, apperr.FileError{Path: f.Path, Err: err})
			continue
		}
		env.Files = append(env.Files, models.BackupFile{
			RelativePath: f.Path,
			OriginalPath: f.Path,
			Content:      string(content),
			Hash:         m.recordHash(f.Path, content),
			Size:         int64(len(content)),
		})
	}

	cols, err := m.cols.Load()
	if err != nil {
		return nil, errs, err
	}
	env.Collections = cols

	m.logger.Info("backup created",
		slog.Int("files", len(env.Files)),
		slog.Int("collections", len(cols)),
		slog.Int("errors", len(errs)))
	return env, errs, nil
}

// recordHash returns the hash stored in the sidecar, falling back to hashing
// the primary file it describes.
func (m *Manager) recordHash(rel string, content []byte) string {
	if doc, err := sidecar.Parse(content); err == nil && doc.Hash() != "" {
		return doc.Hash()
	}
	for _, p := range library.PrimaryCandidates(rel) {
		if !m.store.Exists(p) {
			continue
		}
		sum, err := m.hasher.HashPath(p)
		if err != nil {
			m.logger.Warn("backup: hash primary failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		return sum
	}
	return ""
}
