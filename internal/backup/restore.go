package backup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/munchie/internal/apperr"
	"github.com/starford/munchie/internal/library"
	"github.com/starford/munchie/internal/models"
)

// Strategy selects how backup records find their restore target.
type Strategy string

const (
	// HashMatch restores next to whichever primary file has the recorded
	// hash, falling back to the original path.
	HashMatch Strategy = "hash-match"
	// PathMatch restores only when the original location still exists.
	PathMatch Strategy = "path-match"
	// Force always restores to the original path.
	Force Strategy = "force"
)

// ParseStrategy maps s to a Strategy. Empty means HashMatch.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return HashMatch, nil
	case HashMatch, PathMatch, Force:
		return st, nil
	}
	return "", apperr.Invalid("strategy", fmt.Sprintf("unknown restore strategy %q", s))
}

// CollectionsStrategy selects how backup collections combine with the store.
type CollectionsStrategy string

const (
	Merge   CollectionsStrategy = "merge"
	Replace CollectionsStrategy = "replace"
)

// ParseCollectionsStrategy maps s to a CollectionsStrategy. Empty means Merge.
func ParseCollectionsStrategy(s string) (CollectionsStrategy, error) {
	switch st := CollectionsStrategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return Merge, nil
	case Merge, Replace:
		return st, nil
	}
	return "", apperr.Invalid("collectionsStrategy", fmt.Sprintf("unknown collections strategy %q", s))
}

// Result summarizes a restore.
type Result struct {
	Restored    int                 `json:"restored"`
	Skipped     int                 `json:"skipped"`
	Errors      []apperr.FileError  `json:"errors"`
	Collections []models.Collection `json:"-"`
}

// Restore writes the envelope's sidecars back according to strategy, then
// merges or replaces the collection store when the envelope carries
// collections. Per-file failures are collected in the result. When ctx ends
// part way, the result so far is returned along with the context error.
func (m *Manager) Restore(ctx context.Context, env *models.BackupEnvelope, strategy Strategy, colStrategy CollectionsStrategy) (*Result, error) {
	if env == nil {
		return nil, apperr.Invalid("backup", "missing envelope")
	}
	res := &Result{Errors: []apperr.FileError{}}

	var idx HashIndex
	if strategy == HashMatch {
		var hashErrs []apperr.FileError
		var err error
		idx, hashErrs, err = m.hasher.Index(ctx)
		if err != nil {
			return nil, err
		}
		res.Errors = append(res.Errors, hashErrs...)
	}

	for _, f := range env.Files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		target, ok := m.target(f, strategy, idx)
		if !ok {
			res.Skipped++
			continue
		}
		target = library.RemapWriteTarget(target)
		if err := m.store.Write(target, []byte(f.Content)); err != nil {
			res.Errors = append(res.Errors, apperr.FileError{Path: target, Err: err})
			continue
		}
		m.logger.Debug("restore: wrote sidecar", slog.String("path", target), slog.String("strategy", string(strategy)))
		res.Restored++
	}

	if env.Collections != nil {
		cols, err := m.queue.Do(ctx, func(current []models.Collection) ([]models.Collection, error) {
			return CombineCollections(current, env.Collections, colStrategy), nil
		})
		if err != nil {
			return res, fmt.Errorf("restore collections: %w", err)
		}
		res.Collections = cols
	}

	m.logger.Info("restore finished",
		slog.String("strategy", string(strategy)),
		slog.String("collections", string(colStrategy)),
		slog.Int("restored", res.Restored),
		slog.Int("skipped", res.Skipped),
		slog.Int("errors", len(res.Errors)))
	return res, nil
}

// target picks the sidecar path a record restores to.
func (m *Manager) target(f models.BackupFile, strategy Strategy, idx HashIndex) (string, bool) {
	original := f.OriginalPath
	if original == "" {
		original = f.RelativePath
	}
	switch strategy {
	case Force:
		return original, original != ""
	case HashMatch:
		if f.Hash != "" {
			if paths := idx[f.Hash]; len(paths) > 0 {
				return library.CompanionPath(paths[0]), true
			}
		}
	}
	if original != "" && m.locationExists(original) {
		return original, true
	}
	return "", false
}

// locationExists reports whether the sidecar at rel, or a primary file it
// describes, is still present.
func (m *Manager) locationExists(rel string) bool {
	rel = library.RemapWriteTarget(rel)
	if m.store.Exists(rel) {
		return true
	}
	for _, p := range library.PrimaryCandidates(rel) {
		if m.store.Exists(p) {
			return true
		}
	}
	return false
}

// CombineCollections applies backup collections to current. Replace discards
// current; Merge keeps it and lets backup entries win on id collision.
// Backup entries without an id get a fresh one. The result has unique ids.
func CombineCollections(current, backup []models.Collection, strategy CollectionsStrategy) []models.Collection {
	var out []models.Collection
	if strategy != Replace {
		out = models.CloneAll(current)
	}
	for _, c := range backup {
		c = c.Clone()
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.Normalize()
		if i := models.IndexByID(out, c.ID); i >= 0 {
			out[i] = c
			continue
		}
		out = append(out, c)
	}
	return dedupe(out)
}

func dedupe(cols []models.Collection) []models.Collection {
	seen := make(map[string]struct{}, len(cols))
	out := make([]models.Collection, 0, len(cols))
	for _, c := range cols {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
