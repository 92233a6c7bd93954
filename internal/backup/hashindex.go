package backup

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/munchie/internal/apperr"
	"github.com/starford/munchie/internal/checksum"
	"github.com/starford/munchie/internal/library"
	"github.com/starford/munchie/internal/storage"
)

// DefaultWorkers bounds concurrent file hashing when no limit is configured.
const DefaultWorkers = 4

// Cache remembers primary file hashes between runs. *index.DB implements it.
type Cache interface {
	CachedHash(path string, size int64, modTime time.Time) (string, bool, error)
	PutHash(path string, size int64, modTime time.Time, hash string) error
}

// HashIndex maps a content hash to the relative paths of every primary model
// file currently carrying it, sorted.
type HashIndex map[string][]string

// Hasher computes content hashes of primary model files.
type Hasher struct {
	store   storage.Provider
	cache   Cache
	workers int
	logger  *slog.Logger
}

// NewHasher creates a Hasher. cache may be nil; workers <= 0 means DefaultWorkers.
func NewHasher(store storage.Provider, cache Cache, workers int, logger *slog.Logger) *Hasher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hasher{store: store, cache: cache, workers: workers, logger: logger}
}

// Hash returns the SHA-256 hex digest of the file described by f, served from
// the cache while its size and modification time are unchanged.
func (h *Hasher) Hash(f storage.FileInfo) (string, error) {
	if h.cache != nil {
		sum, ok, err := h.cache.CachedHash(f.Path, f.Size, f.ModTime)
		if err != nil {
			h.logger.Warn("hash cache lookup failed", slog.String("path", f.Path), slog.String("error", err.Error()))
		} else if ok {
			return sum, nil
		}
	}
	abs, err := h.store.Abs(f.Path)
	if err != nil {
		return "", err
	}
	sum, err := checksum.SumFile(abs)
	if err != nil {
		return "", err
	}
	if h.cache != nil {
		if err := h.cache.PutHash(f.Path, f.Size, f.ModTime, sum); err != nil {
			h.logger.Warn("hash cache store failed", slog.String("path", f.Path), slog.String("error", err.Error()))
		}
	}
	return sum, nil
}

// HashPath stats and hashes the file at rel.
func (h *Hasher) HashPath(rel string) (string, error) {
	abs, err := h.store.Abs(rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	return h.Hash(storage.FileInfo{Path: rel, Size: info.Size(), ModTime: info.ModTime()})
}

// Index hashes every primary model file in the library. Files that cannot be
// hashed are reported and left out; only cancellation aborts the walk.
func (h *Hasher) Index(ctx context.Context) (HashIndex, []apperr.FileError, error) {
	files, errs, err := h.store.Files("", library.IsPrimary)
	if err != nil {
		return nil, nil, err
	}

	var (
		mu  sync.Mutex
		idx = make(HashIndex, len(files))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)
	for _, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum, err := h.Hash(f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, apperr.FileError{Path: f.Path, Err: err})
				return nil
			}
			idx[sum] = append(idx[sum], f.Path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errs, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errs, err
	}

	for _, paths := range idx {
		sort.Strings(paths)
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Path < errs[j].Path })
	h.logger.Debug("hash index built", slog.Int("files", len(files)), slog.Int("hashes", len(idx)), slog.Int("errors", len(errs)))
	return idx, errs, nil
}
