package index

import (
	"log/slog"
	"strings"
	"time"

	"github.com/starford/munchie/internal/checksum"
	"github.com/starford/munchie/internal/library"
	"github.com/starford/munchie/internal/sidecar"
	"github.com/starford/munchie/internal/storage"
)

// Sync walks the library and brings the model mirror up to date:
//   - new/changed sidecars are parsed and upserted
//   - sidecars removed from disk are deleted from the index
//
// Rows below a directory that could not be read are kept as they are.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	files, walkErrs, err := store.Files("", library.IsSidecar)
	if err != nil {
		return err
	}
	unreadable := make([]string, 0, len(walkErrs))
	for _, fe := range walkErrs {
		logger.Warn("sync: walk failed", slog.String("path", fe.Path), slog.String("error", fe.Err.Error()))
		unreadable = append(unreadable, fe.Path)
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		disk[f.Path] = struct{}{}

		data, err := store.Read(f.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		if checksums[f.Path] == checksum.Sum(data) {
			continue
		}
		if err := indexSidecar(db, f.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", f.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", f.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok && !under(p, unreadable) {
			if err := db.DeleteModel(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexSidecar parses data and upserts it into the DB.
func indexSidecar(db *DB, path string, data []byte) error {
	doc, err := sidecar.Parse(data)
	if err != nil {
		return err
	}
	return db.UpsertModel(ModelRow{
		Path:      path,
		ID:        doc.ID(),
		Hash:      doc.Hash(),
		Tags:      doc.Tags(),
		Hidden:    doc.Hidden(),
		Checksum:  checksum.Sum(data),
		UpdatedAt: time.Now(),
	})
}

// under reports whether p is one of dirs or lies below one of them.
func under(p string, dirs []string) bool {
	for _, d := range dirs {
		if p == d || strings.HasPrefix(p, d+"/") {
			return true
		}
	}
	return false
}
