package index

import "time"

// ModelIndex defines the model mirror operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type ModelIndex interface {
	UpsertModel(m ModelRow) error
	DeleteModel(path string) error
	GetModel(path string) (*ModelRow, error)
	ListModels(limit, offset int, tag string) ([]ModelRow, int, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// HashCache remembers content hashes of primary model files keyed by path,
// valid while size and modification time are unchanged.
type HashCache interface {
	CachedHash(path string, size int64, modTime time.Time) (string, bool, error)
	PutHash(path string, size int64, modTime time.Time, hash string) error
	DeleteHash(path string) error
}

// Verify *DB satisfies both interfaces at compile time.
var (
	_ ModelIndex = (*DB)(nil)
	_ HashCache  = (*DB)(nil)
)
