package models

// ModelRecord is the slice of a model sidecar the engine reads.
// The sidecar itself carries many more fields that pass through untouched.
type ModelRecord struct {
	ID           string   `json:"id"`
	Tags         []string `json:"tags"`
	Hidden       bool     `json:"hidden"`
	Hash         string   `json:"hash,omitempty"`
	RelativePath string   `json:"relativePath"` // sidecar path, slash separated
}
