// Package models defines the domain types for Munchie.
package models

import (
	"strings"
	"time"
)

// AutoImportedCategory marks collections owned by the folder import pipeline.
const AutoImportedCategory = "auto-imported"

// FolderIDPrefix prefixes the id of every folder-derived collection.
const FolderIDPrefix = "col_"

// Collection is a named group of models persisted in the collection store.
type Collection struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	ModelIDs           []string  `json:"modelIds"`
	ChildCollectionIDs []string  `json:"childCollectionIds,omitempty"`
	ParentID           string    `json:"parentId,omitempty"`
	Category           string    `json:"category,omitempty"`
	Tags               []string  `json:"tags"`
	Images             []string  `json:"images"`
	CoverImage         string    `json:"coverImage,omitempty"`
	Created            time.Time `json:"created"`
	LastModified       time.Time `json:"lastModified"`
}

// IsAutoImported reports whether c belongs to the import pipeline, either by
// category or by carrying a folder-derived id.
func (c *Collection) IsAutoImported() bool {
	return strings.EqualFold(c.Category, AutoImportedCategory) ||
		strings.HasPrefix(c.ID, FolderIDPrefix)
}

// Clone returns a deep copy of c.
func (c Collection) Clone() Collection {
	c.ModelIDs = cloneStrings(c.ModelIDs)
	c.ChildCollectionIDs = cloneStrings(c.ChildCollectionIDs)
	c.Tags = cloneStrings(c.Tags)
	c.Images = cloneStrings(c.Images)
	return c
}

// CloneAll deep-copies a collection list.
func CloneAll(cols []Collection) []Collection {
	if cols == nil {
		return nil
	}
	out := make([]Collection, len(cols))
	for i, c := range cols {
		out[i] = c.Clone()
	}
	return out
}

// Normalize fills nil slices and deduplicates ModelIDs keeping first-seen order.
func (c *Collection) Normalize() {
	c.ModelIDs = UnionIDs(c.ModelIDs, nil)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.Images == nil {
		c.Images = []string{}
	}
}

// UnionIDs returns a followed by every id of b not already present,
// dropping empty strings and duplicates.
func UnionIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// IndexByID returns the position of the collection with the given id, or -1.
func IndexByID(cols []Collection, id string) int {
	for i := range cols {
		if cols[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
