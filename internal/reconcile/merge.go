// Package reconcile folds derived collections into the store and keeps the
// per-model hidden flag in line with collection membership.
package reconcile

import "github.com/starford/munchie/internal/models"

// MergeOptions controls Merge.
type MergeOptions struct {
	// ClearPrevious drops every auto-imported collection before merging so
	// folders that vanished do not linger.
	ClearPrevious bool `json:"clearPrevious"`
}

// Merge folds candidates into store and returns the new list; store is not
// modified. Existing collections keep their identity: model ids are unioned,
// the category is forced to the auto-imported marker and an existing parent
// link wins. Merging the same candidates again is a no-op.
func Merge(store, candidates []models.Collection, opts MergeOptions) []models.Collection {
	out := make([]models.Collection, 0, len(store)+len(candidates))
	for _, c := range store {
		if opts.ClearPrevious && c.IsAutoImported() {
			continue
		}
		out = append(out, c.Clone())
	}

	for _, cand := range candidates {
		i := models.IndexByID(out, cand.ID)
		if i < 0 {
			out = append(out, cand.Clone())
			continue
		}
		existing := &out[i]
		changed := false

		union := models.UnionIDs(existing.ModelIDs, cand.ModelIDs)
		if len(union) != len(existing.ModelIDs) {
			changed = true
		}
		existing.ModelIDs = union

		if existing.Category != models.AutoImportedCategory {
			existing.Category = models.AutoImportedCategory
			changed = true
		}
		if existing.ParentID == "" && cand.ParentID != "" {
			existing.ParentID = cand.ParentID
			changed = true
		}
		if changed && !cand.LastModified.IsZero() {
			existing.LastModified = cand.LastModified
		}
	}
	return out
}
