package reconcile

import (
	"context"
	"log/slog"

	"github.com/starford/munchie/internal/apperr"
	"github.com/starford/munchie/internal/library"
	"github.com/starford/munchie/internal/models"
	"github.com/starford/munchie/internal/sidecar"
)

// HiddenReport summarizes one hidden-flag pass.
type HiddenReport struct {
	Checked  int                `json:"checked"`
	Hidden   int                `json:"hidden"`
	Unhidden int                `json:"unhidden"`
	Errors   []apperr.FileError `json:"errors,omitempty"`
}

// Hidden recomputes each model's hidden flag from collection membership:
// a model is hidden exactly when some collection lists it.
type Hidden struct {
	lib    *library.Library
	logger *slog.Logger
}

// NewHidden creates a Hidden reconciler over lib.
func NewHidden(lib *library.Library, logger *slog.Logger) *Hidden {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hidden{lib: lib, logger: logger}
}

// Members returns the union of model ids across cols.
func Members(cols []models.Collection) map[string]struct{} {
	u := make(map[string]struct{})
	for _, c := range cols {
		for _, id := range c.ModelIDs {
			u[id] = struct{}{}
		}
	}
	return u
}

// Reconcile flips the hidden flag of every sidecar whose stored value
// disagrees with membership in cols. Sidecars already in agreement are not
// rewritten. Per-file failures are collected, never fatal.
func (h *Hidden) Reconcile(ctx context.Context, cols []models.Collection) HiddenReport {
	members := Members(cols)
	recs, errs := h.lib.Scan(ctx)
	report := HiddenReport{Errors: errs}

	for _, rec := range recs {
		if rec.ID == "" {
			continue
		}
		report.Checked++
		_, want := members[rec.ID]
		if rec.Hidden == want {
			continue
		}
		wrote, err := h.lib.Patch(rec.RelativePath, func(doc *sidecar.Document) bool {
			if doc.Hidden() == want {
				return false
			}
			return doc.SetHidden(want)
		})
		if err != nil {
			h.logger.Warn("reconcile: hidden flag write failed",
				slog.String("path", rec.RelativePath), slog.String("error", err.Error()))
			report.Errors = append(report.Errors, apperr.FileError{Path: rec.RelativePath, Err: err})
			continue
		}
		if !wrote {
			continue
		}
		if want {
			report.Hidden++
		} else {
			report.Unhidden++
		}
	}

	h.logger.Debug("reconcile: hidden flags updated",
		slog.Int("checked", report.Checked),
		slog.Int("hidden", report.Hidden),
		slog.Int("unhidden", report.Unhidden),
		slog.Int("errors", len(report.Errors)))
	return report
}
