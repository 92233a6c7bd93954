// Package collectionservice is the handler-facing façade over the collection
// store, folder derivation, backups and the model index.
package collectionservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/munchie/internal/apperr"
	"github.com/starford/munchie/internal/backup"
	"github.com/starford/munchie/internal/collectionstore"
	"github.com/starford/munchie/internal/derive"
	"github.com/starford/munchie/internal/index"
	"github.com/starford/munchie/internal/models"
	"github.com/starford/munchie/internal/queue"
	"github.com/starford/munchie/internal/reconcile"
)

// ErrUnavailable is returned when an optional component was not configured.
var ErrUnavailable = errors.New("collectionservice: component not configured")

// Service coordinates the mutation queue and its collaborators.
type Service struct {
	queue   *queue.Queue
	store   collectionstore.Store
	engine  *derive.Engine
	backups *backup.Manager
	models  index.ModelIndex
	hidden  *reconcile.Hidden
	bg      *reconcile.Background
	logger  *slog.Logger
	now     func() time.Time

	defaultStrategy derive.Strategy
	clearPrevious   bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithBackups enables Backup and Restore.
func WithBackups(m *backup.Manager) Option {
	return func(s *Service) { s.backups = m }
}

// WithModelIndex enables ListModels.
func WithModelIndex(idx index.ModelIndex) Option {
	return func(s *Service) { s.models = idx }
}

// WithReconciler enables ReconcileHidden; bg, when non-nil, is triggered
// after restores that leave the collection store untouched.
func WithReconciler(h *reconcile.Hidden, bg *reconcile.Background) Option {
	return func(s *Service) { s.hidden, s.bg = h, bg }
}

// WithScanDefaults sets the strategy and clear-previous flag used when a scan
// request leaves them unset.
func WithScanDefaults(strategy derive.Strategy, clearPrevious bool) Option {
	return func(s *Service) { s.defaultStrategy, s.clearPrevious = strategy, clearPrevious }
}

// New creates a Service. Every collection write goes through q.
func New(q *queue.Queue, store collectionstore.Store, engine *derive.Engine, opts ...Option) *Service {
	s := &Service{
		queue:           q,
		store:           store,
		engine:          engine,
		logger:          slog.Default(),
		now:             time.Now,
		defaultStrategy: derive.StrategySmart,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every collection in store order.
func (s *Service) List(_ context.Context) ([]models.Collection, error) {
	return s.store.Load()
}

// Get returns the collection with id.
func (s *Service) Get(_ context.Context, id string) (*models.Collection, error) {
	cols, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	i := models.IndexByID(cols, id)
	if i < 0 {
		return nil, fmt.Errorf("collection %q: %w", id, apperr.ErrNotFound)
	}
	c := cols[i]
	return &c, nil
}

// CreateInput is the payload for Create.
type CreateInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ModelIDs    []string `json:"modelIds"`
	ParentID    string   `json:"parentId"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Images      []string `json:"images"`
	CoverImage  string   `json:"coverImage"`
}

// Validate checks CreateInput.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.ModelIDs, validation.Each(validation.Required)),
	)
}

// Create stores a new collection under a fresh id.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Collection, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	now := s.now().UTC()
	c := models.Collection{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Description:  in.Description,
		ModelIDs:     in.ModelIDs,
		ParentID:     in.ParentID,
		Category:     in.Category,
		Tags:         in.Tags,
		Images:       in.Images,
		CoverImage:   in.CoverImage,
		Created:      now,
		LastModified: now,
	}
	c.Normalize()

	_, err := s.queue.Do(ctx, func(cols []models.Collection) ([]models.Collection, error) {
		if c.ParentID != "" && models.IndexByID(cols, c.ParentID) < 0 {
			return nil, apperr.Invalid("parentId", "unknown collection "+c.ParentID)
		}
		return append(cols, c.Clone()), nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("collection created", slog.String("id", c.ID), slog.String("name", c.Name))
	return &c, nil
}

// UpdateInput carries the fields to change; nil fields are left alone.
type UpdateInput struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	ModelIDs    *[]string `json:"modelIds"`
	ParentID    *string   `json:"parentId"`
	Category    *string   `json:"category"`
	Tags        *[]string `json:"tags"`
	Images      *[]string `json:"images"`
	CoverImage  *string   `json:"coverImage"`
}

// Validate checks UpdateInput.
func (in UpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
	)
}

// Update applies in to the collection with id.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*models.Collection, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	var updated models.Collection
	_, err := s.queue.Do(ctx, func(cols []models.Collection) ([]models.Collection, error) {
		i := models.IndexByID(cols, id)
		if i < 0 {
			return nil, fmt.Errorf("collection %q: %w", id, apperr.ErrNotFound)
		}
		if in.ParentID != nil && *in.ParentID != "" {
			if *in.ParentID == id || models.IndexByID(cols, *in.ParentID) < 0 {
				return nil, apperr.Invalid("parentId", "unknown collection "+*in.ParentID)
			}
			if descends(cols, *in.ParentID, id) {
				return nil, fmt.Errorf("parentId %q is nested under %q: %w", *in.ParentID, id, apperr.ErrConflict)
			}
		}
		c := &cols[i]
		applyUpdate(c, in)
		c.Normalize()
		c.LastModified = s.now().UTC()
		updated = c.Clone()
		return cols, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// descends reports whether following parent links from start reaches id.
func descends(cols []models.Collection, start, id string) bool {
	seen := map[string]bool{}
	for cur := start; cur != "" && !seen[cur]; {
		if cur == id {
			return true
		}
		seen[cur] = true
		i := models.IndexByID(cols, cur)
		if i < 0 {
			return false
		}
		cur = cols[i].ParentID
	}
	return false
}

func applyUpdate(c *models.Collection, in UpdateInput) {
	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.ModelIDs != nil {
		c.ModelIDs = *in.ModelIDs
	}
	if in.ParentID != nil {
		c.ParentID = *in.ParentID
	}
	if in.Category != nil {
		c.Category = *in.Category
	}
	if in.Tags != nil {
		c.Tags = *in.Tags
	}
	if in.Images != nil {
		c.Images = *in.Images
	}
	if in.CoverImage != nil {
		c.CoverImage = *in.CoverImage
	}
}

// Delete removes the collection with id and clears references to it from
// other collections.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.queue.Do(ctx, func(cols []models.Collection) ([]models.Collection, error) {
		i := models.IndexByID(cols, id)
		if i < 0 {
			return nil, fmt.Errorf("collection %q: %w", id, apperr.ErrNotFound)
		}
		out := append(cols[:i:i], cols[i+1:]...)
		for j := range out {
			if out[j].ParentID == id {
				out[j].ParentID = ""
			}
			out[j].ChildCollectionIDs = without(out[j].ChildCollectionIDs, id)
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("collection deleted", slog.String("id", id))
	return nil
}

// ScanRequest selects what to scan. Strategy and ClearPrevious fall back to
// the configured defaults when unset.
type ScanRequest struct {
	Path          string `json:"path"`
	Strategy      string `json:"strategy"`
	ClearPrevious *bool  `json:"clearPrevious"`
}

// ScanResult reports a scan and the store it produced.
type ScanResult struct {
	Strategy    derive.Strategy     `json:"strategy"`
	Candidates  []models.Collection `json:"candidates"`
	Tagged      int                 `json:"tagged"`
	Errors      []apperr.FileError  `json:"errors"`
	Collections []models.Collection `json:"collections"`
}

// Scan derives folder collections under req.Path and merges them into the
// store. Derivation runs outside the queue; only the merge is serialized.
func (s *Service) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	strategy := s.defaultStrategy
	if req.Strategy != "" {
		var err error
		if strategy, err = derive.ParseStrategy(req.Strategy); err != nil {
			return nil, err
		}
	}
	opts := reconcile.MergeOptions{ClearPrevious: s.clearPrevious}
	if req.ClearPrevious != nil {
		opts.ClearPrevious = *req.ClearPrevious
	}

	res, err := s.engine.Derive(ctx, req.Path, strategy)
	if err != nil {
		return nil, err
	}
	cols, err := s.queue.Do(ctx, func(cols []models.Collection) ([]models.Collection, error) {
		return reconcile.Merge(cols, res.Candidates, opts), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("scan merged",
		slog.String("path", req.Path),
		slog.String("strategy", string(strategy)),
		slog.Int("candidates", len(res.Candidates)),
		slog.Int("collections", len(cols)))
	return &ScanResult{
		Strategy:    strategy,
		Candidates:  res.Candidates,
		Tagged:      res.Tagged,
		Errors:      nonNil(res.Errors),
		Collections: cols,
	}, nil
}

// Backup snapshots the library sidecars and the collection store.
func (s *Service) Backup(ctx context.Context) (*models.BackupEnvelope, []apperr.FileError, error) {
	if s.backups == nil {
		return nil, nil, ErrUnavailable
	}
	return s.backups.Backup(ctx)
}

// Restore applies env using the named strategies (empty selects the defaults).
func (s *Service) Restore(ctx context.Context, env *models.BackupEnvelope, strategy, collections string) (*backup.Result, error) {
	if s.backups == nil {
		return nil, ErrUnavailable
	}
	st, err := backup.ParseStrategy(strategy)
	if err != nil {
		return nil, err
	}
	cst, err := backup.ParseCollectionsStrategy(collections)
	if err != nil {
		return nil, err
	}
	res, err := s.backups.Restore(ctx, env, st, cst)
	if err != nil {
		return res, err
	}
	// Restored sidecars may carry stale hidden flags; a queued collection
	// change already triggered a pass through the commit hook.
	if res.Collections == nil && s.bg != nil && res.Restored > 0 {
		cols, err := s.store.Load()
		if err != nil {
			return nil, err
		}
		s.bg.Trigger(cols)
	}
	return res, nil
}

// ModelItem is one row of ListModels.
type ModelItem struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Hash      string    `json:"hash,omitempty"`
	Tags      []string  `json:"tags"`
	Hidden    bool      `json:"hidden"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListModels returns a page of indexed models, optionally filtered by tag.
func (s *Service) ListModels(_ context.Context, limit, offset int, tag string) ([]ModelItem, int, error) {
	if s.models == nil {
		return nil, 0, ErrUnavailable
	}
	rows, total, err := s.models.ListModels(limit, offset, tag)
	if err != nil {
		return nil, 0, err
	}
	items := make([]ModelItem, len(rows))
	for i, r := range rows {
		items[i] = ModelItem{
			ID:        r.ID,
			Path:      r.Path,
			Hash:      r.Hash,
			Tags:      nonNil(r.Tags),
			Hidden:    r.Hidden,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// ReconcileHidden runs a hidden-flag pass against the current store and
// waits for it.
func (s *Service) ReconcileHidden(ctx context.Context) (*reconcile.HiddenReport, error) {
	if s.hidden == nil {
		return nil, ErrUnavailable
	}
	cols, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	report := s.hidden.Reconcile(ctx, cols)
	return &report, nil
}

// invalid converts ozzo validation errors into the apperr taxonomy.
func invalid(err error) error {
	var errs validation.Errors
	if errors.As(err, &errs) && len(errs) > 0 {
		fields := make([]string, 0, len(errs))
		for field := range errs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		return apperr.Invalid(fields[0], errs[fields[0]].Error())
	}
	return apperr.Invalid("", err.Error())
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
