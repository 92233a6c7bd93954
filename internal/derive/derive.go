// Package derive turns a folder tree of model sidecars into candidate collections.
package derive

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/munchie/internal/apperr"
	"github.com/starford/munchie/internal/library"
	"github.com/starford/munchie/internal/models"
	"github.com/starford/munchie/internal/sidecar"
)

// Result is the output of one derivation pass.
type Result struct {
	Candidates []models.Collection `json:"candidates"`
	Tagged     int                 `json:"tagged"`
	Errors     []apperr.FileError  `json:"errors,omitempty"`
}

// Engine scans a library for folder collections.
type Engine struct {
	lib    *library.Library
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Engine over lib.
func New(lib *library.Library, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{lib: lib, logger: logger, now: time.Now}
}

// dirNode is one visited directory. Nodes are stored in pre-order; parent is
// the index of the enclosing directory (-1 for the scan root).
type dirNode struct {
	rel      string
	parent   int
	depth    int
	modelIDs []string
	sidecars []string
}

// Derive scans scanRoot (relative to the models root) and returns the
// candidate collections for strategy. Candidates are not persisted. Sidecars
// directly inside each candidate folder are tagged with the folder name on a
// best-effort basis.
func (e *Engine) Derive(ctx context.Context, scanRoot string, strategy Strategy) (*Result, error) {
	root, err := CleanRelative(scanRoot)
	if err != nil {
		return nil, err
	}
	strategy, err = ParseStrategy(string(strategy))
	if err != nil {
		return nil, err
	}

	nodes, errs, err := e.walk(ctx, root)
	if err != nil {
		return nil, err
	}

	var selected []candidate
	switch strategy {
	case StrategyStrict:
		selected = selectStrict(nodes)
	case StrategyTopLevel:
		selected = selectTopLevel(nodes)
	default:
		selected = selectSmart(nodes)
	}

	now := e.now().UTC()
	res := &Result{Candidates: make([]models.Collection, 0, len(selected)), Errors: errs}
	for _, c := range selected {
		n := nodes[c.node]
		col := models.Collection{
			ID:           CollectionID(n.rel),
			Name:         path.Base(n.rel),
			Description:  "Imported from folder " + n.rel,
			ModelIDs:     c.modelIDs,
			Category:     models.AutoImportedCategory,
			Tags:         []string{},
			Images:       []string{},
			Created:      now,
			LastModified: now,
		}
		if c.parent >= 0 {
			col.ParentID = CollectionID(nodes[c.parent].rel)
		}
		res.Candidates = append(res.Candidates, col)
		res.Tagged += e.tagFolder(n, col.Name, &res.Errors)
	}

	e.logger.Info("derive: scan complete",
		slog.String("root", root),
		slog.String("strategy", string(strategy)),
		slog.Int("folders", len(nodes)),
		slog.Int("candidates", len(res.Candidates)),
		slog.Int("errors", len(res.Errors)))
	return res, nil
}

// walk visits the tree rooted at root depth-first with an explicit stack and
// returns the nodes in pre-order, children sorted by name.
func (e *Engine) walk(ctx context.Context, root string) ([]dirNode, []apperr.FileError, error) {
	type frame struct {
		rel    string
		parent int
		depth  int
	}
	var (
		nodes []dirNode
		errs  []apperr.FileError
	)
	stack := []frame{{rel: root, parent: -1}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := e.lib.Store().ReadDir(f.rel)
		if err != nil {
			if f.parent < 0 {
				return nil, nil, err
			}
			e.logger.Warn("derive: read dir failed", slog.String("path", f.rel), slog.String("error", err.Error()))
			errs = append(errs, apperr.FileError{Path: f.rel, Err: err})
			continue
		}

		idx := len(nodes)
		node := dirNode{rel: f.rel, parent: f.parent, depth: f.depth}
		var children []string
		for _, ent := range entries {
			name := ent.Name()
			rel := join(f.rel, name)
			switch {
			case ent.IsDir():
				if !strings.HasPrefix(name, ".") {
					children = append(children, rel)
				}
			case library.IsSidecar(name):
				rec, err := e.lib.Record(rel)
				if err != nil {
					e.logger.Warn("derive: read sidecar failed", slog.String("path", rel), slog.String("error", err.Error()))
					errs = append(errs, apperr.FileError{Path: rel, Err: err})
					continue
				}
				if rec.ID == "" {
					e.logger.Debug("derive: sidecar without id", slog.String("path", rel))
					continue
				}
				node.modelIDs = append(node.modelIDs, rec.ID)
				node.sidecars = append(node.sidecars, rel)
			}
		}
		node.modelIDs = models.UnionIDs(node.modelIDs, nil)
		nodes = append(nodes, node)

		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{rel: children[i], parent: idx, depth: f.depth + 1})
		}
	}
	return nodes, errs, nil
}

// tagFolder appends name to the tags of every sidecar directly in n.
func (e *Engine) tagFolder(n dirNode, name string, errs *[]apperr.FileError) int {
	tagged := 0
	for _, rel := range n.sidecars {
		wrote, err := e.lib.Patch(rel, func(doc *sidecar.Document) bool {
			return doc.AddTag(name)
		})
		if err != nil {
			e.logger.Warn("derive: tag sidecar failed", slog.String("path", rel), slog.String("error", err.Error()))
			*errs = append(*errs, apperr.FileError{Path: rel, Err: err})
			continue
		}
		if wrote {
			tagged++
		}
	}
	return tagged
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
