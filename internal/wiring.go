package internal

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/munchie/internal/backup"
	"github.com/starford/munchie/internal/collectionservice"
	"github.com/starford/munchie/internal/collectionstore"
	"github.com/starford/munchie/internal/derive"
	"github.com/starford/munchie/internal/index"
	"github.com/starford/munchie/internal/library"
	"github.com/starford/munchie/internal/models"
	"github.com/starford/munchie/internal/queue"
	"github.com/starford/munchie/internal/reconcile"
	"github.com/starford/munchie/internal/storage"
)

// hooks observe engine activity; any field may be nil.
type hooks struct {
	onCommit    func(cols []models.Collection)
	onReconcile func(report reconcile.HiddenReport)
}

// engine holds the wired collection engine shared by every command.
type engine struct {
	store *storage.FS
	db    *index.DB
	queue *queue.Queue
	bg    *reconcile.Background
	svc   *collectionservice.Service
}

// setup resolves the application options and installs the default logger.
func setup(opts []Option) (*application, *slog.Logger, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

// newEngine opens storage and the index and wires the queue, reconcilers and
// service. The caller must call close.
func newEngine(cfg *Config, logger *slog.Logger, h hooks) (*engine, error) {
	if err := os.MkdirAll(cfg.Library.ModelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models dir: %w", err)
	}
	for _, p := range []string{cfg.Library.CollectionsFile, cfg.SQLite.Path} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	store, err := storage.NewFS(cfg.Library.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	lib := library.New(store, logger)
	cols := collectionstore.NewFile(cfg.Library.CollectionsFile)
	hidden := reconcile.NewHidden(lib, logger)
	bg := reconcile.NewBackground(hidden, func(r reconcile.HiddenReport) {
		logger.Info("hidden flags reconciled",
			slog.Int("checked", r.Checked),
			slog.Int("hidden", r.Hidden),
			slog.Int("unhidden", r.Unhidden),
			slog.Int("errors", len(r.Errors)))
		if h.onReconcile != nil {
			h.onReconcile(r)
		}
	})
	q := queue.New(cols,
		queue.WithLogger(logger),
		queue.WithCommitHook(func(c []models.Collection) {
			bg.Trigger(c)
			if h.onCommit != nil {
				h.onCommit(c)
			}
		}),
	)

	hasher := backup.NewHasher(store, db, cfg.Scan.HashWorkers, logger)
	svc := collectionservice.New(q, cols, derive.New(lib, logger),
		collectionservice.WithLogger(logger),
		collectionservice.WithBackups(backup.New(store, hasher, cols, q, logger)),
		collectionservice.WithModelIndex(db),
		collectionservice.WithReconciler(hidden, bg),
		collectionservice.WithScanDefaults(cfg.Scan.Strategy(), cfg.Scan.ClearPrevious),
	)

	return &engine{store: store, db: db, queue: q, bg: bg, svc: svc}, nil
}

// close drains the queue and any reconcile pass, then closes the index.
func (e *engine) close() {
	e.queue.Close()
	e.bg.Wait()
	e.db.Close()
}

func encodeEnvelope(env *models.BackupEnvelope, compress bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := backup.Encode(&buf, env, compress); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
