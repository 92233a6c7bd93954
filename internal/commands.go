package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/munchie/internal/backup"
	"github.com/starford/munchie/internal/index"
	"github.com/starford/munchie/internal/mcpserver"
	"github.com/starford/munchie/internal/storage"
)

// RunMCP serves the MCP tools over stdio until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app, logger, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	eng, err := newEngine(app.config, logger, hooks{})
	if err != nil {
		return err
	}
	defer eng.close()

	if err := index.Sync(eng.db, eng.store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(eng.svc, app.version).ServeStdio()
}

// RunBackup writes a backup envelope to out.
func RunBackup(ctx context.Context, out string, compress bool, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	eng, err := newEngine(app.config, logger, hooks{})
	if err != nil {
		return err
	}
	defer eng.close()

	env, fileErrs, err := eng.svc.Backup(ctx)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	for _, fe := range fileErrs {
		logger.Warn("backup: file skipped", slog.String("path", fe.Path), slog.String("error", fe.Err.Error()))
	}

	var buf []byte
	if buf, err = encodeEnvelope(env, compress); err != nil {
		return fmt.Errorf("backup: encode: %w", err)
	}
	if err := storage.WriteFileAtomic(out, buf); err != nil {
		return fmt.Errorf("backup: write %s: %w", out, err)
	}
	logger.Info("backup written",
		slog.String("path", out),
		slog.Int("files", len(env.Files)),
		slog.Int("collections", len(env.Collections)),
		slog.Bool("gzip", compress))
	return nil
}

// RunRestore applies the backup envelope stored at in.
func RunRestore(ctx context.Context, in, strategy, collections string, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}

	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	defer f.Close()
	env, err := backup.Decode(f)
	if err != nil {
		return fmt.Errorf("restore: %s: %w", in, err)
	}

	eng, err := newEngine(app.config, logger, hooks{})
	if err != nil {
		return err
	}
	defer eng.close()

	res, err := eng.svc.Restore(ctx, env, strategy, collections)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	for _, fe := range res.Errors {
		logger.Warn("restore: file failed", slog.String("path", fe.Path), slog.String("error", fe.Err.Error()))
	}
	logger.Info("restore applied",
		slog.Int("restored", res.Restored),
		slog.Int("skipped", res.Skipped),
		slog.Int("errors", len(res.Errors)))
	return nil
}
