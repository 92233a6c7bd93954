package backup

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/munchie/internal/apperr"
	"github.com/starford/munchie/internal/checksum"
	"github.com/starford/munchie/internal/collectionstore"
	"github.com/starford/munchie/internal/models"
	"github.com/starford/munchie/internal/queue"
	"github.com/starford/munchie/internal/testutil"
)

// memCache is an in-memory Cache keyed by path only.
type memCache struct {
	mu     sync.Mutex
	hashes map[string]string
	puts   int
}

func newMemCache() *memCache { return &memCache{hashes: map[string]string{}} }

func (c *memCache) CachedHash(path string, _ int64, _ time.Time) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hashes[path]
	return h, ok, nil
}

func (c *memCache) PutHash(path string, _ int64, _ time.Time, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashes[path] = hash
	c.puts++
	return nil
}

type env struct {
	root  string
	mgr   *Manager
	cols  *collectionstore.File
	cache *memCache
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root, store := testutil.TestLibrary(t)
	cols := collectionstore.NewFile(filepath.Join(t.TempDir(), "collections.json"))
	q := queue.New(cols)
	t.Cleanup(q.Close)
	cache := newMemCache()
	hasher := NewHasher(store, cache, 2, testutil.Logger())
	return &env{root: root, mgr: New(store, hasher, cols, q, testutil.Logger()), cols: cols, cache: cache}
}

func exists(root, rel string) bool {
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	return err == nil
}

func TestHashIndexGroupsIdenticalFiles(t *testing.T) {
	e := newEnv(t)
	testutil.WriteFile(t, e.root, "a/one.stl", []byte("same"))
	testutil.WriteFile(t, e.root, "b/two.3mf", []byte("same"))
	testutil.WriteFile(t, e.root, "c/other.stl", []byte("different"))
	testutil.WriteFile(t, e.root, "c/readme.txt", []byte("same"))

	idx, errs, err := e.mgr.hasher.Index(context.Background())
	if err != nil || len(errs) != 0 {
		t.Fatalf("Index: %v %v", err, errs)
	}
	same := idx[checksum.Sum([]byte("same"))]
	if len(same) != 2 || same[0] != "a/one.stl" || same[1] != "b/two.3mf" {
		t.Errorf("same = %v", same)
	}
	if len(idx) != 2 {
		t.Errorf("len(idx) = %d, want 2", len(idx))
	}
	if e.cache.puts != 3 {
		t.Errorf("cache puts = %d, want 3", e.cache.puts)
	}
}

func TestHashIndexUsesCache(t *testing.T) {
	e := newEnv(t)
	testutil.WriteFile(t, e.root, "x.stl", []byte("content"))
	e.cache.hashes["x.stl"] = "cached"

	idx, _, err := e.mgr.hasher.Index(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := idx["cached"]; len(got) != 1 || got[0] != "x.stl" {
		t.Errorf("idx = %v", idx)
	}
}

func TestHashIndexCancelled(t *testing.T) {
	e := newEnv(t)
	testutil.WriteFile(t, e.root, "x.stl", []byte("content"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := e.mgr.hasher.Index(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBackupBundlesSidecarsAndCollections(t *testing.T) {
	e := newEnv(t)
	primary := []byte("solid dragon")
	testutil.WriteFile(t, e.root, "minis/dragon.3mf", primary)
	testutil.WriteSidecar(t, e.root, "minis/dragon-munchie.json", "m1", nil)
	testutil.WriteSidecar(t, e.root, "minis/orc-stl-munchie.json", "m2", map[string]any{"hash": "known"})
	if err := e.cols.Save([]models.Collection{{ID: "c1", Name: "Favourites", ModelIDs: []string{"m1"}}}); err != nil {
		t.Fatal(err)
	}

	got, errs, err := e.mgr.Backup(context.Background())
	if err != nil || len(errs) != 0 {
		t.Fatalf("Backup: %v %v", err, errs)
	}
	if got.Version != models.BackupVersion {
		t.Errorf("version = %q", got.Version)
	}
	if len(got.Files) != 2 {
		t.Fatalf("files = %d, want 2", len(got.Files))
	}
	byPath := map[string]models.BackupFile{}
	for _, f := range got.Files {
		byPath[f.RelativePath] = f
	}
	dragon := byPath["minis/dragon-munchie.json"]
	if dragon.Hash != checksum.Sum(primary) {
		t.Errorf("dragon hash = %q, want hash of primary", dragon.Hash)
	}
	if dragon.OriginalPath != "minis/dragon-munchie.json" || dragon.Size != int64(len(dragon.Content)) {
		t.Errorf("dragon = %+v", dragon)
	}
	if byPath["minis/orc-stl-munchie.json"].Hash != "known" {
		t.Errorf("orc hash = %q", byPath["minis/orc-stl-munchie.json"].Hash)
	}
	if len(got.Collections) != 1 || got.Collections[0].ID != "c1" {
		t.Errorf("collections = %+v", got.Collections)
	}
}

func TestRestoreHashMatchFollowsMovedFile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteFile(t, e.root, "old/dragon.stl", []byte("solid dragon"))
	testutil.WriteSidecar(t, e.root, "old/dragon-stl-munchie.json", "m1", map[string]any{"hash": "abc123"})

	snap, _, err := e.mgr.Backup(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Move file and folder, losing the sidecar on the way.
	if err := os.MkdirAll(filepath.Join(e.root, "new"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(filepath.Join(e.root, "old"), filepath.Join(e.root, "new", "place")); err != nil {
		t.Fatal(err)
	}
	_ = os.Remove(filepath.Join(e.root, "new", "place", "dragon-stl-munchie.json"))
	e.cache.hashes["new/place/dragon.stl"] = "abc123"

	res, err := e.mgr.Restore(ctx, snap, HashMatch, Merge)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Restored != 1 || res.Skipped != 0 {
		t.Fatalf("hash-match result = %+v", res)
	}
	doc := testutil.ReadSidecar(t, e.root, "new/place/dragon-stl-munchie.json")
	if doc["id"] != "m1" {
		t.Errorf("restored id = %v", doc["id"])
	}
	if exists(e.root, "old/dragon-stl-munchie.json") {
		t.Error("hash-match must not recreate the old location")
	}

	_ = os.Remove(filepath.Join(e.root, "new", "place", "dragon-stl-munchie.json"))
	res, err = e.mgr.Restore(ctx, snap, PathMatch, Merge)
	if err != nil {
		t.Fatal(err)
	}
	if res.Restored != 0 || res.Skipped != 1 {
		t.Errorf("path-match result = %+v", res)
	}
}

func TestBatchOperationsSkipUnreadableDir(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteFile(t, e.root, "A/ork.stl", []byte("solid ork"))
	testutil.WriteSidecar(t, e.root, "A/ork-stl-munchie.json", "m1", nil)
	testutil.LockDir(t, e.root, "Z")

	snap, errs, err := e.mgr.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if len(snap.Files) != 1 || len(errs) != 1 || errs[0].Path != "Z" {
		t.Fatalf("backup files = %d, errs = %v", len(snap.Files), errs)
	}

	idx, errs, err := e.mgr.hasher.Index(ctx)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(idx[checksum.Sum([]byte("solid ork"))]) != 1 || len(errs) != 1 {
		t.Errorf("idx = %v, errs = %v", idx, errs)
	}

	_ = os.Remove(filepath.Join(e.root, "A", "ork-stl-munchie.json"))
	res, err := e.mgr.Restore(ctx, snap, HashMatch, Merge)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Restored != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestRestoreCancelledKeepsPartialResult(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap := &models.BackupEnvelope{Files: []models.BackupFile{
		{OriginalPath: "x-munchie.json", Content: `{"id":"x"}`},
	}}
	res, err := e.mgr.Restore(ctx, snap, Force, Merge)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res == nil || res.Restored != 0 {
		t.Errorf("partial result = %+v", res)
	}
}

func TestRestoreHashMatchFallsBackToOriginalPath(t *testing.T) {
	e := newEnv(t)
	testutil.WriteFile(t, e.root, "a/part.3mf", []byte("v1"))
	snap := &models.BackupEnvelope{Files: []models.BackupFile{
		{RelativePath: "a/part-munchie.json", OriginalPath: "a/part-munchie.json", Content: `{"id":"p"}`, Hash: "stale"},
		{RelativePath: "gone/x-munchie.json", OriginalPath: "gone/x-munchie.json", Content: `{"id":"x"}`, Hash: "missing"},
	}}

	res, err := e.mgr.Restore(context.Background(), snap, HashMatch, Merge)
	if err != nil {
		t.Fatal(err)
	}
	if res.Restored != 1 || res.Skipped != 1 {
		t.Errorf("result = %+v", res)
	}
	if !exists(e.root, "a/part-munchie.json") {
		t.Error("fallback to original path did not restore")
	}
}

func TestRestoreForceCreatesParentsAndGuardsPrimary(t *testing.T) {
	e := newEnv(t)
	testutil.WriteFile(t, e.root, "kept/model.stl", []byte("binary"))
	snap := &models.BackupEnvelope{Files: []models.BackupFile{
		{OriginalPath: "orphan/deep/x-munchie.json", Content: `{"id":"x"}`},
		{OriginalPath: "kept/model.stl", Content: `{"id":"m"}`},
		{OriginalPath: "../escape-munchie.json", Content: `{}`},
	}}

	res, err := e.mgr.Restore(context.Background(), snap, Force, Merge)
	if err != nil {
		t.Fatal(err)
	}
	if res.Restored != 2 || len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if !exists(e.root, "orphan/deep/x-munchie.json") {
		t.Error("force did not create parent directories")
	}
	data, _ := os.ReadFile(filepath.Join(e.root, "kept", "model.stl"))
	if string(data) != "binary" {
		t.Errorf("primary overwritten: %q", data)
	}
	if doc := testutil.ReadSidecar(t, e.root, "kept/model-stl-munchie.json"); doc["id"] != "m" {
		t.Errorf("remapped sidecar = %v", doc)
	}
	if exists(filepath.Dir(e.root), "escape-munchie.json") {
		t.Error("traversal write escaped the library")
	}
}

func TestRestoreCollections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if err := e.cols.Save([]models.Collection{
		{ID: "a", Name: "Local A"},
		{ID: "b", Name: "Local B"},
	}); err != nil {
		t.Fatal(err)
	}
	snap := &models.BackupEnvelope{Collections: []models.Collection{
		{ID: "b", Name: "Backup B"},
		{Name: "No Id"},
	}}

	res, err := e.mgr.Restore(ctx, snap, HashMatch, Merge)
	if err != nil {
		t.Fatal(err)
	}
	cols, _ := e.cols.Load()
	if len(cols) != 3 || len(res.Collections) != 3 {
		t.Fatalf("merged = %+v", cols)
	}
	if cols[1].Name != "Backup B" {
		t.Errorf("backup must win on collision, got %q", cols[1].Name)
	}
	if cols[2].ID == "" {
		t.Error("missing id not assigned")
	}

	if _, err := e.mgr.Restore(ctx, &models.BackupEnvelope{Collections: []models.Collection{{ID: "z", Name: "Z"}}}, HashMatch, Replace); err != nil {
		t.Fatal(err)
	}
	cols, _ = e.cols.Load()
	if len(cols) != 1 || cols[0].ID != "z" {
		t.Errorf("replaced = %+v", cols)
	}
}

func TestCombineCollectionsDeduplicatesBackup(t *testing.T) {
	out := CombineCollections(nil, []models.Collection{
		{ID: "x", Name: "first"},
		{ID: "x", Name: "second"},
	}, Merge)
	if len(out) != 1 || out[0].Name != "second" {
		t.Errorf("out = %+v", out)
	}
}

func TestParseStrategies(t *testing.T) {
	if s, err := ParseStrategy(""); err != nil || s != HashMatch {
		t.Errorf("default = %q, %v", s, err)
	}
	if s, err := ParseStrategy("Force"); err != nil || s != Force {
		t.Errorf("Force = %q, %v", s, err)
	}
	if _, err := ParseStrategy("nearest"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unknown strategy err = %v", err)
	}
	if s, err := ParseCollectionsStrategy(""); err != nil || s != Merge {
		t.Errorf("default collections = %q, %v", s, err)
	}
	if _, err := ParseCollectionsStrategy("append"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unknown collections strategy err = %v", err)
	}
}

func TestCodecDetectsGzip(t *testing.T) {
	in := &models.BackupEnvelope{Version: models.BackupVersion, Files: []models.BackupFile{{RelativePath: "a-munchie.json", Content: "{}"}}}
	for _, compress := range []bool{false, true} {
		var buf bytes.Buffer
		if err := Encode(&buf, in, compress); err != nil {
			t.Fatal(err)
		}
		if compress && buf.Bytes()[0] != 0x1f {
			t.Error("compressed output lacks gzip magic")
		}
		out, err := Decode(&buf)
		if err != nil {
			t.Fatalf("Decode(compress=%v): %v", compress, err)
		}
		if len(out.Files) != 1 || out.Files[0].RelativePath != "a-munchie.json" {
			t.Errorf("decoded = %+v", out)
		}
	}
	if _, err := Decode(bytes.NewBufferString("nope")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("malformed err = %v", err)
	}
}
