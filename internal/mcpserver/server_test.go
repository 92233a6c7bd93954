package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/munchie/internal/collectionservice"
	"github.com/starford/munchie/internal/collectionstore"
	"github.com/starford/munchie/internal/derive"
	"github.com/starford/munchie/internal/library"
	"github.com/starford/munchie/internal/models"
	"github.com/starford/munchie/internal/queue"
	"github.com/starford/munchie/internal/reconcile"
	"github.com/starford/munchie/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	logger := testutil.Logger()
	root, store := testutil.TestLibrary(t)
	lib := library.New(store, logger)
	cols := collectionstore.NewFile(filepath.Join(t.TempDir(), "collections.json"))
	hidden := reconcile.NewHidden(lib, logger)
	bg := reconcile.NewBackground(hidden, nil)
	q := queue.New(cols, queue.WithCommitHook(bg.Trigger))
	t.Cleanup(func() {
		q.Close()
		bg.Wait()
	})

	svc := collectionservice.New(q, cols, derive.New(lib, logger),
		collectionservice.WithLogger(logger),
		collectionservice.WithReconciler(hidden, bg),
	)
	return New(svc, "test"), root
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_collections":
		result, err = srv.listCollections(ctx, req)
	case "get_collection":
		result, err = srv.getCollection(ctx, req)
	case "create_collection":
		result, err = srv.createCollection(ctx, req)
	case "scan_folders":
		result, err = srv.scanFolders(ctx, req)
	case "reconcile_hidden":
		result, err = srv.reconcileHidden(ctx, req)
	case "list_models":
		result, err = srv.listModels(ctx, req)
	case "get_library_contract":
		result, err = srv.getLibraryContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndGetCollection(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_collection", map[string]any{
		"name":     "Dragons",
		"modelIds": []any{"m1", "m2"},
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	var created models.Collection
	if err := json.Unmarshal([]byte(resultText(r)), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Name != "Dragons" || len(created.ModelIDs) != 2 {
		t.Errorf("created = %+v", created)
	}

	r = callTool(t, srv, "get_collection", map[string]any{"id": created.ID})
	if r.IsError || !strings.Contains(resultText(r), `"Dragons"`) {
		t.Errorf("get = %s", resultText(r))
	}

	r = callTool(t, srv, "list_collections", map[string]any{})
	var list []models.Collection
	_ = json.Unmarshal([]byte(resultText(r)), &list)
	if len(list) != 1 {
		t.Errorf("list = %s", resultText(r))
	}
}

func TestCreateCollectionRequiresName(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "create_collection", map[string]any{}); !r.IsError {
		t.Error("expected error for missing name")
	}
	if r := callTool(t, srv, "create_collection", map[string]any{"name": ""}); !r.IsError {
		t.Error("expected error for empty name")
	}
}

func TestGetCollectionMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_collection", map[string]any{"id": "nope"})
	if !r.IsError || !strings.HasPrefix(resultText(r), "not found") {
		t.Errorf("missing collection = %q", resultText(r))
	}
}

func TestScanFoldersAndReconcile(t *testing.T) {
	srv, root := testServer(t)
	testutil.WriteSidecar(t, root, "A/B/model-munchie.json", "m1", nil)

	r := callTool(t, srv, "scan_folders", map[string]any{"strategy": "strict", "clearPrevious": true})
	if r.IsError {
		t.Fatalf("scan failed: %s", resultText(r))
	}
	var out map[string]any
	_ = json.Unmarshal([]byte(resultText(r)), &out)
	if out["candidates"] != float64(2) || out["strategy"] != "strict" {
		t.Errorf("scan = %v", out)
	}

	r = callTool(t, srv, "reconcile_hidden", map[string]any{})
	var report reconcile.HiddenReport
	_ = json.Unmarshal([]byte(resultText(r)), &report)
	if r.IsError || report.Checked != 1 {
		t.Errorf("report = %s", resultText(r))
	}
	if doc := testutil.ReadSidecar(t, root, "A/B/model-munchie.json"); doc["hidden"] != true {
		t.Errorf("member not hidden: %v", doc)
	}
}

func TestScanFoldersRejectsTraversal(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "scan_folders", map[string]any{"path": "../etc"}); !r.IsError {
		t.Error("expected error for traversal path")
	}
}

func TestListModelsWithoutIndex(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "list_models", map[string]any{}); !r.IsError {
		t.Error("expected error when no model index is configured")
	}
}

func TestLibraryContract(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_library_contract", map[string]any{}))
	for _, want := range []string{"-stl-munchie.json", "top-level", "col_"} {
		if !strings.Contains(text, want) {
			t.Errorf("contract missing %q", want)
		}
	}
}
