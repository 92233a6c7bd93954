package mcpserver

// LibraryContract describes how the models directory maps onto sidecars and
// collections, for LLM consumers deciding which tool to call.
const LibraryContract = `# Munchie Library Contract

Every 3D model in the library is described by a JSON sidecar stored next to it.

## Sidecar naming

| Model file       | Sidecar                     |
|------------------|-----------------------------|
| ` + "`dragon.3mf`" + `     | ` + "`dragon-munchie.json`" + `       |
| ` + "`dragon.stl`" + `     | ` + "`dragon-stl-munchie.json`" + `   |

Sidecars are JSON objects. Fields read by the collection engine:

- ` + "`id`" + ` (string) identifies the model inside collections.
- ` + "`tags`" + ` (string list) is extended with folder names when folders are scanned.
- ` + "`hidden`" + ` (bool) is true exactly when the model belongs to at least one collection.
- ` + "`hash`" + ` (string) is the SHA-256 of the model file; used to restore moved models.

All other fields are preserved untouched. Model files themselves are never written.

## Folder scan strategies

1. **smart** (default): one flat collection per folder that directly holds models.
2. **strict**: mirrors the folder tree; a folder qualifies when anything below it
   holds models, and ` + "`parentId`" + ` links to the nearest qualifying ancestor.
3. **top-level**: one collection per immediate child of the scanned folder,
   holding every model of its subtree.

Folder collections carry ids of the form ` + "`col_<base64url(relative path)>`" + ` and the
category ` + "`auto-imported`" + `, so rescanning updates them in place instead of
creating duplicates. Folders whose name starts with a dot are ignored.

## Rules

1. Paths are relative to the models directory and use forward slashes.
2. Paths containing ` + "`..`" + ` segments or starting with ` + "`/`" + ` are rejected.
3. Collection names are required and at most 200 characters.
4. Hidden flags are reconciled in the background after every collection change;
   call ` + "`reconcile_hidden`" + ` to run a pass and see its report.
`
