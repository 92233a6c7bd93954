package index

import (
	"os"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "munchie-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM models`).Scan(&count); err != nil {
		t.Fatalf("models table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM file_hashes`).Scan(&count); err != nil {
		t.Fatalf("file_hashes table missing: %v", err)
	}
}

func TestUpsertAndGetModel(t *testing.T) {
	db := testDB(t)
	row := ModelRow{
		Path:     "minis/dragon-munchie.json",
		ID:       "m1",
		Hash:     "abc123",
		Tags:     []string{"Minis", "dragon"},
		Hidden:   true,
		Checksum: "cs1",
	}
	if err := db.UpsertModel(row); err != nil {
		t.Fatalf("UpsertModel: %v", err)
	}
	got, err := db.GetModel(row.Path)
	if err != nil || got == nil {
		t.Fatalf("GetModel: %v, %v", got, err)
	}
	if got.ID != "m1" || got.Hash != "abc123" || !got.Hidden || len(got.Tags) != 2 {
		t.Errorf("row = %+v", got)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertModel(ModelRow{Path: "a-munchie.json", ID: "m1", Checksum: "v1"})
	_ = db.UpsertModel(ModelRow{Path: "a-munchie.json", ID: "m1", Checksum: "v2", Hidden: true})

	cs, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 1 || cs["a-munchie.json"] != "v2" {
		t.Errorf("checksums = %v", cs)
	}
}

func TestDeleteModel(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertModel(ModelRow{Path: "del-munchie.json", ID: "m1"})
	if err := db.DeleteModel("del-munchie.json"); err != nil {
		t.Fatalf("DeleteModel: %v", err)
	}
	got, err := db.GetModel("del-munchie.json")
	if err != nil || got != nil {
		t.Errorf("after delete: %v, %v", got, err)
	}
}

func TestListModelsTagFilterAndPaging(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertModel(ModelRow{Path: "a-munchie.json", ID: "a", Tags: []string{"Terrain"}})
	_ = db.UpsertModel(ModelRow{Path: "b-munchie.json", ID: "b", Tags: []string{"terrain", "ruins"}})
	_ = db.UpsertModel(ModelRow{Path: "c-munchie.json", ID: "c", Tags: []string{"minis"}})

	rows, total, err := db.ListModels(10, 0, "TERRAIN")
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if total != 2 || len(rows) != 2 || rows[0].ID != "a" {
		t.Errorf("total=%d rows=%+v", total, rows)
	}

	rows, total, err = db.ListModels(1, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(rows) != 1 || rows[0].ID != "b" {
		t.Errorf("page: total=%d rows=%+v", total, rows)
	}
}

func TestHashCacheValidity(t *testing.T) {
	db := testDB(t)
	mt := time.Date(2025, 5, 1, 10, 0, 0, 123, time.UTC)
	if err := db.PutHash("a.stl", 42, mt, "h1"); err != nil {
		t.Fatalf("PutHash: %v", err)
	}
	if h, ok, _ := db.CachedHash("a.stl", 42, mt); !ok || h != "h1" {
		t.Errorf("hit = %q, %v", h, ok)
	}
	if _, ok, _ := db.CachedHash("a.stl", 43, mt); ok {
		t.Error("size change must miss")
	}
	if _, ok, _ := db.CachedHash("a.stl", 42, mt.Add(time.Second)); ok {
		t.Error("mtime change must miss")
	}
	_ = db.DeleteHash("a.stl")
	if _, ok, _ := db.CachedHash("a.stl", 42, mt); ok {
		t.Error("deleted entry must miss")
	}
}
