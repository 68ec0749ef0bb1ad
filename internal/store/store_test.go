package store

import (
	"testing"

	"github.com/google/uuid"
)

// setupLocalTestStore creates a test store using local in-memory SQLite.
func setupLocalTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	cfg := Config{
		Backend:    BackendSQLite,
		SQLitePath: ":memory:",
	}

	store, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create local store: %v", err)
	}

	cleanup := func() {
		store.Close()
	}

	return store, cleanup
}

func TestNewInvalidBackend(t *testing.T) {
	cfg := Config{
		Backend: "invalid",
	}
	_, err := New(cfg)
	if err == nil {
		t.Error("Expected error for invalid backend")
	}
}

func TestGetAbsentKey(t *testing.T) {
	store, cleanup := setupLocalTestStore(t)
	defer cleanup()

	_, ok, err := store.Get(KeyToken)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Expected absent key to report ok=false")
	}
}

func TestSetGet(t *testing.T) {
	store, cleanup := setupLocalTestStore(t)
	defer cleanup()

	if err := store.Set(KeyToken, "abc123"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	v, ok, err := store.Get(KeyToken)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected key to exist")
	}
	if v != "abc123" {
		t.Errorf("Expected abc123, got %s", v)
	}
}

func TestSetOverwrites(t *testing.T) {
	store, cleanup := setupLocalTestStore(t)
	defer cleanup()

	if err := store.Set(KeyActiveBrand, `{"id":"1","name":"Crisbar"}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(KeyActiveBrand, `{"id":"2","name":"Kopikir"}`); err != nil {
		t.Fatalf("Second set failed: %v", err)
	}

	v, ok, _ := store.Get(KeyActiveBrand)
	if !ok {
		t.Fatal("Expected key to exist")
	}
	if v != `{"id":"2","name":"Kopikir"}` {
		t.Errorf("Expected last write to win, got %s", v)
	}
}

func TestDelete(t *testing.T) {
	store, cleanup := setupLocalTestStore(t)
	defer cleanup()

	store.Set(KeyUser, `{"id":"7"}`)
	if err := store.Delete(KeyUser); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, ok, _ := store.Get(KeyUser)
	if ok {
		t.Error("Expected key to be gone after delete")
	}

	// Deleting an absent key is fine
	if err := store.Delete(KeyUser); err != nil {
		t.Errorf("Delete of absent key failed: %v", err)
	}
}

func TestClear(t *testing.T) {
	store, cleanup := setupLocalTestStore(t)
	defer cleanup()

	store.Set(KeyToken, "t")
	store.Set(KeyUser, "u")
	store.Set(KeyBrands, "[]")

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	for _, key := range []string{KeyToken, KeyUser, KeyBrands} {
		if _, ok, _ := store.Get(key); ok {
			t.Errorf("Expected %s to be cleared", key)
		}
	}
}

func TestExportLog(t *testing.T) {
	store, cleanup := setupLocalTestStore(t)
	defer cleanup()

	rec := &ExportRecord{
		ID:       uuid.New().String(),
		Filename: "items_2025-01-02030405.csv",
		Location: "exports/items_2025-01-02030405.csv",
		RowCount: 42,
	}
	if err := store.LogExport(rec); err != nil {
		t.Fatalf("LogExport failed: %v", err)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}

	recs, err := store.ListExports(10)
	if err != nil {
		t.Fatalf("ListExports failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Expected 1 export record, got %d", len(recs))
	}
	if recs[0].Filename != rec.Filename {
		t.Errorf("Expected filename %s, got %s", rec.Filename, recs[0].Filename)
	}
	if recs[0].RowCount != 42 {
		t.Errorf("Expected row count 42, got %d", recs[0].RowCount)
	}
}
