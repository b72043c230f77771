package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dispatch-gateway/core"
)

func TestCRUD(t *testing.T) {
	base := t.TempDir()
	store, err := NewStore(base)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	ctx := context.Background()

	id, err := store.Create(ctx, &core.Document{Collection: "locations", Data: json.RawMessage(`{"lat":1}`), CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "locations", id+".json")); err != nil {
		t.Errorf("document file not written: %v", err)
	}

	if err := store.Update(ctx, &core.Document{Collection: "locations", ID: id, Data: json.RawMessage(`{"lat":2}`)}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	doc, err := store.Get(ctx, "locations", id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(doc.Data) != `{"lat":2}` || doc.CreatedBy != "u1" {
		t.Errorf("Get() mismatch: %+v", doc)
	}

	if n, _ := store.Count(ctx, "locations"); n != 1 {
		t.Errorf("Count() mismatch: got %d", n)
	}
	if err := store.Delete(ctx, "locations", id); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := store.Delete(ctx, "locations", id); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Delete() twice: got %v", err)
	}
}

func TestList_MissingCollection(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	docs, err := store.List(context.Background(), "services")
	if err != nil || len(docs) != 0 {
		t.Errorf("List() mismatch: %v, %v", docs, err)
	}
}

func TestPathTraversal(t *testing.T) {
	base := filepath.Join(t.TempDir(), "data")
	store, _ := NewStore(base)
	ctx := context.Background()

	for _, id := range []string{"../secret", "..", "a/b", `a\b`} {
		if _, err := store.Get(ctx, "users", id); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Get(%q) should be rejected as not found, got %v", id, err)
		}
	}
	if _, err := store.Create(ctx, &core.Document{Collection: "../escape", Data: json.RawMessage(`{}`)}); err == nil {
		t.Error("Create() with a traversing collection should fail")
	}
}
