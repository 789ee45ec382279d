package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"chatdash/stores/storetest"
)

func TestStore(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	storetest.Run(t, store)
}

func TestNewStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	if _, err := NewStore(dir); err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("base directory not created: %v", err)
	}
}

func TestSave_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}

	if err := store.Save(context.Background(), "chatrooms", []byte(`[]`)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "chatrooms.json"))
	if err != nil {
		t.Fatalf("collection file missing: %v", err)
	}
	if string(data) != `[]` {
		t.Errorf("file content = %s, want []", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the collection file, found %d entries", len(entries))
	}
}

func TestInvalidKeys(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"", ".", "..", "../escape", "a/b", `a\b`} {
		if err := store.Save(ctx, key, []byte(`[]`)); err == nil {
			t.Errorf("Save(%q) should fail", key)
		}
		if _, _, err := store.Load(ctx, key); err == nil {
			t.Errorf("Load(%q) should fail", key)
		}
	}
}
