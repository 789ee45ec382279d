package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"chatdash/stores/storetest"
)

func newTestStore(t *testing.T) *sqliteStore {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore(t *testing.T) {
	storetest.Run(t, newTestStore(t))
}

func TestStore_SurvivesReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	first, err := NewStore(dsn)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	if err := first.Save(ctx, "users", []byte(`[{"mobileNumber":"9876543210"}]`)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	first.Close()

	second, err := NewStore(dsn)
	if err != nil {
		t.Fatalf("NewStore() failed on reopen: %v", err)
	}
	defer second.Close()

	data, ok, err := second.Load(ctx, "users")
	if err != nil || !ok {
		t.Fatalf("Load() after reopen: ok=%v err=%v", ok, err)
	}
	if string(data) != `[{"mobileNumber":"9876543210"}]` {
		t.Errorf("Load() after reopen = %s", data)
	}
}
