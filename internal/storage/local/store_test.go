package local

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

type testDoc struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestStore_SaveLoad(t *testing.T) {
	store := newTestStore(t)

	saved := testDoc{Name: "alpha", Value: 42}
	if err := store.Save("docs", "one", saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var loaded testDoc
	if err := store.Load("docs", "one", &loaded); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != saved {
		t.Errorf("Load() = %+v, want %+v", loaded, saved)
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save("docs", "one", testDoc{Name: "old"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save("docs", "one", testDoc{Name: "new"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var loaded testDoc
	if err := store.Load("docs", "one", &loaded); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Name != "new" {
		t.Errorf("Name = %q, want new", loaded.Name)
	}
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if err := store.Save("docs", "one", testDoc{Name: "alpha"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "docs"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Errorf("leftover temp file %s", entry.Name())
		}
	}
}

func TestStore_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}

	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Save("docs", "one", testDoc{Name: "alpha"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "docs", "one.json"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 0600", perm)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	var doc testDoc
	if err := store.Load("docs", "missing", &doc); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save("docs", "one", testDoc{Name: "alpha"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete("docs", "one"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if store.Exists("docs", "one") {
		t.Error("Exists() = true after delete")
	}
	if err := store.Delete("docs", "one"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() missing error = %v, want ErrNotFound", err)
	}
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)

	ids, err := store.List("empty")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("List() = %v, want empty", ids)
	}

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Save("docs", id, testDoc{Name: id}); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	ids, err = store.List("docs")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("List() = %v, want 3 ids", ids)
	}
}
