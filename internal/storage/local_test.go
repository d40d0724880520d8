package storage

import (
	"context"
	"testing"

	"github.com/ao3vault/vault/internal/logging"
)

func newTestLocalBackend(t *testing.T) *LocalBackend {
	t.Helper()
	backend, err := NewLocalBackend("local", t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}
	return backend
}

func TestLocalBackendWriteReadDelete(t *testing.T) {
	ctx := context.Background()
	backend := newTestLocalBackend(t)

	if err := backend.Write(ctx, "a/b/story.html", []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	exists, err := backend.Exists(ctx, "a/b/story.html")
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v; want true, nil", exists, err)
	}
	data, err := backend.Read(ctx, "a/b/story.html")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("Read = %q, want %q", data, "hello")
	}
	if err := backend.Delete(ctx, "a/b/story.html"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	exists, err = backend.Exists(ctx, "a/b/story.html")
	if err != nil || exists {
		t.Fatalf("Exists after delete = %v, %v; want false, nil", exists, err)
	}
}

func TestLocalBackendNotFound(t *testing.T) {
	ctx := context.Background()
	backend := newTestLocalBackend(t)
	if _, err := backend.Read(ctx, "missing.html"); !IsNotFound(err) {
		t.Fatalf("Read of missing file: got %v, want IsNotFound", err)
	}
	if err := backend.Delete(ctx, "missing.html"); !IsNotFound(err) {
		t.Fatalf("Delete of missing file: got %v, want IsNotFound", err)
	}
}

func TestLocalBackendListStreamMissingPrefix(t *testing.T) {
	ctx := context.Background()
	backend := newTestLocalBackend(t)
	results, err := backend.List(ctx, "nonexistent/prefix")
	if err != nil {
		t.Fatalf("List on missing prefix should not error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("List on missing prefix returned %d results, want 0", len(results))
	}
}

func TestLocalBackendListStreamDiscoversFiles(t *testing.T) {
	ctx := context.Background()
	backend := newTestLocalBackend(t)
	paths := []string{"a/one.html", "a/b/two.html", "c/three.html"}
	for _, p := range paths {
		if err := backend.Write(ctx, p, []byte(p)); err != nil {
			t.Fatalf("Write(%q): %v", p, err)
		}
	}
	results, err := backend.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(results) != len(paths) {
		t.Fatalf("List returned %d entries, want %d", len(results), len(paths))
	}
}

func TestLocalBackendRename(t *testing.T) {
	ctx := context.Background()
	backend := newTestLocalBackend(t)
	if err := backend.Write(ctx, "old.html", []byte("data")); err != nil {
		t.Fatal(err)
	}
	if err := backend.Rename(ctx, "old.html", "new/nested.html"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if exists, _ := backend.Exists(ctx, "old.html"); exists {
		t.Fatal("source still exists after rename")
	}
	if exists, _ := backend.Exists(ctx, "new/nested.html"); !exists {
		t.Fatal("destination missing after rename")
	}
}

func TestReadOnlyDecoratorBlocksMutation(t *testing.T) {
	ctx := context.Background()
	backend := newTestLocalBackend(t)
	ro := NewReadOnly(backend, logging.New(logging.LevelDisabled))

	if err := ro.Write(ctx, "x.html", []byte("data")); err != nil {
		t.Fatalf("read-only Write should succeed silently: %v", err)
	}
	if exists, _ := backend.Exists(ctx, "x.html"); exists {
		t.Fatal("read-only Write leaked through to underlying backend")
	}
	if err := ro.Delete(ctx, "x.html"); err != nil {
		t.Fatalf("read-only Delete should succeed silently: %v", err)
	}
}

func TestExtensionFilterRejectsDisallowed(t *testing.T) {
	ctx := context.Background()
	backend := newTestLocalBackend(t)
	filtered := NewExtensionFilter(backend, ".html")

	if err := filtered.Write(ctx, "story.html.gz", []byte("ok")); err != nil {
		t.Fatalf("Write of allowed extension should succeed: %v", err)
	}
	if err := filtered.Write(ctx, "story.exe", []byte("bad")); err == nil {
		t.Fatal("Write of disallowed extension should fail")
	}
}

func TestExtensionFilterSilentlyFiltersListing(t *testing.T) {
	ctx := context.Background()
	backend := newTestLocalBackend(t)
	if err := backend.Write(ctx, "a.html", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := backend.Write(ctx, "b.exe", []byte("x")); err != nil {
		t.Fatal(err)
	}
	filtered := NewExtensionFilter(backend, ".html")
	results, err := filtered.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Path != "a.html" {
		t.Fatalf("List = %+v, want only a.html", results)
	}
}
