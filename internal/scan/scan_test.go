package scan

import (
	"context"
	"testing"

	"github.com/ao3vault/vault/internal/cache"
	"github.com/ao3vault/vault/internal/cachedb"
	"github.com/ao3vault/vault/internal/fileinfo"
	"github.com/ao3vault/vault/internal/storage"
)

const sampleWork = `<!DOCTYPE html>
<html><body>
<div id="preface" class="group">
  <div class="message">
    <p class="message"><a href="https://archiveofourown.org/works/12345">Work Link</a></p>
  </div>
  <div class="meta">
    <h1>A Very Good Title</h1>
    <h3 class="byline">
      <a rel="author" href="https://archiveofourown.org/users/alice/pseuds/alice">alice</a>
    </h3>
    <dl class="tags">
      <dt>Rating:</dt><dd><a href="#">Teen And Up Audiences</a></dd>
      <dt>Warnings:</dt><dd><a href="#">No Archive Warnings Apply</a></dd>
      <dt>Fandoms:</dt><dd><a href="#">Star Trek</a></dd>
      <dt>Language:</dt><dd>English</dd>
      <dt>Stats:</dt><dd>Published: 2020-01-02 Updated: 2020-02-03 Words: 1,234 Chapters: 2/5</dd>
    </dl>
    <blockquote class="userstuff"><p>A short summary.</p></blockquote>
  </div>
</div>
</body></html>`

func newTestEnv(t *testing.T) (*storage.LocalBackend, *cache.Repository) {
	t.Helper()
	backend, err := storage.NewLocalBackend("local", t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}
	db, err := cachedb.Open("")
	if err != nil {
		t.Fatalf("cachedb.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return backend, cache.New(db)
}

func writeAndDiscover(t *testing.T, backend *storage.LocalBackend, path string, data []byte) fileinfo.Discovered {
	t.Helper()
	ctx := context.Background()
	if err := backend.Write(ctx, path, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := backend.Stat(ctx, path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	return info
}

func TestScanFileFreshProcessesAndUpserts(t *testing.T) {
	ctx := context.Background()
	backend, repo := newTestEnv(t)
	info := writeAndDiscover(t, backend, "a/b/story.html", []byte(sampleWork))

	result, err := File(ctx, backend, repo, info)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if result.Effort != Processed {
		t.Fatalf("Effort = %v, want Processed", result.Effort)
	}
	if len(result.File.ContentHash) != 64 {
		t.Fatalf("ContentHash = %q, want 64 hex chars", result.File.ContentHash)
	}
	if len(result.File.FileHash) != 64 {
		t.Fatalf("FileHash = %q, want 64 hex chars", result.File.FileHash)
	}

	n, err := repo.CountFiles(ctx)
	if err != nil {
		t.Fatalf("CountFiles: %v", err)
	}
	if n != 1 {
		t.Fatalf("CountFiles = %d, want 1", n)
	}
	versions, err := repo.CountVersions(ctx)
	if err != nil {
		t.Fatalf("CountVersions: %v", err)
	}
	if versions != 1 {
		t.Fatalf("CountVersions = %d, want 1", versions)
	}
}

func TestScanFileRescanIsCached(t *testing.T) {
	ctx := context.Background()
	backend, repo := newTestEnv(t)
	info := writeAndDiscover(t, backend, "a/b/story.html", []byte(sampleWork))

	if _, err := File(ctx, backend, repo, info); err != nil {
		t.Fatalf("first File: %v", err)
	}
	before, err := repo.CountFiles(ctx)
	if err != nil {
		t.Fatalf("CountFiles: %v", err)
	}

	result, err := File(ctx, backend, repo, info)
	if err != nil {
		t.Fatalf("second File: %v", err)
	}
	if result.Effort != Cached {
		t.Fatalf("Effort = %v, want Cached", result.Effort)
	}
	after, err := repo.CountFiles(ctx)
	if err != nil {
		t.Fatalf("CountFiles: %v", err)
	}
	if after != before {
		t.Fatalf("CountFiles changed on rescan: %d -> %d", before, after)
	}
}

func TestScanFileContentMovedDedup(t *testing.T) {
	ctx := context.Background()
	backend, repo := newTestEnv(t)
	first := writeAndDiscover(t, backend, "a/b/story.html", []byte(sampleWork))
	if _, err := File(ctx, backend, repo, first); err != nil {
		t.Fatalf("first File: %v", err)
	}

	second := writeAndDiscover(t, backend, "x/y/story.html", []byte(sampleWork))
	result, err := File(ctx, backend, repo, second)
	if err != nil {
		t.Fatalf("second File: %v", err)
	}
	if result.Effort != Cached {
		t.Fatalf("Effort = %v, want Cached (located elsewhere)", result.Effort)
	}

	versions, err := repo.CountVersions(ctx)
	if err != nil {
		t.Fatalf("CountVersions: %v", err)
	}
	if versions != 1 {
		t.Fatalf("CountVersions = %d, want 1", versions)
	}
	files, err := repo.CountFiles(ctx)
	if err != nil {
		t.Fatalf("CountFiles: %v", err)
	}
	if files != 2 {
		t.Fatalf("CountFiles = %d, want 2", files)
	}
}

func TestScanFileInvalidDocumentFails(t *testing.T) {
	ctx := context.Background()
	backend, repo := newTestEnv(t)
	info := writeAndDiscover(t, backend, "broken.html", []byte("<html><body>not a work</body></html>"))

	if _, err := File(ctx, backend, repo, info); err == nil {
		t.Fatalf("File: expected error for invalid document")
	}
}

func TestStreamEmitsScenarioOneSequence(t *testing.T) {
	ctx := context.Background()
	backend, repo := newTestEnv(t)
	if err := backend.Write(ctx, "a/b/story.html", []byte(sampleWork)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var kinds []EventKind
	var scannedCount int
	for ev := range Stream(ctx, backend, repo, "") {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == Scanned {
			if ev.Err != nil {
				t.Fatalf("unexpected scan error: %v", ev.Err)
			}
			scannedCount++
		}
	}

	if len(kinds) < 4 || kinds[0] != Started || kinds[len(kinds)-1] != Complete {
		t.Fatalf("event kinds = %v, want Started ... Complete", kinds)
	}
	sawDiscoveryComplete := false
	for _, k := range kinds {
		if k == DiscoveryComplete {
			sawDiscoveryComplete = true
		}
	}
	if !sawDiscoveryComplete {
		t.Fatalf("event kinds = %v, missing DiscoveryComplete", kinds)
	}
	if scannedCount != 1 {
		t.Fatalf("scannedCount = %d, want 1", scannedCount)
	}

	n, err := repo.CountFiles(ctx)
	if err != nil {
		t.Fatalf("CountFiles: %v", err)
	}
	if n != 1 {
		t.Fatalf("CountFiles = %d, want 1", n)
	}
}
