package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ao3vault/vault/internal/cache"
	"github.com/ao3vault/vault/internal/cachedb"
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

// writeSmokeConfig lays out a vault.yaml declaring one local backend
// rooted under dir, plus a cache database file beside it, and points the
// command tree's --config at it for the duration of the test.
func writeSmokeConfig(t *testing.T) (libraryRoot, cachePath string) {
	t.Helper()
	dir := t.TempDir()
	libraryRoot = filepath.Join(dir, "library")
	cachePath = filepath.Join(dir, "cache.db")
	configPath := filepath.Join(dir, "vault.yaml")

	configYAML := fmt.Sprintf(`cache_database: %q
log_level: disabled
backends:
  - name: local
    kind: local
    root: %q
`, cachePath, libraryRoot)
	if err := os.WriteFile(configPath, []byte(configYAML), 0o644); err != nil {
		t.Fatalf("write vault.yaml: %v", err)
	}

	previousConfig := rootConfiguration.configPath
	previousPrefix := scanConfiguration.prefix
	rootConfiguration.configPath = configPath
	scanConfiguration.prefix = ""
	t.Cleanup(func() {
		rootConfiguration.configPath = previousConfig
		scanConfiguration.prefix = previousPrefix
	})
	return libraryRoot, cachePath
}

func writeLibraryFile(t *testing.T, root, path, body string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestRunScanSmoke(t *testing.T) {
	libraryRoot, cachePath := writeSmokeConfig(t)
	writeLibraryFile(t, libraryRoot, "a/b/story.html", sampleWork)

	if err := runScan(scanCommand, []string{"local"}); err != nil {
		t.Fatalf("runScan: %v", err)
	}

	db, err := cachedb.Open(cachePath)
	if err != nil {
		t.Fatalf("cachedb.Open: %v", err)
	}
	defer db.Close()
	repo := cache.New(db)

	ctx := context.Background()
	files, err := repo.CountFiles(ctx)
	if err != nil {
		t.Fatalf("CountFiles: %v", err)
	}
	if files != 1 {
		t.Fatalf("CountFiles = %d, want 1", files)
	}
	versions, err := repo.CountVersions(ctx)
	if err != nil {
		t.Fatalf("CountVersions: %v", err)
	}
	if versions != 1 {
		t.Fatalf("CountVersions = %d, want 1", versions)
	}
}

func TestRunScanUnknownBackend(t *testing.T) {
	writeSmokeConfig(t)
	if err := runScan(scanCommand, []string{"nope"}); err == nil {
		t.Fatal("expected an error for an undeclared backend")
	}
}

func TestRunScanReportsPerFileFailures(t *testing.T) {
	libraryRoot, _ := writeSmokeConfig(t)
	writeLibraryFile(t, libraryRoot, "broken.html", "<html><body>not a work</body></html>")

	if err := runScan(scanCommand, []string{"local"}); err == nil {
		t.Fatal("expected a nonzero result when a file fails to scan")
	}
}
