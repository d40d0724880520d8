package organize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ao3vault/vault/internal/cache"
	"github.com/ao3vault/vault/internal/cachedb"
	"github.com/ao3vault/vault/internal/compression"
	"github.com/ao3vault/vault/internal/fileinfo"
	"github.com/ao3vault/vault/internal/storage"
	"github.com/ao3vault/vault/internal/template"
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

const sampleWorkTwo = `<!DOCTYPE html>
<html><body>
<div id="preface" class="group">
  <div class="message">
    <p class="message"><a href="https://archiveofourown.org/works/99999">Work Link</a></p>
  </div>
  <div class="meta">
    <h1>A Second Good Title</h1>
    <h3 class="byline">
      <a rel="author" href="https://archiveofourown.org/users/bob/pseuds/bob">bob</a>
    </h3>
    <dl class="tags">
      <dt>Rating:</dt><dd><a href="#">General Audiences</a></dd>
      <dt>Warnings:</dt><dd><a href="#">No Archive Warnings Apply</a></dd>
      <dt>Fandoms:</dt><dd><a href="#">Star Trek</a></dd>
      <dt>Language:</dt><dd>English</dd>
      <dt>Stats:</dt><dd>Published: 2020-03-04 Updated: 2020-04-05 Words: 500 Chapters: 1/1</dd>
    </dl>
    <blockquote class="userstuff"><p>A different summary.</p></blockquote>
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

func newTestContext(t *testing.T) *Context {
	t.Helper()
	gen, err := template.New("{{ .Fandom | slug }}/{{ .Work }}-{{ .Title | slug }}")
	if err != nil {
		t.Fatalf("template.New: %v", err)
	}
	return &Context{Template: gen}
}

func TestFileRenamesMisplacedDocument(t *testing.T) {
	ctx := context.Background()
	backend, repo := newTestEnv(t)
	octx := newTestContext(t)

	if err := backend.Write(ctx, "misc/raw.html", []byte(sampleWork)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	meta := fileinfo.Meta{Target: backend.Name(), Path: "misc/raw.html"}
	action, err := File(ctx, backend, repo, octx, meta)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if action.Kind != Renamed {
		t.Fatalf("Kind = %v, want Renamed", action.Kind)
	}
	wantPath := "star-trek/12345-a-very-good-title.html"
	if action.Path != wantPath {
		t.Fatalf("Path = %q, want %q", action.Path, wantPath)
	}

	if exists, _ := backend.Exists(ctx, "misc/raw.html"); exists {
		t.Fatalf("old path still exists after rename")
	}
	if exists, _ := backend.Exists(ctx, wantPath); !exists {
		t.Fatalf("new path does not exist after rename")
	}

	record, err := repo.GetByTargetPath(ctx, backend.Name(), wantPath)
	if err != nil {
		t.Fatalf("GetByTargetPath: %v", err)
	}
	if record == nil {
		t.Fatalf("expected a cache record at the new path")
	}
}

func TestFileTranscodesToTargetCompression(t *testing.T) {
	ctx := context.Background()
	backend, repo := newTestEnv(t)
	octx := newTestContext(t)
	zstd := compression.Zstd
	octx.Compression = &zstd

	gz, err := compression.Compress(compression.Gzip, []byte(sampleWork))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if err := backend.Write(ctx, "misc/raw.html.gz", gz); err != nil {
		t.Fatalf("Write: %v", err)
	}

	meta := fileinfo.Meta{Target: backend.Name(), Path: "misc/raw.html.gz"}
	action, err := File(ctx, backend, repo, octx, meta)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if action.Kind != Renamed {
		t.Fatalf("Kind = %v, want Renamed", action.Kind)
	}
	if !strings.HasSuffix(action.Path, ".zst") {
		t.Fatalf("Path = %q, want a .zst suffix", action.Path)
	}

	stored, err := backend.Read(ctx, action.Path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	decompressed, err := compression.Decompress(compression.Zstd, stored)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if string(decompressed) != sampleWork {
		t.Fatalf("transcoded content does not match original")
	}
	if exists, _ := backend.Exists(ctx, "misc/raw.html.gz"); exists {
		t.Fatalf("old compressed path still exists after transcode")
	}
}

func TestFileAlreadyCorrectLeavesFileInPlace(t *testing.T) {
	ctx := context.Background()
	backend, repo := newTestEnv(t)
	octx := newTestContext(t)

	correctPath := "star-trek/12345-a-very-good-title.html"
	if err := backend.Write(ctx, correctPath, []byte(sampleWork)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	meta := fileinfo.Meta{Target: backend.Name(), Path: correctPath}
	action, err := File(ctx, backend, repo, octx, meta)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if action.Kind != AlreadyCorrect {
		t.Fatalf("Kind = %v, want AlreadyCorrect", action.Kind)
	}
	if action.Path != correctPath {
		t.Fatalf("Path = %q, want %q", action.Path, correctPath)
	}
	if exists, _ := backend.Exists(ctx, correctPath); !exists {
		t.Fatalf("file disappeared from its already-correct path")
	}
}

func TestFileCleansUpStaleRecordForMissingFile(t *testing.T) {
	ctx := context.Background()
	backend, repo := newTestEnv(t)
	octx := newTestContext(t)

	path := "misc/gone.html"
	if err := backend.Write(ctx, path, []byte(sampleWork)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	meta := fileinfo.Meta{Target: backend.Name(), Path: path}
	if _, _, err := currentRecord(ctx, backend, repo, meta); err != nil {
		t.Fatalf("currentRecord: %v", err)
	}
	if err := backend.Delete(ctx, path); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	action, err := File(ctx, backend, repo, octx, meta)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if action.Kind != CleanedUp {
		t.Fatalf("Kind = %v, want CleanedUp", action.Kind)
	}

	record, err := repo.GetByTargetPath(ctx, backend.Name(), path)
	if err != nil {
		t.Fatalf("GetByTargetPath: %v", err)
	}
	if record != nil {
		t.Fatalf("expected the stale cache row to be removed")
	}
}

func TestFileCleansUpInvalidDocument(t *testing.T) {
	ctx := context.Background()
	backend, repo := newTestEnv(t)
	octx := newTestContext(t)

	path := "misc/broken.html"
	if err := backend.Write(ctx, path, []byte("<html><body>not a work</body></html>")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	meta := fileinfo.Meta{Target: backend.Name(), Path: path}
	action, err := File(ctx, backend, repo, octx, meta)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if action.Kind != CleanedUp {
		t.Fatalf("Kind = %v, want CleanedUp", action.Kind)
	}
	if exists, _ := backend.Exists(ctx, path); exists {
		t.Fatalf("invalid document was not removed from the backend")
	}
}

func TestFileConflictClaimsSlotAndCleansUpDuplicate(t *testing.T) {
	ctx := context.Background()
	backend, repo := newTestEnv(t)

	gen, err := template.New("fixed")
	if err != nil {
		t.Fatalf("template.New: %v", err)
	}
	octx := &Context{Template: gen}

	if err := backend.Write(ctx, "first.html", []byte(sampleWork)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	firstMeta := fileinfo.Meta{Target: backend.Name(), Path: "first.html"}
	firstAction, err := File(ctx, backend, repo, octx, firstMeta)
	if err != nil {
		t.Fatalf("organize first: %v", err)
	}
	if firstAction.Kind != Renamed || firstAction.Path != "fixed.html" {
		t.Fatalf("first action = %+v, want Renamed to fixed.html", firstAction)
	}

	if err := backend.Write(ctx, "second.html", []byte(sampleWorkTwo)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	secondMeta := fileinfo.Meta{Target: backend.Name(), Path: "second.html"}
	if _, err := File(ctx, backend, repo, octx, secondMeta); err == nil {
		t.Fatalf("organize second: expected a conflict error, got nil")
	}

	if exists, _ := backend.Exists(ctx, "second.html"); exists {
		t.Fatalf("the unplaceable duplicate was not removed from the backend")
	}
	if exists, _ := backend.Exists(ctx, "fixed.html"); !exists {
		t.Fatalf("the original occupant should remain at the claimed slot")
	}
}

func TestFileConflictCycleFailsWithoutDataLoss(t *testing.T) {
	ctx := context.Background()
	backend, repo := newTestEnv(t)

	gen, err := template.New("{{ .Title | slug }}")
	if err != nil {
		t.Fatalf("template.New: %v", err)
	}
	octx := &Context{Template: gen}

	// Each document sits at the other's correct path, so the conflict
	// chain revisits its starting slot.
	pathA := "a-second-good-title.html"
	pathB := "a-very-good-title.html"
	if err := backend.Write(ctx, pathA, []byte(sampleWork)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := backend.Write(ctx, pathB, []byte(sampleWorkTwo)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for _, p := range []string{pathA, pathB} {
		meta := fileinfo.Meta{Target: backend.Name(), Path: p}
		if _, _, err := currentRecord(ctx, backend, repo, meta); err != nil {
			t.Fatalf("currentRecord(%q): %v", p, err)
		}
	}

	meta := fileinfo.Meta{Target: backend.Name(), Path: pathA}
	_, err = File(ctx, backend, repo, octx, meta)
	if err == nil {
		t.Fatal("expected a conflict error for a cyclic swap")
	}
	var oerr *Error
	if !errors.As(err, &oerr) || oerr.Kind != ErrConflict {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	for _, p := range []string{pathA, pathB} {
		if exists, _ := backend.Exists(ctx, p); !exists {
			t.Fatalf("%q missing after failed cyclic organize", p)
		}
	}
}

func TestStreamOrganizesAllCachedFiles(t *testing.T) {
	ctx := context.Background()
	backend, repo := newTestEnv(t)
	octx := newTestContext(t)

	docs := map[string]string{
		"misc/one.html": sampleWork,
		"misc/two.html": sampleWorkTwo,
	}
	for p, body := range docs {
		if err := backend.Write(ctx, p, []byte(body)); err != nil {
			t.Fatalf("Write(%q): %v", p, err)
		}
		meta := fileinfo.Meta{Target: backend.Name(), Path: p}
		if _, _, err := currentRecord(ctx, backend, repo, meta); err != nil {
			t.Fatalf("currentRecord(%q): %v", p, err)
		}
	}

	var kinds []EventKind
	var organized int
	for ev := range Stream(ctx, backend, repo, octx) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == Organized {
			if ev.Err != nil {
				t.Fatalf("organize %q: %v", ev.Path, ev.Err)
			}
			if ev.Action.Kind != Renamed {
				t.Fatalf("organize %q: action = %v, want Renamed", ev.Path, ev.Action.Kind)
			}
			organized++
		}
	}

	if len(kinds) < 4 || kinds[0] != Started || kinds[1] != DiscoveryComplete || kinds[len(kinds)-1] != Complete {
		t.Fatalf("event kinds = %v, want Started, DiscoveryComplete ... Complete", kinds)
	}
	if organized != len(docs) {
		t.Fatalf("organized %d files, want %d", organized, len(docs))
	}

	for _, want := range []string{
		"star-trek/12345-a-very-good-title.html",
		"star-trek/99999-a-second-good-title.html",
	} {
		if exists, _ := backend.Exists(ctx, want); !exists {
			t.Fatalf("%q missing after stream organize", want)
		}
	}
}
