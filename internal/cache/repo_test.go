package cache

import (
	"context"
	"testing"
	"time"

	"github.com/ao3vault/vault/internal/cachedb"
	"github.com/ao3vault/vault/internal/compression"
	"github.com/ao3vault/vault/internal/version"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := cachedb.Open("")
	if err != nil {
		t.Fatalf("cachedb.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func sampleVersion(workID, hash string, words, chaptersWritten int) version.Version {
	return version.Version{
		Hash:        hash,
		Length:      int64(words * 6),
		ExtractedAt: time.Unix(1000, 0),
		Metadata: version.Metadata{
			WorkID:   workID,
			Title:    "a work",
			Words:    words,
			Chapters: version.Chapters{Written: chaptersWritten},
			Language: "en",
		},
	}
}

func sampleFile(target, path, hash string) File {
	return File{
		Target:       target,
		Path:         path,
		Compression:  compression.None,
		FileSize:     1024,
		FileHash:     hash,
		ContentHash:  hash,
		DiscoveredAt: time.Unix(2000, 0),
	}
}

func TestUpsertRejectsHashMismatch(t *testing.T) {
	repo := newTestRepo(t)
	v := sampleVersion("w1", "hash-a", 1000, 5)
	f := sampleFile("t1", "a.html", "hash-b")
	if err := repo.Upsert(context.Background(), f, v); err == nil {
		t.Fatal("expected error for mismatched file/version hashes")
	}
}

func TestUpsertAndExists(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	v := sampleVersion("w1", "hash-a", 1000, 5)
	f := sampleFile("t1", "a.html", "hash-a")
	if err := repo.Upsert(ctx, f, v); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	outcome, err := repo.Exists(ctx, "t1", "a.html", "hash-a")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if outcome != ExactMatch {
		t.Fatalf("Exists = %v, want ExactMatch", outcome)
	}

	outcome, err = repo.Exists(ctx, "t1", "a.html", "other-hash")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if outcome != HashMismatch {
		t.Fatalf("Exists = %v, want HashMismatch", outcome)
	}

	outcome, err = repo.Exists(ctx, "t1", "elsewhere.html", "hash-a")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if outcome != LocatedElsewhere {
		t.Fatalf("Exists = %v, want LocatedElsewhere", outcome)
	}

	outcome, err = repo.Exists(ctx, "t1", "missing.html", "no-such-hash")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if outcome != NotFound {
		t.Fatalf("Exists = %v, want NotFound", outcome)
	}
}

func TestGetBestForWorkIDPicksHighestOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	small := sampleVersion("w1", "hash-small", 1000, 5)
	big := sampleVersion("w1", "hash-big", 5000, 5)
	if err := repo.Upsert(ctx, sampleFile("t1", "small.html", "hash-small"), small); err != nil {
		t.Fatalf("Upsert small: %v", err)
	}
	if err := repo.Upsert(ctx, sampleFile("t1", "big.html", "hash-big"), big); err != nil {
		t.Fatalf("Upsert big: %v", err)
	}

	best, err := repo.GetBestForWorkID(ctx, "w1")
	if err != nil {
		t.Fatalf("GetBestForWorkID: %v", err)
	}
	if best == nil {
		t.Fatal("expected a best version")
	}
	if best.Version.Hash != "hash-big" {
		t.Fatalf("best = %s, want hash-big", best.Version.Hash)
	}
}

func TestDeleteOrphanedVersions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v := sampleVersion("w1", "hash-a", 1000, 5)
	f := sampleFile("t1", "a.html", "hash-a")
	if err := repo.Upsert(ctx, f, v); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := repo.DeleteByTargetPath(ctx, "t1", "a.html"); err != nil {
		t.Fatalf("DeleteByTargetPath: %v", err)
	}

	n, err := repo.DeleteOrphanedVersions(ctx)
	if err != nil {
		t.Fatalf("DeleteOrphanedVersions: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted %d orphans, want 1", n)
	}

	got, err := repo.GetByContentHash(ctx, "hash-a")
	if err != nil {
		t.Fatalf("GetByContentHash: %v", err)
	}
	if got != nil {
		t.Fatal("expected version to be gone after orphan cleanup")
	}
}

func TestDryRunNeverMutates(t *testing.T) {
	repo := newTestRepo(t)
	repo.DryRun = true
	ctx := context.Background()

	v := sampleVersion("w1", "hash-a", 1000, 5)
	f := sampleFile("t1", "a.html", "hash-a")
	if err := repo.Upsert(ctx, f, v); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	count, err := repo.CountFiles(ctx)
	if err != nil {
		t.Fatalf("CountFiles: %v", err)
	}
	if count != 0 {
		t.Fatalf("dry-run Upsert wrote %d rows, want 0", count)
	}
}

func TestDuplicateContentHashesInTarget(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v := sampleVersion("w1", "hash-a", 1000, 5)
	if err := repo.Upsert(ctx, sampleFile("t1", "a.html", "hash-a"), v); err != nil {
		t.Fatalf("Upsert a: %v", err)
	}
	if err := repo.Upsert(ctx, sampleFile("t1", "a-copy.html", "hash-a"), v); err != nil {
		t.Fatalf("Upsert a-copy: %v", err)
	}

	dupes, err := repo.DuplicateContentHashesInTarget(ctx, "t1")
	if err != nil {
		t.Fatalf("DuplicateContentHashesInTarget: %v", err)
	}
	if len(dupes) != 1 || dupes[0].Count != 2 {
		t.Fatalf("dupes = %+v, want one group of 2", dupes)
	}
}
