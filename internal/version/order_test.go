package version

import (
	"testing"
	"time"
)

func TestCompareLastModifiedWins(t *testing.T) {
	earlier := Version{Metadata: Metadata{WorkID: "1", LastModified: time.Unix(100, 0), Chapters: Chapters{Written: 5}, Words: 1000}}
	later := Version{Metadata: Metadata{WorkID: "1", LastModified: time.Unix(200, 0), Chapters: Chapters{Written: 5}, Words: 1000}}
	if Compare(later, earlier) <= 0 {
		t.Fatal("later version should rank above earlier")
	}
	if Compare(earlier, later) >= 0 {
		t.Fatal("earlier version should rank below later")
	}
}

func TestCompareDeletionNotice(t *testing.T) {
	full := Version{
		Length:   100000,
		Metadata: Metadata{WorkID: "1", Chapters: Chapters{Written: 20}},
	}
	notice := Version{
		Length:   500,
		Metadata: Metadata{WorkID: "1", Chapters: Chapters{Written: 1}},
	}
	if Compare(notice, full) >= 0 {
		t.Fatal("deletion notice should rank below the full version")
	}
	if Compare(full, notice) <= 0 {
		t.Fatal("full version should rank above the deletion notice")
	}
}

func TestBestSelectsHighestRanked(t *testing.T) {
	v1 := Version{Metadata: Metadata{WorkID: "1", Words: 1000}}
	v2 := Version{Metadata: Metadata{WorkID: "1", Words: 5000}}
	v3 := Version{Metadata: Metadata{WorkID: "1", Words: 2000}}
	best := Best([]Version{v1, v2, v3})
	if best.Words != 5000 {
		t.Fatalf("Best selected Words=%d, want 5000", best.Words)
	}
}
