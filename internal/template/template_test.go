package template

import (
	"testing"

	"github.com/ao3vault/vault/internal/compression"
	"github.com/ao3vault/vault/internal/version"
)

func sample() version.Version {
	return version.Version{
		Hash:  "abc123",
		CRC32: 0xdeadbeef,
		Metadata: version.Metadata{
			WorkID:   "12345",
			Title:    "My Great Story",
			Fandoms:  []version.Fandom{"Harry Potter"},
			Rating:   version.RatingGeneral,
			Chapters: version.Chapters{Written: 5},
			Words:    25000,
		},
	}
}

func TestGeneratesBasicPath(t *testing.T) {
	gen, err := New("{{ .Fandom | slug }}/{{ .Work }}-{{ .Title | slug }}")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	path, err := gen.Generate(sample())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if path != "harry-potter/12345-my-great-story" {
		t.Fatalf("path = %q", path)
	}
}

func TestIncludesHashInPath(t *testing.T) {
	gen, err := New("{{ .Work }}-{{ .Hash }}")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	path, err := gen.Generate(sample())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if path != "12345-deadbeef" {
		t.Fatalf("path = %q", path)
	}
}

func TestGenerateWithExtAppendsCompressionSuffix(t *testing.T) {
	gen, err := New("{{ .Work }}")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	path, err := gen.GenerateWithExt(sample(), "html", compression.Bzip2)
	if err != nil {
		t.Fatalf("GenerateWithExt: %v", err)
	}
	if path != "12345.html.bz2" {
		t.Fatalf("path = %q", path)
	}
}

func TestSlugStripsQuotes(t *testing.T) {
	gen, err := New("{{ .Title | slug }}.html")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v := sample()
	v.Title = `"Hello" World's 'Test'`
	path, err := gen.Generate(v)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if path != "hello-worlds-test.html" {
		t.Fatalf("path = %q", path)
	}
}

func TestTruncateFunction(t *testing.T) {
	gen, err := New("{{ truncate .Title 10 | slug }}")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v := sample()
	v.Title = "A Very Long Title Indeed"
	path, err := gen.Generate(v)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if path != "a-very-lon" {
		t.Fatalf("path = %q", path)
	}
}

func TestRejectsTraversal(t *testing.T) {
	gen, err := New("../../etc/passwd")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := gen.Generate(sample()); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
}
