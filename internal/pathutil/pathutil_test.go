package pathutil

import "testing"

func TestValidateAccepts(t *testing.T) {
	cases := map[string]string{
		"a/b/c.html":       "a/b/c.html",
		"./a/./b":          "a/b",
		"a//b":             "a/b",
		"a/b/../c":         "a/c",
		"a\\b\\c":          "a/b/c",
		"a/b/../../a/file": "a/file",
	}
	for input, want := range cases {
		got, err := Validate(input)
		if err != nil {
			t.Fatalf("Validate(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("Validate(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []string{
		"",
		".",
		"..",
		"../a",
		"a/../..",
		"/a/b",
		"C:/a/b",
		"a/\x00b",
	}
	for _, input := range cases {
		if _, err := Validate(input); err == nil {
			t.Fatalf("Validate(%q) unexpectedly succeeded", input)
		}
	}
}

func TestValidateIdempotent(t *testing.T) {
	inputs := []string{"a/b/c.html", "x//y/../z"}
	for _, input := range inputs {
		once, err := Validate(input)
		if err != nil {
			t.Fatalf("Validate(%q) error: %v", input, err)
		}
		twice, err := Validate(once)
		if err != nil {
			t.Fatalf("Validate(%q) error: %v", once, err)
		}
		if once != twice {
			t.Fatalf("Validate not idempotent: %q != %q", once, twice)
		}
	}
}
