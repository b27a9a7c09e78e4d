package catalog

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercases", input: "Long Division", want: "long division"},
		{name: "strips punctuation", input: "what's a fraction?!", want: "whats a fraction"},
		{name: "collapses whitespace", input: "  square \t root  ", want: "square root"},
		{name: "keeps digits", input: "2 + 2 = 4", want: "2 2 4"},
		{name: "empty", input: "", want: ""},
		{name: "only punctuation", input: "?!...", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	c := Default()

	if c.Len() == 0 {
		t.Fatal("default catalog is empty")
	}

	entries := c.Entries()
	for _, e := range entries {
		if e != Normalize(e) {
			t.Errorf("entry %q is not normalized", e)
		}
	}

	// Scan order matters for tie-breaking; the misspellings block sits
	// after the real topics.
	if !slices.Contains(entries, "fracton") {
		t.Error("default catalog is missing the misspelling entries")
	}
	if slices.Index(entries, "fractions") > slices.Index(entries, "fracton") {
		t.Error("misspellings should follow real topics in scan order")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topics.yaml")
	content := "topics:\n  - Fractions\n  - Long Division\n  - decimals\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write topics file: %v", err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	want := []string{"fractions", "long division", "decimals"}
	if !slices.Equal(c.Entries(), want) {
		t.Errorf("entries = %v, want %v", c.Entries(), want)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(empty, []byte("topics: []\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadFile(empty); err == nil {
		t.Error("expected error for empty topic list")
	}
}
