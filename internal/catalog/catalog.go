// Package catalog holds the static list of math-topic strings used by fuzzy
// matching. The list is data, not code: deployments can swap it via a YAML
// file without touching any matching logic.
package catalog

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultTopics is the built-in catalog, scanned in this exact order.
// The trailing block is known misspellings seen in real parent questions.
var defaultTopics = []string{
	"counting", "addition", "subtraction", "multiplication", "division", "long division", "factors", "multiples", "prime",
	"place value", "rounding", "number line", "fractions", "fraction", "mixed number", "decimal", "percent", "ratio", "proportion",
	"measurement", "unit", "time", "money", "area", "perimeter", "volume", "angle", "shapes", "triangle", "quadrilateral", "polygon",
	"geometry", "coordinate plane", "graph", "slope", "equation", "inequality", "expression", "variable", "exponent", "power",
	"root", "square root", "order of operations", "pemdas", "mean", "median", "mode", "range", "data", "statistics", "probability",
	"algebra", "linear equation", "system of equations", "quadratic", "polynomial", "factoring", "function", "domain", "range-func",
	"sequence", "series", "arithmetic sequence", "geometric sequence", "absolute value",
	"trigonometry", "sine", "cosine", "tangent", "pythagorean", "similarity", "congruence", "transformations",
	"calculus", "limit", "derivative", "integral", "rate of change", "area under curve",
	"matrix", "vector", "coordinate geometry", "logarithm", "log", "scientific notation",
	// misspellings
	"fracton", "fractin", "devishon", "divishon", "devision", "substraction", "aljebra", "algabra", "multiplcation", "percentge", "percnt",
}

var (
	nonAlnum  = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceRuns = regexp.MustCompile(`\s+`)
)

// Normalize lowercases, strips everything but letters, digits, and
// whitespace, and collapses whitespace runs.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, "")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Catalog is a read-only, ordered list of normalized topic entries.
type Catalog struct {
	entries []string
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return newCatalog(defaultTopics)
}

type topicsFile struct {
	Topics []string `yaml:"topics"`
}

// LoadFile reads a catalog from a YAML file of the form:
//
//	topics:
//	  - fractions
//	  - long division
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topics file: %w", err)
	}

	var f topicsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse topics file: %w", err)
	}
	if len(f.Topics) == 0 {
		return nil, fmt.Errorf("topics file %s contains no topics", path)
	}

	return newCatalog(f.Topics), nil
}

func newCatalog(raw []string) *Catalog {
	entries := make([]string, 0, len(raw))
	for _, t := range raw {
		n := Normalize(t)
		if n != "" {
			entries = append(entries, n)
		}
	}
	return &Catalog{entries: entries}
}

// Entries returns the normalized entries in scan order. Callers must not
// mutate the returned slice.
func (c *Catalog) Entries() []string {
	return c.entries
}

func (c *Catalog) Len() int {
	return len(c.entries)
}
