// Package mathtext decides whether free text refers to a math topic or
// expression. Detection is local and deterministic: an operator/digit cue,
// an exact catalog substring, or a bounded edit distance against catalog
// entries. No model call is ever involved.
package mathtext

import (
	"regexp"
	"strings"

	"github.com/mathparenting/tutor-gateway/internal/catalog"
)

// operatorCues fires on any digit or arithmetic symbol in the raw text.
// Arithmetic expressions bypass topic matching entirely.
var operatorCues = regexp.MustCompile(`[0-9]|[+\-*/=^%()]`)

// Edit-distance buckets by token length. Empirically chosen, not derived;
// treat as tunable configuration.
const (
	shortTokenLen  = 5
	shortTokenDist = 1
	midTokenLen    = 8
	midTokenDist   = 2
	maxDist        = 3
	minTokenLen    = 3
)

// Matcher performs fuzzy topic detection against a fixed catalog.
type Matcher struct {
	topics []string
}

func NewMatcher(c *catalog.Catalog) *Matcher {
	return &Matcher{topics: c.Entries()}
}

// HasOperatorCue reports whether the raw text contains a digit or an
// arithmetic operator.
func (m *Matcher) HasOperatorCue(text string) bool {
	return operatorCues.MatchString(text)
}

// LooksMathy reports whether the text refers to a math topic or expression:
// operator cue first, then exact catalog substring, then per-token edit
// distance within the length buckets. Empty normalized text is never mathy.
func (m *Matcher) LooksMathy(text string) bool {
	if m.HasOperatorCue(text) {
		return true
	}

	t := catalog.Normalize(text)
	if t == "" {
		return false
	}

	for _, topic := range m.topics {
		if strings.Contains(t, topic) {
			return true
		}
	}

	for _, tok := range strings.Fields(t) {
		if len(tok) < minTokenLen {
			continue
		}
		allowed := maxDist
		switch {
		case len(tok) <= shortTokenLen:
			allowed = shortTokenDist
		case len(tok) <= midTokenLen:
			allowed = midTokenDist
		}
		for _, topic := range m.topics {
			if Levenshtein(tok, topic) <= allowed {
				return true
			}
		}
	}

	return false
}

// FirstTopic returns the first catalog entry contained in the normalized
// text. Ties are broken by catalog order, not by position in the text.
func (m *Matcher) FirstTopic(text string) (string, bool) {
	t := catalog.Normalize(text)
	if t == "" {
		return "", false
	}
	for _, topic := range m.topics {
		if strings.Contains(t, topic) {
			return topic, true
		}
	}
	return "", false
}

// Levenshtein computes the classic edit distance with unit-cost insertion,
// deletion, and substitution, using two rolling rows.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
