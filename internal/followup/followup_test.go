package followup

import (
	"strings"
	"testing"

	"github.com/mathparenting/tutor-gateway/internal/catalog"
	"github.com/mathparenting/tutor-gateway/internal/domain"
	"github.com/mathparenting/tutor-gateway/internal/mathtext"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(mathtext.NewMatcher(catalog.Default()))
}

func history(turns ...domain.Message) []domain.Message {
	return turns
}

func user(text string) domain.Message {
	return domain.Message{Role: domain.RoleUser, Content: text}
}

func assistant(text string) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, Content: text}
}

func TestIsFollowUp(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "referential cue", input: "explain that again", want: true},
		{name: "question cue", input: "why?", want: true},
		{name: "no cue", input: "good evening everyone", want: false},
		{name: "too many words", input: "I would like a much longer and more detailed walkthrough of everything", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.IsFollowUp(tt.input); got != tt.want {
				t.Errorf("IsFollowUp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveFindsSpecificTopic(t *testing.T) {
	r := newTestResolver(t)

	h := history(
		user("can you explain multiplication"),
		assistant("Multiplication combines equal groups."),
		user("explain that again"),
	)

	hint, ok := r.Resolve(h, "explain that again")
	if !ok {
		t.Fatal("expected a context hint")
	}
	if !strings.Contains(hint, "multiplication") {
		t.Errorf("hint = %q, want mention of multiplication", hint)
	}
	if !strings.Contains(hint, "follow up") {
		t.Errorf("hint = %q, want follow-up phrasing", hint)
	}
}

func TestResolvePrefersMostRecentTopic(t *testing.T) {
	r := newTestResolver(t)

	h := history(
		user("teach me about fractions"),
		assistant("Fractions name equal parts of a whole."),
		user("now decimals please"),
		assistant("Decimals are another way to write fractions of ten."),
		user("show me that again"),
	)

	hint, ok := r.Resolve(h, "show me that again")
	if !ok {
		t.Fatal("expected a context hint")
	}
	// The scan walks backward; the assistant's decimals turn also mentions
	// fractions, and catalog order decides within a single message.
	if !strings.Contains(hint, "fractions") && !strings.Contains(hint, "decimal") {
		t.Errorf("hint = %q, want a topic from the most recent turns", hint)
	}
}

func TestResolveGenericHintFromArithmetic(t *testing.T) {
	r := newTestResolver(t)

	h := history(
		user("what is 12 * 12"),
		assistant("It equals 144."),
		user("why?"),
	)

	hint, ok := r.Resolve(h, "why?")
	if !ok {
		t.Fatal("expected a context hint")
	}
	if !strings.Contains(hint, "the recent math topic discussed above") {
		t.Errorf("hint = %q, want the generic topic phrase", hint)
	}
}

func TestResolveNoHint(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name     string
		history  []domain.Message
		lastUser string
	}{
		{
			name:     "no prior topic anywhere",
			history:  history(user("hello there"), assistant("Hi!"), user("explain that again")),
			lastUser: "explain that again",
		},
		{
			name:     "turn already names a topic",
			history:  history(user("teach me fractions"), assistant("Sure."), user("explain fractions again")),
			lastUser: "explain fractions again",
		},
		{
			name:     "not a follow-up",
			history:  history(user("teach me fractions"), assistant("Sure."), user("good evening everyone")),
			lastUser: "good evening everyone",
		},
		{
			name:     "no history before the turn",
			history:  history(user("explain that again")),
			lastUser: "explain that again",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if hint, ok := r.Resolve(tt.history, tt.lastUser); ok {
				t.Errorf("Resolve = %q, want no hint", hint)
			}
		})
	}
}
