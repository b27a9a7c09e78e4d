// Package followup recovers the topic of short, referential turns such as
// "explain that again" by scanning prior turns. The recovered topic is
// delivered to the model as an extra system instruction; it is never shown
// to the user or persisted.
package followup

import (
	"fmt"
	"strings"

	"github.com/mathparenting/tutor-gateway/internal/catalog"
	"github.com/mathparenting/tutor-gateway/internal/domain"
	"github.com/mathparenting/tutor-gateway/internal/intent"
	"github.com/mathparenting/tutor-gateway/internal/mathtext"
)

const maxFollowUpWords = 10

// genericTopic is used when a prior turn is arithmetic rather than a named
// topic.
const genericTopic = "the recent math topic discussed above"

type Resolver struct {
	matcher *mathtext.Matcher
}

func NewResolver(m *mathtext.Matcher) *Resolver {
	return &Resolver{matcher: m}
}

// IsFollowUp reports whether the turn is short and referential: at most ten
// normalized words, and carrying either a referential cue or a question cue.
func (r *Resolver) IsFollowUp(text string) bool {
	t := catalog.Normalize(text)
	if len(strings.Fields(t)) > maxFollowUpWords {
		return false
	}
	return intent.IsReferential(t) || intent.IsQuestion(t)
}

// Resolve returns the context hint for a follow-up turn. Turns that already
// mention a topic need no resolution. The scan walks history backward from
// the second-to-last message: the first specific topic wins; failing that, a
// prior turn with an operator cue yields the generic hint.
func (r *Resolver) Resolve(history []domain.Message, lastUserText string) (string, bool) {
	if !r.IsFollowUp(lastUserText) || r.matcher.LooksMathy(lastUserText) {
		return "", false
	}

	topic := ""
	for i := len(history) - 2; i >= 0; i-- {
		c := history[i].Content
		if specific, ok := r.matcher.FirstTopic(c); ok {
			topic = specific
			break
		}
		if r.matcher.HasOperatorCue(c) {
			topic = genericTopic
			break
		}
	}
	if topic == "" {
		return "", false
	}

	hint := fmt.Sprintf("Context hint: The parent is asking a follow up about %s. Provide a gentle clarification speaking to the parent.", topic)
	return hint, true
}
