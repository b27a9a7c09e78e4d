// Package intent classifies the latest user turn without calling a model.
// Small talk and off-topic turns get a canned reply picked from a fixed pool
// of variants; everything else proceeds to the completion pipeline.
package intent

import (
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/mathparenting/tutor-gateway/internal/mathtext"
)

// Kind is the tagged outcome of classification.
type Kind string

const (
	KindGreeting        Kind = "greeting"
	KindThanks          Kind = "thanks"
	KindFarewell        Kind = "farewell"
	KindAck             Kind = "ack"
	KindShortNudge      Kind = "short_nudge"
	KindNonMathRedirect Kind = "non_math_redirect"
	KindProceedToModel  Kind = "proceed_to_model"
)

// Result carries the decided kind and, for canned kinds, the reply text.
// Reply is empty exactly when Kind is KindProceedToModel.
type Result struct {
	Kind  Kind
	Reply string
}

var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(hi|hii+|hello+|hey+|hiya|howdy|hola|namaste|yo|sup|what(?:'| i)s up)\b`),
	regexp.MustCompile(`(?i)\bgood (morning|afternoon|evening|night)\b`),
}

var thanksPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(thanks|thank you|thanks a lot|thanks so much|thx|ty|tysm|much appreciated|appreciate (it|that))\b`),
	regexp.MustCompile(`(?i)\bcheers\b`),
}

var farewellPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(bye|goodbye|see you|see ya|cya|later|take care)\b`),
}

var ackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(ok|okay|kk|k|cool|nice|great|awesome|got it|understood|sounds good|alright|sure)\b`),
}

var questionCues = []*regexp.Regexp{
	regexp.MustCompile(`\?`),
	regexp.MustCompile(`(?i)\b(how|why|what|when|where|which|who|explain|teach|show|derive|prove|solve|example|practice|help|again|clarify|meaning|definition)\b`),
}

// referentialCues mark turns that lean on earlier conversation, like
// "explain that again". Shared with the follow-up resolver.
var referentialCues = regexp.MustCompile(`\b(again|that|it|this|them|those|explain|meaning|definition)\b`)

const maxReferentialWords = 10

const shortNudgeMaxWords = 3

var replies = map[Kind][]string{
	KindGreeting: {
		"Hi there! It is wonderful to see you. What math topic would you like us to work on together today?",
		"Hello! I am really glad you are here. What math concept would you like me to make simple for you?",
		"Welcome! Let us make math fun and gentle to learn. Which topic should we start with?",
		"Hey! It is always a pleasure helping parents. Tell me the math topic you would like to explore.",
	},
	KindThanks: {
		"You are so welcome. It makes me happy to help you make math easier at home.",
		"My pleasure. You are doing an amazing job supporting your child learning.",
		"You are welcome. It is wonderful to guide parents like you through math.",
		"Happy to help anytime. Keep up the great work with your child.",
	},
	KindFarewell: {
		"Take care. I will be right here whenever you want more help with math.",
		"See you soon. You are doing great. Keep making learning moments special.",
		"Bye for now. I hope math time feels smoother and more enjoyable.",
		"Thank you for visiting. You are building a strong math foundation at home.",
	},
	KindAck: {
		"Great. What math idea shall we explore next together?",
		"Sounds lovely. Tell me which topic you would like to work through today.",
		"Perfect. I am ready when you are to make another math idea clear and simple.",
		"Wonderful. Which math topic would you like to focus on next?",
	},
	KindShortNudge: {
		"I would love to help you with math. What topic would you like to start with today?",
		"Tell me the math idea that is on your mind, and I will guide you step by step.",
		"What math concept feels tricky right now? I will make it simple to understand.",
		"I am happy to help. Just share the math topic you would like to explore.",
	},
	KindNonMathRedirect: {
		"I am here to help with math learning. Could you tell me the math topic you would like to begin with?",
		"My focus is on making math easier for families. What topic can I explain for you today?",
		"I can best help with math. Share any math topic, and we will explore it together warmly.",
		"Let us keep our chat about math so I can support you in the best way possible.",
	},
}

// Classifier is an ordered first-match-wins cascade over the lowercased,
// trimmed last user turn.
type Classifier struct {
	matcher *mathtext.Matcher
	randInt func(n int) int
}

// NewClassifier builds a classifier using the process RNG for variant
// selection.
func NewClassifier(m *mathtext.Matcher) *Classifier {
	return NewClassifierWithRand(m, rand.IntN)
}

// NewClassifierWithRand accepts an injectable random source so tests can pin
// which variant gets picked.
func NewClassifierWithRand(m *mathtext.Matcher, randInt func(n int) int) *Classifier {
	return &Classifier{matcher: m, randInt: randInt}
}

// Classify decides the intent of the last user turn.
func (c *Classifier) Classify(lastUserText string) Result {
	t := strings.ToLower(strings.TrimSpace(lastUserText))

	switch {
	case matchesAny(t, greetingPatterns):
		return c.canned(KindGreeting)
	case matchesAny(t, thanksPatterns):
		return c.canned(KindThanks)
	case matchesAny(t, farewellPatterns):
		return c.canned(KindFarewell)
	case matchesAny(t, ackPatterns):
		return c.canned(KindAck)
	}

	mathy := c.matcher.LooksMathy(t)
	question := matchesAny(t, questionCues)

	if len(strings.Fields(t)) <= shortNudgeMaxWords && !mathy && !question {
		return c.canned(KindShortNudge)
	}

	if !mathy {
		// Short referential turns skip the redirect so the follow-up
		// resolver gets a chance to recover the topic from history.
		if IsReferential(t) {
			return Result{Kind: KindProceedToModel}
		}
		return c.canned(KindNonMathRedirect)
	}

	return Result{Kind: KindProceedToModel}
}

// IsQuestion exposes the question-cue test used by the cascade; the
// follow-up resolver shares it.
func IsQuestion(text string) bool {
	return matchesAny(text, questionCues)
}

// IsReferential reports whether the turn is short and leans on earlier
// conversation rather than naming a topic.
func IsReferential(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if len(strings.Fields(t)) > maxReferentialWords {
		return false
	}
	return referentialCues.MatchString(t)
}

// Replies returns the variant pool for a canned kind. Used by tests to
// assert membership without hardcoding indexes.
func Replies(k Kind) []string {
	return replies[k]
}

func (c *Classifier) canned(k Kind) Result {
	pool := replies[k]
	return Result{Kind: k, Reply: pool[c.randInt(len(pool))]}
}

func matchesAny(t string, pats []*regexp.Regexp) bool {
	for _, rx := range pats {
		if rx.MatchString(t) {
			return true
		}
	}
	return false
}
