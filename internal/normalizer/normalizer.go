// Package normalizer repairs raw completion output so it satisfies the
// structural and notation invariants the renderer expects: one canonical
// math-delimiter scheme, no forbidden headings, a warm opening paragraph,
// bold unnumbered section titles, and a bold positive close after the
// practice section.
//
// Each pass is a total, pure string -> string function, composed in a fixed
// order. Re-running Normalize on its own output is a no-op.
package normalizer

import (
	"regexp"
	"strings"
)

// OpeningSentence is inserted when the reply would otherwise open on a bare
// heading.
const OpeningSentence = "I am glad you are here. Let us make this simple together."

// PositiveClose is the bold celebratory sentence guaranteed after the
// practice section.
const PositiveClose = "**You are doing a wonderful job guiding your child. Every step you take together builds confidence.**"

// Normalize applies all passes in order. Order matters: later passes assume
// the invariants the earlier ones establish.
func Normalize(raw string) string {
	out := SanitizeMath(raw)
	out = StripForbiddenHeadings(out)
	out = EnsureOpening(out)
	out = CanonicalizeSectionTitles(out)
	out = EnsurePositiveClose(out)
	return out
}

// ---------------------------------------------------------------------------
// Pass 1: math notation
// ---------------------------------------------------------------------------

var (
	inlineTeX  = regexp.MustCompile(`(?s)\\\(\s*(.*?)\s*\\\)`)
	displayTeX = regexp.MustCompile(`(?s)\\\[\s*(.*?)\s*\\\]`)

	powerPhrase = regexp.MustCompile(`(?i)\b([A-Za-z][A-Za-z0-9]*)\s+(?:to\s+the\s+power\s+of|power)\s+(-?\d+)\b`)
	squared     = regexp.MustCompile(`(?i)\b([A-Za-z][A-Za-z0-9]*)\s+squared\b`)
	cubed       = regexp.MustCompile(`(?i)\b([A-Za-z][A-Za-z0-9]*)\s+cubed\b`)

	// RE2 has no lookahead, so the trailing boundary character is captured
	// and re-emitted; rewriteStable reapplies until adjacent occurrences
	// settle.
	parenCommand = regexp.MustCompile(`(^|[\s>])\(\s*(\\[a-zA-Z][^)]*?)\s*\)([\s<.,;:!?)]|$)`)
	parenAtom    = regexp.MustCompile(`(^|[\s>])\(\s*([A-Za-z][A-Za-z0-9]*|-?\d+(?:\.\d+)?)\s*\)([\s<.,;:!?)]|$)`)
	parenCall    = regexp.MustCompile(`(^|[\s>])\(\s*([A-Za-z][A-Za-z0-9']*\s*\([^()]*\))\s*\)([\s<.,;:!?)]|$)`)

	// The comma must not already be escaped, otherwise \,dx would grow a
	// backslash on every run.
	integralComma = regexp.MustCompile(`(?s)\$\s*\\int(.*?[^\\]),\s*dx\s*\$`)
)

// SanitizeMath rewrites legacy and ambiguous math notation into the
// canonical $...$ / $$...$$ scheme:
//
//   - \( ... \) and \[ ... \] delimiters
//   - English power phrases ("x to the power of 3", "x squared", "x cubed")
//   - parenthesis-wrapped TeX commands, bare variables, numbers, and simple
//     function calls
//   - missing thin space before dx in integrals
func SanitizeMath(text string) string {
	out := inlineTeX.ReplaceAllString(text, `$$ ${1} $$`)
	out = displayTeX.ReplaceAllString(out, `$$$$ ${1} $$$$`)

	out = powerPhrase.ReplaceAllString(out, `$$ ${1}^${2} $$`)
	out = squared.ReplaceAllString(out, `$$ ${1}^2 $$`)
	out = cubed.ReplaceAllString(out, `$$ ${1}^3 $$`)

	out = rewriteStable(out, parenCommand, `${1}$$ ${2} $$${3}`)
	out = rewriteStable(out, parenAtom, `${1}$$ ${2} $$${3}`)
	out = rewriteStable(out, parenCall, `${1}$$ ${2} $$${3}`)

	out = integralComma.ReplaceAllString(out, `$$ \int${1} \,dx $$`)

	return out
}

// rewriteStable reapplies a substitution until the text stops changing.
// Needed because the captured boundary character would otherwise hide the
// next occurrence in sequences like "( x ) ( y )". Bounded to guard against
// a pathological oscillation.
func rewriteStable(text string, rx *regexp.Regexp, repl string) string {
	for i := 0; i < 10; i++ {
		next := rx.ReplaceAllString(text, repl)
		if next == text {
			return next
		}
		text = next
	}
	return text
}

// ---------------------------------------------------------------------------
// Pass 2: forbidden headings
// ---------------------------------------------------------------------------

var forbiddenHeadings = []*regexp.Regexp{
	regexp.MustCompile(`(?mi)^[ \t]*(?:\*\*)?[ \t]*Start[ \t]*(?:\*\*)?[ \t]*:?[ \t]*$`),
	regexp.MustCompile(`(?mi)^[ \t]*(?:\*\*)?[ \t]*Positive[ \t]+Close[ \t]*(?:\*\*)?[ \t]*:?[ \t]*$`),
	regexp.MustCompile(`(?mi)^[ \t]*#{1,6}[ \t]*Start[ \t]*$`),
	regexp.MustCompile(`(?mi)^[ \t]*#{1,6}[ \t]*Positive[ \t]+Close[ \t]*$`),
}

var multiBlank = regexp.MustCompile(`\n{3,}`)

// StripForbiddenHeadings removes any line that is only the literal "Start"
// or "Positive Close" heading, in plain, bold, or markdown-heading form.
// Those two sections are content-only; their labels must never render.
func StripForbiddenHeadings(text string) string {
	out := text
	for _, rx := range forbiddenHeadings {
		out = rx.ReplaceAllString(out, "")
	}
	out = multiBlank.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// ---------------------------------------------------------------------------
// Pass 3: opening paragraph
// ---------------------------------------------------------------------------

var (
	mdHeading      = regexp.MustCompile(`^#{1,6}\s`)
	fullyBoldLine  = regexp.MustCompile(`^\*\*.*\*\*$`)
	anySectionLine = regexp.MustCompile(`(?i)^(?:\d+\.\s*)?(Core Idea|Household Demonstration|The Math Behind It|Step[- ]by[- ]Step Teaching Guide|Curiosity Questions|Real-Life Connection or Fun Fact|Practice Together)\s*:?$`)
)

// EnsureOpening inserts a short warm preface and a blank line when the first
// non-blank line looks like a heading, so the reply never opens on a bare
// section title.
func EnsureOpening(text string) string {
	lines := splitLines(text)

	idx := -1
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			idx = i
			break
		}
	}
	if idx == -1 {
		return OpeningSentence
	}

	first := strings.TrimSpace(lines[idx])
	stripped := strings.TrimSpace(strings.ReplaceAll(first, "**", ""))

	if mdHeading.MatchString(first) || fullyBoldLine.MatchString(first) || anySectionLine.MatchString(stripped) {
		out := make([]string, 0, len(lines)+2)
		out = append(out, lines[:idx]...)
		out = append(out, OpeningSentence, "")
		out = append(out, lines[idx:]...)
		return strings.Join(out, "\n")
	}

	return text
}

// ---------------------------------------------------------------------------
// Pass 4: section titles
// ---------------------------------------------------------------------------

var sectionTitleRewrites = []struct {
	rx    *regexp.Regexp
	title string
}{
	{regexp.MustCompile(`(?i)^(?:\d+\.\s*)?\s*core idea\s*:?\s*$`), "**Core Idea**"},
	{regexp.MustCompile(`(?i)^(?:\d+\.\s*)?\s*household demonstration\s*:?\s*$`), "**Household Demonstration**"},
	{regexp.MustCompile(`(?i)^(?:\d+\.\s*)?\s*the math behind it\s*:?\s*$`), "**The Math Behind It**"},
	{regexp.MustCompile(`(?i)^(?:\d+\.\s*)?\s*step[- ]by[- ]step teaching guide\s*:?\s*$`), "**Step-by-Step Teaching Guide**"},
	{regexp.MustCompile(`(?i)^(?:\d+\.\s*)?\s*curiosity questions\s*:?\s*$`), "**Curiosity Questions**"},
	{regexp.MustCompile(`(?i)^(?:\d+\.\s*)?\s*real[- ]life connection or fun fact\s*:?\s*$`), "**Real-Life Connection or Fun Fact**"},
	{regexp.MustCompile(`(?i)^(?:\d+\.\s*)?\s*practice together\s*:?\s*$`), "**Practice Together**"},
}

// CanonicalizeSectionTitles rewrites each middle section title (any case,
// with an optional leading ordinal and trailing colon) into the single bold,
// unnumbered, colon-free form.
func CanonicalizeSectionTitles(text string) string {
	lines := splitLines(text)
	for i, l := range lines {
		raw := strings.TrimSpace(l)
		for _, rw := range sectionTitleRewrites {
			if rw.rx.MatchString(raw) {
				lines[i] = rw.title
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// ---------------------------------------------------------------------------
// Pass 5: positive close
// ---------------------------------------------------------------------------

var (
	positivePresent = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\*\*[^*]*builds confidence[^*]*\*\*`),
		regexp.MustCompile(`(?is)\*\*.*wonderful job.*\*\*`),
	}
	practiceLine = regexp.MustCompile(`^practice together\s*:?$`)
)

// EnsurePositiveClose guarantees one bold celebratory sentence after the
// last Practice Together section: before the next section title, or at the
// end when practice is last. Without any practice title the sentence is
// appended at the very end.
func EnsurePositiveClose(text string) string {
	for _, rx := range positivePresent {
		if rx.MatchString(text) {
			return text
		}
	}

	lines := splitLines(text)
	lastPractice := -1
	for i, l := range lines {
		raw := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(l, "**", "")))
		if practiceLine.MatchString(raw) {
			lastPractice = i
		}
	}

	if lastPractice == -1 {
		return strings.TrimRight(text, " \t\r\n") + "\n\n" + PositiveClose
	}

	insertAt := len(lines)
	for i := lastPractice + 1; i < len(lines); i++ {
		raw := strings.TrimSpace(strings.ReplaceAll(lines[i], "**", ""))
		if anySectionLine.MatchString(raw) {
			insertAt = i
			break
		}
	}

	out := make([]string, 0, len(lines)+2)
	out = append(out, lines[:insertAt]...)
	out = append(out, "", PositiveClose)
	out = append(out, lines[insertAt:]...)

	joined := multiBlank.ReplaceAllString(strings.Join(out, "\n"), "\n\n")
	return strings.TrimSpace(joined)
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}
